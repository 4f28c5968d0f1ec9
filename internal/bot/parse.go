package bot

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/Jack-Gledhill/bugbot/internal/report"
)

var errSyntax = errors.New("bot: syntax")

// submitFlags maps each submit flag to the field it fills.
var submitFlags = map[string]string{
	"-t": "title", "--title": "title",
	"-s": "steps", "--steps": "steps",
	"-e": "expected", "--expected": "expected",
	"-a": "actual", "--actual": "actual",
	"-sv": "software", "--software": "software",
}

// parseSubmit reads "-t <text> -s <a ~ b> -e <text> -a <text> -sv <text>".
// Each flag consumes every word up to the next flag; flags may appear in
// any order and all are required.
func parseSubmit(args string) (title string, steps []string, expected, actual, software string, err error) {
	values := make(map[string][]string)
	current := ""
	for _, word := range strings.Split(args, " ") {
		if field, ok := submitFlags[word]; ok {
			current = field
			if _, seen := values[field]; !seen {
				values[field] = nil
			}
			continue
		}
		if current == "" {
			if strings.TrimSpace(word) == "" {
				continue
			}
			return "", nil, "", "", "", fmt.Errorf("%w: unexpected %q before the first flag", errSyntax, word)
		}
		values[current] = append(values[current], word)
	}

	get := func(field string) string {
		return strings.TrimSpace(strings.Join(values[field], " "))
	}
	var missing []string
	for _, field := range []string{"title", "steps", "expected", "actual", "software"} {
		if get(field) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return "", nil, "", "", "", fmt.Errorf("%w: missing %s", errSyntax, strings.Join(missing, ", "))
	}
	steps = report.SplitSteps(get("steps"))
	if len(steps) == 0 {
		return "", nil, "", "", "", fmt.Errorf("%w: missing steps", errSyntax)
	}
	return get("title"), steps, get("expected"), get("actual"), get("software"), nil
}

// splitCommand splits "name rest of line" after the prefix.
func splitCommand(text string) (name, rest string) {
	text = strings.TrimSpace(text)
	name, rest, _ = strings.Cut(text, " ")
	return strings.ToLower(name), strings.TrimSpace(rest)
}

// parseID reads a report id, accepting an optional leading '#'.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %q is not a report id", errSyntax, s)
	}
	return id, nil
}

// idAndText splits "<id> <text>", requiring text when needText is set.
func idAndText(args string, needText bool) (int64, string, error) {
	head, tail, _ := strings.Cut(strings.TrimSpace(args), " ")
	id, err := parseID(head)
	if err != nil {
		return 0, "", err
	}
	tail = strings.TrimSpace(tail)
	if needText && tail == "" {
		return 0, "", fmt.Errorf("%w: missing text", errSyntax)
	}
	return id, tail, nil
}

// attachmentLink builds the "[name](url)" content of an attachment. The name
// defaults to the last element of the URL path.
func attachmentLink(rawURL, name string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an http(s) url", errSyntax, rawURL)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = path.Base(u.Path)
		if name == "." || name == "/" {
			return "", fmt.Errorf("%w: attachment name required", errSyntax)
		}
	}
	name = strings.NewReplacer("[", "(", "]", ")").Replace(name)
	return fmt.Sprintf("[%s](%s)", name, u.String()), nil
}
