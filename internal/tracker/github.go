// Package tracker files approved reports in an external issue tracker.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// Tracker creates issues. repo is "owner/name".
type Tracker interface {
	CreateIssue(ctx context.Context, repo, title, body string) (report.Issue, error)
}

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 10 * time.Second

// GitHub is a Tracker backed by the GitHub REST API.
type GitHub struct {
	client  *github.Client
	timeout time.Duration
}

// GitHubOpts holds parameters for creating a GitHub tracker.
type GitHubOpts struct {
	Token   string        // personal access token (required)
	BaseURL string        // API root; empty means api.github.com
	Timeout time.Duration // per call; defaults to DefaultTimeout
}

// NewGitHub creates a GitHub tracker authenticated with opts.Token.
func NewGitHub(opts GitHubOpts) (*GitHub, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("tracker: github token is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	client := github.NewClient(oauth2.NewClient(context.Background(), ts))
	if opts.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("tracker: base url %q: %w", opts.BaseURL, err)
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GitHub{client: client, timeout: timeout}, nil
}

// CreateIssue opens an issue and returns its number and web URL.
func (g *GitHub) CreateIssue(ctx context.Context, repo, title, body string) (report.Issue, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return report.Issue{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	issue, _, err := g.client.Issues.Create(ctx, owner, name, &github.IssueRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return report.Issue{}, fmt.Errorf("tracker: create issue in %s: %w", repo, err)
	}
	url := issue.GetHTMLURL()
	if url == "" {
		url = fmt.Sprintf("https://github.com/%s/%s/issues/%d", owner, name, issue.GetNumber())
	}
	return report.Issue{ID: issue.GetNumber(), URL: url}, nil
}

// SplitRepo splits "owner/name".
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("tracker: repo must be owner/name, got %q", repo)
	}
	return owner, name, nil
}

// Retryable reports whether a failed CreateIssue may succeed if repeated.
// Rate limits and server errors are; authentication, permission and
// validation failures are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		return code == http.StatusTooManyRequests || code >= 500
	}
	return true
}
