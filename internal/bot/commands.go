package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Jack-Gledhill/bugbot/internal/config"
	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/bwmarrin/discordgo"
)

type scope int

const (
	anywhere scope = iota
	boardOnly
	approvalOnly
)

type invocation struct {
	msg  *discordgo.Message
	args string
}

// command is one entry in the command table. run returns the success text;
// an empty text sends no response.
type command struct {
	perm   config.Permission
	scope  scope
	usage  string
	help   string
	denied string
	run    func(b *Bot, ctx context.Context, inv *invocation) (string, error)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"submit": {
			perm: config.CanReport, scope: boardOnly,
			usage:  "submit -t <title> -s <step one ~ step two> -e <expected> -a <actual> -sv <software>",
			help:   "Submit a bug report from a bug board.",
			denied: "You're not allowed to submit reports.",
			run:    (*Bot).cmdSubmit,
		},
		"edit": {
			perm: config.CanEdit, scope: anywhere,
			usage:  "edit <id> <section> <content>",
			help:   "Edit a section of your own report.",
			denied: "You're not allowed to edit reports.",
			run:    (*Bot).cmdEdit,
		},
		"approve": {
			perm: config.CanApprove, scope: approvalOnly,
			usage:  "approve <id> <reproduction notes>",
			help:   "Approve a report you could reproduce.",
			denied: "You're not allowed to approve reports.",
			run:    stance(report.Approve, false),
		},
		"deny": {
			perm: config.CanDeny, scope: approvalOnly,
			usage:  "deny <id> <reason>",
			help:   "Deny a report you could not reproduce.",
			denied: "You're not allowed to deny reports.",
			run:    stance(report.Deny, false),
		},
		"fapprove": {
			perm: config.CanForceApprove, scope: approvalOnly,
			usage:  "fapprove <id> <reason>",
			help:   "Approve a report immediately.",
			denied: "You're not allowed to force approve reports.",
			run:    stance(report.Approve, true),
		},
		"fdeny": {
			perm: config.CanForceDeny, scope: approvalOnly,
			usage:  "fdeny <id> <reason>",
			help:   "Deny a report immediately.",
			denied: "You're not allowed to force deny reports.",
			run:    stance(report.Deny, true),
		},
		"revoke": {
			perm: config.CanRevoke, scope: approvalOnly,
			usage:  "revoke <id>",
			help:   "Remove your stance from a report.",
			denied: "You're not allowed to revoke stances.",
			run:    (*Bot).cmdRevoke,
		},
		"attach": {
			perm: config.CanAttach, scope: approvalOnly,
			usage:  "attach <id> <url> [name]",
			help:   "Attach a link to a report.",
			denied: "You're not allowed to add attachments.",
			run:    (*Bot).cmdAttach,
		},
		"note": {
			perm: config.CanNote, scope: approvalOnly,
			usage:  "note <id> <text>",
			help:   "Add a note to a report.",
			denied: "You're not allowed to add notes.",
			run:    (*Bot).cmdNote,
		},
		"lock": {
			perm: config.CanLock, scope: approvalOnly,
			usage:  "lock <id>",
			help:   "Freeze a report.",
			denied: "You're not allowed to lock reports.",
			run:    (*Bot).cmdLock,
		},
		"unlock": {
			perm: config.CanLock, scope: approvalOnly,
			usage:  "unlock <id>",
			help:   "Unfreeze a report.",
			denied: "You're not allowed to unlock reports.",
			run:    (*Bot).cmdUnlock,
		},
		"help": {
			usage: "help",
			help:  "Show this message.",
			run:   (*Bot).cmdHelp,
		},
	}
}

func (b *Bot) cmdSubmit(ctx context.Context, inv *invocation) (string, error) {
	title, steps, expected, actual, software, err := parseSubmit(inv.args)
	if err != nil {
		return "", err
	}
	r, err := b.coord.Submit(ctx, report.Submission{
		ReporterID: inv.msg.Author.ID,
		BoardID:    inv.msg.ChannelID,
		Short:      title,
		Steps:      steps,
		Expected:   expected,
		Actual:     actual,
		Software:   software,
	})
	if err != nil {
		return "", err
	}
	b.postToQueue(ctx, r)
	return fmt.Sprintf("Your bug report has been submitted for approval as **#%d**.", r.ID), nil
}

func (b *Bot) cmdEdit(ctx context.Context, inv *invocation) (string, error) {
	id, rest, err := idAndText(inv.args, true)
	if err != nil {
		return "", err
	}
	section, value, _ := strings.Cut(rest, " ")
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: missing content", errSyntax)
	}
	f, err := report.ParseField(section)
	if err != nil {
		return "", err
	}
	r, err := b.coord.Edit(ctx, id, inv.msg.Author.ID, section, value)
	if err != nil {
		return "", err
	}
	b.refreshQueue(ctx, r)
	return fmt.Sprintf("You have edited the %s of report **#%d**.", f, id), nil
}

// stance builds the approve, deny, fapprove and fdeny handlers.
func stance(p report.Polarity, forced bool) func(*Bot, context.Context, *invocation) (string, error) {
	return func(b *Bot, ctx context.Context, inv *invocation) (string, error) {
		id, text, err := idAndText(inv.args, true)
		if err != nil {
			return "", err
		}
		out, err := b.coord.Cast(ctx, id, inv.msg.Author.ID, p, text, forced)
		if err != nil {
			return "", err
		}
		if out.Transition != nil {
			b.ApplyTransition(ctx, *out.Transition, inv.msg.GuildID)
		} else {
			b.refreshQueue(ctx, out.Report)
		}

		verb := "approved"
		if p == report.Deny {
			verb = "denied"
		}
		switch {
		case forced:
			return fmt.Sprintf("You have overlord-%s report **#%d**.", verb, id), nil
		case out.Replaced:
			return fmt.Sprintf("You have changed your stance on report **#%d**.", id), nil
		default:
			return fmt.Sprintf("You have %s report **#%d**.", verb, id), nil
		}
	}
}

func (b *Bot) cmdRevoke(ctx context.Context, inv *invocation) (string, error) {
	id, _, err := idAndText(inv.args, false)
	if err != nil {
		return "", err
	}
	r, err := b.coord.Revoke(ctx, id, inv.msg.Author.ID)
	if err != nil {
		return "", err
	}
	b.refreshQueue(ctx, r)
	return fmt.Sprintf("You have revoked your stance on report **#%d**.", id), nil
}

func (b *Bot) cmdAttach(ctx context.Context, inv *invocation) (string, error) {
	id, rest, err := idAndText(inv.args, true)
	if err != nil {
		return "", err
	}
	rawURL, name, _ := strings.Cut(rest, " ")
	link, err := attachmentLink(rawURL, name)
	if err != nil {
		return "", err
	}
	r, err := b.coord.Attach(ctx, id, inv.msg.Author.ID, link)
	if err != nil {
		return "", err
	}
	b.refreshQueue(ctx, r)
	return fmt.Sprintf("You have added an attachment to report **#%d**.", id), nil
}

func (b *Bot) cmdNote(ctx context.Context, inv *invocation) (string, error) {
	id, text, err := idAndText(inv.args, true)
	if err != nil {
		return "", err
	}
	r, err := b.coord.AddNote(ctx, id, inv.msg.Author.ID, text)
	if err != nil {
		return "", err
	}
	b.refreshQueue(ctx, r)
	return fmt.Sprintf("You have added a note to report **#%d**.", id), nil
}

func (b *Bot) cmdLock(ctx context.Context, inv *invocation) (string, error) {
	id, _, err := idAndText(inv.args, false)
	if err != nil {
		return "", err
	}
	r, err := b.coord.Lock(ctx, id)
	if err != nil {
		return "", err
	}
	b.refreshQueue(ctx, r)
	return fmt.Sprintf("You have locked report **#%d**.", id), nil
}

func (b *Bot) cmdUnlock(ctx context.Context, inv *invocation) (string, error) {
	id, _, err := idAndText(inv.args, false)
	if err != nil {
		return "", err
	}
	r, err := b.coord.Unlock(ctx, id)
	if err != nil {
		return "", err
	}
	b.refreshQueue(ctx, r)
	return fmt.Sprintf("You have unlocked report **#%d**.", id), nil
}

func (b *Bot) cmdHelp(ctx context.Context, inv *invocation) (string, error) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		cmd := commands[name]
		if cmd.perm != "" && !b.allowed(inv.msg, cmd.perm) {
			continue
		}
		lines = append(lines, fmt.Sprintf("`%s%s` %s", b.cfg.Prefix, cmd.usage, cmd.help))
	}
	return "Available commands:\n" + strings.Join(lines, "\n"), nil
}

// postToQueue posts a new report to the approval queue and records the
// message id.
func (b *Bot) postToQueue(ctx context.Context, r *report.Report) {
	msg, err := b.send(ctx, b.cfg.Channels.Approval, &discordgo.MessageSend{
		Content: fmt.Sprintf("From: <#%s>", r.BoardID),
		Embeds:  []*discordgo.MessageEmbed{b.queueEmbed(r)},
	})
	if err != nil {
		effectFailed("queue message", r.ID, err)
		return
	}
	if _, err := b.coord.SetQueueMessage(ctx, r.ID, msg.ID); err != nil {
		effectFailed("store queue message", r.ID, err)
	}
}

// refreshQueue re-renders the queue embed after a mutation. A report whose
// queue message was never posted gets a new one.
func (b *Bot) refreshQueue(ctx context.Context, r *report.Report) {
	if r == nil || r.State != report.Open {
		return
	}
	if r.MessageID == "" {
		b.postToQueue(ctx, r)
		return
	}
	edit := discordgo.NewMessageEdit(b.cfg.Channels.Approval, r.MessageID).
		SetEmbeds([]*discordgo.MessageEmbed{b.queueEmbed(r)})
	err := b.retryOnRateLimit(ctx, func() error {
		_, apiErr := b.sess.ChannelMessageEditComplex(edit)
		return apiErr
	})
	if err != nil {
		effectFailed("refresh queue message", r.ID, err)
	}
}
