package bot

import (
	"context"
	"fmt"
	"log"

	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/Jack-Gledhill/bugbot/internal/tracker"
	"github.com/bwmarrin/discordgo"
)

// ApplyTransition runs the downstream effects of a committed approval or
// denial. Each effect is attempted regardless of the others; failures are
// logged and returned, and never touch the committed state.
func (b *Bot) ApplyTransition(ctx context.Context, t report.Transition, guildID string) []error {
	r := t.Report
	fmt.Fprintf(b.out, "bot: report #%d %s\n", r.ID, t.To)

	var errs []error
	record := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if r.MessageID != "" {
		err := b.retryOnRateLimit(ctx, func() error {
			return b.sess.ChannelMessageDelete(b.cfg.Channels.Approval, r.MessageID)
		})
		if err != nil {
			record(effectFailed("delete queue message", r.ID, err))
		}
	}

	switch t.To {
	case report.Approved:
		record(b.fileIssue(ctx, r))
		if _, err := b.send(ctx, r.BoardID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{b.boardEmbed(r)},
		}); err != nil {
			record(effectFailed("board post", r.ID, err))
		}
		if b.cfg.RewardRole != "" && guildID != "" {
			err := b.retryOnRateLimit(ctx, func() error {
				return b.sess.GuildMemberRoleAdd(guildID, r.ReporterID, b.cfg.RewardRole)
			})
			if err != nil {
				record(effectFailed("reward role", r.ID, err))
			}
		}
		record(b.dm(r, approvedDM(r)))

	case report.Denied:
		if b.cfg.Channels.Denied != "" {
			if _, err := b.send(ctx, b.cfg.Channels.Denied, &discordgo.MessageSend{
				Embeds: []*discordgo.MessageEmbed{b.archiveEmbed(r)},
			}); err != nil {
				record(effectFailed("denied archive", r.ID, err))
			}
		}
		record(b.dm(r, b.deniedDM(r)))
	}

	msg, err := b.send(ctx, b.cfg.Channels.Approval, &discordgo.MessageSend{
		Content:         confirmation(r, t.To),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		record(effectFailed("confirmation", r.ID, err))
	} else {
		b.deleteAfter(msg, confirmTTL)
	}

	if err := b.notifier.Transition(ctx, report.Transition{Report: r, To: t.To}); err != nil {
		record(effectFailed("notify", r.ID, err))
	}
	return errs
}

// fileIssue creates the external issue and persists its reference. On
// success r.Issue is set so later effects can link to it.
func (b *Bot) fileIssue(ctx context.Context, r *report.Report) error {
	tr, ok := b.trackers[r.BoardID]
	board, known := b.cfg.Channels.Boards[r.BoardID]
	if !ok || !known {
		return effectFailed("issue", r.ID, fmt.Errorf("no tracker for board %s", r.BoardID))
	}
	issue, err := tr.CreateIssue(ctx, board.Repo, tracker.Title(r), tracker.Body(r, b.resolver.Name))
	if err != nil {
		return effectFailed("issue", r.ID, err)
	}
	r.Issue = &issue
	log.Printf("bot: report #%d filed as %s#%d", r.ID, board.Repo, issue.ID)
	if _, err := b.coord.SetIssue(ctx, r.ID, issue); err != nil {
		return effectFailed("store issue", r.ID, err)
	}
	return nil
}

// dm messages the reporter. It is attempted once; a rate-limited DM is
// reported as a failed effect.
func (b *Bot) dm(r *report.Report, text string) error {
	ch, err := b.sess.UserChannelCreate(r.ReporterID)
	if err != nil {
		return effectFailed("dm", r.ID, err)
	}
	if _, err := b.sess.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{Content: text}); err != nil {
		return effectFailed("dm", r.ID, err)
	}
	return nil
}
