package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Jack-Gledhill/bugbot/internal/config"
	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/bwmarrin/discordgo"
)

// maxDigestLines caps the reports listed in one digest embed.
const maxDigestLines = 20

// runDigestScheduler posts the open-queue digest on the configured cron
// schedule until ctx is done.
func (b *Bot) runDigestScheduler(ctx context.Context) {
	for {
		d, err := b.nextDigest()
		if err != nil {
			log.Printf("bot: digest schedule: %v", err)
			return
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := b.PostDigest(ctx); err != nil {
				log.Printf("bot: digest: %v", err)
			}
		}
	}
}

func (b *Bot) nextDigest() (time.Duration, error) {
	sched, err := config.ParseSchedule(b.cfg.Digest.Schedule)
	if err != nil {
		return 0, err
	}
	now := b.now()
	return sched.Next(now).Sub(now), nil
}

// PostDigest summarises open reports older than the configured minimum age
// in the approval channel. It returns the number of reports listed; nothing
// is posted when there are none.
func (b *Bot) PostDigest(ctx context.Context) (int, error) {
	open := report.Open
	stale, err := b.coord.List(ctx, report.ListFilters{
		State:         &open,
		CreatedBefore: b.now().Add(-time.Duration(b.cfg.Digest.MinAgeHours) * time.Hour),
	})
	if err != nil {
		return 0, fmt.Errorf("bot: digest: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	needed := b.coord.Policy().StancesNeeded
	var lines []string
	for i, r := range stale {
		if i == maxDigestLines {
			lines = append(lines, fmt.Sprintf("…and %d more", len(stale)-maxDigestLines))
			break
		}
		lock := ""
		if r.Locked {
			lock = "🔒 "
		}
		lines = append(lines, fmt.Sprintf("%s**#%d** %s (%d/%d, %d denied) <#%s>",
			lock, r.ID, truncate(r.Short, 80), r.Count(report.Approve), needed, r.Count(report.Deny), r.BoardID))
	}

	if _, err := b.send(ctx, b.cfg.Channels.Approval, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       fmt.Sprintf("%d report(s) awaiting review", len(stale)),
			Description: truncate(strings.Join(lines, "\n"), 4096),
		}},
	}); err != nil {
		return 0, fmt.Errorf("bot: digest: %w", err)
	}
	if err := b.notifier.Digest(ctx, stale); err != nil {
		log.Printf("bot: digest notify: %v", err)
	}
	return len(stale), nil
}
