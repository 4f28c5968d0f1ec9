// Package notify mirrors report lifecycle events to Slack.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Jack-Gledhill/bugbot/internal/report"
	slackapi "github.com/slack-go/slack"
)

// Notifier receives lifecycle events. Delivery is attempted once; a failed
// post is reported, not retried.
type Notifier interface {
	Transition(ctx context.Context, t report.Transition) error
	Digest(ctx context.Context, open []*report.Report) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Transition(context.Context, report.Transition) error { return nil }
func (Nop) Digest(context.Context, []*report.Report) error      { return nil }

// postFunc matches slackapi.PostWebhookContext.
type postFunc func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// Slack posts events to an incoming webhook.
type Slack struct {
	webhookURL string
	channel    string
	post       postFunc
}

// SlackOpts holds parameters for creating a Slack notifier.
type SlackOpts struct {
	WebhookURL string // incoming webhook (required)
	Channel    string // optional channel override
}

// NewSlack creates a Slack notifier.
func NewSlack(opts SlackOpts) (*Slack, error) {
	if opts.WebhookURL == "" {
		return nil, fmt.Errorf("notify: slack webhook url is required")
	}
	return &Slack{
		webhookURL: opts.WebhookURL,
		channel:    opts.Channel,
		post:       slackapi.PostWebhookContext,
	}, nil
}

// Transition posts a summary of a report that was just approved or denied.
func (s *Slack) Transition(ctx context.Context, t report.Transition) error {
	if t.Report == nil {
		return fmt.Errorf("notify: transition without report")
	}
	msg := &slackapi.WebhookMessage{
		Channel:     s.channel,
		Text:        fmt.Sprintf("Report #%d was %s", t.Report.ID, t.To),
		Attachments: []slackapi.Attachment{transitionAttachment(t)},
	}
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("notify: report #%d: %w", t.Report.ID, err)
	}
	return nil
}

// Digest posts the list of reports still waiting in the queue.
func (s *Slack) Digest(ctx context.Context, open []*report.Report) error {
	if len(open) == 0 {
		return nil
	}
	att := slackapi.Attachment{
		Title:    fmt.Sprintf("%d report(s) awaiting review", len(open)),
		Color:    "#f2c744",
		Fallback: fmt.Sprintf("%d report(s) awaiting review", len(open)),
	}
	for _, r := range open {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: fmt.Sprintf("#%d %s", r.ID, r.Short),
			Value: fmt.Sprintf("%d approve / %d deny, opened %s", r.Count(report.Approve), r.Count(report.Deny), r.CreatedAt.UTC().Format(time.RFC822)),
		})
	}
	msg := &slackapi.WebhookMessage{Channel: s.channel, Text: att.Title, Attachments: []slackapi.Attachment{att}}
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("notify: digest: %w", err)
	}
	return nil
}

func (s *Slack) send(ctx context.Context, msg *slackapi.WebhookMessage) error {
	return s.post(ctx, s.webhookURL, msg)
}

func transitionAttachment(t report.Transition) slackapi.Attachment {
	r := t.Report
	color := "#43b581"
	if t.To == report.Denied {
		color = "#f04747"
	}
	att := slackapi.Attachment{
		Title:    fmt.Sprintf("#%d %s", r.ID, r.Short),
		Text:     r.Actual,
		Color:    color,
		Fallback: fmt.Sprintf("#%d %s", r.ID, r.Short),
		Fields: []slackapi.AttachmentField{
			{Title: "State", Value: t.To.String(), Short: true},
			{Title: "Software", Value: r.Software, Short: true},
			{Title: "Approvals", Value: strconv.Itoa(r.Count(report.Approve)), Short: true},
			{Title: "Denials", Value: strconv.Itoa(r.Count(report.Deny)), Short: true},
		},
	}
	if r.Issue != nil {
		att.TitleLink = r.Issue.URL
	}
	return att
}
