package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/bwmarrin/discordgo"
)

// Discord message and embed limits.
const (
	maxContent    = 2000
	maxFieldValue = 1024
	maxTitle      = 256
)

const (
	colorApproved = 0x43b581
	colorDenied   = 0xf04747
)

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

func field(name, value string) *discordgo.MessageEmbedField {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	return &discordgo.MessageEmbedField{Name: name, Value: truncate(value, maxFieldValue)}
}

func numbered(steps []string) string {
	var b strings.Builder
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// contentFields are the narrative fields shared by every report embed.
func contentFields(r *report.Report) []*discordgo.MessageEmbedField {
	return []*discordgo.MessageEmbedField{
		field("Steps to reproduce", numbered(r.Steps)),
		field("Expected result", r.Expected),
		field("Actual result", r.Actual),
		field("Software version", r.Software),
	}
}

func (b *Bot) stances(r *report.Report) string {
	var lines []string
	for _, s := range r.Approvals() {
		lines = append(lines, fmt.Sprintf("%s **%s**: %s", b.cfg.Emojis.TickYes, b.resolver.Name(s.Reviewer), s.Text))
	}
	for _, s := range r.Denials() {
		lines = append(lines, fmt.Sprintf("%s **%s**: %s", b.cfg.Emojis.TickNo, b.resolver.Name(s.Reviewer), s.Text))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) entries(emoji string, entries []report.Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s **%s**: %s", emoji, b.resolver.Name(e.Author), e.Content))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) author(r *report.Report) *discordgo.MessageEmbedAuthor {
	return &discordgo.MessageEmbedAuthor{
		Name: fmt.Sprintf("%s (%s)", b.resolver.Name(r.ReporterID), r.ReporterID),
	}
}

// queueEmbed renders a report as it appears in the approval queue.
func (b *Bot) queueEmbed(r *report.Report) *discordgo.MessageEmbed {
	title := r.Short
	if r.Locked {
		title = "🔒 " + title
	}
	fields := contentFields(r)
	if s := b.stances(r); s != "" {
		fields = append(fields, field(fmt.Sprintf("Stances (%d/%d)", r.Count(report.Approve), b.coord.Policy().StancesNeeded), s))
	}
	if len(r.Attachments) > 0 {
		fields = append(fields, field("Attachments", b.entries(b.cfg.Emojis.Attachment, r.Attachments)))
	}
	if len(r.Notes) > 0 {
		fields = append(fields, field("Notes", b.entries(b.cfg.Emojis.Note, r.Notes)))
	}
	return &discordgo.MessageEmbed{
		Title:  truncate(title, maxTitle),
		Color:  b.cfg.Channels.Boards[r.BoardID].ColorValue(),
		Author: b.author(r),
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Report ID: #%d", r.ID)},
	}
}

// boardEmbed renders an approved report for its board.
func (b *Bot) boardEmbed(r *report.Report) *discordgo.MessageEmbed {
	color := b.cfg.Channels.Boards[r.BoardID].ColorValue()
	if color == 0 {
		color = colorApproved
	}
	e := &discordgo.MessageEmbed{
		Title:  truncate(r.Short, maxTitle),
		Color:  color,
		Author: b.author(r),
		Fields: append(contentFields(r), field("Reproducibility", b.stances(r))),
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Report ID: #%d", r.ID)},
	}
	if r.Issue != nil {
		e.URL = r.Issue.URL
		e.Fields = append(e.Fields, field("Issue", fmt.Sprintf("[#%d](%s)", r.Issue.ID, r.Issue.URL)))
	}
	return e
}

// archiveEmbed renders a denied report for the denied archive.
func (b *Bot) archiveEmbed(r *report.Report) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:  truncate(r.Short, maxTitle),
		Color:  colorDenied,
		Author: b.author(r),
		Fields: append(contentFields(r),
			field("Board", fmt.Sprintf("<#%s>", r.BoardID)),
			field("Reasons for denial", b.stances(r))),
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Report ID: #%d", r.ID)},
	}
}

func approvedDM(r *report.Report) string {
	text := fmt.Sprintf("Your bug report **#%d** (%s) has been approved. Thanks for helping out!", r.ID, r.Short)
	if r.Issue != nil {
		text += "\n" + r.Issue.URL
	}
	return truncate(text, maxContent)
}

func (b *Bot) deniedDM(r *report.Report) string {
	var reasons []string
	for _, s := range r.Denials() {
		reasons = append(reasons, fmt.Sprintf("- %s", s.Text))
	}
	text := fmt.Sprintf("Your bug report **#%d** (%s) has been denied for:\n%s", r.ID, r.Short, strings.Join(reasons, "\n"))
	return truncate(text, maxContent)
}

// confirmation summarises a transition in the approval queue.
func confirmation(r *report.Report, to report.State) string {
	stances := r.Approvals()
	verb := "approved"
	if to == report.Denied {
		stances = r.Denials()
		verb = "denied"
	}
	lines := make([]string, 0, len(stances))
	for _, s := range stances {
		lines = append(lines, fmt.Sprintf("<@%s>: %s", s.Reviewer, s.Text))
	}
	text := fmt.Sprintf("**#%d** | Report has been %s for:\n%s", r.ID, verb, strings.Join(lines, "\n"))
	return truncate(text, maxContent)
}
