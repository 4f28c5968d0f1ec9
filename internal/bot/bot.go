// Package bot is the Discord surface of bugbot: it parses commands from
// board and approval-queue channels, drives the report Coordinator, and
// performs the downstream effects of approvals and denials.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Jack-Gledhill/bugbot/internal/config"
	"github.com/Jack-Gledhill/bugbot/internal/notify"
	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/Jack-Gledhill/bugbot/internal/tracker"
	"github.com/bwmarrin/discordgo"
)

const (
	// responseTTL is how long command responses stay visible.
	responseTTL = 15 * time.Second
	// confirmTTL is how long approval and denial confirmations stay visible.
	confirmTTL = 30 * time.Second
)

// Bot handles Discord messages for the configured guild channels.
type Bot struct {
	cfg      *config.Config
	coord    *report.Coordinator
	sess     session
	resolver *Resolver
	trackers map[string]tracker.Tracker
	notifier notify.Notifier
	out      io.Writer

	mu        sync.Mutex
	botUserID string

	baseBackoff time.Duration
	after       func(time.Duration, func())
	now         func() time.Time
}

// Opts holds parameters for creating a Bot.
type Opts struct {
	Config      *config.Config
	Coordinator *report.Coordinator
	Trackers    map[string]tracker.Tracker // by board channel id; built from Config when nil
	Notifier    notify.Notifier            // defaults to notify.Nop
	Out         io.Writer                  // defaults to os.Stdout
	// For testing: inject a mock session instead of a gateway connection.
	Session session
}

// New creates a Bot. The gateway is not contacted until Run.
func New(opts Opts) (*Bot, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bot: config is required")
	}
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("bot: coordinator is required")
	}
	sess := opts.Session
	if sess == nil {
		if opts.Config.Token == "" {
			return nil, fmt.Errorf("bot: token is required")
		}
		rs, err := newRealSession(opts.Config.Token)
		if err != nil {
			return nil, fmt.Errorf("bot: create session: %w", err)
		}
		sess = rs
	}
	trackers := opts.Trackers
	if trackers == nil {
		var err error
		trackers, err = NewTrackers(opts.Config)
		if err != nil {
			return nil, err
		}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Bot{
		cfg:         opts.Config,
		coord:       opts.Coordinator,
		sess:        sess,
		resolver:    NewResolver(sess),
		trackers:    trackers,
		notifier:    notifier,
		out:         out,
		baseBackoff: baseBackoff,
		after:       func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		now:         time.Now,
	}, nil
}

// NewTrackers builds one retrying GitHub tracker per configured board.
func NewTrackers(cfg *config.Config) (map[string]tracker.Tracker, error) {
	trackers := make(map[string]tracker.Tracker, len(cfg.Channels.Boards))
	for id, board := range cfg.Channels.Boards {
		gh, err := tracker.NewGitHub(tracker.GitHubOpts{Token: board.Token})
		if err != nil {
			return nil, fmt.Errorf("bot: board %s: %w", id, err)
		}
		trackers[id] = tracker.NewRetrying(gh, time.Second)
	}
	return trackers, nil
}

// Run connects to the gateway and handles messages until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	removeReady := b.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.SetBotUserID(r.User.ID)
		log.Printf("bot: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})
	removeMessage := b.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.handle(ctx, m.Message)
	})
	defer removeReady()
	defer removeMessage()

	if err := b.sess.Open(); err != nil {
		return fmt.Errorf("bot: open gateway: %w", err)
	}
	fmt.Fprintf(b.out, "bot: gateway open, prefix %q\n", b.cfg.Prefix)
	b.checkChannels()

	var wg sync.WaitGroup
	if b.cfg.Digest.Schedule != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.runDigestScheduler(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	if err := b.sess.Close(); err != nil {
		return fmt.Errorf("bot: close gateway: %w", err)
	}
	fmt.Fprintf(b.out, "bot: gateway closed\n")
	return nil
}

// BotUserID returns the bot's own user id once the gateway is ready.
func (b *Bot) BotUserID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.botUserID
}

// SetBotUserID sets the bot user ID (used for self-message filtering).
func (b *Bot) SetBotUserID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.botUserID = id
}

// checkChannels logs managed channels the bot cannot see.
func (b *Bot) checkChannels() {
	ids := []string{b.cfg.Channels.Approval, b.cfg.Channels.Denied}
	for id := range b.cfg.Channels.Boards {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := b.resolver.Channel(id); err != nil {
			log.Printf("bot: %v", err)
		}
	}
}

// handle routes one inbound message. Paths:
//  1. Bot or self message: ignore
//  2. No prefix: delete if posted in a managed channel
//  3. Unknown command: treated like 2
//  4. Known command: scope check, permission check, run, respond
func (b *Bot) handle(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot || m.Author.ID == b.BotUserID() {
		return
	}

	rest, ok := b.trimPrefix(strings.TrimSpace(m.Content))
	if !ok {
		b.deleteStray(ctx, m)
		return
	}
	name, args := splitCommand(rest)
	cmd, ok := commands[name]
	if !ok {
		b.deleteStray(ctx, m)
		return
	}
	fmt.Fprintf(b.out, "bot: %s ran %q in %s\n", m.Author.ID, name, m.ChannelID)
	defer b.deleteMessage(ctx, m.ChannelID, m.ID)

	if msg := b.scopeError(cmd.scope, m.ChannelID); msg != "" {
		b.fail(ctx, m.ChannelID, m.Author.ID, msg)
		return
	}
	if cmd.perm != "" && !b.allowed(m, cmd.perm) {
		b.fail(ctx, m.ChannelID, m.Author.ID, cmd.denied)
		return
	}

	text, err := cmd.run(b, ctx, &invocation{msg: m, args: args})
	if err != nil {
		b.fail(ctx, m.ChannelID, m.Author.ID, b.errorText(name, cmd, err))
		return
	}
	if text != "" {
		b.succeed(ctx, m.ChannelID, m.Author.ID, text)
	}
}

// prefixes returns every accepted command prefix. Mentions of the bot count
// once its user id is known.
func (b *Bot) prefixes() []string {
	prefixes := b.cfg.Prefixes()
	if id := b.BotUserID(); b.cfg.PrefixMention && id != "" {
		prefixes = append(prefixes, "<@"+id+">", "<@!"+id+">")
	}
	return prefixes
}

// trimPrefix strips the longest matching prefix from content.
func (b *Bot) trimPrefix(content string) (string, bool) {
	best := ""
	for _, p := range b.prefixes() {
		if p != "" && len(p) > len(best) && strings.HasPrefix(content, p) {
			best = p
		}
	}
	if best == "" {
		return "", false
	}
	return content[len(best):], true
}

func (b *Bot) deleteStray(ctx context.Context, m *discordgo.Message) {
	if b.cfg.Managed(m.ChannelID) {
		b.deleteMessage(ctx, m.ChannelID, m.ID)
	}
}

func (b *Bot) scopeError(s scope, channelID string) string {
	switch s {
	case boardOnly:
		if !b.cfg.IsBoard(channelID) {
			return "You must be in a bug board to use this command."
		}
	case approvalOnly:
		if channelID != b.cfg.Channels.Approval {
			return "This command can only be used in the approval queue."
		}
	}
	return ""
}

func (b *Bot) allowed(m *discordgo.Message, p config.Permission) bool {
	var roles []string
	if m.Member != nil {
		roles = m.Member.Roles
	}
	return b.cfg.Allowed(roles, p)
}

// errorText turns a command failure into the message shown to the user.
// Failures that are not the user's doing are logged.
func (b *Bot) errorText(name string, cmd command, err error) string {
	switch {
	case errors.Is(err, errSyntax):
		text := fmt.Sprintf("Your syntax seems incorrect! Usage: `%s%s`", b.cfg.Prefix, cmd.usage)
		if name == "submit" && b.cfg.Tool != "" {
			text += fmt.Sprintf("\nIf you're having trouble, try using the tool over at: %s", b.cfg.Tool)
		}
		return text
	case errors.Is(err, report.ErrNotFound):
		return "No report was found with your query."
	case errors.Is(err, report.ErrAlreadyResolved):
		return "This report has already been moved."
	case errors.Is(err, report.ErrAlreadyLocked):
		if name == "lock" {
			return "This report is already locked."
		}
		return "This report has been locked by admins."
	case errors.Is(err, report.ErrNotLocked):
		return "This report isn't locked."
	case errors.Is(err, report.ErrNotOwner):
		return "You can only edit your own reports."
	case errors.Is(err, report.ErrSelfVoteForbidden):
		return "You can't approve your own report."
	case errors.Is(err, report.ErrNoStanceFound):
		return "You haven't placed a stance on this report yet."
	case errors.Is(err, report.ErrNoteLimitReached):
		return fmt.Sprintf("This report already has the maximum of %d notes.", b.coord.Policy().MaxNotes)
	case errors.Is(err, report.ErrBadField):
		return "Unknown section. Use one of: short, steps, expected, actual, software."
	case errors.Is(err, report.ErrInvalidInput):
		return fmt.Sprintf("That isn't valid. Usage: `%s%s`", b.cfg.Prefix, cmd.usage)
	}
	log.Printf("bot: %s: %v", name, err)
	return "Something went wrong, please try again later."
}

// succeed and fail post "<emoji> | <@user> text" replies that delete
// themselves after responseTTL.
func (b *Bot) succeed(ctx context.Context, channelID, userID, text string) {
	b.respond(ctx, channelID, b.cfg.Emojis.TickYes, userID, text)
}

func (b *Bot) fail(ctx context.Context, channelID, userID, text string) {
	b.respond(ctx, channelID, b.cfg.Emojis.TickNo, userID, text)
}

func (b *Bot) respond(ctx context.Context, channelID, emoji, userID, text string) {
	msg, err := b.send(ctx, channelID, &discordgo.MessageSend{
		Content:         fmt.Sprintf("%s | <@%s> %s", emoji, userID, text),
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: []string{userID}},
	})
	if err != nil {
		log.Printf("bot: respond in %s: %v", channelID, err)
		return
	}
	b.deleteAfter(msg, responseTTL)
}

func (b *Bot) send(ctx context.Context, channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	var msg *discordgo.Message
	err := b.retryOnRateLimit(ctx, func() error {
		var apiErr error
		msg, apiErr = b.sess.ChannelMessageSendComplex(channelID, data)
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("bot: send to %s: %w", channelID, err)
	}
	return msg, nil
}

func (b *Bot) deleteMessage(ctx context.Context, channelID, messageID string) {
	if channelID == "" || messageID == "" {
		return
	}
	err := b.retryOnRateLimit(ctx, func() error {
		return b.sess.ChannelMessageDelete(channelID, messageID)
	})
	if err != nil {
		log.Printf("bot: delete message %s in %s: %v", messageID, channelID, err)
	}
}

func (b *Bot) deleteAfter(msg *discordgo.Message, d time.Duration) {
	if msg == nil {
		return
	}
	b.after(d, func() {
		b.deleteMessage(context.Background(), msg.ChannelID, msg.ID)
	})
}

// effectFailed logs a failed downstream effect and returns it.
func effectFailed(effect string, id int64, err error) error {
	e := &report.EffectError{Effect: effect, ReportID: id, Err: err}
	log.Printf("bot: %v", e)
	return e
}
