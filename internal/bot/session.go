package bot

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration after a 429.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the rate limit backoff.
	maxBackoff = 30 * time.Second
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	Channel(channelID string) (*discordgo.Channel, error)
	User(userID string) (*discordgo.User, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)
	ChannelMessageEditComplex(edit *discordgo.MessageEdit) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string) error
	UserChannelCreate(recipientID string) (*discordgo.Channel, error)
	GuildMemberRoleAdd(guildID, userID, roleID string) error
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error                           { return r.s.Open() }
func (r *realSession) Close() error                          { return r.s.Close() }
func (r *realSession) AddHandler(handler interface{}) func() { return r.s.AddHandler(handler) }

// Channel consults the gateway state cache before falling back to REST.
func (r *realSession) Channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := r.s.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return r.s.Channel(channelID)
}
func (r *realSession) User(userID string) (*discordgo.User, error) {
	return r.s.User(userID)
}
func (r *realSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendComplex(channelID, data)
}
func (r *realSession) ChannelMessageEditComplex(edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	return r.s.ChannelMessageEditComplex(edit)
}
func (r *realSession) ChannelMessageDelete(channelID, messageID string) error {
	return r.s.ChannelMessageDelete(channelID, messageID)
}
func (r *realSession) UserChannelCreate(recipientID string) (*discordgo.Channel, error) {
	return r.s.UserChannelCreate(recipientID)
}
func (r *realSession) GuildMemberRoleAdd(guildID, userID, roleID string) error {
	return r.s.GuildMemberRoleAdd(guildID, userID, roleID)
}

// newRealSession creates a gateway session with the intents the bot needs.
func newRealSession(token string) (*realSession, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsGuildMembers
	dg.StateEnabled = true
	return &realSession{s: dg}, nil
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (b *Bot) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * b.baseBackoff
		if wait > maxBackoff {
			wait = maxBackoff
		}
		log.Printf("bot: rate limited (attempt %d/%d), retrying in %v", attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
