package bot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

var (
	ErrUnknownUser    = errors.New("bot: unknown user")
	ErrUnknownChannel = errors.New("bot: unknown channel")
)

// Resolver maps Discord ids to users and channels. Display names are
// cached for the life of the process.
type Resolver struct {
	sess  session
	mu    sync.Mutex
	names map[string]string
}

// NewResolver creates a Resolver over sess.
func NewResolver(sess session) *Resolver {
	return &Resolver{sess: sess, names: make(map[string]string)}
}

// User looks up a user by id.
func (r *Resolver) User(id string) (*discordgo.User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrUnknownUser)
	}
	u, err := r.sess.User(id)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrUnknownUser, id, err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w %s", ErrUnknownUser, id)
	}
	return u, nil
}

// Channel looks up a channel by id.
func (r *Resolver) Channel(id string) (*discordgo.Channel, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrUnknownChannel)
	}
	ch, err := r.sess.Channel(id)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrUnknownChannel, id, err)
	}
	if ch == nil {
		return nil, fmt.Errorf("%w %s", ErrUnknownChannel, id)
	}
	return ch, nil
}

// Name returns the display name for a user id, or the id itself when the
// user cannot be resolved.
func (r *Resolver) Name(id string) string {
	r.mu.Lock()
	name, ok := r.names[id]
	r.mu.Unlock()
	if ok {
		return name
	}

	u, err := r.User(id)
	if err != nil {
		return id
	}
	name = u.Username
	if u.GlobalName != "" {
		name = u.GlobalName
	}
	r.mu.Lock()
	r.names[id] = name
	r.mu.Unlock()
	return name
}
