package bot

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// --- Mock Discord session ---

type mockSession struct {
	mu          sync.Mutex
	opened      bool
	closeCalled bool
	openErr     error
	nextID      int

	sent      []sentMessage
	sendErr   map[string]error // by channel id
	attempts  map[string]int   // send calls by channel id, failed ones included
	edits     []*discordgo.MessageEdit
	editErr   error
	deleted   []deletedMessage
	deleteErr error
	roles     []roleGrant
	roleErr   error
	dmErr     error
	dmCalls   int

	handlers    []interface{}
	removeCount int
	channels    map[string]*discordgo.Channel
	users       map[string]*discordgo.User
	userCalls   int
}

type sentMessage struct {
	channelID string
	id        string
	data      *discordgo.MessageSend
}

type deletedMessage struct {
	channelID string
	messageID string
}

type roleGrant struct {
	guildID, userID, roleID string
}

func newMockSession() *mockSession {
	return &mockSession{
		sendErr:  make(map[string]error),
		attempts: make(map[string]int),
		channels: make(map[string]*discordgo.Channel),
		users:    make(map[string]*discordgo.User),
	}
}

func (m *mockSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
	return nil
}

func (m *mockSession) AddHandler(handler interface{}) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.removeCount++
	}
}

func (m *mockSession) Channel(channelID string) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[channelID]; ok {
		return ch, nil
	}
	return nil, fmt.Errorf("channel not found: %s", channelID)
}

func (m *mockSession) User(userID string) (*discordgo.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userCalls++
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user not found: %s", userID)
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[channelID]++
	if err := m.sendErr[channelID]; err != nil {
		return nil, err
	}
	m.nextID++
	id := fmt.Sprintf("msg-%d", m.nextID)
	m.sent = append(m.sent, sentMessage{channelID: channelID, id: id, data: data})
	return &discordgo.Message{ID: id, ChannelID: channelID}, nil
}

func (m *mockSession) ChannelMessageEditComplex(edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return nil, m.editErr
	}
	m.edits = append(m.edits, edit)
	return &discordgo.Message{ID: edit.ID, ChannelID: edit.Channel}, nil
}

func (m *mockSession) ChannelMessageDelete(channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, deletedMessage{channelID: channelID, messageID: messageID})
	return nil
}

func (m *mockSession) UserChannelCreate(recipientID string) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dmCalls++
	if m.dmErr != nil {
		return nil, m.dmErr
	}
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (m *mockSession) GuildMemberRoleAdd(guildID, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roleErr != nil {
		return m.roleErr
	}
	m.roles = append(m.roles, roleGrant{guildID: guildID, userID: userID, roleID: roleID})
	return nil
}

// sentTo returns the messages sent to channelID, in order.
func (m *mockSession) sentTo(channelID string) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMessage
	for _, s := range m.sent {
		if s.channelID == channelID {
			out = append(out, s)
		}
	}
	return out
}

func (m *mockSession) wasDeleted(channelID, messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deleted {
		if d.channelID == channelID && d.messageID == messageID {
			return true
		}
	}
	return false
}

func (m *mockSession) editCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.edits)
}
