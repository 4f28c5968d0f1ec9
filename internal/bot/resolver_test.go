package bot

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestResolver_Name(t *testing.T) {
	sess := newMockSession()
	sess.users["1"] = &discordgo.User{ID: "1", Username: "jdoe", GlobalName: "Jane"}
	sess.users["2"] = &discordgo.User{ID: "2", Username: "bob"}
	r := NewResolver(sess)

	tests := []struct{ id, want string }{
		{"1", "Jane"},
		{"2", "bob"},
		{"3", "3"},
	}
	for _, tt := range tests {
		if got := r.Name(tt.id); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}

	calls := sess.userCalls
	r.Name("1")
	r.Name("2")
	if sess.userCalls != calls {
		t.Errorf("cached names refetched: %d calls, want %d", sess.userCalls, calls)
	}
}

func TestResolver_Errors(t *testing.T) {
	sess := newMockSession()
	sess.channels["10"] = &discordgo.Channel{ID: "10"}
	r := NewResolver(sess)

	if _, err := r.User(""); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("User(\"\") err = %v", err)
	}
	if _, err := r.User("404"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("User(404) err = %v", err)
	}
	if _, err := r.Channel("404"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Channel(404) err = %v", err)
	}
	if ch, err := r.Channel("10"); err != nil || ch.ID != "10" {
		t.Errorf("Channel(10) = %v, %v", ch, err)
	}
}
