package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Jack-Gledhill/bugbot/internal/report"
	slackapi "github.com/slack-go/slack"
)

func approvedReport() *report.Report {
	r := &report.Report{ID: 9, ReporterID: "1", Short: "crash on login", Actual: "crash", Software: "1.0"}
	r.Cast("2", report.Approve, "yes", true, 1)
	r.Issue = &report.Issue{ID: 3, URL: "https://github.com/acme/app/issues/3"}
	return r
}

func TestNewSlack_RequiresURL(t *testing.T) {
	if _, err := NewSlack(SlackOpts{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSlack_TransitionWebhook(t *testing.T) {
	var got slackapi.WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewSlack(SlackOpts{WebhookURL: srv.URL, Channel: "#bugs"})
	if err != nil {
		t.Fatalf("NewSlack: %v", err)
	}
	if err := s.Transition(context.Background(), report.Transition{Report: approvedReport(), To: report.Approved}); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Channel != "#bugs" || got.Text != "Report #9 was approved" {
		t.Errorf("message = %+v", got)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(got.Attachments))
	}
	att := got.Attachments[0]
	if att.TitleLink != "https://github.com/acme/app/issues/3" || att.Color != "#43b581" {
		t.Errorf("attachment = %+v", att)
	}
}

func TestSlack_TransitionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, _ := NewSlack(SlackOpts{WebhookURL: srv.URL})
	err := s.Transition(context.Background(), report.Transition{Report: approvedReport(), To: report.Approved})
	if err == nil || !strings.Contains(err.Error(), "notify: report #9") {
		t.Errorf("err = %v", err)
	}
}

func TestSlack_RateLimitedPostedOnce(t *testing.T) {
	tests := []struct {
		name string
		send func(s *Slack) error
	}{
		{"transition", func(s *Slack) error {
			return s.Transition(context.Background(), report.Transition{Report: approvedReport(), To: report.Denied})
		}},
		{"digest", func(s *Slack) error {
			return s.Digest(context.Background(), []*report.Report{{ID: 1, Short: "a"}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			s := &Slack{webhookURL: "x", post: func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error {
				atomic.AddInt32(&calls, 1)
				return &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
			}}
			err := tt.send(s)
			var rle *slackapi.RateLimitedError
			if !errors.As(err, &rle) {
				t.Errorf("err = %v, want RateLimitedError", err)
			}
			if calls != 1 {
				t.Errorf("posts = %d, want 1", calls)
			}
		})
	}
}

func TestSlack_Digest(t *testing.T) {
	var msg *slackapi.WebhookMessage
	s := &Slack{webhookURL: "x", post: func(ctx context.Context, url string, m *slackapi.WebhookMessage) error {
		msg = m
		return nil
	}}
	if err := s.Digest(context.Background(), nil); err != nil || msg != nil {
		t.Fatalf("empty digest posted: %v", err)
	}
	open := []*report.Report{{ID: 1, Short: "a"}, {ID: 2, Short: "b"}}
	if err := s.Digest(context.Background(), open); err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if msg == nil || len(msg.Attachments) != 1 || len(msg.Attachments[0].Fields) != 2 {
		t.Fatalf("msg = %+v", msg)
	}
	if msg.Attachments[0].Fields[1].Title != "#2 b" {
		t.Errorf("field = %+v", msg.Attachments[0].Fields[1])
	}
}
