package tracker

import (
	"context"
	"log"
	"time"

	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/cenkalti/backoff/v4"
)

// Retrying wraps a Tracker and repeats a retryable failure once.
type Retrying struct {
	next  Tracker
	delay time.Duration
}

// NewRetrying wraps next. A zero delay means one second.
func NewRetrying(next Tracker, delay time.Duration) *Retrying {
	if delay <= 0 {
		delay = time.Second
	}
	return &Retrying{next: next, delay: delay}
}

// CreateIssue calls the wrapped tracker, retrying at most once.
func (r *Retrying) CreateIssue(ctx context.Context, repo, title, body string) (report.Issue, error) {
	var issue report.Issue
	attempt := 0
	op := func() error {
		attempt++
		var err error
		issue, err = r.next.CreateIssue(ctx, repo, title, body)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		if attempt == 1 {
			log.Printf("tracker: create issue in %s failed, retrying: %v", repo, err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.delay), 1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return report.Issue{}, err
	}
	return issue, nil
}
