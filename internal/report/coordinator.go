package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetryDelay is the pause before the single storage retry.
const DefaultRetryDelay = 100 * time.Millisecond

// Policy holds the lifecycle thresholds.
type Policy struct {
	StancesNeeded int // same-polarity stances required to transition
	MaxNotes      int // notes allowed per report
}

// Transition describes a committed move to a terminal state. The Report is
// a snapshot taken inside the critical section that committed it.
type Transition struct {
	Report *Report
	To     State
}

// Outcome is the result of Cast. Transition is nil when the report stayed
// open.
type Outcome struct {
	Report     *Report
	Previous   Polarity
	Replaced   bool
	Transition *Transition
}

// Coordinator is the only mutation path for reports. It serializes
// operations per report id, applies the aggregate's rules to a fresh load
// of the row, and commits the result atomically.
type Coordinator struct {
	store      Store
	policy     Policy
	locks      *keyedLocks
	newBackoff func() backoff.BackOff
}

// CoordinatorOpts holds parameters for creating a Coordinator.
type CoordinatorOpts struct {
	Store      Store
	Policy     Policy
	RetryDelay time.Duration // defaults to DefaultRetryDelay
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(opts CoordinatorOpts) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("report: coordinator: store is required")
	}
	if opts.Policy.StancesNeeded < 1 {
		return nil, fmt.Errorf("report: coordinator: stances needed must be positive, got %d", opts.Policy.StancesNeeded)
	}
	if opts.Policy.MaxNotes < 1 {
		return nil, fmt.Errorf("report: coordinator: max notes must be positive, got %d", opts.Policy.MaxNotes)
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &Coordinator{
		store:  opts.Store,
		policy: opts.Policy,
		locks:  newKeyedLocks(),
		newBackoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), 1)
		},
	}, nil
}

// Policy returns the thresholds in effect.
func (c *Coordinator) Policy() Policy { return c.policy }

// Submit creates a new open report.
func (c *Coordinator) Submit(ctx context.Context, sub Submission) (*Report, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}
	r := &Report{
		ReporterID: sub.ReporterID,
		BoardID:    sub.BoardID,
		Short:      sub.Short,
		Steps:      append([]string(nil), sub.Steps...),
		Expected:   sub.Expected,
		Actual:     sub.Actual,
		Software:   sub.Software,
		State:      Open,
	}
	err := c.retry(ctx, "submit", 0, func() error {
		r.ID = 0
		return c.store.Create(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// Get returns a snapshot of the report.
func (c *Coordinator) Get(ctx context.Context, id int64) (*Report, error) {
	var r *Report
	err := c.retry(ctx, "get", id, func() error {
		var err error
		r, err = c.store.Get(ctx, id)
		return err
	})
	return r, err
}

// List returns snapshots of the reports matching filters.
func (c *Coordinator) List(ctx context.Context, filters ListFilters) ([]*Report, error) {
	var reports []*Report
	err := c.retry(ctx, "list", 0, func() error {
		var err error
		reports, err = c.store.List(ctx, filters)
		return err
	})
	return reports, err
}

// Cast records a reviewer's stance. When the stance moves the report to a
// terminal state, the returned Outcome carries the Transition; only the
// call that committed the move ever sees it.
func (c *Coordinator) Cast(ctx context.Context, id int64, reviewer string, p Polarity, text string, forced bool) (Outcome, error) {
	var d Decision
	snap, err := c.mutate(ctx, "cast", id, func(r *Report) error {
		var err error
		d, err = r.Cast(reviewer, p, text, forced, c.policy.StancesNeeded)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Report: snap, Previous: d.Previous, Replaced: d.Replaced}
	if d.Transition {
		out.Transition = &Transition{Report: snap, To: d.To}
	}
	return out, nil
}

// Revoke removes the reviewer's stance.
func (c *Coordinator) Revoke(ctx context.Context, id int64, reviewer string) (*Report, error) {
	return c.mutate(ctx, "revoke", id, func(r *Report) error {
		return r.Revoke(reviewer)
	})
}

// Edit replaces one narrative field. The field name is validated before
// storage is touched.
func (c *Coordinator) Edit(ctx context.Context, id int64, editor, field, value string) (*Report, error) {
	f, err := ParseField(field)
	if err != nil {
		return nil, err
	}
	return c.mutate(ctx, "edit", id, func(r *Report) error {
		return r.Edit(editor, f, value)
	})
}

// Attach appends an attachment.
func (c *Coordinator) Attach(ctx context.Context, id int64, author, content string) (*Report, error) {
	return c.mutate(ctx, "attach", id, func(r *Report) error {
		return r.Attach(author, content)
	})
}

// AddNote appends a note, up to Policy.MaxNotes.
func (c *Coordinator) AddNote(ctx context.Context, id int64, author, text string) (*Report, error) {
	return c.mutate(ctx, "note", id, func(r *Report) error {
		return r.AddNote(author, text, c.policy.MaxNotes)
	})
}

// Lock blocks further stances and edits.
func (c *Coordinator) Lock(ctx context.Context, id int64) (*Report, error) {
	return c.mutate(ctx, "lock", id, func(r *Report) error {
		return r.Lock()
	})
}

// Unlock lifts a lock.
func (c *Coordinator) Unlock(ctx context.Context, id int64) (*Report, error) {
	return c.mutate(ctx, "unlock", id, func(r *Report) error {
		return r.Unlock()
	})
}

// SetIssue records the external issue of an approved report.
func (c *Coordinator) SetIssue(ctx context.Context, id int64, issue Issue) (*Report, error) {
	return c.mutate(ctx, "set issue", id, func(r *Report) error {
		if r.State != Approved {
			return fmt.Errorf("%w: #%d is %s, issues attach only to approved reports", ErrInvalidInput, r.ID, r.State)
		}
		r.Issue = &issue
		return nil
	})
}

// SetQueueMessage records the approval queue message showing the report.
func (c *Coordinator) SetQueueMessage(ctx context.Context, id int64, messageID string) (*Report, error) {
	return c.mutate(ctx, "set queue message", id, func(r *Report) error {
		r.MessageID = messageID
		return nil
	})
}

// mutate runs fn inside the report's critical section and returns the
// snapshot that was committed.
func (c *Coordinator) mutate(ctx context.Context, op string, id int64, fn func(*Report) error) (*Report, error) {
	unlock, err := c.locks.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var snap *Report
	err = c.retry(ctx, op, id, func() error {
		return c.store.Update(ctx, id, func(r *Report) error {
			if err := fn(r); err != nil {
				return err
			}
			snap = r.Clone()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// retry runs op, retrying a transient StorageError once. Storage failures
// that survive the retry, or are not transient, become a FatalError, unless
// the caller's context ended, in which case its error is returned. All other
// errors pass through untouched.
func (c *Coordinator) retry(ctx context.Context, name string, id int64, op func() error) error {
	err := backoff.Retry(func() error {
		err := op()
		var se *StorageError
		if err != nil && errors.As(err, &se) && se.Transient {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(c.newBackoff(), ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	var se *StorageError
	if errors.As(err, &se) {
		return &FatalError{Op: name, ReportID: id, Err: err}
	}
	return err
}
