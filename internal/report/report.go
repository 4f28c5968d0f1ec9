// Package report implements the bug report lifecycle: the per-reviewer
// stance ledger, the report aggregate and its decision rules, and the
// Coordinator that serializes every mutation of a report.
package report

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a report. Values match the persisted
// stance codes.
type State int

const (
	Open     State = 0
	Approved State = 1
	Denied   State = -1
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Approved:
		return "approved"
	case Denied:
		return "denied"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further mutation is accepted in s.
func (s State) Terminal() bool { return s == Approved || s == Denied }

// ParseState maps a state name to a State.
func ParseState(name string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "open":
		return Open, nil
	case "approved":
		return Approved, nil
	case "denied":
		return Denied, nil
	}
	return 0, fmt.Errorf("%w: unknown state %q", ErrInvalidInput, name)
}

// Issue references the external issue created for an approved report.
type Issue struct {
	ID  int
	URL string
}

// Field is an editable narrative field.
type Field int

const (
	FieldShort Field = iota + 1
	FieldSteps
	FieldExpected
	FieldActual
	FieldSoftware
)

var fieldAliases = map[string]Field{
	"short":    FieldShort,
	"header":   FieldShort,
	"title":    FieldShort,
	"steps":    FieldSteps,
	"str":      FieldSteps,
	"body":     FieldSteps,
	"expected": FieldExpected,
	"actual":   FieldActual,
	"software": FieldSoftware,
	"sv":       FieldSoftware,
}

// ParseField resolves a section name as typed by users.
func ParseField(name string) (Field, error) {
	f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadField, name)
	}
	return f, nil
}

func (f Field) String() string {
	switch f {
	case FieldShort:
		return "short description"
	case FieldSteps:
		return "steps to reproduce"
	case FieldExpected:
		return "expected result"
	case FieldActual:
		return "actual result"
	case FieldSoftware:
		return "software version"
	default:
		return "unknown"
	}
}

// Submission holds the fields of a new report.
type Submission struct {
	ReporterID string
	BoardID    string
	Short      string
	Steps      []string
	Expected   string
	Actual     string
	Software   string
}

func (s Submission) validate() error {
	var missing []string
	if s.ReporterID == "" {
		missing = append(missing, "reporter")
	}
	if s.BoardID == "" {
		missing = append(missing, "board")
	}
	if strings.TrimSpace(s.Short) == "" {
		missing = append(missing, "short description")
	}
	if len(s.Steps) == 0 {
		missing = append(missing, "steps")
	}
	if strings.TrimSpace(s.Expected) == "" {
		missing = append(missing, "expected result")
	}
	if strings.TrimSpace(s.Actual) == "" {
		missing = append(missing, "actual result")
	}
	if strings.TrimSpace(s.Software) == "" {
		missing = append(missing, "software version")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// Report is the aggregate: narrative content, stance ledger, attachments,
// notes, and lifecycle state. A Report value is owned by one operation at a
// time; callers outside the Coordinator only see clones.
type Report struct {
	ID         int64
	ReporterID string
	BoardID    string
	MessageID  string
	CreatedAt  time.Time

	Short    string
	Steps    []string
	Expected string
	Actual   string
	Software string

	Locked bool
	State  State
	Issue  *Issue

	Attachments []Entry
	Notes       []Entry

	ledger Ledger
}

// Decision is the result of applying a stance to a report.
type Decision struct {
	Previous   Polarity
	Replaced   bool
	Transition bool
	To         State
}

// Approvals returns the approving stances, oldest first.
func (r *Report) Approvals() []Stance { return r.ledger.Bucket(Approve) }

// Denials returns the denying stances, oldest first.
func (r *Report) Denials() []Stance { return r.ledger.Bucket(Deny) }

// StanceOf returns the reviewer's current stance.
func (r *Report) StanceOf(reviewer string) (Stance, bool) { return r.ledger.Get(reviewer) }

// Count returns the number of stances with polarity p.
func (r *Report) Count(p Polarity) int { return r.ledger.Count(p) }

// Clone returns a deep copy.
func (r *Report) Clone() *Report {
	c := *r
	c.Steps = append([]string(nil), r.Steps...)
	c.Attachments = append([]Entry(nil), r.Attachments...)
	c.Notes = append([]Entry(nil), r.Notes...)
	c.ledger = r.ledger.clone()
	if r.Issue != nil {
		issue := *r.Issue
		c.Issue = &issue
	}
	return &c
}

// guard rejects any mutation of a report that is resolved or locked.
func (r *Report) guard() error {
	if r.State != Open {
		return rejected(r.ID, ErrAlreadyResolved)
	}
	if r.Locked {
		return rejected(r.ID, ErrAlreadyLocked)
	}
	return nil
}

// Cast applies a stance. Forced stances skip the self-vote check and always
// transition; otherwise a transition happens when the polarity reaches
// quorum, or immediately when the reporter denies their own report.
func (r *Report) Cast(reviewer string, p Polarity, text string, forced bool, quorum int) (Decision, error) {
	if p != Approve && p != Deny {
		return Decision{}, fmt.Errorf("%w: polarity %d", ErrInvalidInput, int(p))
	}
	if reviewer == "" {
		return Decision{}, fmt.Errorf("%w: reviewer is required", ErrInvalidInput)
	}
	if err := r.guard(); err != nil {
		return Decision{}, err
	}
	self := reviewer == r.ReporterID
	if !forced && p == Approve && self {
		return Decision{}, rejected(r.ID, ErrSelfVoteForbidden)
	}
	if quorum < 1 {
		quorum = 1
	}

	var d Decision
	d.Previous, d.Replaced = r.ledger.Submit(Stance{Reviewer: reviewer, Polarity: p, Text: text})

	switch {
	case forced:
		d.Transition = true
	case p == Approve:
		d.Transition = r.ledger.Count(Approve) >= quorum
	case p == Deny:
		d.Transition = r.ledger.Count(Deny) >= quorum || self
	}
	if d.Transition {
		if p == Approve {
			d.To = Approved
		} else {
			d.To = Denied
		}
		r.State = d.To
	} else {
		d.To = r.State
	}
	return d, nil
}

// Revoke removes the reviewer's stance. The lifecycle state never changes.
func (r *Report) Revoke(reviewer string) error {
	if err := r.guard(); err != nil {
		return err
	}
	if !r.ledger.Revoke(reviewer) {
		return rejected(r.ID, ErrNoStanceFound)
	}
	return nil
}

// Edit replaces one narrative field. Only the reporter may edit.
func (r *Report) Edit(editor string, f Field, value string) error {
	if err := r.guard(); err != nil {
		return err
	}
	if editor != r.ReporterID {
		return rejected(r.ID, ErrNotOwner)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidInput, f)
	}
	switch f {
	case FieldShort:
		r.Short = value
	case FieldSteps:
		steps := SplitSteps(value)
		if len(steps) == 0 {
			return fmt.Errorf("%w: empty %s", ErrInvalidInput, f)
		}
		r.Steps = steps
	case FieldExpected:
		r.Expected = value
	case FieldActual:
		r.Actual = value
	case FieldSoftware:
		r.Software = value
	default:
		return fmt.Errorf("%w: field %d", ErrBadField, int(f))
	}
	return nil
}

// Attach appends an attachment.
func (r *Report) Attach(author, content string) error {
	if err := r.guard(); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty attachment", ErrInvalidInput)
	}
	r.Attachments = append(r.Attachments, Entry{Author: author, Content: content})
	return nil
}

// AddNote appends a note unless the report already holds maxNotes.
func (r *Report) AddNote(author, text string, maxNotes int) error {
	if err := r.guard(); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty note", ErrInvalidInput)
	}
	if len(r.Notes) >= maxNotes {
		return rejected(r.ID, ErrNoteLimitReached)
	}
	r.Notes = append(r.Notes, Entry{Author: author, Content: text})
	return nil
}

// Lock blocks stances and content changes until Unlock.
func (r *Report) Lock() error {
	if err := r.guard(); err != nil {
		return err
	}
	r.Locked = true
	return nil
}

// Unlock lifts a lock.
func (r *Report) Unlock() error {
	if r.State != Open {
		return rejected(r.ID, ErrAlreadyResolved)
	}
	if !r.Locked {
		return rejected(r.ID, ErrNotLocked)
	}
	r.Locked = false
	return nil
}
