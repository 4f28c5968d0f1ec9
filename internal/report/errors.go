package report

import (
	"errors"
	"fmt"
)

// Rejections. Each is returned wrapped with the report id, so callers match
// with errors.Is.
var (
	ErrNotFound          = errors.New("report: not found")
	ErrNotOwner          = errors.New("report: not the reporter")
	ErrAlreadyResolved   = errors.New("report: already resolved")
	ErrAlreadyLocked     = errors.New("report: already locked")
	ErrNotLocked         = errors.New("report: not locked")
	ErrNoStanceFound     = errors.New("report: no stance found")
	ErrSelfVoteForbidden = errors.New("report: cannot approve own report")
	ErrNoteLimitReached  = errors.New("report: note limit reached")
	ErrBadField          = errors.New("report: unknown field")
	ErrInvalidInput      = errors.New("report: invalid input")
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindState
	KindNotFound
	KindStorage
	KindFatal
	KindDownstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	case KindFatal:
		return "fatal"
	case KindDownstream:
		return "downstream"
	default:
		return "unknown"
	}
}

// FatalError is returned when a storage operation failed again after its one
// retry. Nothing was committed.
type FatalError struct {
	Op       string
	ReportID int64
	Err      error
}

func (e *FatalError) Error() string {
	if e.ReportID == 0 {
		return fmt.Sprintf("report: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("report: %s #%d: %v", e.Op, e.ReportID, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// StorageError marks a failure of the backing store. Transient failures are
// retried once by the Coordinator.
type StorageError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StorageError) Error() string { return fmt.Sprintf("report: storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// EffectError reports a failed downstream effect (issue creation, message
// delivery, role grant). It never undoes a committed transition.
type EffectError struct {
	Effect   string
	ReportID int64
	Err      error
}

func (e *EffectError) Error() string {
	return fmt.Sprintf("report: effect %s for #%d: %v", e.Effect, e.ReportID, e.Err)
}

func (e *EffectError) Unwrap() error { return e.Err }

// KindOf classifies err. Fatal and downstream wrappers win over whatever
// they wrap.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return KindFatal
	}
	var effect *EffectError
	if errors.As(err, &effect) {
		return KindDownstream
	}
	switch {
	case errors.Is(err, ErrBadField), errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyResolved),
		errors.Is(err, ErrAlreadyLocked),
		errors.Is(err, ErrNotLocked),
		errors.Is(err, ErrNoStanceFound),
		errors.Is(err, ErrSelfVoteForbidden),
		errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrNoteLimitReached):
		return KindState
	}
	var storage *StorageError
	if errors.As(err, &storage) {
		return KindStorage
	}
	return KindUnknown
}

// rejected wraps a sentinel with the report id.
func rejected(id int64, sentinel error) error {
	return fmt.Errorf("#%d: %w", id, sentinel)
}
