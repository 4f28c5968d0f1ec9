package report

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	storage := &StorageError{Op: "save", Err: errors.New("disk"), Transient: true}
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"bad field", fmt.Errorf("%w: %q", ErrBadField, "x"), KindValidation},
		{"invalid input", ErrInvalidInput, KindValidation},
		{"not found", rejected(1, ErrNotFound), KindNotFound},
		{"resolved", rejected(1, ErrAlreadyResolved), KindState},
		{"locked", rejected(1, ErrAlreadyLocked), KindState},
		{"not locked", rejected(1, ErrNotLocked), KindState},
		{"no stance", rejected(1, ErrNoStanceFound), KindState},
		{"self vote", rejected(1, ErrSelfVoteForbidden), KindState},
		{"not owner", rejected(1, ErrNotOwner), KindState},
		{"note limit", rejected(1, ErrNoteLimitReached), KindState},
		{"storage", storage, KindStorage},
		{"fatal", &FatalError{Op: "cast", ReportID: 1, Err: storage}, KindFatal},
		{"effect", &EffectError{Effect: "dm", ReportID: 1, Err: errors.New("closed dms")}, KindDownstream},
		{"other", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRejected_Message(t *testing.T) {
	err := rejected(12, ErrAlreadyLocked)
	if got := err.Error(); got != "#12: report: already locked" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrAlreadyLocked) {
		t.Error("errors.Is lost the sentinel")
	}
}

func TestFatalError_Unwrap(t *testing.T) {
	inner := &StorageError{Op: "save", Err: errors.New("timeout")}
	err := error(&FatalError{Op: "cast", ReportID: 3, Err: inner})
	var se *StorageError
	if !errors.As(err, &se) || se != inner {
		t.Error("FatalError does not unwrap to its StorageError")
	}
	if got := err.Error(); got != "report: cast #3: report: storage: save: timeout" {
		t.Errorf("Error() = %q", got)
	}
}
