package report

import (
	"reflect"
	"strings"
	"testing"

	"github.com/Jack-Gledhill/bugbot/internal/models"
)

func TestEntries_RoundTripDelimiters(t *testing.T) {
	entries := []Entry{
		{Author: "123", Content: "plain"},
		{Author: "456", Content: `quotes " and ', brackets ], [ and commas, (tuples)`},
		{Author: "789", Content: "step one ~ step two\nnew line\ttab"},
		{Author: "101", Content: ""},
		{Author: "202", Content: "unicode 🐛 ✅"},
	}
	s, err := EncodeEntries(entries)
	if err != nil {
		t.Fatalf("EncodeEntries: %v", err)
	}
	got, err := DecodeEntries(s)
	if err != nil {
		t.Fatalf("DecodeEntries(%q): %v", s, err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("round trip = %+v, want %+v", got, entries)
	}
}

func TestDecodeEntries_Empty(t *testing.T) {
	for _, in := range []string{"", "  ", "[]"} {
		got, err := DecodeEntries(in)
		if err != nil || got != nil {
			t.Errorf("DecodeEntries(%q) = %v, %v; want nil, nil", in, got, err)
		}
	}
}

func TestDecodeEntries_Malformed(t *testing.T) {
	if _, err := DecodeEntries("[(1, 'python tuple')]"); err == nil {
		t.Error("expected error for non-JSON input")
	}
}

func TestSteps_RoundTrip(t *testing.T) {
	steps := []string{"open \"settings\"", "click ~ save", "observe"}
	s, err := EncodeSteps(steps)
	if err != nil {
		t.Fatalf("EncodeSteps: %v", err)
	}
	got, err := DecodeSteps(s)
	if err != nil {
		t.Fatalf("DecodeSteps: %v", err)
	}
	if !reflect.DeepEqual(got, steps) {
		t.Errorf("round trip = %q, want %q", got, steps)
	}
	if s, _ := EncodeSteps(nil); s != "[]" {
		t.Errorf("EncodeSteps(nil) = %q, want []", s)
	}
}

func TestSplitSteps(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"one ~ two ~ three", []string{"one", "two", "three"}},
		{"single", []string{"single"}},
		{"a ~  ~ b", []string{"a", "b"}},
		{"a~b", []string{"a~b"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		if got := SplitSteps(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitSteps(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRow_RoundTrip(t *testing.T) {
	r := openReport()
	r.MessageID = "999"
	r.Cast("alice", Approve, "yes, \"really\"", false, 5)
	r.Cast("bob", Deny, "no ~ never", false, 5)
	r.Cast("carol", Approve, "also yes", false, 5)
	r.Attach("dave", "[log](https://example.com/log.txt)")
	r.AddNote("erin", "seen on android only", 5)
	r.Locked = true

	row, err := r.ToRow()
	if err != nil {
		t.Fatalf("ToRow: %v", err)
	}
	if !strings.Contains(row.Approves, "alice") || strings.Contains(row.Approves, "bob") {
		t.Errorf("Approves column = %q", row.Approves)
	}

	got, err := FromRow(row)
	if err != nil {
		t.Fatalf("FromRow: %v", err)
	}
	if !reflect.DeepEqual(got.Approvals(), r.Approvals()) {
		t.Errorf("approvals = %+v, want %+v", got.Approvals(), r.Approvals())
	}
	if !reflect.DeepEqual(got.Denials(), r.Denials()) {
		t.Errorf("denials = %+v, want %+v", got.Denials(), r.Denials())
	}
	if !reflect.DeepEqual(got.Steps, r.Steps) || !reflect.DeepEqual(got.Notes, r.Notes) ||
		!reflect.DeepEqual(got.Attachments, r.Attachments) {
		t.Error("list fields did not round trip")
	}
	if !got.Locked || got.MessageID != "999" || got.State != Open || got.Issue != nil {
		t.Errorf("scalar fields did not round trip: %+v", got)
	}
}

func TestFromRow_Issue(t *testing.T) {
	id, url := 42, "https://github.com/o/r/issues/42"
	r, err := FromRow(&models.Report{ID: 1, Stance: 1, IssueID: &id, IssueURL: &url})
	if err != nil {
		t.Fatalf("FromRow: %v", err)
	}
	if r.Issue == nil || r.Issue.ID != 42 || r.Issue.URL != url {
		t.Errorf("Issue = %+v", r.Issue)
	}
	if r.State != Approved {
		t.Errorf("State = %v, want approved", r.State)
	}
}

func TestFromRow_Rejects(t *testing.T) {
	tests := []struct {
		name string
		row  *models.Report
	}{
		{"nil row", nil},
		{"unknown stance code", &models.Report{ID: 1, Stance: 2}},
		{"malformed approves", &models.Report{ID: 1, Approves: "[(1, 'x')]"}},
		{"malformed steps", &models.Report{ID: 1, StepsToReproduce: "['a']"}},
		{"duplicate reviewer", &models.Report{ID: 1, Approves: `[["a","x"]]`, Denies: `[["a","y"]]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromRow(tt.row); err == nil {
				t.Error("expected error")
			}
		})
	}
}
