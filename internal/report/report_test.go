package report

import (
	"errors"
	"testing"
)

func openReport() *Report {
	return &Report{
		ID:         7,
		ReporterID: "reporter",
		BoardID:    "board",
		Short:      "crash on login",
		Steps:      []string{"open app", "log in"},
		Expected:   "logged in",
		Actual:     "crash",
		Software:   "1.2.3",
		State:      Open,
	}
}

func TestCast_QuorumMonotonicity(t *testing.T) {
	r := openReport()
	d, err := r.Cast("alice", Approve, "works for me", false, 2)
	if err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if d.Transition || r.State != Open {
		t.Fatalf("transitioned after 1 of 2 approvals (state %v)", r.State)
	}
	d, err = r.Cast("bob", Approve, "same", false, 2)
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if !d.Transition || d.To != Approved || r.State != Approved {
		t.Errorf("decision = %+v, state = %v; want transition to approved", d, r.State)
	}
}

func TestCast_ResubmissionDoesNotCountTwice(t *testing.T) {
	r := openReport()
	for i := 0; i < 3; i++ {
		d, err := r.Cast("alice", Approve, "again", false, 2)
		if err != nil {
			t.Fatalf("approve %d: %v", i, err)
		}
		if d.Transition {
			t.Fatalf("approve %d by the same reviewer transitioned", i)
		}
		if i > 0 && (!d.Replaced || d.Previous != Approve) {
			t.Errorf("approve %d: decision = %+v, want replaced approve", i, d)
		}
	}
	if r.Count(Approve) != 1 {
		t.Errorf("Count(Approve) = %d, want 1", r.Count(Approve))
	}
}

func TestCast_DenyQuorum(t *testing.T) {
	r := openReport()
	if d, _ := r.Cast("alice", Deny, "dupe", false, 2); d.Transition {
		t.Fatal("transitioned after 1 of 2 denials")
	}
	d, err := r.Cast("bob", Deny, "dupe", false, 2)
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if !d.Transition || r.State != Denied {
		t.Errorf("state = %v, want denied", r.State)
	}
}

func TestCast_SelfDenyImmediate(t *testing.T) {
	r := openReport()
	d, err := r.Cast("reporter", Deny, "my mistake", false, 5)
	if err != nil {
		t.Fatalf("self deny: %v", err)
	}
	if !d.Transition || d.To != Denied {
		t.Errorf("decision = %+v, want immediate denial", d)
	}
}

func TestCast_SelfApproveForbidden(t *testing.T) {
	r := openReport()
	r.Cast("alice", Deny, "no", false, 5)

	_, err := r.Cast("reporter", Approve, "trust me", false, 1)
	if !errors.Is(err, ErrSelfVoteForbidden) {
		t.Fatalf("err = %v, want ErrSelfVoteForbidden", err)
	}
	if r.ledger.Len() != 1 {
		t.Errorf("ledger Len() = %d after rejected self-approve, want 1", r.ledger.Len())
	}
	if r.State != Open {
		t.Errorf("state = %v, want open", r.State)
	}
}

func TestCast_ForceBypass(t *testing.T) {
	tests := []struct {
		name     string
		reviewer string
		polarity Polarity
		want     State
	}{
		{"force approve", "admin", Approve, Approved},
		{"force deny", "admin", Deny, Denied},
		{"force approve by reporter", "reporter", Approve, Approved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := openReport()
			d, err := r.Cast(tt.reviewer, tt.polarity, "overlord", true, 10)
			if err != nil {
				t.Fatalf("Cast: %v", err)
			}
			if !d.Transition || r.State != tt.want {
				t.Errorf("state = %v, want %v", r.State, tt.want)
			}
			if _, ok := r.StanceOf(tt.reviewer); !ok {
				t.Error("forced stance not recorded")
			}
		})
	}
}

func TestCast_Guards(t *testing.T) {
	locked := openReport()
	locked.Locked = true
	if _, err := locked.Cast("alice", Approve, "", true, 1); !errors.Is(err, ErrAlreadyLocked) {
		t.Errorf("locked: err = %v, want ErrAlreadyLocked", err)
	}

	for _, st := range []State{Approved, Denied} {
		r := openReport()
		r.State = st
		if _, err := r.Cast("alice", Deny, "", true, 1); !errors.Is(err, ErrAlreadyResolved) {
			t.Errorf("%v: err = %v, want ErrAlreadyResolved", st, err)
		}
	}
}

func TestCast_InvalidInput(t *testing.T) {
	r := openReport()
	if _, err := r.Cast("alice", Polarity(0), "", false, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero polarity: err = %v, want ErrInvalidInput", err)
	}
	if _, err := r.Cast("", Approve, "", false, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty reviewer: err = %v, want ErrInvalidInput", err)
	}
}

func TestRevoke(t *testing.T) {
	r := openReport()
	if err := r.Revoke("alice"); !errors.Is(err, ErrNoStanceFound) {
		t.Fatalf("revoke without stance: err = %v, want ErrNoStanceFound", err)
	}
	r.Cast("alice", Approve, "yes", false, 3)
	if err := r.Revoke("alice"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if r.Count(Approve) != 0 || r.State != Open {
		t.Errorf("after revoke: approves = %d, state = %v", r.Count(Approve), r.State)
	}
}

func TestTerminalImmutability(t *testing.T) {
	for _, st := range []State{Approved, Denied} {
		t.Run(st.String(), func(t *testing.T) {
			r := openReport()
			r.State = st
			before := r.Clone()

			checks := map[string]error{
				"revoke": r.Revoke("alice"),
				"edit":   r.Edit("reporter", FieldShort, "new"),
				"attach": r.Attach("alice", "[log](http://x/log.txt)"),
				"note":   r.AddNote("alice", "hi", 5),
				"lock":   r.Lock(),
				"unlock": r.Unlock(),
			}
			_, castErr := r.Cast("alice", Approve, "", false, 1)
			checks["cast"] = castErr
			for name, err := range checks {
				if !errors.Is(err, ErrAlreadyResolved) {
					t.Errorf("%s: err = %v, want ErrAlreadyResolved", name, err)
				}
			}
			if r.Short != before.Short || len(r.Notes) != 0 || len(r.Attachments) != 0 || r.Locked {
				t.Error("terminal report was mutated")
			}
		})
	}
}

func TestEdit(t *testing.T) {
	r := openReport()
	if err := r.Edit("alice", FieldShort, "x"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("non-owner edit: err = %v, want ErrNotOwner", err)
	}
	if err := r.Edit("reporter", FieldSteps, "one ~ two ~  ~ three"); err != nil {
		t.Fatalf("edit steps: %v", err)
	}
	if len(r.Steps) != 3 || r.Steps[2] != "three" {
		t.Errorf("Steps = %q, want [one two three]", r.Steps)
	}
	if err := r.Edit("reporter", FieldSoftware, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank value: err = %v, want ErrInvalidInput", err)
	}
	if err := r.Edit("reporter", FieldSoftware, "2.0"); err != nil || r.Software != "2.0" {
		t.Errorf("edit software: err = %v, Software = %q", err, r.Software)
	}
}

func TestParseField(t *testing.T) {
	tests := []struct {
		name string
		want Field
	}{
		{"short", FieldShort},
		{"Title", FieldShort},
		{"header", FieldShort},
		{"str", FieldSteps},
		{"body", FieldSteps},
		{"expected", FieldExpected},
		{"actual", FieldActual},
		{"sv", FieldSoftware},
	}
	for _, tt := range tests {
		got, err := ParseField(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("ParseField(%q) = %v, %v; want %v", tt.name, got, err, tt.want)
		}
	}
	if _, err := ParseField("priority"); !errors.Is(err, ErrBadField) {
		t.Errorf("ParseField(priority) err = %v, want ErrBadField", err)
	}
}

func TestAddNote_Limit(t *testing.T) {
	r := openReport()
	for i := 0; i < 2; i++ {
		if err := r.AddNote("alice", "note", 2); err != nil {
			t.Fatalf("note %d: %v", i, err)
		}
	}
	if err := r.AddNote("alice", "one too many", 2); !errors.Is(err, ErrNoteLimitReached) {
		t.Errorf("err = %v, want ErrNoteLimitReached", err)
	}
	if len(r.Notes) != 2 {
		t.Errorf("len(Notes) = %d, want 2", len(r.Notes))
	}
}

func TestLockUnlock(t *testing.T) {
	r := openReport()
	if err := r.Unlock(); !errors.Is(err, ErrNotLocked) {
		t.Errorf("unlock unlocked: err = %v, want ErrNotLocked", err)
	}
	if err := r.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := r.Lock(); !errors.Is(err, ErrAlreadyLocked) {
		t.Errorf("double lock: err = %v, want ErrAlreadyLocked", err)
	}
	if err := r.Attach("alice", "x"); !errors.Is(err, ErrAlreadyLocked) {
		t.Errorf("attach while locked: err = %v, want ErrAlreadyLocked", err)
	}
	if err := r.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if r.Locked {
		t.Error("still locked after Unlock")
	}
}

func TestClone_Independent(t *testing.T) {
	r := openReport()
	r.Cast("alice", Approve, "yes", false, 5)
	r.Issue = &Issue{ID: 1, URL: "u"}
	c := r.Clone()

	c.Steps[0] = "changed"
	c.Issue.ID = 99
	c.Cast("bob", Deny, "no", false, 5)

	if r.Steps[0] == "changed" || r.Issue.ID == 99 || r.Count(Deny) != 0 {
		t.Error("Clone shares state with the original")
	}
}

func TestParseState(t *testing.T) {
	for name, want := range map[string]State{"open": Open, "APPROVED": Approved, " denied ": Denied} {
		got, err := ParseState(name)
		if err != nil || got != want {
			t.Errorf("ParseState(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseState("pending"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ParseState(pending) err = %v, want ErrInvalidInput", err)
	}
}
