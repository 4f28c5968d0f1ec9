package main

import (
	"strings"
	"testing"
)

func TestReportList(t *testing.T) {
	path := writeTestConfig(t)
	seedReports(t, path, 3)

	out, err := runCmd(t, "report", "list", "--config", path)
	if err != nil {
		t.Fatalf("report list: %v", err)
	}
	for _, want := range []string{"ID", "STATE", "#1", "#3", "bug number 2", "open", "+0/-0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = runCmd(t, "report", "list", "--state", "approved", "--config", path)
	if err != nil {
		t.Fatalf("report list --state: %v", err)
	}
	if !strings.Contains(out, "No reports found.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestReportList_BadState(t *testing.T) {
	_, err := runCmd(t, "report", "list", "--state", "pending", "--config", writeTestConfig(t))
	if err == nil || !strings.Contains(err.Error(), "unknown state") {
		t.Errorf("err = %v", err)
	}
}

func TestReportShow(t *testing.T) {
	path := writeTestConfig(t)
	seedReports(t, path, 1)

	out, err := runCmd(t, "report", "show", "#1", "--config", path)
	if err != nil {
		t.Fatalf("report show: %v", err)
	}
	for _, want := range []string{"Report #1: bug number 1", "State:     open", "  1. open", "  2. tap", "Actual:   crashes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCmd(t, "report", "show", "9", "--config", path); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("show missing report err = %v", err)
	}
	if _, err := runCmd(t, "report", "show", "x", "--config", path); err == nil || !strings.Contains(err.Error(), "invalid report id") {
		t.Errorf("show bad id err = %v", err)
	}
}

func TestReportLockUnlock(t *testing.T) {
	path := writeTestConfig(t)
	seedReports(t, path, 1)

	out, err := runCmd(t, "report", "lock", "1", "--config", path)
	if err != nil || !strings.Contains(out, "Locked report #1") {
		t.Fatalf("lock: %v\n%s", err, out)
	}
	if _, err := runCmd(t, "report", "lock", "1", "--config", path); err == nil || !strings.Contains(err.Error(), "already locked") {
		t.Errorf("second lock err = %v", err)
	}
	out, _ = runCmd(t, "report", "list", "--config", path)
	if !strings.Contains(out, "open (locked)") {
		t.Errorf("list does not show lock:\n%s", out)
	}
	out, err = runCmd(t, "report", "unlock", "1", "--config", path)
	if err != nil || !strings.Contains(out, "Unlocked report #1") {
		t.Fatalf("unlock: %v\n%s", err, out)
	}
}

func TestReportForce_SkipEffects(t *testing.T) {
	path := writeTestConfig(t)
	seedReports(t, path, 2)

	out, err := runCmd(t, "report", "force", "deny", "2", "--as", "a1", "--reason", "duplicate", "--skip-effects", "--config", path)
	if err != nil {
		t.Fatalf("force deny: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Report #2 is now denied") {
		t.Errorf("unexpected output: %s", out)
	}

	out, _ = runCmd(t, "report", "show", "2", "--config", path)
	if !strings.Contains(out, "State:     denied") || !strings.Contains(out, "  - a1: duplicate") {
		t.Errorf("show after force:\n%s", out)
	}

	if _, err := runCmd(t, "report", "force", "deny", "2", "--as", "a1", "--reason", "again", "--skip-effects", "--config", path); err == nil || !strings.Contains(err.Error(), "already resolved") {
		t.Errorf("second force err = %v", err)
	}
}

func TestReportForce_Validation(t *testing.T) {
	path := writeTestConfig(t)
	if _, err := runCmd(t, "report", "force", "maybe", "1", "--as", "a", "--reason", "r", "--config", path); err == nil || !strings.Contains(err.Error(), "approve or deny") {
		t.Errorf("bad direction err = %v", err)
	}
	if _, err := runCmd(t, "report", "force", "approve", "1", "--config", path); err == nil || !strings.Contains(err.Error(), "required flag") {
		t.Errorf("missing flags err = %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
