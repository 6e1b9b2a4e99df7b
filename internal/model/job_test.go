package model

import (
	"testing"
	"time"
)

func TestProgress_ClampBounds(t *testing.T) {
	p := Progress{Percent: 142}
	p.Clamp()
	if p.Percent != 100 {
		t.Fatalf("expected clamp to 100, got %d", p.Percent)
	}

	p = Progress{Percent: -5}
	p.Clamp()
	if p.Percent != 0 {
		t.Fatalf("expected clamp to 0, got %d", p.Percent)
	}
}

func TestSettings_ShouldDelete(t *testing.T) {
	cases := []struct {
		name string
		s    Settings
		want bool
	}{
		{"all conditions met", Settings{DeleteSourceAfter: true, DeletionConfirmed: true}, true},
		{"not requested", Settings{DeleteSourceAfter: false, DeletionConfirmed: true}, false},
		{"not confirmed", Settings{DeleteSourceAfter: true, DeletionConfirmed: false}, false},
		{"skipped this run", Settings{DeleteSourceAfter: true, DeletionConfirmed: true, SkipDeletionThisRun: true}, false},
	}
	for _, tc := range cases {
		if got := tc.s.ShouldDelete(); got != tc.want {
			t.Errorf("%s: ShouldDelete() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestJob_Touch(t *testing.T) {
	j := Job{Version: 1}
	now := time.Now()
	j.Touch(now)
	if j.Version != 2 {
		t.Fatalf("expected version 2, got %d", j.Version)
	}
	if !j.UpdatedAt.Equal(now) {
		t.Fatalf("expected UpdatedAt to be set")
	}
}

func TestJob_CanStartTransitions(t *testing.T) {
	startable := []Status{StatusPending, StatusPaused, StatusFailed}
	for _, s := range startable {
		j := Job{Status: s}
		if !j.CanStart() {
			t.Errorf("expected CanStart() true from status %s", s)
		}
	}

	notStartable := []Status{StatusRunning, StatusCompleted}
	for _, s := range notStartable {
		j := Job{Status: s}
		if j.CanStart() {
			t.Errorf("expected CanStart() false from status %s", s)
		}
	}
}

func TestJob_CanStopOnlyWhenRunning(t *testing.T) {
	running := Job{Status: StatusRunning}
	if !running.CanStop() {
		t.Fatalf("expected CanStop() true when running")
	}
	pending := Job{Status: StatusPending}
	if pending.CanStop() {
		t.Fatalf("expected CanStop() false when pending")
	}
}
