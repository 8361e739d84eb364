package asr

import (
	"errors"
	"testing"
)

func TestLifecycle_HappyPath(t *testing.T) {
	l := NewLifecycle()
	if l.State() != StateInit {
		t.Fatalf("initial state: got %v, want INIT", l.State())
	}
	if err := l.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := l.AcceptAudio(); err != nil {
		t.Errorf("AcceptAudio while streaming: %v", err)
	}
	if err := l.BeginDrain(); err != nil {
		t.Fatalf("BeginDrain: %v", err)
	}
	if err := l.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if l.State() != StateComplete {
		t.Errorf("final state: got %v, want COMPLETE", l.State())
	}
	if !l.State().IsTerminal() {
		t.Error("COMPLETE should be terminal")
	}
}

func TestLifecycle_AudioRejectedOutsideStreaming(t *testing.T) {
	l := NewLifecycle()
	if err := l.AcceptAudio(); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("INIT: got %v, want ErrNotStreaming", err)
	}

	l.Begin()
	l.BeginDrain()
	if err := l.AcceptAudio(); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("DRAINING: got %v, want ErrNotStreaming", err)
	}
}

func TestLifecycle_DrainIdempotent(t *testing.T) {
	l := NewLifecycle()
	l.Begin()
	if err := l.BeginDrain(); err != nil {
		t.Fatalf("first BeginDrain: %v", err)
	}
	if err := l.BeginDrain(); err != nil {
		t.Errorf("second BeginDrain should be a no-op, got %v", err)
	}
	if l.State() != StateDraining {
		t.Errorf("state: got %v, want DRAINING", l.State())
	}
}

func TestLifecycle_DrainFromInitRejected(t *testing.T) {
	l := NewLifecycle()
	if err := l.BeginDrain(); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("got %v, want ErrNotStreaming", err)
	}
}

func TestLifecycle_CompleteRequiresDraining(t *testing.T) {
	l := NewLifecycle()
	l.Begin()
	if err := l.Complete(); !errors.Is(err, ErrNotDraining) {
		t.Errorf("got %v, want ErrNotDraining", err)
	}
}

func TestLifecycle_Fail(t *testing.T) {
	l := NewLifecycle()
	l.Begin()
	if !l.Fail() {
		t.Error("Fail from STREAMING should succeed")
	}
	if l.State() != StateError {
		t.Errorf("state: got %v, want ERROR", l.State())
	}
	if l.Fail() {
		t.Error("Fail on a terminal session should report false")
	}
	if err := l.BeginDrain(); !errors.Is(err, ErrSessionTerminal) {
		t.Errorf("BeginDrain after ERROR: got %v, want ErrSessionTerminal", err)
	}
	if err := l.Begin(); !errors.Is(err, ErrSessionTerminal) {
		t.Errorf("Begin after ERROR: got %v, want ErrSessionTerminal", err)
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateInit:      "INIT",
		StateStreaming: "STREAMING",
		StateDraining:  "DRAINING",
		StateComplete:  "COMPLETE",
		StateError:     "ERROR",
		State(42):      "UNKNOWN(42)",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String(): got %q, want %q", state, got, want)
		}
	}
}
