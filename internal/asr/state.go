// Package asr implements the backend stream session: protocol state
// machine, chunked transcription pipeline and end-of-stream diarization.
package asr

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a stream session.
type State int

const (
	// StateInit - connection accepted, awaiting the start control message.
	StateInit State = iota
	// StateStreaming - accepting audio frames, emitting partial segments.
	StateStreaming
	// StateDraining - end of stream observed; flushing, final transcription,
	// diarization and speaker assignment in progress.
	StateDraining
	// StateComplete - terminal, transcript delivered.
	StateComplete
	// StateError - terminal, session failed.
	StateError
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateStreaming:
		return "STREAMING"
	case StateDraining:
		return "DRAINING"
	case StateComplete:
		return "COMPLETE"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (COMPLETE or ERROR).
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateError
}

// Errors for invalid state transitions.
var (
	ErrNotStreaming    = errors.New("session is not streaming")
	ErrNotDraining     = errors.New("session is not draining")
	ErrSessionTerminal = errors.New("session already terminal")
)

// Lifecycle manages the state machine for a single stream session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	INIT → STREAMING → DRAINING → COMPLETE
//	  │        │           │
//	  └────────┴───────────┴──→ ERROR (any unhandled failure)
//
// Rules:
//   - STREAMING: audio frames accepted, partial segments may be emitted
//   - DRAINING: no further audio; one final pass then exactly one
//     consolidated transcript
//   - COMPLETE/ERROR: terminal, all operations rejected
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a new session lifecycle in INIT state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateInit}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Begin transitions INIT → STREAMING after a valid start message.
func (l *Lifecycle) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return ErrSessionTerminal
	}
	if l.state != StateInit {
		return fmt.Errorf("cannot begin from %v", l.state)
	}
	l.state = StateStreaming
	return nil
}

// AcceptAudio validates that an audio frame may be processed.
func (l *Lifecycle) AcceptAudio() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state != StateStreaming {
		return ErrNotStreaming
	}
	return nil
}

// BeginDrain transitions STREAMING → DRAINING on end message or clean
// disconnect. Idempotent while already draining.
func (l *Lifecycle) BeginDrain() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateStreaming:
		l.state = StateDraining
		return nil
	case StateDraining:
		return nil
	case StateComplete, StateError:
		return ErrSessionTerminal
	default:
		return ErrNotStreaming
	}
}

// Complete transitions DRAINING → COMPLETE once the consolidated
// transcript has been produced.
func (l *Lifecycle) Complete() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateDraining {
		return ErrNotDraining
	}
	l.state = StateComplete
	return nil
}

// Fail transitions any non-terminal state to ERROR. Returns false if the
// session was already terminal.
func (l *Lifecycle) Fail() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateError
	return true
}
