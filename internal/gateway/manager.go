// Package gateway bridges client websocket connections to the ASR backend:
// per-session relay loops, audio normalization and admission control.
package gateway

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/damukelp/smart-transcriptor/internal/observability/metrics"
)

// Admission errors. The registry is never mutated when these are returned.
var (
	ErrMaxSessions      = errors.New("max sessions reached")
	ErrDuplicateSession = errors.New("session already exists")
)

// Session is the gateway's bookkeeping for one active stream: identity,
// the audio format declared at start, and timing. The websocket
// connections themselves are owned by the relay, never shared.
type Session struct {
	StreamID   string
	ConnID     string
	SampleRate int
	Channels   int
	Encoding   string
	Language   string
	CreatedAt  time.Time
}

// Manager owns the stream-id → session registry, the only mutable state
// shared between sessions. All mutations happen under one lock.
type Manager struct {
	mu       sync.Mutex
	max      int
	sessions map[string]*Session
	metrics  *metrics.Metrics
}

// NewManager creates a registry admitting at most max concurrent sessions.
func NewManager(max int) *Manager {
	return &Manager{
		max:      max,
		sessions: make(map[string]*Session),
		metrics:  metrics.DefaultMetrics,
	}
}

// Create registers a session, rejecting over-capacity and duplicate
// stream ids before any state changes.
func (m *Manager) Create(session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.max {
		m.metrics.RecordAdmissionRejected("capacity")
		return fmt.Errorf("%w (%d)", ErrMaxSessions, m.max)
	}
	if _, exists := m.sessions[session.StreamID]; exists {
		m.metrics.RecordAdmissionRejected("duplicate")
		return fmt.Errorf("%w: %s", ErrDuplicateSession, session.StreamID)
	}
	session.CreatedAt = time.Now()
	m.sessions[session.StreamID] = session
	log.Info().Str("streamId", session.StreamID).Int("active", len(m.sessions)).Msg("Session created")
	return nil
}

// Remove deregisters a session. Unconditional and idempotent; every relay
// exit path calls it exactly once.
func (m *Manager) Remove(streamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[streamID]; !exists {
		return
	}
	delete(m.sessions, streamID)
	log.Info().Str("streamId", streamID).Int("active", len(m.sessions)).Msg("Session removed")
}

// Get looks up an active session.
func (m *Manager) Get(streamID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[streamID]
	return s, ok
}

// ActiveCount returns the number of active sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
