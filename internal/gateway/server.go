package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/damukelp/smart-transcriptor/internal/audio"
	"github.com/damukelp/smart-transcriptor/internal/config"
	"github.com/damukelp/smart-transcriptor/internal/observability/metrics"
	"github.com/damukelp/smart-transcriptor/internal/protocol"
)

// Server terminates client websocket connections and runs one relay per
// admitted session.
type Server struct {
	cfg        *config.Gateway
	manager    *Manager
	normalizer audio.Normalizer
	dialer     *websocket.Dialer
	log        zerolog.Logger
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader
}

// NewServer wires the gateway.
func NewServer(cfg *config.Gateway, manager *Manager, normalizer audio.Normalizer, logger zerolog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		manager:    manager,
		normalizer: normalizer,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		log:     logger.With().Str("component", "gateway").Logger(),
		metrics: metrics.DefaultMetrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP router for the service.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "ok", "active_sessions": %d}`, s.manager.ActiveCount())
	})
	r.Get("/audio", s.handleAudio)
	return r
}

// handleAudio runs the full lifecycle of one client connection: start
// validation, admission, backend dial, relay, unconditional teardown.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	if msgType != websocket.TextMessage {
		_ = conn.WriteJSON(protocol.NewErrorMessage("", "expected start message"))
		return
	}
	start, err := protocol.ParseStart(raw)
	if err != nil {
		_ = conn.WriteJSON(protocol.NewErrorMessage("", err.Error()))
		return
	}

	session := &Session{
		StreamID:   start.StreamID,
		ConnID:     uuid.NewString(),
		SampleRate: start.SampleRate,
		Channels:   start.Channels,
		Encoding:   start.Encoding,
		Language:   start.Language,
	}
	clog := s.log.With().Str("streamId", session.StreamID).Str("connId", session.ConnID).Logger()

	if err := s.manager.Create(session); err != nil {
		clog.Warn().Err(err).Msg("Session rejected")
		_ = conn.WriteJSON(protocol.NewErrorMessage(start.StreamID, err.Error()))
		return
	}
	// Removal happens on every exit path, including panics in the relay.
	defer s.manager.Remove(session.StreamID)

	s.metrics.RecordSessionStart()
	started := time.Now()
	success := false
	defer func() {
		s.metrics.RecordSessionEnd(success, time.Since(started).Seconds())
	}()

	backend, _, err := s.dialer.DialContext(r.Context(), s.cfg.ASRURL, nil)
	if err != nil {
		clog.Error().Err(err).Str("url", s.cfg.ASRURL).Msg("Backend dial failed")
		_ = conn.WriteJSON(protocol.NewErrorMessage(start.StreamID, "transcription backend unavailable"))
		return
	}

	// Forward the start message as-is; the backend does its own parse.
	if err := backend.WriteMessage(websocket.TextMessage, raw); err != nil {
		clog.Error().Err(err).Msg("Failed to forward start message")
		_ = backend.Close()
		_ = conn.WriteJSON(protocol.NewErrorMessage(start.StreamID, "transcription backend unavailable"))
		return
	}

	clog.Info().Str("encoding", start.Encoding).Int("sampleRate", start.SampleRate).Msg("Relay started")

	relay := NewRelay(session, conn, backend, s.normalizer, s.cfg.DrainTimeout, s.log)
	if err := relay.Run(context.Background()); err != nil {
		clog.Error().Err(err).Msg("Relay failed")
		_ = conn.WriteJSON(protocol.NewErrorMessage(start.StreamID, sessionErrorDetail(err)))
		return
	}
	success = true
	clog.Info().Msg("Relay finished")
}

// sessionErrorDetail maps internal relay failures to client-safe detail
// strings; raw errors never cross the protocol boundary.
func sessionErrorDetail(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "session timed out"
	default:
		return "stream session failed"
	}
}
