package asr

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/damukelp/smart-transcriptor/internal/analysis"
	"github.com/damukelp/smart-transcriptor/internal/config"
	"github.com/damukelp/smart-transcriptor/internal/diarize"
	"github.com/damukelp/smart-transcriptor/internal/events"
	"github.com/damukelp/smart-transcriptor/internal/observability/metrics"
	"github.com/damukelp/smart-transcriptor/internal/protocol"
	"github.com/damukelp/smart-transcriptor/internal/transcribe"
)

// Server terminates backend websocket connections from the gateway and
// drives one Session per connection. Engine handles are constructed once
// at process startup and injected here; sessions never build their own.
type Server struct {
	cfg         *config.ASR
	transcriber transcribe.Engine
	diarizer    diarize.Engine
	publisher   *events.Publisher
	analyzer    *analysis.Client
	log         zerolog.Logger
	metrics     *metrics.Metrics
	upgrader    websocket.Upgrader
}

// NewServer wires the ASR websocket server. analyzer may be nil.
func NewServer(cfg *config.ASR, transcriber transcribe.Engine, diarizer diarize.Engine, publisher *events.Publisher, analyzer *analysis.Client, logger zerolog.Logger) *Server {
	return &Server{
		cfg:         cfg,
		transcriber: transcriber,
		diarizer:    diarizer,
		publisher:   publisher,
		analyzer:    analyzer,
		log:         logger.With().Str("component", "asr").Logger(),
		metrics:     metrics.DefaultMetrics,
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
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	})
	r.Get("/stream", s.handleStream)
	return r
}

// handleStream runs one stream session over a websocket connection.
// Audio processing is strictly sequential within the connection; only
// independent sessions transcribe in parallel.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// First frame must be a valid start message; otherwise no session is
	// ever created.
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

	opts := diarize.Options{
		MinSpeakers:         start.MinSpeakers,
		MaxSpeakers:         start.MaxSpeakers,
		ClusteringThreshold: start.Threshold,
	}
	if opts.ClusteringThreshold == 0 {
		opts.ClusteringThreshold = s.cfg.ClusteringDefault
	}

	session, err := NewSession(SessionConfig{
		StreamID:     start.StreamID,
		Language:     start.Language,
		Diarize:      start.Diarize,
		DiarizeOpts:  opts,
		ChunkSeconds: s.cfg.ChunkSeconds,
		Transcriber:  s.transcriber,
		Diarizer:     s.diarizer,
		Logger:       s.log,
		Metrics:      s.metrics,
	})
	if err != nil {
		_ = conn.WriteJSON(protocol.NewErrorMessage(start.StreamID, err.Error()))
		return
	}

	slog := s.log.With().Str("streamId", start.StreamID).Logger()
	slog.Info().Str("language", start.Language).Bool("diarize", start.Diarize).Msg("Stream session started")

	s.metrics.RecordSessionStart()
	started := time.Now()
	success := false
	defer func() {
		s.metrics.RecordSessionEnd(success, time.Since(started).Seconds())
		slog.Info().Str("state", session.State().String()).Msg("Stream session ended")
	}()

	// Engine calls deliberately do not use the request context: a client
	// disconnect is an implicit end and draining must still finish.
	ctx := context.Background()

	for session.State() == StateStreaming {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// Peer disconnect is not an error; drain what we have.
			slog.Info().Msg("Connection closed, draining")
			break
		}

		switch msgType {
		case websocket.BinaryMessage:
			segments, err := session.ProcessAudio(ctx, data)
			if err != nil {
				s.failSession(conn, session, slog, err)
				return
			}
			for _, seg := range segments {
				if err := conn.WriteJSON(protocol.NewSegmentMessage(start.StreamID, seg)); err != nil {
					s.failSession(conn, session, slog, err)
					return
				}
				if err := s.publisher.PublishSegment(ctx, start.StreamID, protocol.NewSegmentMessage(start.StreamID, seg)); err != nil {
					slog.Warn().Err(err).Int("segmentId", seg.SegmentID).Msg("Segment event publish failed")
				}
			}

		case websocket.TextMessage:
			env, err := protocol.PeekType(data)
			if err != nil {
				s.failSession(conn, session, slog, err)
				return
			}
			if env.Type == protocol.TypeEnd {
				slog.Info().Msg("End message received, draining")
				goto drain
			}
			slog.Warn().Str("type", env.Type).Msg("Unexpected control message ignored")
		}
	}

drain:
	complete, err := session.Drain(ctx)
	if err != nil {
		s.failSession(conn, session, slog, err)
		return
	}
	if err := conn.WriteJSON(complete); err != nil {
		slog.Warn().Err(err).Msg("Failed to deliver consolidated transcript")
		session.Fail()
		return
	}
	success = true

	if err := s.publisher.PublishComplete(ctx, start.StreamID, complete); err != nil {
		slog.Warn().Err(err).Msg("Transcript event publish failed")
	}
	s.runAnalysis(start.StreamID, complete.Segments, slog)
}

// failSession converts an internal failure into a protocol error message,
// best effort, and moves the session to ERROR.
func (s *Server) failSession(conn *websocket.Conn, session *Session, slog zerolog.Logger, cause error) {
	slog.Error().Err(cause).Msg("Stream session failed")
	if session.Fail() {
		_ = conn.WriteJSON(protocol.NewErrorMessage(session.StreamID(), "internal transcription error"))
	}
}

// runAnalysis kicks off the post-transcript meeting analysis, detached
// from the session; its outcome is published as an event only.
func (s *Server) runAnalysis(streamID string, segments []protocol.TranscriptSegment, slog zerolog.Logger) {
	if s.analyzer == nil || len(segments) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		result, err := s.analyzer.Analyze(ctx, streamID, segments)
		if err != nil {
			slog.Warn().Err(err).Msg("Meeting analysis failed")
			return
		}
		if err := s.publisher.PublishAnalysis(ctx, streamID, result); err != nil {
			slog.Warn().Err(err).Msg("Analysis event publish failed")
		}
	}()
}
