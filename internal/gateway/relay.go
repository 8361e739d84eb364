package gateway

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/damukelp/smart-transcriptor/internal/audio"
	"github.com/damukelp/smart-transcriptor/internal/protocol"
)

// Conn is the subset of *websocket.Conn the relay needs. Tests substitute
// in-memory fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Relay bridges one client connection and its backend connection. The two
// directions run as separate goroutines; Run does not return until both
// have finished, so teardown is never left half done.
type Relay struct {
	session      *Session
	client       Conn
	backend      Conn
	normalizer   audio.Normalizer
	drainTimeout time.Duration
	tearingDown  atomic.Bool
	log          zerolog.Logger
}

// NewRelay builds a relay for an admitted session. The relay takes over
// both connections; the caller only closes the client side afterwards.
func NewRelay(session *Session, client, backend Conn, normalizer audio.Normalizer, drainTimeout time.Duration, logger zerolog.Logger) *Relay {
	return &Relay{
		session:      session,
		client:       client,
		backend:      backend,
		normalizer:   normalizer,
		drainTimeout: drainTimeout,
		log:          logger.With().Str("streamId", session.StreamID).Str("connId", session.ConnID).Logger(),
	}
}

// Run drives both relay directions until the stream ends, then tears the
// backend connection down. On every exit path the peer loop is cancelled
// and awaited before Run returns; the caller deregisters the session.
func (r *Relay) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	backendDone := make(chan struct{})
	var backendErr error
	go func() {
		backendErr = r.backendToClient()
		close(backendDone)
	}()

	err := r.clientToBackend(ctx, backendDone)

	// Closing the backend connection unblocks the backend→client read if
	// it is still running; then await its exit.
	cancel()
	r.tearingDown.Store(true)
	_ = r.backend.Close()
	<-backendDone
	if err == nil {
		err = backendErr
	}
	return err
}

// backendToClient forwards every backend frame verbatim to the client,
// exiting when the backend connection closes (which the backend does after
// delivering the consolidated transcript). Frames are never rewritten; the
// loop only notes whether a terminal result went past, so that a backend
// connection lost mid-session surfaces as an error instead of a hang.
func (r *Relay) backendToClient() error {
	sawTerminal := false
	for {
		msgType, data, err := r.backend.ReadMessage()
		if err != nil {
			if sawTerminal || r.tearingDown.Load() {
				r.log.Debug().Err(err).Msg("Backend connection closed")
				return nil
			}
			return fmt.Errorf("backend connection lost before transcript completed")
		}
		if msgType == websocket.TextMessage {
			if env, err := protocol.PeekType(data); err == nil {
				if env.Type == protocol.TypeTranscriptComplete || env.Type == protocol.TypeError {
					sawTerminal = true
				}
			}
		}
		if err := r.client.WriteMessage(msgType, data); err != nil {
			return fmt.Errorf("relay to client: %w", err)
		}
	}
}

// clientToBackend normalizes and forwards client audio until the end
// message or a disconnect. After forwarding end it waits for the backend
// loop to observe the consolidated result, so the client is guaranteed a
// final message before the connection closes.
func (r *Relay) clientToBackend(ctx context.Context, backendDone <-chan struct{}) error {
	for {
		msgType, data, err := r.client.ReadMessage()
		if err != nil {
			// Client disconnect is an implicit end: dropping the backend
			// connection drives its draining; there is no one left to
			// deliver results to.
			r.log.Info().Msg("Client disconnected")
			return nil
		}

		switch msgType {
		case websocket.BinaryMessage:
			pcm, err := r.normalizer.Normalize(ctx, data, r.session.SampleRate, r.session.Channels, r.session.Encoding)
			if err != nil {
				return fmt.Errorf("audio normalization: %w", err)
			}
			if err := r.backend.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				return fmt.Errorf("forward audio: %w", err)
			}

		case websocket.TextMessage:
			env, err := protocol.PeekType(data)
			if err != nil {
				return err
			}
			if err := r.backend.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("forward control: %w", err)
			}
			if env.Type == protocol.TypeEnd {
				return r.awaitBackend(ctx, backendDone)
			}
		}
	}
}

// awaitBackend blocks until the backend→client loop has relayed the final
// result and exited. A configured drain timeout maps to a session error.
func (r *Relay) awaitBackend(ctx context.Context, backendDone <-chan struct{}) error {
	if r.drainTimeout <= 0 {
		select {
		case <-backendDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	timer := time.NewTimer(r.drainTimeout)
	defer timer.Stop()
	select {
	case <-backendDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("draining timed out after %s", r.drainTimeout)
	}
}
