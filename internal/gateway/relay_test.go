package gateway

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type wsFrame struct {
	messageType int
	data        []byte
}

// fakeConn is an in-memory Conn. Reads are fed through a channel; Close
// unblocks any pending read.
type fakeConn struct {
	mu      sync.Mutex
	in      chan wsFrame
	closed  chan struct{}
	once    sync.Once
	written []wsFrame
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan wsFrame, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-c.in:
		if !ok {
			return 0, nil, io.EOF
		}
		return f.messageType, f.data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, wsFrame{messageType, append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) frames() []wsFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wsFrame(nil), c.written...)
}

// markNormalizer tags every frame so tests can tell normalized audio from
// raw client bytes.
type markNormalizer struct{ err error }

func (n *markNormalizer) Normalize(_ context.Context, data []byte, _, _ int, _ string) ([]byte, error) {
	if n.err != nil {
		return nil, n.err
	}
	return append([]byte("norm:"), data...), nil
}

func newTestRelay(client, backend *fakeConn, normalizer *markNormalizer, drainTimeout time.Duration) *Relay {
	session := &Session{StreamID: "s1", ConnID: "c1", SampleRate: 44100, Channels: 2, Encoding: "pcm_s16le"}
	return NewRelay(session, client, backend, normalizer, drainTimeout, zerolog.Nop())
}

func TestRelay_HappyPath(t *testing.T) {
	client := newFakeConn()
	backend := newFakeConn()

	client.in <- wsFrame{websocket.BinaryMessage, []byte("audio-1")}
	client.in <- wsFrame{websocket.TextMessage, []byte(`{"type":"end","stream_id":"s1"}`)}
	backend.in <- wsFrame{websocket.TextMessage, []byte(`{"type":"segment","stream_id":"s1","segment":{"status":"partial","segment_id":0,"start_time":0,"end_time":3,"text":"hi","speaker":null,"confidence":0.9}}`)}
	backend.in <- wsFrame{websocket.TextMessage, []byte(`{"type":"transcript_complete","stream_id":"s1","segments":[],"speaker_map":{}}`)}
	close(backend.in)

	relay := newTestRelay(client, backend, &markNormalizer{}, 0)
	if err := relay.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	toBackend := backend.frames()
	if len(toBackend) != 2 {
		t.Fatalf("backend received %d frames, want 2", len(toBackend))
	}
	if toBackend[0].messageType != websocket.BinaryMessage || string(toBackend[0].data) != "norm:audio-1" {
		t.Errorf("audio must be normalized before forwarding, got %q", toBackend[0].data)
	}
	if !strings.Contains(string(toBackend[1].data), `"type":"end"`) {
		t.Errorf("end message not forwarded: %q", toBackend[1].data)
	}

	toClient := client.frames()
	if len(toClient) != 2 {
		t.Fatalf("client received %d frames, want 2", len(toClient))
	}
	// Result frames pass through byte for byte.
	if !strings.Contains(string(toClient[0].data), `"type":"segment"`) {
		t.Errorf("first client frame: %q", toClient[0].data)
	}
	if !strings.Contains(string(toClient[1].data), `"type":"transcript_complete"`) {
		t.Errorf("second client frame: %q", toClient[1].data)
	}

	if !backend.isClosed() {
		t.Error("backend connection must be closed on the way out")
	}
}

func TestRelay_BackendLostBeforeTranscript(t *testing.T) {
	client := newFakeConn()
	backend := newFakeConn()

	client.in <- wsFrame{websocket.TextMessage, []byte(`{"type":"end","stream_id":"s1"}`)}
	close(backend.in) // backend dies without delivering a terminal result

	relay := newTestRelay(client, backend, &markNormalizer{}, 0)
	err := relay.Run(context.Background())
	if err == nil {
		t.Fatal("backend loss before the transcript must surface as an error")
	}
	if !strings.Contains(err.Error(), "backend connection lost") {
		t.Errorf("got %v", err)
	}
}

func TestRelay_ClientDisconnectIsImplicitEnd(t *testing.T) {
	client := newFakeConn()
	backend := newFakeConn()
	client.Close()

	relay := newTestRelay(client, backend, &markNormalizer{}, 0)
	if err := relay.Run(context.Background()); err != nil {
		t.Fatalf("client disconnect should not be an error, got %v", err)
	}
	if !backend.isClosed() {
		t.Error("backend must be torn down after client disconnect")
	}
}

func TestRelay_DrainTimeout(t *testing.T) {
	client := newFakeConn()
	backend := newFakeConn()

	client.in <- wsFrame{websocket.TextMessage, []byte(`{"type":"end","stream_id":"s1"}`)}
	// Backend never answers.

	relay := newTestRelay(client, backend, &markNormalizer{}, 20*time.Millisecond)
	err := relay.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "draining timed out") {
		t.Errorf("got %v, want drain timeout", err)
	}
	if !backend.isClosed() {
		t.Error("backend must be torn down after timeout")
	}
}

func TestRelay_NormalizationFailureIsFatal(t *testing.T) {
	client := newFakeConn()
	backend := newFakeConn()

	client.in <- wsFrame{websocket.BinaryMessage, []byte("audio")}

	relay := newTestRelay(client, backend, &markNormalizer{err: errors.New("ffmpeg exited 1")}, 0)
	err := relay.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "normalization") {
		t.Errorf("got %v, want normalization error", err)
	}
	if frames := backend.frames(); len(frames) != 0 {
		t.Errorf("no frames should reach the backend, got %d", len(frames))
	}
}
