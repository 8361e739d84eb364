// Package protocol defines the JSON control and result messages exchanged
// over the websocket legs (client ↔ gateway ↔ ASR). Every text frame is a
// JSON object with a discriminant "type" field.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Control message types (client → server).
const (
	TypeStart = "start"
	TypeEnd   = "end"
)

// Result message types (server → client).
const (
	TypeSegment            = "segment"
	TypeTranscriptComplete = "transcript_complete"
	TypeError              = "error"
)

// Segment status values.
const (
	StatusPartial = "partial"
	StatusFinal   = "final"
)

var (
	ErrNotStart    = errors.New("expected start message")
	ErrEmptyStream = errors.New("stream_id must not be empty")
)

// StartMessage opens a session. It must be the first frame on a connection.
type StartMessage struct {
	Type        string  `json:"type"`
	StreamID    string  `json:"stream_id"`
	SampleRate  int     `json:"sample_rate"`
	Encoding    string  `json:"encoding"`
	Channels    int     `json:"channels"`
	Language    string  `json:"language,omitempty"`
	Diarize     bool    `json:"diarize"`
	MinSpeakers int     `json:"min_speakers,omitempty"`
	MaxSpeakers int     `json:"max_speakers,omitempty"`
	Threshold   float64 `json:"clustering_threshold,omitempty"`
}

// EndMessage signals end of audio. No binary frames are processed after it.
type EndMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// TranscriptSegment is one transcribed span of the stream. Times are
// absolute stream-relative seconds. SegmentID is unique within a session
// and preserved when a partial segment is re-emitted as final.
type TranscriptSegment struct {
	Status     string  `json:"status"`
	SegmentID  int     `json:"segment_id"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Text       string  `json:"text"`
	Speaker    *string `json:"speaker"`
	Confidence float64 `json:"confidence"`
}

// SegmentMessage carries one partial segment during streaming.
type SegmentMessage struct {
	Type     string            `json:"type"`
	StreamID string            `json:"stream_id"`
	Segment  TranscriptSegment `json:"segment"`
}

// TranscriptCompleteMessage is the single terminal result of a session,
// carrying every segment ordered by segment_id.
type TranscriptCompleteMessage struct {
	Type       string              `json:"type"`
	StreamID   string              `json:"stream_id"`
	Segments   []TranscriptSegment `json:"segments"`
	SpeakerMap map[string]string   `json:"speaker_map"`
}

// ErrorMessage reports a session failure to the client.
type ErrorMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Detail   string `json:"detail"`
}

// Envelope is used to peek at the discriminant of an incoming text frame.
type Envelope struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// ParseStart decodes and validates a start message. Any other message type,
// malformed JSON or missing stream_id is a protocol violation.
func ParseStart(raw []byte) (*StartMessage, error) {
	var msg StartMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("malformed start message: %w", err)
	}
	if msg.Type != TypeStart {
		return nil, fmt.Errorf("%w, got %q", ErrNotStart, msg.Type)
	}
	if msg.StreamID == "" {
		return nil, ErrEmptyStream
	}
	if msg.SampleRate == 0 {
		msg.SampleRate = 16000
	}
	if msg.Channels == 0 {
		msg.Channels = 1
	}
	if msg.Encoding == "" {
		msg.Encoding = "pcm_s16le"
	}
	return &msg, nil
}

// PeekType decodes just the type discriminant of a text frame.
func PeekType(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed message: %w", err)
	}
	return env, nil
}

// NewSegmentMessage wraps a segment in its wire envelope.
func NewSegmentMessage(streamID string, seg TranscriptSegment) SegmentMessage {
	return SegmentMessage{Type: TypeSegment, StreamID: streamID, Segment: seg}
}

// NewCompleteMessage builds the terminal transcript message.
func NewCompleteMessage(streamID string, segments []TranscriptSegment) TranscriptCompleteMessage {
	if segments == nil {
		segments = []TranscriptSegment{}
	}
	return TranscriptCompleteMessage{
		Type:       TypeTranscriptComplete,
		StreamID:   streamID,
		Segments:   segments,
		SpeakerMap: map[string]string{},
	}
}

// NewErrorMessage builds an error result.
func NewErrorMessage(streamID, detail string) ErrorMessage {
	return ErrorMessage{Type: TypeError, StreamID: streamID, Detail: detail}
}
