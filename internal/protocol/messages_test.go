package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseStart_Valid(t *testing.T) {
	raw := []byte(`{"type":"start","stream_id":"abc","sample_rate":44100,"encoding":"pcm_f32le","channels":2,"language":"en","diarize":true,"min_speakers":1,"max_speakers":3,"clustering_threshold":0.6}`)
	msg, err := ParseStart(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.StreamID != "abc" || msg.SampleRate != 44100 || msg.Encoding != "pcm_f32le" || msg.Channels != 2 {
		t.Errorf("got %+v", msg)
	}
	if !msg.Diarize || msg.MinSpeakers != 1 || msg.MaxSpeakers != 3 || msg.Threshold != 0.6 {
		t.Errorf("diarization fields: got %+v", msg)
	}
}

func TestParseStart_Defaults(t *testing.T) {
	msg, err := ParseStart([]byte(`{"type":"start","stream_id":"abc"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.SampleRate != 16000 {
		t.Errorf("sample_rate default: got %d, want 16000", msg.SampleRate)
	}
	if msg.Channels != 1 {
		t.Errorf("channels default: got %d, want 1", msg.Channels)
	}
	if msg.Encoding != "pcm_s16le" {
		t.Errorf("encoding default: got %q, want pcm_s16le", msg.Encoding)
	}
	if msg.Diarize {
		t.Error("diarize should default to false")
	}
}

func TestParseStart_WrongType(t *testing.T) {
	_, err := ParseStart([]byte(`{"type":"end","stream_id":"abc"}`))
	if !errors.Is(err, ErrNotStart) {
		t.Errorf("got %v, want ErrNotStart", err)
	}
}

func TestParseStart_MissingStreamID(t *testing.T) {
	_, err := ParseStart([]byte(`{"type":"start"}`))
	if !errors.Is(err, ErrEmptyStream) {
		t.Errorf("got %v, want ErrEmptyStream", err)
	}
}

func TestParseStart_MalformedJSON(t *testing.T) {
	if _, err := ParseStart([]byte(`{"type":`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestPeekType(t *testing.T) {
	env, err := PeekType([]byte(`{"type":"end","stream_id":"abc","extra":"ignored"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Type != TypeEnd || env.StreamID != "abc" {
		t.Errorf("got %+v", env)
	}

	if _, err := PeekType([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for non-object frame")
	}
}

func TestSegmentMessage_Wire(t *testing.T) {
	speaker := "SPEAKER_00"
	msg := NewSegmentMessage("abc", TranscriptSegment{
		Status:     StatusPartial,
		SegmentID:  3,
		StartTime:  6.0,
		EndTime:    9.0,
		Text:       "hello",
		Speaker:    &speaker,
		Confidence: 0.87,
	})
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{`"type":"segment"`, `"stream_id":"abc"`, `"segment_id":3`, `"start_time":6`, `"end_time":9`, `"speaker":"SPEAKER_00"`, `"status":"partial"`} {
		if !strings.Contains(string(raw), field) {
			t.Errorf("wire form missing %s: %s", field, raw)
		}
	}
}

func TestSegment_NullSpeakerOnWire(t *testing.T) {
	raw, err := json.Marshal(TranscriptSegment{Status: StatusFinal})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"speaker":null`) {
		t.Errorf("unassigned speaker must serialize as explicit null: %s", raw)
	}
}

func TestNewCompleteMessage_NeverNullSegments(t *testing.T) {
	raw, err := json.Marshal(NewCompleteMessage("abc", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"segments":[]`) {
		t.Errorf("empty transcript must carry an empty list: %s", raw)
	}
	if !strings.Contains(string(raw), `"speaker_map":{}`) {
		t.Errorf("speaker_map must be present: %s", raw)
	}
}
