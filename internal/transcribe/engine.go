// Package transcribe defines the interface to the acoustic transcription
// engine and its implementations. The engine is an opaque collaborator:
// the core hands it a chunk of canonical PCM plus the chunk's absolute
// offset and gets back ordered, offset-applied text segments.
package transcribe

import "context"

// Segment is one span of transcribed speech. StartTime/EndTime are
// absolute stream-relative seconds (chunk-local time plus chunk offset).
type Segment struct {
	Text       string
	StartTime  float64
	EndTime    float64
	Confidence float64
}

// Engine transcribes one audio chunk. Implementations must be safe for
// concurrent use by independent sessions; calls for the same session are
// always sequential.
type Engine interface {
	Transcribe(ctx context.Context, pcm []byte, offset float64, language string) ([]Segment, error)
}
