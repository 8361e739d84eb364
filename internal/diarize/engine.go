// Package diarize defines the interface to the speaker diarization engine
// and the overlap-based speaker assignment that reconciles diarization
// turns with transcript segments.
package diarize

import "context"

// Turn is one diarization output interval with an assigned speaker label.
// Times are absolute stream-relative seconds. Labels are only stable within
// a single Diarize call.
type Turn struct {
	StartTime float64
	EndTime   float64
	Speaker   string
}

// Options are tuning hints passed through to the engine unchanged.
type Options struct {
	MinSpeakers         int
	MaxSpeakers         int
	ClusteringThreshold float64
}

// Engine runs diarization over a complete recording. An unavailable engine
// returns an empty turn set rather than failing the session.
type Engine interface {
	Diarize(ctx context.Context, pcm []byte, opts Options) ([]Turn, error)
}
