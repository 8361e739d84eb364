package asr

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/damukelp/smart-transcriptor/internal/audio"
	"github.com/damukelp/smart-transcriptor/internal/diarize"
	"github.com/damukelp/smart-transcriptor/internal/observability/metrics"
	"github.com/damukelp/smart-transcriptor/internal/protocol"
	"github.com/damukelp/smart-transcriptor/internal/transcribe"
)

// Session owns one stream's audio buffer, segment counter and accumulated
// transcript. It is exclusively owned by the connection handler that
// created it; transcription calls for a session are always sequential.
type Session struct {
	streamID    string
	language    string
	diarize     bool
	diarizeOpts diarize.Options

	buffer      *audio.Buffer
	transcriber transcribe.Engine
	diarizer    diarize.Engine
	lifecycle   *Lifecycle

	nextSegmentID int
	segments      []protocol.TranscriptSegment

	log     zerolog.Logger
	metrics *metrics.Metrics
}

// SessionConfig carries per-session parameters from the start message plus
// the injected engine handles.
type SessionConfig struct {
	StreamID     string
	Language     string
	Diarize      bool
	DiarizeOpts  diarize.Options
	ChunkSeconds float64
	Transcriber  transcribe.Engine
	Diarizer     diarize.Engine
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
}

// NewSession creates a session in INIT state and immediately begins
// streaming; a session only exists once a valid start message arrived.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Transcriber == nil {
		return nil, fmt.Errorf("transcriber is required")
	}
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = 3.0
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}
	s := &Session{
		streamID:    cfg.StreamID,
		language:    cfg.Language,
		diarize:     cfg.Diarize,
		diarizeOpts: cfg.DiarizeOpts,
		buffer:      audio.NewBuffer(audio.TargetSampleRate, cfg.ChunkSeconds),
		transcriber: cfg.Transcriber,
		diarizer:    cfg.Diarizer,
		lifecycle:   NewLifecycle(),
		log:         cfg.Logger.With().Str("streamId", cfg.StreamID).Logger(),
		metrics:     cfg.Metrics,
	}
	if err := s.lifecycle.Begin(); err != nil {
		return nil, err
	}
	return s, nil
}

// StreamID returns the session's stream identity.
func (s *Session) StreamID() string { return s.streamID }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.lifecycle.State() }

// Fail moves the session to ERROR. Returns false if already terminal.
func (s *Session) Fail() bool { return s.lifecycle.Fail() }

// ProcessAudio appends a PCM frame and drains every complete chunk through
// the transcription engine, returning the partial segments to emit, in
// segment id order. A transcription failure is fatal for the session and
// is returned to the caller untranslated; the caller maps it to a protocol
// error message.
func (s *Session) ProcessAudio(ctx context.Context, pcm []byte) ([]protocol.TranscriptSegment, error) {
	if err := s.lifecycle.AcceptAudio(); err != nil {
		return nil, err
	}
	if err := s.buffer.Append(pcm); err != nil {
		return nil, err
	}
	s.metrics.RecordAudioReceived(len(pcm))

	var out []protocol.TranscriptSegment
	for {
		chunk, ok := s.buffer.PopChunk()
		if !ok {
			break
		}
		segs, err := s.transcribeChunk(ctx, chunk, protocol.StatusPartial)
		if err != nil {
			return nil, err
		}
		out = append(out, segs...)
	}
	return out, nil
}

// Drain runs the terminal processing phase: flush the remainder, one final
// transcription pass, one whole-stream diarization, speaker assignment for
// every accumulated segment, and the consolidated transcript. Diarization
// unavailability degrades to unlabeled speakers; a transcription failure
// is fatal.
func (s *Session) Drain(ctx context.Context) (protocol.TranscriptCompleteMessage, error) {
	if err := s.lifecycle.BeginDrain(); err != nil {
		return protocol.TranscriptCompleteMessage{}, err
	}

	// Complete chunks first, then the sub-chunk remainder. Everything
	// produced during draining is final-only; it was never emitted as a
	// partial.
	for {
		chunk, ok := s.buffer.PopChunk()
		if !ok {
			break
		}
		if _, err := s.transcribeChunk(ctx, chunk, protocol.StatusFinal); err != nil {
			return protocol.TranscriptCompleteMessage{}, err
		}
	}
	if chunk, ok := s.buffer.Flush(); ok {
		if _, err := s.transcribeChunk(ctx, chunk, protocol.StatusFinal); err != nil {
			return protocol.TranscriptCompleteMessage{}, err
		}
	}

	turns := s.runDiarization(ctx)

	for i := range s.segments {
		s.segments[i].Status = protocol.StatusFinal
		s.segments[i].Speaker = nil
		if speaker := diarize.AssignSpeaker(s.segments[i].StartTime, s.segments[i].EndTime, turns); speaker != "" {
			label := speaker
			s.segments[i].Speaker = &label
		}
	}
	sort.Slice(s.segments, func(i, j int) bool {
		return s.segments[i].SegmentID < s.segments[j].SegmentID
	})

	if err := s.lifecycle.Complete(); err != nil {
		return protocol.TranscriptCompleteMessage{}, err
	}
	s.metrics.RecordFinalTranscript()
	return protocol.NewCompleteMessage(s.streamID, append([]protocol.TranscriptSegment(nil), s.segments...)), nil
}

// transcribeChunk runs one sequential transcription call and accumulates
// the produced segments with freshly assigned, never-reused ids.
func (s *Session) transcribeChunk(ctx context.Context, chunk audio.Chunk, status string) ([]protocol.TranscriptSegment, error) {
	timer := s.metrics.ChunkTranscribeTimer()
	results, err := s.transcriber.Transcribe(ctx, chunk.PCM, chunk.Offset, s.language)
	timer()
	if err != nil {
		return nil, fmt.Errorf("transcribe chunk at %.3fs: %w", chunk.Offset, err)
	}

	segments := make([]protocol.TranscriptSegment, 0, len(results))
	for _, r := range results {
		seg := protocol.TranscriptSegment{
			Status:     status,
			SegmentID:  s.nextSegmentID,
			StartTime:  r.StartTime,
			EndTime:    r.EndTime,
			Text:       r.Text,
			Confidence: r.Confidence,
		}
		s.nextSegmentID++
		s.segments = append(s.segments, seg)
		segments = append(segments, seg)
		if status == protocol.StatusPartial {
			s.metrics.RecordPartialSegment()
		}
	}
	return segments, nil
}

// runDiarization runs the single whole-stream diarization pass. Any engine
// failure degrades to an empty turn set.
func (s *Session) runDiarization(ctx context.Context) []diarize.Turn {
	if !s.diarize || s.diarizer == nil {
		return nil
	}
	timer := s.metrics.DiarizationTimer()
	turns, err := s.diarizer.Diarize(ctx, s.buffer.DiarizationAudio(), s.diarizeOpts)
	timer()
	if err != nil {
		s.metrics.RecordDiarizationFailure()
		s.log.Warn().Err(err).Msg("Diarization unavailable, transcript will be unlabeled")
		return nil
	}
	diarize.SortTurns(turns)
	return turns
}
