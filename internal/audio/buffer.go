// Package audio provides PCM buffering, chunk extraction and format
// handling for stream sessions. All audio at this layer is canonical
// 16 kHz mono signed 16-bit little-endian PCM.
package audio

import (
	"fmt"
	"sync"
)

// BytesPerSample is the width of one canonical PCM sample.
const BytesPerSample = 2

// Chunk is a slice of buffered audio handed to the transcription engine.
// Offset is the absolute stream time, in seconds, at which the chunk begins.
type Chunk struct {
	PCM    []byte
	Offset float64
}

// Duration returns the chunk length in seconds at the given sample rate.
func (c Chunk) Duration(sampleRate int) float64 {
	return float64(len(c.PCM)/BytesPerSample) / float64(sampleRate)
}

// Buffer owns one stream's audio. It slices the primary buffer into
// fixed-duration chunks for transcription and keeps a parallel buffer
// accumulating the entire stream for end-of-stream diarization.
//
// Conservation invariant: every sample appended is eventually returned by
// exactly one PopChunk or Flush call; offsets are contiguous from zero.
type Buffer struct {
	mu sync.Mutex

	sampleRate  int
	chunkBytes  int
	pcm         []byte // pending, not yet chunked
	diarization []byte // whole stream, never trimmed
	consumed    int64  // samples already returned via PopChunk/Flush
	flushed     bool
}

// NewBuffer creates a buffer producing chunks of chunkSeconds duration.
func NewBuffer(sampleRate int, chunkSeconds float64) *Buffer {
	samples := int(chunkSeconds * float64(sampleRate))
	return &Buffer{
		sampleRate: sampleRate,
		chunkBytes: samples * BytesPerSample,
		pcm:        make([]byte, 0, samples*BytesPerSample*2),
	}
}

// Append adds raw PCM to both the primary and the diarization buffer.
// Samples are never dropped or reordered.
func (b *Buffer) Append(pcm []byte) error {
	if len(pcm)%BytesPerSample != 0 {
		return fmt.Errorf("audio frame length must be even, got %d bytes", len(pcm))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pcm = append(b.pcm, pcm...)
	b.diarization = append(b.diarization, pcm...)
	return nil
}

// HasChunk reports whether at least one complete chunk is buffered.
func (b *Buffer) HasChunk() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pcm) >= b.chunkBytes
}

// PopChunk removes one chunk-size slice from the front of the buffer and
// returns it with the absolute offset at which it begins. Callers drain all
// complete chunks by looping while HasChunk holds.
func (b *Buffer) PopChunk() (Chunk, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pcm) < b.chunkBytes {
		return Chunk{}, false
	}
	return b.pop(b.chunkBytes), true
}

// Flush returns any remainder shorter than a full chunk and clears the
// buffer. It returns false if nothing is pending. Called once, at stream end.
func (b *Buffer) Flush() (Chunk, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushed = true
	if len(b.pcm) == 0 {
		return Chunk{}, false
	}
	return b.pop(len(b.pcm)), true
}

// pop extracts n leading bytes. Caller holds b.mu.
func (b *Buffer) pop(n int) Chunk {
	chunk := Chunk{
		PCM:    append([]byte(nil), b.pcm[:n]...),
		Offset: float64(b.consumed) / float64(b.sampleRate),
	}
	b.pcm = b.pcm[n:]
	b.consumed += int64(n / BytesPerSample)
	return chunk
}

// DiarizationAudio returns the accumulated whole-stream audio. Diarization
// runs once over the complete recording, so the buffer is never windowed.
func (b *Buffer) DiarizationAudio() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.diarization
}

// PendingSamples returns the number of samples not yet chunked.
func (b *Buffer) PendingSamples() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pcm) / BytesPerSample
}

// ConsumedSeconds returns the total duration already returned as chunks.
func (b *Buffer) ConsumedSeconds() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.consumed) / float64(b.sampleRate)
}
