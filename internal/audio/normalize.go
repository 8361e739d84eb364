package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// TargetSampleRate is the canonical sample rate everything downstream of
// the gateway expects.
const TargetSampleRate = 16000

// Normalizer converts client audio in its declared format to canonical
// 16 kHz mono 16-bit PCM. Stateless.
type Normalizer interface {
	Normalize(ctx context.Context, data []byte, sampleRate, channels int, encoding string) ([]byte, error)
}

// FFmpegNormalizer shells out to ffmpeg for anything that is not already
// canonical PCM. Conversion failure is fatal for the session, the audio
// downstream would be unusable.
type FFmpegNormalizer struct {
	// Binary overrides the ffmpeg executable name, for tests.
	Binary string
}

func NewNormalizer() *FFmpegNormalizer {
	return &FFmpegNormalizer{Binary: "ffmpeg"}
}

func (n *FFmpegNormalizer) Normalize(ctx context.Context, data []byte, sampleRate, channels int, encoding string) ([]byte, error) {
	if sampleRate == TargetSampleRate && channels == 1 && encoding == "pcm_s16le" {
		return data, nil
	}

	cmd := exec.CommandContext(ctx, n.Binary,
		"-hide_banner", "-loglevel", "error",
		"-f", ffmpegFormat(encoding),
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(TargetSampleRate),
		"-ac", "1",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg normalize (%s): %w: %s", encoding, err, stderr.String())
	}
	return out.Bytes(), nil
}

// ffmpegFormat maps a declared wire encoding to an ffmpeg input format.
func ffmpegFormat(encoding string) string {
	switch encoding {
	case "pcm_s16le":
		return "s16le"
	case "pcm_f32le":
		return "f32le"
	case "wav":
		return "wav"
	case "ogg":
		return "ogg"
	case "mp3":
		return "mp3"
	default:
		return "s16le"
	}
}
