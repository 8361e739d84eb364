// Package google provides a Google Cloud Speech-to-Text transcription engine.
package google

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/damukelp/smart-transcriptor/internal/audio"
	"github.com/damukelp/smart-transcriptor/internal/transcribe"
)

// Adapter implements transcribe.Engine using the synchronous Recognize API,
// one call per chunk. Word time offsets are requested so segment boundaries
// can be placed inside the chunk rather than spanning it.
//
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type Adapter struct {
	client          *speech.Client
	defaultLanguage string
}

// New creates a Google STT adapter.
func New(ctx context.Context, defaultLanguage string) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if defaultLanguage == "" {
		defaultLanguage = "en-US"
	}
	return &Adapter{client: c, defaultLanguage: defaultLanguage}, nil
}

// Transcribe implements transcribe.Engine.
func (a *Adapter) Transcribe(ctx context.Context, pcm []byte, offset float64, language string) ([]transcribe.Segment, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	if language == "" {
		language = a.defaultLanguage
	}

	resp, err := a.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:              speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:       audio.TargetSampleRate,
			LanguageCode:          language,
			EnableWordTimeOffsets: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("google recognize: %w", err)
	}

	chunkSeconds := float64(len(pcm)/audio.BytesPerSample) / float64(audio.TargetSampleRate)
	var segments []transcribe.Segment
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		alt := result.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}
		start, end := 0.0, chunkSeconds
		if n := len(alt.Words); n > 0 {
			start = alt.Words[0].StartTime.AsDuration().Seconds()
			end = alt.Words[n-1].EndTime.AsDuration().Seconds()
		}
		segments = append(segments, transcribe.Segment{
			Text:       alt.Transcript,
			StartTime:  offset + start,
			EndTime:    offset + end,
			Confidence: float64(alt.Confidence),
		})
	}
	return segments, nil
}

// Close releases the underlying gRPC connection.
func (a *Adapter) Close() error {
	return a.client.Close()
}
