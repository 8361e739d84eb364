package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/damukelp/smart-transcriptor/internal/audio"
)

// WhisperConfig configures the whisper inference HTTP client.
type WhisperConfig struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// WhisperClient talks to a faster-whisper inference server over HTTP.
// Chunks are uploaded as WAV files; the server returns per-segment text
// with chunk-local timestamps, which the client shifts by the chunk offset.
type WhisperClient struct {
	config     WhisperConfig
	httpClient *http.Client
}

// whisperResponse is the inference server's wire shape.
type whisperResponse struct {
	Segments []struct {
		Text       string  `json:"text"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// NewWhisperClient creates a transcription client for the given endpoint.
func NewWhisperClient(config WhisperConfig) (*WhisperClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("whisper endpoint cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 2
	}
	return &WhisperClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Transcribe implements Engine.
func (c *WhisperClient) Transcribe(ctx context.Context, pcm []byte, offset float64, language string) ([]Segment, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	wav, err := audio.EncodeWAV(pcm, audio.TargetSampleRate)
	if err != nil {
		return nil, fmt.Errorf("encode chunk: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		segments, err := c.doRequest(ctx, wav, offset, language)
		if err == nil {
			return segments, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("transcription failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *WhisperClient) doRequest(ctx context.Context, wav []byte, offset float64, language string) ([]Segment, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return nil, fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed whisperResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	segments := make([]Segment, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		segments = append(segments, Segment{
			Text:       seg.Text,
			StartTime:  round3(offset + seg.Start),
			EndTime:    round3(offset + seg.End),
			Confidence: round4(seg.AvgLogprob),
		})
	}
	return segments, nil
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
