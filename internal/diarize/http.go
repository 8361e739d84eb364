package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/damukelp/smart-transcriptor/internal/audio"
)

// HTTPConfig configures the diarization sidecar client.
type HTTPConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// HTTPClient talks to a pyannote diarization sidecar over HTTP. The whole
// recording is uploaded as one WAV file at end of stream.
type HTTPClient struct {
	config     HTTPConfig
	httpClient *http.Client
}

// NewHTTPClient creates a diarization client for the given endpoint.
func NewHTTPClient(config HTTPConfig) (*HTTPClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("diarization endpoint cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	return &HTTPClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Diarize implements Engine.
func (c *HTTPClient) Diarize(ctx context.Context, pcm []byte, opts Options) ([]Turn, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	wav, err := audio.EncodeWAV(pcm, audio.TargetSampleRate)
	if err != nil {
		return nil, fmt.Errorf("encode recording: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "recording.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}
	if opts.MinSpeakers > 0 {
		_ = writer.WriteField("min_speakers", strconv.Itoa(opts.MinSpeakers))
	}
	if opts.MaxSpeakers > 0 {
		_ = writer.WriteField("max_speakers", strconv.Itoa(opts.MaxSpeakers))
	}
	if opts.ClusteringThreshold > 0 {
		_ = writer.WriteField("clustering_threshold", strconv.FormatFloat(opts.ClusteringThreshold, 'f', -1, 64))
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

	return decodeTurns(respBody)
}

// Engine versions differ in their result shape: newer servers return a
// "turns" list, older ones a "segments" list with different field names.
// Both are translated here, at the boundary, into []Turn; nothing deeper
// in the pipeline branches on wire shape.
type turnsResponse struct {
	Turns []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Speaker string  `json:"speaker"`
	} `json:"turns"`
	Segments []struct {
		StartTime    float64 `json:"start_time"`
		EndTime      float64 `json:"end_time"`
		SpeakerLabel string  `json:"speaker_label"`
	} `json:"segments"`
}

func decodeTurns(raw []byte) ([]Turn, error) {
	var parsed turnsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse diarization response: %w", err)
	}

	turns := make([]Turn, 0, len(parsed.Turns)+len(parsed.Segments))
	for _, t := range parsed.Turns {
		turns = append(turns, Turn{StartTime: t.Start, EndTime: t.End, Speaker: t.Speaker})
	}
	for _, s := range parsed.Segments {
		turns = append(turns, Turn{StartTime: s.StartTime, EndTime: s.EndTime, Speaker: s.SpeakerLabel})
	}
	SortTurns(turns)
	return turns, nil
}
