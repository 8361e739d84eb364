// Package analysis requests a structured meeting summary from an
// OpenAI-compatible endpoint once a transcript is complete. It sits
// entirely outside the streaming core; failures are logged and dropped.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/damukelp/smart-transcriptor/internal/config"
	"github.com/damukelp/smart-transcriptor/internal/protocol"
)

const systemPrompt = `You are an expert meeting analyst.
Analyze the provided transcript and respond with valid JSON matching this schema:
{
  "summary": "string",
  "key_points": ["string"],
  "action_items": ["string"],
  "risks": [{"category": "string", "description": "string", "severity": "low | medium | high"}]
}
If no risks are found, return an empty risks array.`

// RiskItem is one flagged compliance or policy concern.
type RiskItem struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Result is the structured analysis of a finished transcript.
type Result struct {
	StreamID    string     `json:"stream_id"`
	Summary     string     `json:"summary"`
	KeyPoints   []string   `json:"key_points"`
	ActionItems []string   `json:"action_items"`
	Risks       []RiskItem `json:"risks"`
}

// Client calls the analysis model.
type Client struct {
	api   *openai.Client
	model string
	log   zerolog.Logger
}

// NewClient builds a client for the configured OpenAI-compatible endpoint
// (a local Ollama server in the default deployment).
func NewClient(cfg config.Analysis, logger zerolog.Logger) *Client {
	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = cfg.BaseURL
	return &Client{
		api:   openai.NewClientWithConfig(conf),
		model: cfg.Model,
		log:   logger.With().Str("component", "analysis").Logger(),
	}
}

// Analyze summarizes a completed transcript.
func (c *Client) Analyze(ctx context.Context, streamID string, segments []protocol.TranscriptSegment) (*Result, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: formatTranscript(segments)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analysis returned no choices")
	}

	var result Result
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		return nil, fmt.Errorf("analysis returned non-JSON content: %w", err)
	}
	result.StreamID = streamID
	return &result, nil
}

// formatTranscript renders segments as speaker-labeled lines.
func formatTranscript(segments []protocol.TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		speaker := "UNKNOWN"
		if seg.Speaker != nil {
			speaker = *seg.Speaker
		}
		fmt.Fprintf(&b, "[%.1f-%.1f] %s: %s\n", seg.StartTime, seg.EndTime, speaker, seg.Text)
	}
	return b.String()
}

// extractJSON strips any prose the model wrapped around the JSON object.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
