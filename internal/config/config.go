// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Gateway holds configuration for the gateway service.
type Gateway struct {
	ListenAddr        string
	ObservabilityAddr string
	ASRURL            string
	MaxSessions       int
	DrainTimeout      time.Duration
	LogLevel          string
}

// ASR holds configuration for the transcription backend service.
type ASR struct {
	ListenAddr        string
	ObservabilityAddr string
	ChunkSeconds      float64
	WhisperEndpoint   string
	WhisperAPIKey     string
	WhisperTimeout    time.Duration
	DiarizerEndpoint  string
	ClusteringDefault float64
	STTProvider       string // "whisper" or "google"
	LogLevel          string

	Kafka    Kafka
	Analysis Analysis
}

// Kafka holds event publishing configuration.
type Kafka struct {
	Enabled       bool
	Brokers       []string
	TopicSegments string
	TopicComplete string
	Principal     string
}

// Analysis holds the post-transcript meeting analysis configuration.
type Analysis struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Model   string
}

// LoadGateway reads gateway settings from the environment.
func LoadGateway() *Gateway {
	return &Gateway{
		ListenAddr:        envStr("GATEWAY_ADDR", ":8000"),
		ObservabilityAddr: envStr("GATEWAY_OBS_ADDR", ":9090"),
		ASRURL:            envStr("GATEWAY_ASR_WS_URL", "ws://asr:8001/stream"),
		MaxSessions:       envInt("GATEWAY_MAX_SESSIONS", 10),
		DrainTimeout:      envDur("GATEWAY_DRAIN_TIMEOUT_MS", 0),
		LogLevel:          envStr("LOG_LEVEL", "info"),
	}
}

// LoadASR reads ASR backend settings from the environment.
func LoadASR() *ASR {
	return &ASR{
		ListenAddr:        envStr("ASR_ADDR", ":8001"),
		ObservabilityAddr: envStr("ASR_OBS_ADDR", ":9091"),
		ChunkSeconds:      envFloat("ASR_CHUNK_DURATION_S", 3.0),
		WhisperEndpoint:   envStr("ASR_WHISPER_ENDPOINT", "http://whisper:9000/transcribe"),
		WhisperAPIKey:     envStr("ASR_WHISPER_API_KEY", ""),
		WhisperTimeout:    envDur("ASR_WHISPER_TIMEOUT_MS", 60000),
		DiarizerEndpoint:  envStr("ASR_DIARIZER_ENDPOINT", ""),
		ClusteringDefault: envFloat("ASR_DIARIZE_CLUSTERING_THRESHOLD", 0.55),
		STTProvider:       envStr("ASR_STT_PROVIDER", "whisper"),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		Kafka: Kafka{
			Enabled:       envBool("KAFKA_ENABLED", false),
			Brokers:       envList("KAFKA_BROKERS"),
			TopicSegments: envStr("KAFKA_TOPIC_SEGMENTS", "transcript.segments"),
			TopicComplete: envStr("KAFKA_TOPIC_COMPLETE", "transcript.complete"),
			Principal:     envStr("KAFKA_PRINCIPAL", "svc-smart-transcriptor"),
		},
		Analysis: Analysis{
			Enabled: envBool("ANALYSIS_ENABLED", false),
			BaseURL: envStr("ANALYSIS_BASE_URL", "http://localhost:11434/v1"),
			APIKey:  envStr("ANALYSIS_API_KEY", "ollama"),
			Model:   envStr("ANALYSIS_MODEL", "phi3"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallbackMs int) time.Duration {
	return time.Duration(envInt(key, fallbackMs)) * time.Millisecond
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
