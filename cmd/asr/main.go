package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/damukelp/smart-transcriptor/internal/analysis"
	"github.com/damukelp/smart-transcriptor/internal/asr"
	"github.com/damukelp/smart-transcriptor/internal/config"
	"github.com/damukelp/smart-transcriptor/internal/diarize"
	"github.com/damukelp/smart-transcriptor/internal/events"
	"github.com/damukelp/smart-transcriptor/internal/observability"
	"github.com/damukelp/smart-transcriptor/internal/observability/logging"
	"github.com/damukelp/smart-transcriptor/internal/transcribe"
	googlestt "github.com/damukelp/smart-transcriptor/internal/transcribe/google"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadASR()
	logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     os.Getenv("LOG_FORMAT"),
		TimeFormat: time.RFC3339,
		Service:    "smart-transcriptor-asr",
	})

	// Engine handles are built once here and injected into every session.
	transcriber := buildTranscriber(cfg)
	diarizer := buildDiarizer(cfg)

	publisher := events.New(cfg.Kafka)
	defer publisher.Close()

	var analyzer *analysis.Client
	if cfg.Analysis.Enabled {
		analyzer = analysis.NewClient(cfg.Analysis, logging.Logger())
	}

	server := asr.NewServer(cfg, transcriber, diarizer, publisher, analyzer, logging.Logger())

	obs := observability.NewServer(cfg.ObservabilityAddr)
	obs.Start()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("sttProvider", cfg.STTProvider).Msg("ASR service started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ASR serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down ASR service")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	_ = obs.Shutdown(ctx)
}

func buildTranscriber(cfg *config.ASR) transcribe.Engine {
	switch cfg.STTProvider {
	case "google":
		adapter, err := googlestt.New(context.Background(), "")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Google STT adapter")
		}
		return adapter
	default:
		client, err := transcribe.NewWhisperClient(transcribe.WhisperConfig{
			Endpoint: cfg.WhisperEndpoint,
			APIKey:   cfg.WhisperAPIKey,
			Timeout:  cfg.WhisperTimeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create whisper client")
		}
		return client
	}
}

func buildDiarizer(cfg *config.ASR) diarize.Engine {
	if cfg.DiarizerEndpoint == "" {
		log.Info().Msg("No diarizer endpoint configured, transcripts will be unlabeled")
		return nil
	}
	client, err := diarize.NewHTTPClient(diarize.HTTPConfig{Endpoint: cfg.DiarizerEndpoint})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create diarization client")
	}
	return client
}
