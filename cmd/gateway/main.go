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

	"github.com/damukelp/smart-transcriptor/internal/audio"
	"github.com/damukelp/smart-transcriptor/internal/config"
	"github.com/damukelp/smart-transcriptor/internal/gateway"
	"github.com/damukelp/smart-transcriptor/internal/observability"
	"github.com/damukelp/smart-transcriptor/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadGateway()
	logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     os.Getenv("LOG_FORMAT"),
		TimeFormat: time.RFC3339,
		Service:    "smart-transcriptor-gateway",
	})

	manager := gateway.NewManager(cfg.MaxSessions)
	server := gateway.NewServer(cfg, manager, audio.NewNormalizer(), logging.Logger())

	obs := observability.NewServer(cfg.ObservabilityAddr)
	obs.Start()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Int("maxSessions", cfg.MaxSessions).Msg("Gateway started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Gateway serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down gateway")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	_ = obs.Shutdown(ctx)
}
