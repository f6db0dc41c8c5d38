package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/letscooee/cooee-go/internal/devserver"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/devserver.yaml"
	}

	cfg, err := devserver.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log.Info().Msg("Starting Cooee dev server...")

	tokens := devserver.NewTokenStore(cfg.Redis, cfg.Apps.TokenTTL, cfg.RateLimit.RequestsPerSecond)
	defer tokens.Close()

	enricher := devserver.NewEnricher(cfg.GeoIP.DatabasePath)
	defer enricher.Close()
	log.Info().Msg("Enricher initialized")

	forwarder := devserver.NewForwarder(cfg.Kafka)
	defer forwarder.Close()
	if len(cfg.Kafka.Brokers) > 0 {
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Kafka forwarder initialized")
	} else {
		log.Info().Msg("No Kafka brokers configured, records will be logged")
	}

	srv := devserver.NewServer(cfg, tokens, enricher, forwarder)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: srv.Router(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.HTTPPort).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	httpServer.Shutdown(context.Background())
	log.Info().Msg("Server stopped")
}
