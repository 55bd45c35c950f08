package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/dbconfig"
	"github.com/mcdev12/matchday/go/internal/matchclock/channel"
	"github.com/mcdev12/matchday/go/internal/matchclock/outbox"
)

type closablePublisher interface {
	outbox.Publisher
	Close() error
}

func main() {
	// load .env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// configure zerolog console output and level
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := dbconfig.NewConfigFromEnv()
	db, err := dbconfig.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()
	log.Info().Str("database", cfg.Target()).Msg("connected to database")

	publisher, connected := newPublisher(ctx, getEnv("CHANNEL_BACKEND", "jetstream"))
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	store := outbox.NewRepository(db)
	relay := outbox.NewRelay(store, publisher, outbox.DefaultRelayConfig())

	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = cfg.DSN()
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			ltCfg.FallbackInterval = d
		}
	}

	listener, err := outbox.NewListener(relay, ltCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create outbox listener")
	}

	health := outbox.NewHealthChecker(relay, listener, store, db, connected, 2*ltCfg.FallbackInterval)
	mux := http.NewServeMux()
	mux.Handle("/health", health)
	server := &http.Server{
		Addr:              ":" + getEnv("RELAY_HEALTH_PORT", "8082"),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msg("starting outbox relay")
		errCh <- listener.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("listener exited unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown failed")
	}
	log.Info().Msg("graceful shutdown complete")
}

func newPublisher(ctx context.Context, backend string) (closablePublisher, func() bool) {
	switch backend {
	case "rabbitmq":
		rmqCfg := channel.DefaultRabbitMQConfig()
		rmqCfg.URL = getEnv("RABBITMQ_URL", rmqCfg.URL)
		publisher, err := channel.NewRabbitMQPublisher(rmqCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("create RabbitMQ publisher")
		}
		return publisher, nil
	case "jetstream":
		jsCfg := channel.DefaultJetStreamConfig()
		jsCfg.URL = getEnv("NATS_URL", jsCfg.URL)
		publisher, err := channel.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("create JetStream publisher")
		}
		return publisher, publisher.Connected
	default:
		log.Fatal().Str("backend", backend).Msg("unsupported channel backend for relay")
		return nil, nil
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
