package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/matchclock"
	"github.com/mcdev12/matchday/go/internal/matchclock/projector"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	// Logs go to stderr so the clock line on stdout stays clean.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "warn"))
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	matchID, err := uuid.Parse(os.Getenv("MATCH_ID"))
	if err != nil {
		log.Fatal().Err(err).Msg("MATCH_ID must be a match uuid")
	}

	baseURL := getEnv("GATEWAY_URL", "http://localhost:8080")
	httpClient := &http.Client{Timeout: 10 * time.Second}

	var source projector.Source
	switch mode := getEnv("PROJECTOR_SOURCE", "websocket"); mode {
	case "websocket":
		source = projector.NewRemoteSource(baseURL, httpClient)
	case "connect":
		// Streams outlive any client timeout.
		source = projector.NewConnectSource(matchclock.NewClient(&http.Client{}, baseURL))
	default:
		log.Fatal().Str("source", mode).Msg("unsupported projector source")
	}

	p := projector.New(source, matchID, projector.DefaultConfig(), projector.WithRenderer(func(v projector.View) {
		fmt.Printf("\r%-12s", v.Display)
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("match_id", matchID.String()).
		Str("gateway", baseURL).
		Msg("following match clock")

	if err := p.Run(ctx); err != nil {
		log.Error().Err(err).Msg("projector stopped")
	}
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
