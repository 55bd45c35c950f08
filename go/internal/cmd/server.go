package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/matchday/go/internal/matchclock"
)

func setupServer(config *Config, services *Services) *http.Server {
	router := mux.NewRouter()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerServices(router, services)
	setupHealthCheck(router, config, services)

	handler := c.Handler(router)

	// HTTP/2 without TLS so connect streaming works for local clients.
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Server.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerServices(router *mux.Router, services *Services) {
	// Register match clock RPC service
	path, handler := matchclock.NewServiceHandler(services.MatchClock)
	router.PathPrefix(path).Handler(handler)

	// Register gateway REST and WebSocket routes
	services.Gateway.RegisterRoutes(router)
}

func setupHealthCheck(router *mux.Router, config *Config, services *Services) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]interface{}{
			"status":  "ok",
			"store":   config.Store.Backend,
			"channel": config.Channel.Backend,
			"broker":  services.Broker.Stats(),
		}

		if services.Database != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := services.Database.PingContext(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body["error"] = err.Error()
			}
		}

		writeJSON(w, status, body)
	}).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
