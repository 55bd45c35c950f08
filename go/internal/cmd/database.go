package main

import (
	"context"
	"database/sql"

	"github.com/mcdev12/matchday/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

func setupDatabase(ctx context.Context) (*sql.DB, error) {
	cfg := dbconfig.NewConfigFromEnv()

	database, err := dbconfig.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("database", cfg.Target()).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("connected to database")
	return database, nil
}
