package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/matchday/go/internal/dbconfig"
)

// Match is one fixture from matches.json. Only the id matters to the clock.
type Match struct {
	ID       uuid.UUID `json:"id"`
	HomeTeam string    `json:"home_team"`
	AwayTeam string    `json:"away_team"`
	KickOff  string    `json:"kick_off"`
}

func main() {
	ctx := context.Background()

	// 1) Load matches.json
	path := "go/internal/assets/matches.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	var matches []Match
	if err := json.Unmarshal(data, &matches); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal matches: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Seed scheduled clocks
	now := time.Now().UTC()
	total, inserted, skipped, errs := len(matches), 0, 0, 0
	for _, m := range matches {
		tag, err := pool.Exec(ctx, `
            INSERT INTO match_clocks (
              match_id, status, current_minute, extra_time,
              is_timer_active, half_time_break, baseline_timestamp, version
            ) VALUES ($1, 'scheduled', 0, 0, false, false, $2, 1)
            ON CONFLICT (match_id) DO NOTHING
        `, m.ID, now)
		if err != nil {
			fmt.Fprintf(os.Stderr, "insert %s (%s v %s): %v\n", m.ID, m.HomeTeam, m.AwayTeam, err)
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	fmt.Printf(
		"Match clocks seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)
	if errs > 0 {
		os.Exit(1)
	}
}
