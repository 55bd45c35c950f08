// Package migrations embeds the Postgres schema for the match clock.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
