// Package database owns the Postgres connection pool and schema.
package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// NewPool connects and pings within a short timeout.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies the idempotent schema: one active-game slot per user,
// overwritten in place, and an append-only history of completed games.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	const activeGames = `
CREATE TABLE IF NOT EXISTS active_games (
    user_id    TEXT PRIMARY KEY,
    data       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

	const gameHistory = `
CREATE TABLE IF NOT EXISTS game_history (
    id           UUID PRIMARY KEY,
    user_id      TEXT NOT NULL,
    data         JSONB NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

	const gameHistoryIdx = `
CREATE INDEX IF NOT EXISTS game_history_user_completed_idx
    ON game_history (user_id, completed_at DESC);
`

	for _, ddl := range []string{activeGames, gameHistory, gameHistoryIdx} {
		if _, err := db.Exec(ctx, ddl); err != nil {
			return err
		}
	}

	logrus.Info("database migrations applied")
	return nil
}
