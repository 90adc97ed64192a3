// Package store persists game documents: the single active-game slot
// per user, overwritten in place, and the append-only history of
// completed games. Game state travels as a JSONB document; the store
// knows nothing about the rules inside it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mrbrentonwest/qwirkle-companion/internal/engine"
)

// PersistenceError wraps any remote read/write/delete failure. Callers
// log and surface it as a non-fatal warning; local state stays
// authoritative.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persistence: " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// StoredGame is the active-slot document: game state plus
// server-observed timestamps.
type StoredGame struct {
	State     engine.GameState `json:"state"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// ArchivedGame is one completed game in the per-user history.
type ArchivedGame struct {
	ID          uuid.UUID        `json:"id"`
	State       engine.GameState `json:"state"`
	CreatedAt   time.Time        `json:"createdAt"`
	CompletedAt time.Time        `json:"completedAt"`
}

// Store reads and writes game documents in Postgres.
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// SaveActive upserts the active slot. The original creation timestamp
// survives updates; only updated_at refreshes.
func (s *Store) SaveActive(ctx context.Context, userID string, state engine.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return wrap("encode active game", err)
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO active_games (user_id, data)
VALUES ($1, $2)
ON CONFLICT (user_id)
DO UPDATE SET data = EXCLUDED.data, updated_at = now();
`, userID, data)
	return wrap("save active game", err)
}

// LoadActive returns the active slot, or nil when the user has none.
func (s *Store) LoadActive(ctx context.Context, userID string) (*StoredGame, error) {
	var (
		data      []byte
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.db.QueryRow(ctx, `
SELECT data, created_at, updated_at FROM active_games WHERE user_id = $1;
`, userID).Scan(&data, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("load active game", err)
	}

	var state engine.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, wrap("decode active game", err)
	}
	return &StoredGame{State: state, CreatedAt: createdAt, UpdatedAt: updatedAt}, nil
}

// ClearActive deletes the slot. Deleting a missing slot is not an
// error.
func (s *Store) ClearActive(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM active_games WHERE user_id = $1;`, userID)
	return wrap("clear active game", err)
}

// Archive appends an immutable completed-game record. createdAt is the
// active slot's original creation time, carried over so history shows
// when the game was started, not just finished.
func (s *Store) Archive(ctx context.Context, userID string, state engine.GameState, createdAt time.Time) (uuid.UUID, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return uuid.Nil, wrap("encode archived game", err)
	}

	id := uuid.New()
	_, err = s.db.Exec(ctx, `
INSERT INTO game_history (id, user_id, data, created_at)
VALUES ($1, $2, $3, $4);
`, id, userID, data, createdAt)
	if err != nil {
		return uuid.Nil, wrap("archive game", err)
	}
	return id, nil
}

// ListHistory returns the user's completed games, most recent first.
func (s *Store) ListHistory(ctx context.Context, userID string) ([]ArchivedGame, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, data, created_at, completed_at
FROM game_history
WHERE user_id = $1
ORDER BY completed_at DESC;
`, userID)
	if err != nil {
		return nil, wrap("list history", err)
	}
	defer rows.Close()

	var games []ArchivedGame
	for rows.Next() {
		var (
			g    ArchivedGame
			data []byte
		)
		if err := rows.Scan(&g.ID, &data, &g.CreatedAt, &g.CompletedAt); err != nil {
			return nil, wrap("scan history row", err)
		}
		if err := json.Unmarshal(data, &g.State); err != nil {
			return nil, wrap("decode archived game", err)
		}
		games = append(games, g)
	}
	return games, wrap("list history", rows.Err())
}
