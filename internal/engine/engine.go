package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewGame validates the roster and returns a fresh active game:
// empty ledgers, round 1, first player to act.
func NewGame(names []string) (*GameState, error) {
	if len(names) < MinPlayers || len(names) > MaxPlayers {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("player count must be between %d and %d, got %d", MinPlayers, MaxPlayers, len(names)),
		}
	}

	players := make([]PlayerState, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, &ValidationError{Reason: fmt.Sprintf("player %d has an empty name", i+1)}
		}
		players[i] = PlayerState{
			ID:     uuid.NewString(),
			Name:   name,
			Scores: []TurnRecord{},
		}
	}

	return &GameState{
		Players:            players,
		CurrentPlayerIndex: 0,
		Round:              1,
		IsGameActive:       true,
		IsGameOver:         false,
	}, nil
}

// AddScore appends a turn record for the current player and passes
// play to the next one. The round counter increments exactly when the
// player index wraps back to the first seat. Valid only while the game
// is active; on error the state is untouched.
func (g *GameState) AddScore(score int, kind ScoreKind) error {
	if !g.IsGameActive || g.IsGameOver {
		return &InvalidStateError{Op: "addScore", State: g.lifecycle()}
	}
	if score < 0 {
		return &ValidationError{Reason: fmt.Sprintf("score must be >= 0, got %d", score)}
	}

	rec := NewTurnRecord(g.Round, score, kind)
	g.Players[g.CurrentPlayerIndex] = appendRecord(g.Players[g.CurrentPlayerIndex], rec)

	g.CurrentPlayerIndex = (g.CurrentPlayerIndex + 1) % len(g.Players)
	if g.CurrentPlayerIndex == 0 {
		g.Round++
	}
	return nil
}

// SwapTiles records a zero-score swap turn. Always legal while active;
// the turn still passes.
func (g *GameState) SwapTiles() error {
	return g.AddScore(0, KindSwap)
}

// EndGame moves the game to its terminal state. A non-empty
// bonusPlayerID credits that player the went-out-first bonus for the
// current round before the transition; an unknown id rejects the call
// and the game stays active.
func (g *GameState) EndGame(bonusPlayerID string) error {
	if !g.IsGameActive || g.IsGameOver {
		return &InvalidStateError{Op: "endGame", State: g.lifecycle()}
	}

	if bonusPlayerID != "" {
		idx := g.playerIndex(bonusPlayerID)
		if idx < 0 {
			return &ValidationError{Reason: "unknown bonus player id " + bonusPlayerID}
		}
		rec := NewTurnRecord(g.Round, EndGameBonus, KindBonus)
		g.Players[idx] = appendRecord(g.Players[idx], rec)
	}

	g.IsGameActive = false
	g.IsGameOver = true
	return nil
}
