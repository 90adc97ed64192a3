// Package engine implements the Qwirkle companion's turn and score
// state machine.
//
// The package is pure: transitions either fully apply or leave the
// receiver untouched, nothing here performs I/O, and the whole game
// state is a plain value that can be deep-copied cheaply. Persistence,
// notifications and AI helpers live in the service layers on top.
package engine

// QwirkleThreshold is the turn score at and above which a turn counts
// as a Qwirkle (a completed 6-tile line: 6 points plus the 6-point
// bonus in the physical game).
const QwirkleThreshold = 12

// EndGameBonus is awarded to the player who goes out first.
const EndGameBonus = 6

// Player count bounds, fixed once a game starts.
const (
	MinPlayers = 2
	MaxPlayers = 4
)

// ScoreKind tags how a turn's score entered the tracker.
type ScoreKind string

const (
	KindManual           ScoreKind = "manual"
	KindOracleScore      ScoreKind = "oracle-score"
	KindOracleSuggestion ScoreKind = "oracle-suggestion"
	KindSwap             ScoreKind = "swap"
	KindBonus            ScoreKind = "bonus"
)

// TurnRecord is one scoring event. Records are append-only and never
// mutated after creation.
type TurnRecord struct {
	TurnNumber int       `json:"turnNumber"` // round in which the turn occurred
	Score      int       `json:"score"`
	IsQwirkle  bool      `json:"isQwirkle"`
	Kind       ScoreKind `json:"kind"`
}

// NewTurnRecord builds a record for the given round. The IsQwirkle flag
// is derived from the score here and nowhere else.
func NewTurnRecord(round, score int, kind ScoreKind) TurnRecord {
	return TurnRecord{
		TurnNumber: round,
		Score:      score,
		IsQwirkle:  score >= QwirkleThreshold,
		Kind:       kind,
	}
}

// PlayerState is one participant. TotalScore is always the sum of
// Scores; it is recomputed on every append and never set directly.
type PlayerState struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Scores     []TurnRecord `json:"scores"`
	TotalScore int          `json:"totalScore"`
}

// Clone returns a deep copy of the player, including the score ledger.
func (p PlayerState) Clone() PlayerState {
	cp := p
	cp.Scores = make([]TurnRecord, len(p.Scores))
	copy(cp.Scores, p.Scores)
	return cp
}

// GameState is the whole match. The player roster is fixed from
// creation until the game ends; only the score ledgers mutate.
type GameState struct {
	Players            []PlayerState `json:"players"`
	CurrentPlayerIndex int           `json:"currentPlayerIndex"`
	Round              int           `json:"round"`
	IsGameActive       bool          `json:"isGameActive"`
	IsGameOver         bool          `json:"isGameOver"`
}

// Clone returns a deep copy sharing no slices with the receiver.
func (g GameState) Clone() GameState {
	cp := g
	cp.Players = make([]PlayerState, len(g.Players))
	for i, p := range g.Players {
		cp.Players[i] = p.Clone()
	}
	return cp
}

// CurrentPlayer returns the player whose turn it is.
func (g *GameState) CurrentPlayer() PlayerState {
	return g.Players[g.CurrentPlayerIndex]
}

// playerIndex returns the roster index for id, or -1.
func (g *GameState) playerIndex(id string) int {
	for i := range g.Players {
		if g.Players[i].ID == id {
			return i
		}
	}
	return -1
}
