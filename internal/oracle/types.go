// Package oracle talks to the hosted vision model that reads board
// photos. The model is an untrusted collaborator: this package owns
// the JSON contract and the defensive sanitization of every score it
// returns, and nothing it produces reaches the turn engine unclamped.
package oracle

// Tile colors and shapes the model may report.
const (
	ColorRed    = "red"
	ColorOrange = "orange"
	ColorYellow = "yellow"
	ColorGreen  = "green"
	ColorBlue   = "blue"
	ColorPurple = "purple"

	ShapeCircle    = "circle"
	ShapeSquare    = "square"
	ShapeDiamond   = "diamond"
	ShapeStar      = "star"
	ShapeClover    = "clover"
	ShapeStarburst = "starburst"
)

// Tile is one physical tile as the model saw it.
type Tile struct {
	Color string `json:"color"`
	Shape string `json:"shape"`
}

// BoardLine is a run of tiles the model identified on the board.
type BoardLine struct {
	Direction string `json:"direction"` // "horizontal" or "vertical"
	Tiles     []Tile `json:"tiles"`
}

// ScoreResult is the auto-score answer: the points for the most
// recently played turn and the model's working.
type ScoreResult struct {
	Score   int    `json:"score"` // sanitized
	Details string `json:"details"`
}

// Suggestion is one recommended move.
type Suggestion struct {
	TilesToPlay     []Tile `json:"tilesToPlay"`
	TilesToPlayText string `json:"tilesToPlayText"`
	Placement       string `json:"placement"`
	Reasoning       string `json:"reasoning"`
	Score           int    `json:"score"` // sanitized
}

// MoveSuggestions is the best-move answer: what the model read off the
// two photos plus its ranked moves.
type MoveSuggestions struct {
	BoardLines  []BoardLine  `json:"boardLines"`
	PlayerTiles []Tile       `json:"playerTiles"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Error wraps a failed or unusable oracle exchange. It is retryable
// and never substitutes a default score for the user.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "oracle: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
