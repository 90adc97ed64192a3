package engine

// ValidationError rejects bad input to a transition before any part of
// it is applied: player count out of range, an empty name, an unknown
// bonus-player id, a negative score.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// InvalidStateError rejects a transition attempted from the wrong
// lifecycle state (scoring before a game starts, swapping after it
// ends). The state is left unchanged.
type InvalidStateError struct {
	Op    string
	State string
}

func (e *InvalidStateError) Error() string {
	return e.Op + " not allowed while game is " + e.State
}

// lifecycle returns a short label for error messages.
func (g *GameState) lifecycle() string {
	switch {
	case g.IsGameOver:
		return "over"
	case g.IsGameActive:
		return "active"
	default:
		return "inactive"
	}
}
