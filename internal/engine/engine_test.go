package engine

import (
	"errors"
	"testing"
)

// helper: start a game or fail the test.
func mustNewGame(t *testing.T, names ...string) *GameState {
	t.Helper()
	g, err := NewGame(names)
	if err != nil {
		t.Fatalf("NewGame(%v) failed: %v", names, err)
	}
	return g
}

// checkTotals verifies the ledger invariant: every player's TotalScore
// equals the sum of its records.
func checkTotals(t *testing.T, g *GameState) {
	t.Helper()
	for _, p := range g.Players {
		sum := 0
		for _, r := range p.Scores {
			sum += r.Score
		}
		if sum != p.TotalScore {
			t.Errorf("player %s: totalScore %d != ledger sum %d", p.Name, p.TotalScore, sum)
		}
	}
}

func TestNewGameValid(t *testing.T) {
	for _, names := range [][]string{
		{"Alice", "Bob"},
		{"Alice", "Bob", "Carol"},
		{"Alice", "Bob", "Carol", "Dave"},
	} {
		g := mustNewGame(t, names...)
		if len(g.Players) != len(names) {
			t.Fatalf("expected %d players, got %d", len(names), len(g.Players))
		}
		if g.Round != 1 || g.CurrentPlayerIndex != 0 {
			t.Errorf("expected round 1, index 0; got round %d, index %d", g.Round, g.CurrentPlayerIndex)
		}
		if !g.IsGameActive || g.IsGameOver {
			t.Errorf("new game should be active and not over")
		}
		for i, p := range g.Players {
			if p.TotalScore != 0 || len(p.Scores) != 0 {
				t.Errorf("player %d should start with empty ledger", i)
			}
			if p.ID == "" {
				t.Errorf("player %d has no id", i)
			}
		}
	}
}

func TestNewGameRejectsBadRosters(t *testing.T) {
	cases := [][]string{
		{},
		{"Solo"},
		{"A", "B", "C", "D", "E"},
		{"Alice", "   "},
		{"Alice", ""},
	}
	for _, names := range cases {
		if _, err := NewGame(names); err == nil {
			t.Errorf("NewGame(%v) should have failed", names)
		} else {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("NewGame(%v): expected ValidationError, got %T", names, err)
			}
		}
	}
}

func TestNewGameTrimsNames(t *testing.T) {
	g := mustNewGame(t, "  Alice ", "Bob")
	if g.Players[0].Name != "Alice" {
		t.Errorf("expected trimmed name Alice, got %q", g.Players[0].Name)
	}
}

func TestAddScoreRotationAndRounds(t *testing.T) {
	g := mustNewGame(t, "A", "B", "C")

	// One full cycle returns to seat 0 and bumps the round once.
	for i := 0; i < 3; i++ {
		if g.CurrentPlayerIndex != i {
			t.Fatalf("turn %d: expected index %d, got %d", i, i, g.CurrentPlayerIndex)
		}
		if err := g.AddScore(i+1, KindManual); err != nil {
			t.Fatalf("AddScore: %v", err)
		}
		checkTotals(t, g)
	}
	if g.CurrentPlayerIndex != 0 {
		t.Errorf("expected wrap to index 0, got %d", g.CurrentPlayerIndex)
	}
	if g.Round != 2 {
		t.Errorf("expected round 2 after full cycle, got %d", g.Round)
	}

	// Mid-round the counter must not move.
	if err := g.AddScore(5, KindManual); err != nil {
		t.Fatalf("AddScore: %v", err)
	}
	if g.Round != 2 {
		t.Errorf("round must only increment on wrap, got %d", g.Round)
	}
}

func TestAddScoreQwirkleFlag(t *testing.T) {
	for _, tc := range []struct {
		score   int
		qwirkle bool
	}{
		{0, false},
		{11, false},
		{12, true},
		{24, true},
	} {
		g := mustNewGame(t, "A", "B")
		if err := g.AddScore(tc.score, KindManual); err != nil {
			t.Fatalf("AddScore(%d): %v", tc.score, err)
		}
		rec := g.Players[0].Scores[0]
		if rec.IsQwirkle != tc.qwirkle {
			t.Errorf("score %d: isQwirkle = %v, want %v", tc.score, rec.IsQwirkle, tc.qwirkle)
		}
	}
}

func TestAddScoreRejectsNegative(t *testing.T) {
	g := mustNewGame(t, "A", "B")
	before := g.Clone()
	err := g.AddScore(-1, KindManual)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	assertStatesEqual(t, before, *g)
}

func TestSwapTilesAdvancesWithZeroScore(t *testing.T) {
	g := mustNewGame(t, "A", "B")
	if err := g.SwapTiles(); err != nil {
		t.Fatalf("SwapTiles: %v", err)
	}
	rec := g.Players[0].Scores[0]
	if rec.Score != 0 || rec.Kind != KindSwap || rec.IsQwirkle {
		t.Errorf("unexpected swap record %+v", rec)
	}
	if g.CurrentPlayerIndex != 1 {
		t.Errorf("swap must pass the turn, index = %d", g.CurrentPlayerIndex)
	}
	checkTotals(t, g)
}

func TestEndGameWithBonus(t *testing.T) {
	g := mustNewGame(t, "A", "B")
	bonusID := g.Players[1].ID

	if err := g.EndGame(bonusID); err != nil {
		t.Fatalf("EndGame: %v", err)
	}
	if !g.IsGameOver || g.IsGameActive {
		t.Errorf("game should be over and inactive")
	}

	if n := len(g.Players[0].Scores); n != 0 {
		t.Errorf("player A should have no bonus, got %d records", n)
	}
	recs := g.Players[1].Scores
	if len(recs) != 1 {
		t.Fatalf("player B should have exactly one bonus record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Score != EndGameBonus || rec.Kind != KindBonus || rec.IsQwirkle {
		t.Errorf("unexpected bonus record %+v", rec)
	}
	if rec.TurnNumber != 1 {
		t.Errorf("bonus should be credited to the current round, got %d", rec.TurnNumber)
	}
	checkTotals(t, g)
}

func TestEndGameWithoutBonus(t *testing.T) {
	g := mustNewGame(t, "A", "B")
	if err := g.EndGame(""); err != nil {
		t.Fatalf("EndGame: %v", err)
	}
	for i, p := range g.Players {
		if len(p.Scores) != 0 {
			t.Errorf("player %d should have no records", i)
		}
	}
	if !g.IsGameOver {
		t.Errorf("game should be over")
	}
}

func TestEndGameUnknownBonusPlayer(t *testing.T) {
	g := mustNewGame(t, "A", "B")
	before := g.Clone()

	err := g.EndGame("no-such-player")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	// The transition must not have happened.
	if g.IsGameOver || !g.IsGameActive {
		t.Errorf("failed EndGame must leave the game active")
	}
	assertStatesEqual(t, before, *g)
}

func TestTransitionsRejectedWhenOver(t *testing.T) {
	g := mustNewGame(t, "A", "B")
	if err := g.EndGame(""); err != nil {
		t.Fatalf("EndGame: %v", err)
	}
	before := g.Clone()

	for name, call := range map[string]func() error{
		"addScore":  func() error { return g.AddScore(3, KindManual) },
		"swapTiles": func() error { return g.SwapTiles() },
		"endGame":   func() error { return g.EndGame("") },
	} {
		err := call()
		var ise *InvalidStateError
		if !errors.As(err, &ise) {
			t.Errorf("%s after game over: expected InvalidStateError, got %v", name, err)
		}
		assertStatesEqual(t, before, *g)
	}
}

// TestScenarioAliceBob walks the reference two-player game end to end.
func TestScenarioAliceBob(t *testing.T) {
	g := mustNewGame(t, "Alice", "Bob")
	var h History

	h.RecordBeforeMutation(*g)
	if err := g.AddScore(4, KindManual); err != nil {
		t.Fatalf("AddScore: %v", err)
	}
	if g.Players[0].TotalScore != 4 || g.CurrentPlayerIndex != 1 || g.Round != 1 {
		t.Fatalf("after Alice's turn: total=%d index=%d round=%d", g.Players[0].TotalScore, g.CurrentPlayerIndex, g.Round)
	}

	h.RecordBeforeMutation(*g)
	if err := g.AddScore(12, KindManual); err != nil {
		t.Fatalf("AddScore: %v", err)
	}
	if g.Players[1].TotalScore != 12 || !g.Players[1].Scores[0].IsQwirkle {
		t.Fatalf("Bob's Qwirkle not recorded: %+v", g.Players[1])
	}
	if g.CurrentPlayerIndex != 0 || g.Round != 2 {
		t.Fatalf("after Bob's turn: index=%d round=%d", g.CurrentPlayerIndex, g.Round)
	}

	// Undo reverts to the state after Alice's turn.
	restored, ok := h.Undo(*g)
	if !ok {
		t.Fatal("undo should succeed")
	}
	*g = restored
	if g.Players[1].TotalScore != 0 || g.Round != 1 || g.CurrentPlayerIndex != 1 {
		t.Fatalf("undo mismatch: bob=%d round=%d index=%d", g.Players[1].TotalScore, g.Round, g.CurrentPlayerIndex)
	}

	if err := g.EndGame(""); err != nil {
		t.Fatalf("EndGame: %v", err)
	}
	if !g.IsGameOver || g.IsGameActive {
		t.Fatal("game should be over with no bonus applied")
	}
}

// assertStatesEqual compares two states structurally.
func assertStatesEqual(t *testing.T, want, got GameState) {
	t.Helper()
	if want.CurrentPlayerIndex != got.CurrentPlayerIndex ||
		want.Round != got.Round ||
		want.IsGameActive != got.IsGameActive ||
		want.IsGameOver != got.IsGameOver ||
		len(want.Players) != len(got.Players) {
		t.Fatalf("states differ: want %+v, got %+v", want, got)
	}
	for i := range want.Players {
		wp, gp := want.Players[i], got.Players[i]
		if wp.ID != gp.ID || wp.Name != gp.Name || wp.TotalScore != gp.TotalScore || len(wp.Scores) != len(gp.Scores) {
			t.Fatalf("player %d differs: want %+v, got %+v", i, wp, gp)
		}
		for j := range wp.Scores {
			if wp.Scores[j] != gp.Scores[j] {
				t.Fatalf("player %d record %d differs: want %+v, got %+v", i, j, wp.Scores[j], gp.Scores[j])
			}
		}
	}
}
