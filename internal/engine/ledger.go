package engine

// appendRecord returns a copy of p with rec appended and the running
// total recomputed from the full ledger. Pure; the receiver is not
// modified.
func appendRecord(p PlayerState, rec TurnRecord) PlayerState {
	cp := p.Clone()
	cp.Scores = append(cp.Scores, rec)

	total := 0
	for _, r := range cp.Scores {
		total += r.Score
	}
	cp.TotalScore = total
	return cp
}

// Leader returns the player with the strictly highest total. When two
// or more players share the top total the second return is false and
// no leader is reported; a naive max over a sorted copy would silently
// pick an arbitrary tied player.
func (g *GameState) Leader() (PlayerState, bool) {
	if len(g.Players) == 0 {
		return PlayerState{}, false
	}

	best := 0
	tied := false
	for i := 1; i < len(g.Players); i++ {
		switch {
		case g.Players[i].TotalScore > g.Players[best].TotalScore:
			best = i
			tied = false
		case g.Players[i].TotalScore == g.Players[best].TotalScore:
			tied = true
		}
	}
	if tied {
		return PlayerState{}, false
	}
	return g.Players[best].Clone(), true
}

// Winners returns every player sharing the top total. A single entry
// is an outright win; multiple entries are a tie and no single winner
// is designated.
func (g *GameState) Winners() []PlayerState {
	if len(g.Players) == 0 {
		return nil
	}

	top := g.Players[0].TotalScore
	for _, p := range g.Players[1:] {
		if p.TotalScore > top {
			top = p.TotalScore
		}
	}

	var winners []PlayerState
	for _, p := range g.Players {
		if p.TotalScore == top {
			winners = append(winners, p.Clone())
		}
	}
	return winners
}
