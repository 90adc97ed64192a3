package engine

// History is the undo/redo stack: two ordered lists of full deep
// snapshots, past (most recent last) and future (most recent first).
// Full copies are cheap at this state size and rule out aliasing bugs
// that partial diffs would invite.
//
// Recording is a call-site discipline, not automatic: only
// user-initiated scoring actions are undoable, so the session wrapper
// calls RecordBeforeMutation around exactly those. Game creation and
// reset are not recorded.
type History struct {
	past   []GameState
	future []GameState
}

// RecordBeforeMutation pushes the pre-mutation state onto past and
// drops the redo branch. Call before applying any undoable mutation.
func (h *History) RecordBeforeMutation(current GameState) {
	h.past = append(h.past, current.Clone())
	h.future = nil
}

// Undo pops the most recent past state and files current at the front
// of future. Returns the restored state, or current unchanged (ok ==
// false) when there is nothing to undo. Exactly one stack is consumed
// and the other appended to; never both.
func (h *History) Undo(current GameState) (GameState, bool) {
	if len(h.past) == 0 {
		return current, false
	}
	restored := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append([]GameState{current.Clone()}, h.future...)
	return restored, true
}

// Redo is the mirror of Undo, consuming future and appending to past.
func (h *History) Redo(current GameState) (GameState, bool) {
	if len(h.future) == 0 {
		return current, false
	}
	restored := h.future[0]
	h.future = h.future[1:]
	h.past = append(h.past, current.Clone())
	return restored, true
}

// CanUndo reports whether an Undo would restore anything.
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether a Redo would restore anything.
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Reset drops both stacks, for game reset and session teardown.
func (h *History) Reset() {
	h.past = nil
	h.future = nil
}
