// Package session binds one user's live game to its history stack,
// sync reconciler and event stream.
//
// The session owns the live GameState exclusively. Every mutation runs
// snapshot → apply → broadcast → debounced persist under one lock, so
// no reader ever observes a half-applied transition. The reconciler
// writes the state outward on its own debounce cycle; undo and redo go
// through the same path as any other local change.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrbrentonwest/qwirkle-companion/internal/engine"
	"github.com/mrbrentonwest/qwirkle-companion/internal/gamesync"
	"github.com/mrbrentonwest/qwirkle-companion/internal/oracle"
)

// Event types pushed to connected clients.
const (
	EventStateUpdate = "state_update"
	EventQwirkle     = "qwirkle_celebration"
	EventGameOver    = "game_over"
	EventGameReset   = "game_reset"
)

// Event is one message on a user's websocket stream.
type Event struct {
	Type  string `json:"type"`
	View  *View  `json:"view,omitempty"`
	Score int    `json:"score,omitempty"` // celebration events carry the scoring turn
}

// View is the client-facing snapshot of a session. LeaderID is empty
// while the top totals are tied — a tie highlights nobody.
type View struct {
	State     *engine.GameState `json:"state"`
	LeaderID  string            `json:"leaderId,omitempty"`
	CanUndo   bool              `json:"canUndo"`
	CanRedo   bool              `json:"canRedo"`
	SyncError string            `json:"syncError,omitempty"`
}

// Broadcaster pushes events to a user's clients. *broadcast.Hub
// satisfies it.
type Broadcaster interface {
	Publish(userID string, v any)
}

// Session is one user's live tracker.
type Session struct {
	userID string
	rec    *gamesync.Reconciler
	hub    Broadcaster
	log    *logrus.Entry

	mu      sync.Mutex
	state   *engine.GameState
	history engine.History
}

// View returns a deep snapshot of the session for the API and the
// event stream.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		CanUndo: s.history.CanUndo(),
		CanRedo: s.history.CanRedo(),
	}
	if s.state != nil {
		cp := s.state.Clone()
		v.State = &cp
		if leader, ok := s.state.Leader(); ok {
			v.LeaderID = leader.ID
		}
	}
	if err := s.rec.Err(); err != nil {
		v.SyncError = err.Error()
	}
	return v
}

// Start begins a new game. The current slot must be empty: a finished
// game stays readable until the client resets it.
func (s *Session) Start(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		return &engine.InvalidStateError{Op: "startGame", State: s.lifecycleLocked()}
	}
	g, err := engine.NewGame(names)
	if err != nil {
		return err
	}

	s.state = g
	s.history.Reset()
	s.afterMutationLocked()
	s.log.WithField("players", len(g.Players)).Info("game started")
	return nil
}

// AddScore records a scored turn for the current player. The returned
// flag reports whether the turn was a Qwirkle, which also fires the
// celebration event.
func (s *Session) AddScore(score int, kind engine.ScoreKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return false, &engine.InvalidStateError{Op: "addScore", State: "inactive"}
	}

	next := s.state.Clone()
	if err := next.AddScore(score, kind); err != nil {
		return false, err
	}

	s.history.RecordBeforeMutation(*s.state)
	*s.state = next
	s.afterMutationLocked()

	qwirkle := score >= engine.QwirkleThreshold
	if qwirkle {
		s.hub.Publish(s.userID, Event{Type: EventQwirkle, Score: score})
	}
	return qwirkle, nil
}

// SwapTiles records a zero-score swap turn.
func (s *Session) SwapTiles() error {
	_, err := s.AddScore(0, engine.KindSwap)
	return err
}

// ApplyOracleScore folds an auto-score result into the game as a
// normal scored turn. The score was sanitized at the oracle boundary.
func (s *Session) ApplyOracleScore(res *oracle.ScoreResult) (bool, error) {
	return s.AddScore(res.Score, engine.KindOracleScore)
}

// ApplySuggestion records a turn played from one of the oracle's
// suggested moves.
func (s *Session) ApplySuggestion(sug *oracle.Suggestion) (bool, error) {
	return s.AddScore(sug.Score, engine.KindOracleSuggestion)
}

// Undo restores the previous state, if any.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return false
	}
	restored, ok := s.history.Undo(*s.state)
	if !ok {
		return false
	}
	*s.state = restored
	s.afterMutationLocked()
	return true
}

// Redo re-applies the most recently undone state, if any.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return false
	}
	restored, ok := s.history.Redo(*s.state)
	if !ok {
		return false
	}
	*s.state = restored
	s.afterMutationLocked()
	return true
}

// End finishes the game, crediting the optional went-out-first bonus,
// then archives the result and clears the active slot. The archive is
// attempted strictly before the clear; if it fails the clear proceeds
// anyway — losing one history entry is acceptable, losing the ability
// to start a new game is not. Failures come back as a warning, never
// an error: the local game is over regardless.
func (s *Session) End(ctx context.Context, bonusPlayerID string) (warning string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return "", &engine.InvalidStateError{Op: "endGame", State: "inactive"}
	}

	next := s.state.Clone()
	if err := next.EndGame(bonusPlayerID); err != nil {
		return "", err
	}

	s.history.RecordBeforeMutation(*s.state)
	*s.state = next

	if err := s.rec.Archive(ctx, *s.state); err != nil {
		warning = "completed game could not be archived: " + err.Error()
	}
	if err := s.rec.ClearActive(ctx); err != nil {
		if warning != "" {
			warning += "; "
		}
		warning += "active slot could not be cleared: " + err.Error()
	}

	view := s.viewLocked()
	s.hub.Publish(s.userID, Event{Type: EventGameOver, View: &view})
	s.log.Info("game ended")
	return warning, nil
}

// Reset abandons or clears the game entirely, back to pre-setup.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = nil
	s.history.Reset()
	err := s.rec.ClearActive(ctx)

	view := s.viewLocked()
	s.hub.Publish(s.userID, Event{Type: EventGameReset, View: &view})
	return err
}

// afterMutationLocked broadcasts the new state and schedules the
// debounced remote write. Caller holds s.mu.
func (s *Session) afterMutationLocked() {
	view := s.viewLocked()
	s.hub.Publish(s.userID, Event{Type: EventStateUpdate, View: &view})
	if s.state != nil {
		s.rec.Persist(*s.state)
	}
}

func (s *Session) lifecycleLocked() string {
	switch {
	case s.state == nil:
		return "inactive"
	case s.state.IsGameOver:
		return "over"
	default:
		return "active"
	}
}

// Close releases the session's reconciler. Pending writes and the
// change subscription die with it.
func (s *Session) Close() {
	s.rec.Close()
}

// Manager hands out one hydrated session per user id.
type Manager struct {
	docs     gamesync.Documents
	notes    gamesync.Notifier
	hub      Broadcaster
	debounce time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager wires the shared collaborators every session uses.
func NewManager(docs gamesync.Documents, notes gamesync.Notifier, hub Broadcaster, debounce time.Duration) *Manager {
	return &Manager{
		docs:     docs,
		notes:    notes,
		hub:      hub,
		debounce: debounce,
		sessions: make(map[string]*Session),
	}
}

// Get returns the user's session, hydrating it from the remote slot on
// first touch. Hydration happens once per session lifetime; a remote
// read failure degrades to an empty local session rather than blocking
// play.
func (m *Manager) Get(ctx context.Context, userID string) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return s
	}

	s := &Session{
		userID: userID,
		rec:    gamesync.New(m.docs, m.notes, userID, m.debounce),
		hub:    m.hub,
		log:    logrus.WithField("userId", userID),
	}
	m.sessions[userID] = s
	m.mu.Unlock()

	stored, err := s.rec.Hydrate(ctx)
	if err != nil {
		s.log.WithError(err).Warn("hydration failed; starting local-only")
		return s
	}
	if stored != nil {
		// The session is already registered, so a request racing this
		// first touch may have started a game while the remote read was
		// in flight. Local play owns the slot; adopt the snapshot only
		// into a still-empty session.
		s.mu.Lock()
		adopted := s.state == nil
		if adopted {
			state := stored.State.Clone()
			s.state = &state
		}
		s.mu.Unlock()
		if adopted {
			s.log.Info("session hydrated from remote slot")
		} else {
			s.log.Info("local game started during hydration; remote snapshot ignored")
		}
	}
	return s
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}
