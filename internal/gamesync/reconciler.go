// Package gamesync reconciles the local game state with its remote
// document slot.
//
// The flow is deliberately one-directional after session start: the
// remote document is read exactly once, at hydration, and every write
// afterward travels local → remote on a debounced timer. Remote
// change notifications received after hydration are ignored, so a
// local optimistic edit can never be clobbered by an echo of an older
// write or by a cross-device write landing mid-edit. Concurrent
// editing from two devices is resolved as last-writer-wins and nothing
// more.
package gamesync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mrbrentonwest/qwirkle-companion/internal/engine"
	"github.com/mrbrentonwest/qwirkle-companion/internal/store"
)

// DefaultDebounce is the write-coalescing window.
const DefaultDebounce = 500 * time.Millisecond

const writeTimeout = 5 * time.Second

// Documents is the document-store surface the reconciler needs.
// *store.Store satisfies it.
type Documents interface {
	LoadActive(ctx context.Context, userID string) (*store.StoredGame, error)
	SaveActive(ctx context.Context, userID string, state engine.GameState) error
	ClearActive(ctx context.Context, userID string) error
	Archive(ctx context.Context, userID string, state engine.GameState, createdAt time.Time) (uuid.UUID, error)
}

// Notifier is the change-notification surface. *cache.Notifier
// satisfies it.
type Notifier interface {
	Watch(ctx context.Context, userID string) (<-chan struct{}, func(), error)
	PublishChange(ctx context.Context, userID string)
}

// Reconciler drives one user session's persistence. Not safe for use
// by multiple sessions; each session owns its own.
type Reconciler struct {
	docs     Documents
	notes    Notifier
	userID   string
	debounce time.Duration
	log      *logrus.Entry

	mu        sync.Mutex
	timer     *time.Timer
	pending   *engine.GameState
	createdAt time.Time // remote slot's creation time, kept across upserts
	unwatch   func()
	lastErr   error
	closed    bool
}

// New builds a reconciler for one user. debounce <= 0 selects
// DefaultDebounce.
func New(docs Documents, notes Notifier, userID string, debounce time.Duration) *Reconciler {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Reconciler{
		docs:     docs,
		notes:    notes,
		userID:   userID,
		debounce: debounce,
		log:      logrus.WithField("userId", userID),
	}
}

// Hydrate opens the change subscription and adopts the remote document
// as the initial local state, or nil when the user has no active game.
// Later notifications on the subscription are never re-adopted; the
// subscription stays open only so teardown has something to release
// and future readers of the channel see session-lifetime semantics.
func (r *Reconciler) Hydrate(ctx context.Context) (*store.StoredGame, error) {
	_, unwatch, err := r.notes.Watch(ctx, r.userID)
	if err != nil {
		// Sync is down; play on local-only.
		r.log.WithError(err).Warn("change subscription unavailable")
	} else {
		r.mu.Lock()
		r.unwatch = unwatch
		r.mu.Unlock()
	}

	stored, err := r.docs.LoadActive(ctx, r.userID)
	if err != nil {
		r.setErr(err)
		return nil, err
	}
	if stored != nil {
		r.mu.Lock()
		r.createdAt = stored.CreatedAt
		r.mu.Unlock()
	}
	return stored, nil
}

// Persist schedules a debounced write of state. A call inside the
// window replaces the pending snapshot and restarts the timer, so at
// most one coalesced write is in flight per window. Write failures are
// logged and retained (see Err); they never block local mutation.
func (r *Reconciler) Persist(state engine.GameState) {
	snapshot := state.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.pending = &snapshot
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.flush)
}

// flush runs on the debounce timer's goroutine.
func (r *Reconciler) flush() {
	r.mu.Lock()
	if r.closed || r.pending == nil {
		r.mu.Unlock()
		return
	}
	snapshot := *r.pending
	r.pending = nil
	r.timer = nil
	if r.createdAt.IsZero() {
		r.createdAt = time.Now().UTC()
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.docs.SaveActive(ctx, r.userID, snapshot); err != nil {
		r.log.WithError(err).Warn("debounced save failed")
		r.setErr(err)
		return
	}
	r.setErr(nil)
	r.notes.PublishChange(ctx, r.userID)
}

// Archive appends the finished game to the user's history, stamped
// with the slot's original creation time. Must be called before
// ClearActive in the end-of-game flow.
func (r *Reconciler) Archive(ctx context.Context, finalState engine.GameState) error {
	r.mu.Lock()
	createdAt := r.createdAt
	r.mu.Unlock()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.docs.Archive(ctx, r.userID, finalState.Clone(), createdAt)
	if err != nil {
		r.log.WithError(err).Error("archive failed; completed game not saved to history")
	}
	return err
}

// ClearActive cancels any pending debounced write, then deletes the
// slot. The cancel must come first: a stale pending write firing after
// the delete would resurrect the cleared slot.
func (r *Reconciler) ClearActive(ctx context.Context) error {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = nil
	r.createdAt = time.Time{}
	r.mu.Unlock()

	if err := r.docs.ClearActive(ctx, r.userID); err != nil {
		r.setErr(err)
		return err
	}
	r.notes.PublishChange(ctx, r.userID)
	return nil
}

// Err returns the most recent persistence failure, or nil. Surfaced to
// the client as a non-blocking session warning.
func (r *Reconciler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Reconciler) setErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// Close cancels the pending write and releases the subscription. No
// timers or listeners survive the session.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = nil
	unwatch := r.unwatch
	r.unwatch = nil
	r.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
}
