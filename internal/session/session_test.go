package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrbrentonwest/qwirkle-companion/internal/engine"
	"github.com/mrbrentonwest/qwirkle-companion/internal/store"
)

// fakeDocs records calls in order so tests can assert the
// archive-before-clear guarantee.
type fakeDocs struct {
	mu     sync.Mutex
	stored *store.StoredGame
	calls  []string

	archiveErr error
}

func (f *fakeDocs) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeDocs) LoadActive(ctx context.Context, userID string) (*store.StoredGame, error) {
	f.record("load")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored, nil
}

func (f *fakeDocs) SaveActive(ctx context.Context, userID string, state engine.GameState) error {
	f.record("save")
	return nil
}

func (f *fakeDocs) ClearActive(ctx context.Context, userID string) error {
	f.record("clear")
	return nil
}

func (f *fakeDocs) Archive(ctx context.Context, userID string, state engine.GameState, createdAt time.Time) (uuid.UUID, error) {
	if f.archiveErr != nil {
		f.record("archive-failed")
		return uuid.Nil, f.archiveErr
	}
	f.record("archive")
	return uuid.New(), nil
}

func (f *fakeDocs) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeNotifier struct{}

func (fakeNotifier) Watch(ctx context.Context, userID string) (<-chan struct{}, func(), error) {
	return make(chan struct{}), func() {}, nil
}
func (fakeNotifier) PublishChange(ctx context.Context, userID string) {}

// fakeHub captures published events.
type fakeHub struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeHub) Publish(userID string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := v.(Event); ok {
		f.events = append(f.events, ev)
	}
}

func (f *fakeHub) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, ev := range f.events {
		types = append(types, ev.Type)
	}
	return types
}

func newTestSession(t *testing.T, docs *fakeDocs) (*Session, *fakeHub) {
	t.Helper()
	hub := &fakeHub{}
	m := NewManager(docs, fakeNotifier{}, hub, time.Millisecond)
	t.Cleanup(m.Close)
	return m.Get(context.Background(), "user-1"), hub
}

func TestStartAndView(t *testing.T) {
	s, hub := newTestSession(t, &fakeDocs{})

	require.NoError(t, s.Start([]string{"Alice", "Bob"}))
	v := s.View()
	require.NotNil(t, v.State)
	assert.Len(t, v.State.Players, 2)
	assert.False(t, v.CanUndo)
	assert.Contains(t, hub.eventTypes(), EventStateUpdate)
}

func TestStartTwiceRejected(t *testing.T) {
	s, _ := newTestSession(t, &fakeDocs{})
	require.NoError(t, s.Start([]string{"Alice", "Bob"}))

	err := s.Start([]string{"Carol", "Dave"})
	var ise *engine.InvalidStateError
	assert.ErrorAs(t, err, &ise)
}

func TestHydratesFromStoredGame(t *testing.T) {
	g, err := engine.NewGame([]string{"Alice", "Bob"})
	require.NoError(t, err)
	docs := &fakeDocs{stored: &store.StoredGame{State: *g, CreatedAt: time.Now()}}

	s, _ := newTestSession(t, docs)
	v := s.View()
	require.NotNil(t, v.State)
	assert.Len(t, v.State.Players, 2)
}

// slowDocs parks LoadActive until released, so a test can interleave
// requests with an in-flight remote read.
type slowDocs struct {
	fakeDocs
	loadStarted chan struct{}
	release     chan struct{}
}

func (d *slowDocs) LoadActive(ctx context.Context, userID string) (*store.StoredGame, error) {
	close(d.loadStarted)
	<-d.release
	return d.fakeDocs.LoadActive(ctx, userID)
}

func TestGameStartedDuringHydrationIsKept(t *testing.T) {
	remote, err := engine.NewGame([]string{"Carol", "Dave"})
	require.NoError(t, err)
	docs := &slowDocs{
		fakeDocs:    fakeDocs{stored: &store.StoredGame{State: *remote, CreatedAt: time.Now()}},
		loadStarted: make(chan struct{}),
		release:     make(chan struct{}),
	}
	m := NewManager(docs, fakeNotifier{}, &fakeHub{}, time.Millisecond)
	t.Cleanup(m.Close)

	first := make(chan *Session)
	go func() { first <- m.Get(context.Background(), "user-1") }()
	<-docs.loadStarted

	// The session is registered before hydration finishes, so a second
	// request sees it and starts playing while the read is in flight.
	s := m.Get(context.Background(), "user-1")
	require.NoError(t, s.Start([]string{"Alice", "Bob"}))
	_, err = s.AddScore(7, engine.KindManual)
	require.NoError(t, err)

	close(docs.release)
	require.Same(t, s, <-first)

	v := s.View()
	require.NotNil(t, v.State)
	assert.Equal(t, "Alice", v.State.Players[0].Name)
	assert.Equal(t, 7, v.State.Players[0].TotalScore)
}

func TestAddScoreFiresCelebrationAtThreshold(t *testing.T) {
	s, hub := newTestSession(t, &fakeDocs{})
	require.NoError(t, s.Start([]string{"Alice", "Bob"}))

	qwirkle, err := s.AddScore(11, engine.KindManual)
	require.NoError(t, err)
	assert.False(t, qwirkle)

	qwirkle, err = s.AddScore(12, engine.KindManual)
	require.NoError(t, err)
	assert.True(t, qwirkle)
	assert.Contains(t, hub.eventTypes(), EventQwirkle)
}

func TestUndoRedoThroughSession(t *testing.T) {
	s, _ := newTestSession(t, &fakeDocs{})
	require.NoError(t, s.Start([]string{"Alice", "Bob"}))

	_, err := s.AddScore(4, engine.KindManual)
	require.NoError(t, err)
	require.True(t, s.View().CanUndo)

	require.True(t, s.Undo())
	v := s.View()
	assert.Equal(t, 0, v.State.Players[0].TotalScore)
	assert.True(t, v.CanRedo)

	require.True(t, s.Redo())
	v = s.View()
	assert.Equal(t, 4, v.State.Players[0].TotalScore)

	// Nothing left to redo.
	assert.False(t, s.Redo())
}

func TestUndoWithEmptyHistoryIsNoop(t *testing.T) {
	s, _ := newTestSession(t, &fakeDocs{})
	require.NoError(t, s.Start([]string{"Alice", "Bob"}))
	assert.False(t, s.Undo())
}

func TestEndArchivesBeforeClearing(t *testing.T) {
	docs := &fakeDocs{}
	s, hub := newTestSession(t, docs)
	require.NoError(t, s.Start([]string{"Alice", "Bob"}))

	warning, err := s.End(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, warning)

	calls := docs.callLog()
	archiveIdx, clearIdx := -1, -1
	for i, c := range calls {
		switch c {
		case "archive":
			archiveIdx = i
		case "clear":
			clearIdx = i
		}
	}
	require.GreaterOrEqual(t, archiveIdx, 0, "archive must happen")
	require.GreaterOrEqual(t, clearIdx, 0, "clear must happen")
	assert.Less(t, archiveIdx, clearIdx, "archive must strictly precede clear")

	assert.Contains(t, hub.eventTypes(), EventGameOver)
	v := s.View()
	assert.True(t, v.State.IsGameOver)
	assert.False(t, v.State.IsGameActive)
}

func TestEndWithBonusCreditsOnePlayer(t *testing.T) {
	s, _ := newTestSession(t, &fakeDocs{})
	require.NoError(t, s.Start([]string{"Alice", "Bob"}))

	bonusID := s.View().State.Players[1].ID
	_, err := s.End(context.Background(), bonusID)
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, 0, v.State.Players[0].TotalScore)
	assert.Equal(t, engine.EndGameBonus, v.State.Players[1].TotalScore)
}

func TestEndArchiveFailureStillClears(t *testing.T) {
	docs := &fakeDocs{archiveErr: errors.New("history insert failed")}
	s, _ := newTestSession(t, docs)
	require.NoError(t, s.Start([]string{"Alice", "Bob"}))

	warning, err := s.End(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, warning)
	assert.Contains(t, docs.callLog(), "clear", "clear proceeds despite archive failure")
}

func TestEndUnknownBonusPlayerLeavesGameActive(t *testing.T) {
	s, _ := newTestSession(t, &fakeDocs{})
	require.NoError(t, s.Start([]string{"Alice", "Bob"}))

	_, err := s.End(context.Background(), "nobody")
	var ve *engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, s.View().State.IsGameActive)
}

func TestResetClearsEverything(t *testing.T) {
	docs := &fakeDocs{}
	s, hub := newTestSession(t, docs)
	require.NoError(t, s.Start([]string{"Alice", "Bob"}))
	_, err := s.AddScore(5, engine.KindManual)
	require.NoError(t, err)

	require.NoError(t, s.Reset(context.Background()))
	v := s.View()
	assert.Nil(t, v.State)
	assert.False(t, v.CanUndo)
	assert.Contains(t, hub.eventTypes(), EventGameReset)
	assert.Contains(t, docs.callLog(), "clear")
}

func TestMutationsPersistDebounced(t *testing.T) {
	docs := &fakeDocs{}
	s, _ := newTestSession(t, docs)
	require.NoError(t, s.Start([]string{"Alice", "Bob"}))
	_, err := s.AddScore(3, engine.KindManual)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, c := range docs.callLog() {
			if c == "save" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
