// Package web exposes the tracker over HTTP/JSON and a websocket event
// stream.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrbrentonwest/qwirkle-companion/internal/engine"
	"github.com/mrbrentonwest/qwirkle-companion/internal/identity"
	"github.com/mrbrentonwest/qwirkle-companion/internal/oracle"
	"github.com/mrbrentonwest/qwirkle-companion/internal/session"
	"github.com/mrbrentonwest/qwirkle-companion/internal/store"
)

const requestTimeout = 10 * time.Second

// HistoryLister is the slice of the document store the API reads
// directly. *store.Store satisfies it.
type HistoryLister interface {
	ListHistory(ctx context.Context, userID string) ([]store.ArchivedGame, error)
}

// Handler serves the companion API.
type Handler struct {
	sessions *session.Manager
	games    HistoryLister
	oracle   *oracle.Client
	ident    *identity.Service
	secret   []byte
}

func NewHandler(sessions *session.Manager, games HistoryLister, oracleClient *oracle.Client, ident *identity.Service, jwtSecret string) *Handler {
	return &Handler{
		sessions: sessions,
		games:    games,
		oracle:   oracleClient,
		ident:    ident,
		secret:   []byte(jwtSecret),
	}
}

// POST /api/session
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	userID, err := h.ident.SetPassphrase(req.Passphrase)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := issueToken(h.secret, userID)
	if err != nil {
		logrus.WithError(err).Error("token signing failed")
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":  token,
		"userId": userID,
	})
}

// GET /api/game
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()
	s := h.sessions.Get(ctx, userIDFrom(r))
	writeJSON(w, http.StatusOK, s.View())
}

// POST /api/game
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Players []string `json:"players"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()
	s := h.sessions.Get(ctx, userIDFrom(r))
	if err := s.Start(req.Players); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.View())
}

// POST /api/game/scores
func (h *Handler) AddScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Score int    `json:"score"`
		Kind  string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	kind := engine.ScoreKind(req.Kind)
	switch kind {
	case "":
		kind = engine.KindManual
	case engine.KindManual, engine.KindOracleScore, engine.KindOracleSuggestion:
	default:
		http.Error(w, "unsupported score kind "+req.Kind, http.StatusBadRequest)
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()
	s := h.sessions.Get(ctx, userIDFrom(r))
	qwirkle, err := s.AddScore(req.Score, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse(s, qwirkle))
}

// POST /api/game/swap
func (h *Handler) SwapTiles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()
	s := h.sessions.Get(ctx, userIDFrom(r))
	if err := s.SwapTiles(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// POST /api/game/undo
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()
	s := h.sessions.Get(ctx, userIDFrom(r))
	s.Undo() // no-op when there is nothing to undo
	writeJSON(w, http.StatusOK, s.View())
}

// POST /api/game/redo
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()
	s := h.sessions.Get(ctx, userIDFrom(r))
	s.Redo()
	writeJSON(w, http.StatusOK, s.View())
}

// POST /api/game/end
func (h *Handler) EndGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BonusPlayerID string `json:"bonusPlayerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()
	s := h.sessions.Get(ctx, userIDFrom(r))
	warning, err := s.End(ctx, req.BonusPlayerID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := struct {
		session.View
		Warning string `json:"warning,omitempty"`
	}{View: s.View(), Warning: warning}
	writeJSON(w, http.StatusOK, resp)
}

// DELETE /api/game
func (h *Handler) ResetGame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()
	s := h.sessions.Get(ctx, userIDFrom(r))
	if err := s.Reset(ctx); err != nil {
		// Local reset succeeded; the remote clear is a warning only.
		resp := struct {
			session.View
			Warning string `json:"warning"`
		}{View: s.View(), Warning: err.Error()}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// GET /api/history
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	games, err := h.games.ListHistory(ctx, userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if games == nil {
		games = []store.ArchivedGame{}
	}
	writeJSON(w, http.StatusOK, games)
}

// POST /api/oracle/score
func (h *Handler) OracleScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhotoDataURI string `json:"photoDataUri"`
		Apply        bool   `json:"apply"` // fold straight into the current turn
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.PhotoDataURI == "" {
		http.Error(w, "photoDataUri is required", http.StatusBadRequest)
		return
	}

	res, err := h.oracle.CalculateScore(r.Context(), req.PhotoDataURI)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := struct {
		*oracle.ScoreResult
		View *session.View `json:"view,omitempty"`
	}{ScoreResult: res}

	if req.Apply {
		ctx, cancel := h.reqCtx(r)
		defer cancel()
		s := h.sessions.Get(ctx, userIDFrom(r))
		if _, err := s.ApplyOracleScore(res); err != nil {
			writeError(w, err)
			return
		}
		v := s.View()
		resp.View = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/oracle/suggest
func (h *Handler) OracleSuggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BoardPhotoDataURI       string `json:"boardPhotoDataUri"`
		PlayerTilesPhotoDataURI string `json:"playerTilesPhotoDataUri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.BoardPhotoDataURI == "" || req.PlayerTilesPhotoDataURI == "" {
		http.Error(w, "both board and player-tiles photos are required", http.StatusBadRequest)
		return
	}

	res, err := h.oracle.SuggestMoves(r.Context(), req.BoardPhotoDataURI, req.PlayerTilesPhotoDataURI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// scoreResponse augments the view with the qwirkle flag for the turn
// just recorded.
func scoreResponse(s *session.Session, qwirkle bool) any {
	return struct {
		session.View
		Qwirkle bool `json:"qwirkle"`
	}{View: s.View(), Qwirkle: qwirkle}
}

func (h *Handler) reqCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve *engine.ValidationError
		se *engine.InvalidStateError
		oe *oracle.Error
		pe *store.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &se):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &oe):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.As(err, &pe):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		logrus.WithError(err).Error("unhandled request error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
