package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mrbrentonwest/qwirkle-companion/internal/broadcast"
	"github.com/mrbrentonwest/qwirkle-companion/internal/session"
)

// NewRouter assembles the API surface. Everything except login sits
// behind the session-token middleware.
func NewRouter(h *Handler, sessions *session.Manager, hub *broadcast.Hub, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/session", h.Login)

	r.Group(func(priv chi.Router) {
		priv.Use(authMiddleware(jwtSecret))

		priv.Route("/api", func(api chi.Router) {
			api.Get("/game", h.GetGame)
			api.Post("/game", h.StartGame)
			api.Delete("/game", h.ResetGame)
			api.Post("/game/scores", h.AddScore)
			api.Post("/game/swap", h.SwapTiles)
			api.Post("/game/undo", h.Undo)
			api.Post("/game/redo", h.Redo)
			api.Post("/game/end", h.EndGame)
			api.Get("/history", h.ListHistory)
			api.Post("/oracle/score", h.OracleScore)
			api.Post("/oracle/suggest", h.OracleSuggest)
		})

		ws := &wsHandler{sessions: sessions, hub: hub}
		priv.Get("/ws", ws.serve)
	})

	return r
}
