package web

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/mrbrentonwest/qwirkle-companion/internal/broadcast"
	"github.com/mrbrentonwest/qwirkle-companion/internal/session"
)

// wsHandler owns the live event stream.
type wsHandler struct {
	sessions *session.Manager
	hub      *broadcast.Hub
}

// GET /ws?token=...
//
// The stream is one-directional: clients receive session events and
// send nothing. The read loop exists only to notice the peer going
// away.
func (h *wsHandler) serve(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		logrus.WithError(err).Debug("websocket accept failed")
		return
	}
	defer c.CloseNow()

	h.hub.Register(userID, c)
	defer h.hub.Unregister(userID, c)

	// Current view first, so a client reconnecting mid-game paints
	// immediately.
	s := h.sessions.Get(r.Context(), userID)
	view := s.View()
	if err := wsjson.Write(r.Context(), c, session.Event{Type: session.EventStateUpdate, View: &view}); err != nil {
		return
	}

	for {
		if _, _, err := c.Read(r.Context()); err != nil {
			return
		}
	}
}
