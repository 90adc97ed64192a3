// Package broadcast pushes game events to a user's connected clients
// over websockets. Delivery is advisory: a slow or dead connection is
// dropped, never waited on.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// Hub fans events out to every websocket a user has open.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]struct{}
	log   *logrus.Entry
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[*websocket.Conn]struct{}),
		log:   logrus.WithField("component", "broadcast"),
	}
}

// Register adds a connection for a user.
func (h *Hub) Register(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][c] = struct{}{}
}

// Unregister removes a connection for a user.
func (h *Hub) Unregister(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[userID], c)
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

// Publish sends v as JSON to every connection the user has open.
// Failed writes close and drop the connection.
func (h *Hub) Publish(userID string, v any) {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, c, v)
		cancel()
		if err != nil {
			h.log.WithField("userId", userID).WithError(err).Debug("dropping dead websocket")
			_ = c.Close(websocket.StatusGoingAway, "write failed")
			h.Unregister(userID, c)
		}
	}
}
