package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// the UI layer runs on a different origin in development
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

// handleWS streams presenter events (presented/tick/accepted/declined/
// expired plus online/offline) to the UI as JSON frames. The subscription
// is removed when the client goes away, so no events leak to dead
// connections.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own error response
		s.logger.Debug("ws upgrade failed", "error", err)
		return
	}
	id, events := s.ctrl.Subscribe()
	defer func() {
		s.ctrl.Unsubscribe(id)
		_ = conn.Close()
	}()

	// drain reads so close frames are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("ws send failed", "error", err)
				return
			}
		}
	}
}
