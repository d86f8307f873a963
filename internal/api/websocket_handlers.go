package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/recall-labs/recall/internal/engine"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleChatWebSocket streams the same assistant-turn events as the SSE
// endpoint over a WebSocket, for clients that prefer a duplex channel.
func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	chat, _ := s.ownedChat(w, r)
	if chat == nil {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	events := s.hub.subscribe(chat.ID)
	defer s.hub.unsubscribe(chat.ID, events)

	// Reader goroutine: we send only, but reads drive close detection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	writeEvent := func(ev engine.Event) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			s.logger.Debug("websocket write failed", "chat", chat.ID, "err", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev := <-events:
			if !writeEvent(ev) {
				return
			}
		}
	}
}
