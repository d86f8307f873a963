package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/recall-labs/recall/internal/engine"
)

// streamHub fans engine events out to the subscribers of each chat
// session. Slow subscribers are dropped rather than blocking the turn.
type streamHub struct {
	subscribers map[string][]chan engine.Event
	mu          sync.RWMutex
}

func newStreamHub() *streamHub {
	return &streamHub{subscribers: make(map[string][]chan engine.Event)}
}

func (h *streamHub) subscribe(chatID string) chan engine.Event {
	ch := make(chan engine.Event, 64)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[chatID] = append(h.subscribers[chatID], ch)
	return ch
}

func (h *streamHub) unsubscribe(chatID string, ch chan engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[chatID]
	for i, sub := range subs {
		if sub == ch {
			h.subscribers[chatID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subscribers[chatID]) == 0 {
		delete(h.subscribers, chatID)
	}
}

func (h *streamHub) publish(chatID string, ev engine.Event) {
	h.mu.RLock()
	subs := make([]chan engine.Event, len(h.subscribers[chatID]))
	copy(subs, h.subscribers[chatID])
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub <- ev:
		default:
			// Subscriber is blocked, drop it
			h.unsubscribe(chatID, sub)
		}
	}
}

// handleChatSSE streams assistant-turn events for one chat session as
// Server-Sent Events.
func (s *Server) handleChatSSE(w http.ResponseWriter, r *http.Request) {
	chat, _ := s.ownedChat(w, r)
	if chat == nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "data: {\"kind\": \"connected\", \"timestamp\": %d}\n\n", time.Now().Unix())
	flusher.Flush()

	events := s.hub.subscribe(chat.ID)
	defer s.hub.unsubscribe(chat.ID, events)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("event encoding failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		}
	}
}
