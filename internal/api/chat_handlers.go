package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/recall-labs/recall/internal/auth"
	"github.com/recall-labs/recall/internal/chatstore"
	"github.com/recall-labs/recall/internal/engine"
	"github.com/recall-labs/recall/internal/message"
	"github.com/recall-labs/recall/internal/prompts"
	"github.com/recall-labs/recall/internal/render"
)

type createSessionRequest struct {
	Title string `json:"title"`
	Model string `json:"model"`
}

// handleChatSessions lists or creates chat sessions for the caller.
func (s *Server) handleChatSessions(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(r)
	if !ok {
		s.writeError(w, apiError(ErrUnauthorized, SurfaceAPI, ""))
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, map[string]interface{}{
			"sessions": s.chats.SessionsForUser(session.User.ID),
		})
	case http.MethodPost:
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apiError(ErrBadRequest, SurfaceAPI, ""))
			return
		}
		if req.Model == "" {
			req.Model = s.config.DefaultModel
		}
		if req.Title == "" {
			req.Title = "New Chat"
		}
		chat := s.chats.CreateSession(session.User.ID, req.Title, req.Model)
		s.writeJSON(w, chat)
	}
}

// ownedChat loads the chat from the route and checks the caller owns
// it. A nil return means the error response was already written.
func (s *Server) ownedChat(w http.ResponseWriter, r *http.Request) (*chatstore.Session, *auth.Session) {
	session, ok := sessionFrom(r)
	if !ok {
		s.writeError(w, apiError(ErrUnauthorized, SurfaceAPI, ""))
		return nil, nil
	}
	chat, ok := s.chats.GetSession(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, apiError(ErrNotFound, SurfaceChat, ""))
		return nil, nil
	}
	if chat.UserID != session.User.ID {
		s.writeError(w, apiError(ErrForbidden, SurfaceChat, ""))
		return nil, nil
	}
	return chat, session
}

func (s *Server) handleChatSession(w http.ResponseWriter, r *http.Request) {
	chat, _ := s.ownedChat(w, r)
	if chat == nil {
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, chat)
	case http.MethodDelete:
		s.chats.DeleteSession(chat.ID)
		s.writeJSON(w, map[string]bool{"success": true})
	}
}

type sendMessageRequest struct {
	Text        string               `json:"text"`
	Attachments []message.Attachment `json:"attachments,omitempty"`
	Hints       prompts.RequestHints `json:"hints,omitempty"`
}

type sendMessageResponse struct {
	UserMessage      *message.Message `json:"userMessage"`
	AssistantMessage *message.Message `json:"assistantMessage"`
	Usage            *message.Usage   `json:"usage"`
}

// handleChatMessages lists messages or sends a new user message and
// runs the assistant turn, streaming events to any subscribers.
func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	chat, session := s.ownedChat(w, r)
	if chat == nil {
		return
	}

	switch r.Method {
	case http.MethodGet:
		msgs, err := s.chats.Messages(chat.ID)
		if err != nil {
			s.writeError(w, apiError(ErrNotFound, SurfaceChat, ""))
			return
		}
		s.writeJSON(w, map[string]interface{}{"messages": msgs})
	case http.MethodPost:
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apiError(ErrBadRequest, SurfaceAPI, ""))
			return
		}
		if strings.TrimSpace(req.Text) == "" && len(req.Attachments) == 0 {
			s.writeError(w, apiError(ErrBadRequest, SurfaceAPI, ""))
			return
		}

		userMsg := message.NewMessage(message.RoleUser)
		for _, att := range req.Attachments {
			userMsg.Parts = append(userMsg.Parts, message.FilePart(att))
		}
		if req.Text != "" {
			userMsg.Parts = append(userMsg.Parts, message.Part{Type: message.PartTypeText, Text: req.Text})
		}
		if err := s.chats.AppendMessage(chat.ID, userMsg); err != nil {
			s.writeError(w, apiError(ErrNotFound, SurfaceChat, ""))
			return
		}

		assistant, usage, apiErr := s.runTurn(r, chat, session.User, req.Hints)
		if apiErr != nil {
			s.writeError(w, apiErr)
			return
		}
		s.writeJSON(w, sendMessageResponse{UserMessage: userMsg, AssistantMessage: assistant, Usage: usage})
	}
}

// runTurn executes one assistant turn over the chat's current history
// and appends the result.
func (s *Server) runTurn(r *http.Request, chat *chatstore.Session, user auth.User, hints prompts.RequestHints) (*message.Message, *message.Usage, *APIError) {
	if s.engine == nil {
		return nil, nil, apiError(ErrOffline, SurfaceChat, "")
	}
	history, err := s.chats.Messages(chat.ID)
	if err != nil {
		return nil, nil, apiError(ErrNotFound, SurfaceChat, "")
	}

	assistant, usage, err := s.engine.Run(r.Context(), engine.RunInput{
		Model:    s.modelSpec(chat.Model),
		Hints:    hints,
		History:  history,
		Registry: s.toolRegistry(user),
		Sink:     func(ev engine.Event) { s.hub.publish(chat.ID, ev) },
	})
	if err != nil {
		s.logger.Warn("assistant turn failed", "chat", chat.ID, "err", err)
		return nil, nil, apiError(ErrOffline, SurfaceChat, "")
	}
	if err := s.chats.AppendMessage(chat.ID, assistant); err != nil {
		return nil, nil, apiError(ErrNotFound, SurfaceChat, "")
	}
	return assistant, usage, nil
}

type editMessageRequest struct {
	Text  string               `json:"text"`
	Hints prompts.RequestHints `json:"hints,omitempty"`
}

// handleEditMessage replaces a user message's text in place, drops
// everything after it, and regenerates the assistant reply.
func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	chat, session := s.ownedChat(w, r)
	if chat == nil {
		return
	}

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		s.writeError(w, apiError(ErrBadRequest, SurfaceAPI, ""))
		return
	}

	messageID := mux.Vars(r)["messageID"]
	if err := s.chats.EditUserMessage(chat.ID, messageID, req.Text); err != nil {
		s.writeError(w, apiError(ErrBadRequest, SurfaceChat, err.Error()))
		return
	}

	assistant, usage, apiErr := s.runTurn(r, chat, session.User, req.Hints)
	if apiErr != nil {
		s.writeError(w, apiErr)
		return
	}
	s.writeJSON(w, sendMessageResponse{AssistantMessage: assistant, Usage: usage})
}

type renderedMessage struct {
	ID        string            `json:"id"`
	Role      message.Role      `json:"role"`
	Fragments []render.Fragment `json:"fragments"`
	Vote      *chatstore.Vote   `json:"vote,omitempty"`
}

// handleRenderedMessages projects the chat history into display
// fragments, applying guest gating and edit mode server-side.
func (s *Server) handleRenderedMessages(w http.ResponseWriter, r *http.Request) {
	chat, session := s.ownedChat(w, r)
	if chat == nil {
		return
	}
	msgs, err := s.chats.Messages(chat.ID)
	if err != nil {
		s.writeError(w, apiError(ErrNotFound, SurfaceChat, ""))
		return
	}

	opts := render.Options{
		IsGuest:          session.User.IsGuest(),
		EditingMessageID: r.URL.Query().Get("editing"),
	}

	out := make([]renderedMessage, 0, len(msgs))
	for _, msg := range msgs {
		rm := renderedMessage{
			ID:        msg.ID,
			Role:      msg.Role,
			Fragments: render.Message(msg, opts),
		}
		if vote, ok := s.chats.Vote(chat.ID, msg.ID); ok {
			rm.Vote = &vote
		}
		out = append(out, rm)
	}
	s.writeJSON(w, map[string]interface{}{"messages": out})
}

type voteRequest struct {
	IsUpvoted bool `json:"isUpvoted"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	chat, _ := s.ownedChat(w, r)
	if chat == nil {
		return
	}
	messageID := mux.Vars(r)["messageID"]

	switch r.Method {
	case http.MethodGet:
		vote, ok := s.chats.Vote(chat.ID, messageID)
		if !ok {
			s.writeError(w, apiError(ErrNotFound, SurfaceChat, ""))
			return
		}
		s.writeJSON(w, vote)
	case http.MethodPatch:
		var req voteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apiError(ErrBadRequest, SurfaceAPI, ""))
			return
		}
		if err := s.chats.SetVote(chat.ID, messageID, req.IsUpvoted); err != nil {
			s.writeError(w, apiError(ErrNotFound, SurfaceChat, ""))
			return
		}
		s.writeJSON(w, map[string]bool{"success": true})
	}
}
