// Package chatstore keeps chat sessions, their messages, and votes in
// memory. Durable persistence is an external collaborator; this store
// is the per-process working set the API serves from.
package chatstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recall-labs/recall/internal/message"
)

// Session is one chat conversation owned by a user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Vote is a thumbs up/down on one assistant message.
type Vote struct {
	MessageID string `json:"messageId"`
	IsUpvoted bool   `json:"isUpvoted"`
}

// Store is the in-memory chat database.
type Store struct {
	sessions map[string]*Session
	messages map[string][]*message.Message
	votes    map[string]map[string]Vote // session -> message -> vote
	mu       sync.RWMutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		messages: make(map[string][]*message.Message),
		votes:    make(map[string]map[string]Vote),
	}
}

// CreateSession starts a conversation for a user.
func (s *Store) CreateSession(userID, title, model string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = sess
	s.messages[sess.ID] = nil
	return sess
}

// GetSession returns a session by ID.
func (s *Store) GetSession(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

// SessionsForUser lists a user's sessions.
func (s *Store) SessionsForUser(userID string) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out
}

// DeleteSession removes a session and its messages.
func (s *Store) DeleteSession(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	delete(s.votes, sessionID)
	return true
}

// AppendMessage adds a message to a session.
func (s *Store) AppendMessage(sessionID string, msg *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

// Messages returns a session's messages in order.
func (s *Store) Messages(sessionID string) ([]*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	msgs := s.messages[sessionID]
	out := make([]*message.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// EditUserMessage replaces the text of a user message and truncates all
// messages after it, readying the conversation for regeneration.
func (s *Store) EditUserMessage(sessionID, messageID, newText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}

	msgs := s.messages[sessionID]
	for i, msg := range msgs {
		if msg.ID != messageID {
			continue
		}
		if msg.Role != message.RoleUser {
			return fmt.Errorf("message %s is not a user message", messageID)
		}

		// Replace the text parts, keep attachments.
		var parts []message.Part
		replaced := false
		for _, p := range msg.Parts {
			if p.Type == message.PartTypeText {
				if !replaced {
					parts = append(parts, message.TextPart(newText))
					replaced = true
				}
				continue
			}
			parts = append(parts, p)
		}
		if !replaced {
			parts = append(parts, message.TextPart(newText))
		}

		// Install a fresh message rather than mutating the shared one,
		// so pointers handed out by Messages stay stable for readers.
		edited := *msg
		edited.Parts = parts
		msgs[i] = &edited

		s.messages[sessionID] = msgs[:i+1]
		for _, dropped := range msgs[i+1:] {
			if votes := s.votes[sessionID]; votes != nil {
				delete(votes, dropped.ID)
			}
		}
		sess.UpdatedAt = time.Now().UTC()
		return nil
	}
	return fmt.Errorf("message %s not found", messageID)
}

// SetVote records a vote for a message.
func (s *Store) SetVote(sessionID, messageID string, isUpvoted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if s.votes[sessionID] == nil {
		s.votes[sessionID] = make(map[string]Vote)
	}
	s.votes[sessionID][messageID] = Vote{MessageID: messageID, IsUpvoted: isUpvoted}
	return nil
}

// Vote returns the vote on a message, if any.
func (s *Store) Vote(sessionID, messageID string) (Vote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[sessionID][messageID]
	return v, ok
}
