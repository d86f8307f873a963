// Package auth provides sessions and identity for the chat service:
// Google OAuth sign-in for regular users and provisioned guest sessions
// with restricted feature access.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UserType distinguishes provisioned guests from signed-in users.
type UserType string

const (
	UserTypeGuest   UserType = "guest"
	UserTypeRegular UserType = "regular"
)

// User is the session's view of an account.
type User struct {
	ID    string   `json:"id"`
	Type  UserType `json:"type"`
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Image string   `json:"image,omitempty"`
}

// IsGuest reports whether the user has guest-level access.
func (u User) IsGuest() bool {
	return u.Type == UserTypeGuest
}

// Session is an authenticated session.
type Session struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	salt      string
	tokenHash string
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

const sessionTTL = 24 * time.Hour

// Store keeps sessions in memory, keyed by salted token hash. Issued
// tokens are returned to the caller once and never stored in plaintext.
type Store struct {
	sessions map[string]*Session // token hash -> session
	users    map[string]User     // email -> user, for OAuth sign-ins
	mu       sync.RWMutex
	done     chan struct{}
}

// NewStore creates a session store and starts its expiry sweeper.
func NewStore() *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		users:    make(map[string]User),
		done:     make(chan struct{}),
	}
	go s.sweepExpired()
	return s
}

// Close stops the expiry sweeper.
func (s *Store) Close() {
	close(s.done)
}

func (s *Store) sweepExpired() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			for hash, sess := range s.sessions {
				if sess.Expired() {
					delete(s.sessions, hash)
				}
			}
			s.mu.Unlock()
		}
	}
}

func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token, salt string) string {
	sum := sha256.Sum256([]byte(token + salt))
	return hex.EncodeToString(sum[:])
}

// CreateSession issues a session for the given user and returns it with
// the bearer token.
func (s *Store) CreateSession(user User) (*Session, string, error) {
	token, err := generateSecureToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	salt, err := generateSecureToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate salt: %w", err)
	}

	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
		salt:      salt,
		tokenHash: hashToken(token, salt),
	}

	s.mu.Lock()
	s.sessions[sess.tokenHash] = sess
	s.mu.Unlock()

	return sess, token, nil
}

// CreateGuestSession provisions a fresh guest user and a session for it.
// Guest emails are synthetic (guest-<millis>) so downstream guest checks
// can fall back to the email pattern.
func (s *Store) CreateGuestSession() (*Session, string, error) {
	user := User{
		ID:    uuid.NewString(),
		Type:  UserTypeGuest,
		Email: fmt.Sprintf("guest-%d", time.Now().UnixMilli()),
	}
	return s.CreateSession(user)
}

// Validate resolves a bearer token to its session.
func (s *Store) Validate(token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("token required")
	}

	s.mu.RLock()
	var found *Session
	for _, sess := range s.sessions {
		if sess.tokenHash == hashToken(token, sess.salt) {
			found = sess
			break
		}
	}
	s.mu.RUnlock()

	if found == nil {
		return nil, fmt.Errorf("invalid token")
	}
	if found.Expired() {
		s.mu.Lock()
		delete(s.sessions, found.tokenHash)
		s.mu.Unlock()
		return nil, fmt.Errorf("token expired")
	}
	return found, nil
}

// Revoke deletes the session for a token. Unknown tokens are a no-op.
func (s *Store) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, sess := range s.sessions {
		if sess.tokenHash == hashToken(token, sess.salt) {
			delete(s.sessions, hash)
			return
		}
	}
}

// UpsertUser returns the stored user for an email, creating one on
// first OAuth sign-in.
func (s *Store) UpsertUser(email, name, image string) User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[email]; ok {
		return user
	}
	user := User{
		ID:    uuid.NewString(),
		Type:  UserTypeRegular,
		Email: email,
		Name:  name,
		Image: image,
	}
	s.users[email] = user
	return user
}
