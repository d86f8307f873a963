package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/recall-labs/recall/internal/auth"
)

const oauthStateTTL = 10 * time.Minute

// oauthStateSet holds the state nonces handed out by the login
// endpoint until their callback consumes them. Each nonce is valid
// once; abandoned ones expire.
type oauthStateSet struct {
	mu     sync.Mutex
	issued map[string]time.Time
}

func newOAuthStateSet() *oauthStateSet {
	return &oauthStateSet{issued: make(map[string]time.Time)}
}

func (o *oauthStateSet) issue(state string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	for st, exp := range o.issued {
		if now.After(exp) {
			delete(o.issued, st)
		}
	}
	o.issued[state] = now.Add(oauthStateTTL)
}

func (o *oauthStateSet) consume(state string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	exp, ok := o.issued[state]
	if !ok {
		return false
	}
	delete(o.issued, state)
	return time.Now().Before(exp)
}

// loginResponse carries a freshly issued session token. The token is
// shown once; only its salted hash is retained server-side.
type loginResponse struct {
	Token   string        `json:"token"`
	Session *auth.Session `json:"session"`
}

// handleGuestLogin provisions an anonymous session. Guests get a
// synthetic guest-<millis> email and reduced access.
func (s *Server) handleGuestLogin(w http.ResponseWriter, r *http.Request) {
	session, token, err := s.sessions.CreateGuestSession()
	if err != nil {
		s.logger.Error("guest session creation failed", "err", err)
		s.writeError(w, apiError(ErrOffline, SurfaceAuth, ""))
		return
	}
	s.writeJSON(w, loginResponse{Token: token, Session: session})
}

// handleOAuthLogin returns the provider consent URL the client should
// redirect to.
func (s *Server) handleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !s.google.Configured() {
		s.writeError(w, apiError(ErrOffline, SurfaceAuth, "Google sign-in is not configured."))
		return
	}
	url, state, err := s.google.LoginURL()
	if err != nil {
		s.logger.Error("login URL generation failed", "err", err)
		s.writeError(w, apiError(ErrOffline, SurfaceAuth, ""))
		return
	}
	s.states.issue(state)
	s.writeJSON(w, map[string]string{"url": url, "state": state})
}

// handleOAuthCallback verifies the state nonce, exchanges the
// authorization code, and creates a regular session for the resolved
// identity.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if !s.states.consume(r.URL.Query().Get("state")) {
		s.writeError(w, apiError(ErrBadRequest, SurfaceAuth, "Invalid state parameter."))
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		s.writeError(w, apiError(ErrBadRequest, SurfaceAuth, "Missing authorization code."))
		return
	}

	account, profile, err := s.google.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Warn("oauth exchange failed", "err", err)
		s.writeError(w, apiError(ErrOffline, SurfaceAuth, ""))
		return
	}

	identity, err := auth.DetermineIdentity(account, profile)
	if err != nil {
		s.writeError(w, apiError(ErrForbidden, SurfaceAuth, ""))
		return
	}

	user := s.sessions.UpsertUser(identity.Email, identity.Name, identity.Image)
	session, token, err := s.sessions.CreateSession(user)
	if err != nil {
		s.logger.Error("session creation failed", "err", err)
		s.writeError(w, apiError(ErrOffline, SurfaceAuth, ""))
		return
	}
	s.writeJSON(w, loginResponse{Token: token, Session: session})
}

// handleSessionStatus returns the caller's session.
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(r)
	if !ok {
		s.writeError(w, apiError(ErrUnauthorized, SurfaceAPI, ""))
		return
	}
	s.writeJSON(w, session)
}

// handleLogout revokes the caller's token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Revoke(bearerToken(r))
	s.writeJSON(w, map[string]bool{"success": true})
}
