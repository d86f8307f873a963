package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/recall-labs/recall/internal/auth"
)

type contextKey string

const sessionContextKey contextKey = "session"

// bearerToken extracts the session token from the Authorization header,
// falling back to the token query parameter for EventSource and
// WebSocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// authMiddleware requires a valid session on every request it wraps.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, apiError(ErrUnauthorized, SurfaceAPI, ""))
			return
		}
		session, err := s.sessions.Validate(token)
		if err != nil {
			s.writeError(w, apiError(ErrUnauthorized, SurfaceAPI, ""))
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the authenticated session placed by the
// middleware. The bool is false on unauthenticated routes.
func sessionFrom(r *http.Request) (*auth.Session, bool) {
	session, ok := r.Context().Value(sessionContextKey).(*auth.Session)
	return session, ok
}
