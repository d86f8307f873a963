// Package api is the HTTP surface: session auth, chat, memory saving,
// and the streaming endpoints the web client consumes.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/recall-labs/recall/internal/artifacts"
	"github.com/recall-labs/recall/internal/auth"
	"github.com/recall-labs/recall/internal/chatstore"
	"github.com/recall-labs/recall/internal/config"
	"github.com/recall-labs/recall/internal/engine"
	"github.com/recall-labs/recall/internal/message"
	"github.com/recall-labs/recall/internal/supermemory"
	"github.com/recall-labs/recall/internal/tools"
)

// Server is the API server.
type Server struct {
	config     *config.Config
	logger     *log.Logger
	sessions   *auth.Store
	google     *auth.GoogleAuthenticator
	chats      *chatstore.Store
	documents  *artifacts.Store
	memory     *supermemory.Client
	engine     *engine.Engine
	weather    *tools.WeatherService
	hub        *streamHub
	states     *oauthStateSet
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// Option adjusts server construction, mostly for tests.
type Option func(*Server)

// WithMemoryClient overrides the memory store client. A nil client
// means the feature is unconfigured.
func WithMemoryClient(c *supermemory.Client) Option {
	return func(s *Server) { s.memory = c }
}

// WithEngine overrides the chat engine.
func WithEngine(e *engine.Engine) Option {
	return func(s *Server) { s.engine = e }
}

// WithWeatherService overrides the weather lookup service.
func WithWeatherService(w *tools.WeatherService) Option {
	return func(s *Server) { s.weather = w }
}

// WithGoogleAuthenticator overrides the OAuth authenticator, mainly
// so tests can point it at a fake provider.
func WithGoogleAuthenticator(g *auth.GoogleAuthenticator) Option {
	return func(s *Server) { s.google = g }
}

// NewServer wires the server from configuration.
func NewServer(cfg *config.Config, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		config:    cfg,
		logger:    logger,
		sessions:  auth.NewStore(),
		google:    auth.NewGoogleAuthenticator(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL),
		chats:     chatstore.NewStore(),
		documents: artifacts.NewStore(),
		weather:   tools.NewWeatherService(),
		hub:       newStreamHub(),
		states:    newOAuthStateSet(),
	}
	if cfg.Supermemory.APIKey != "" {
		var smOpts []supermemory.Option
		if cfg.Supermemory.BaseURL != "" {
			smOpts = append(smOpts, supermemory.WithBaseURL(cfg.Supermemory.BaseURL))
		}
		s.memory = supermemory.NewClient(cfg.Supermemory.APIKey, smOpts...)
	}
	if cfg.OpenAIKey != "" {
		s.engine = engine.New(engine.NewOpenAIClient(cfg.OpenAIKey), logger)
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return s.allowedOrigin(r.Header.Get("Origin")) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the HTTP server until it fails or Stop is called.
func (s *Server) Start() error {
	router := s.setupRoutes()
	addr := s.config.Addr()
	s.logger.Info("starting API server", "addr", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server and the session store.
func (s *Server) Stop(ctx context.Context) error {
	s.sessions.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.corsMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Authentication endpoints (no auth required)
	api.HandleFunc("/auth/guest", s.handleGuestLogin).Methods("POST")
	api.HandleFunc("/auth/login", s.handleOAuthLogin).Methods("GET")
	api.HandleFunc("/auth/callback", s.handleOAuthCallback).Methods("GET")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(s.authMiddleware)

	protected.HandleFunc("/auth/session", s.handleSessionStatus).Methods("GET")
	protected.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")

	// Memory saving (protected, regular users only)
	protected.HandleFunc("/memory", s.handleSaveMemory).Methods("POST")

	// Chat endpoints (protected)
	protected.HandleFunc("/chat/sessions", s.handleChatSessions).Methods("GET", "POST")
	protected.HandleFunc("/chat/sessions/{id}", s.handleChatSession).Methods("GET", "DELETE")
	protected.HandleFunc("/chat/sessions/{id}/messages", s.handleChatMessages).Methods("GET", "POST")
	protected.HandleFunc("/chat/sessions/{id}/rendered", s.handleRenderedMessages).Methods("GET")
	protected.HandleFunc("/chat/sessions/{id}/messages/{messageID}", s.handleEditMessage).Methods("PATCH")
	protected.HandleFunc("/chat/sessions/{id}/messages/{messageID}/vote", s.handleVote).Methods("GET", "PATCH")

	// Streaming (protected via token in query for EventSource/WS clients)
	protected.HandleFunc("/chat/sessions/{id}/stream", s.handleChatSSE)
	protected.HandleFunc("/chat/ws/{id}", s.handleChatWebSocket)

	// Health check (public)
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	return router
}

// allowedOrigin reports whether the origin may talk to this server.
// Localhost is always allowed; others come from configuration.
func (s *Server) allowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	if strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		strings.HasPrefix(origin, "http://[::1]:") {
		return true
	}
	for _, allowed := range s.config.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.allowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Response helpers
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(errorBody{
		Code:    fmt.Sprintf("%s:%s", err.Code, err.Surface),
		Message: err.Message(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"services": map[string]bool{
			"memory": s.memory != nil,
			"model":  s.engine != nil,
			"api":    true,
		},
	})
}

// toolRegistry assembles the per-user tool set. Memory tools carry the
// user's container scope; guests keep them so the model behaves the
// same, with output gated at render time.
func (s *Server) toolRegistry(user auth.User) *tools.Registry {
	memOpts := tools.MemoryToolOptions{UserID: user.ID}
	return tools.NewRegistry(
		tools.NewWeatherTool(s.weather),
		tools.NewAddMemoryTool(s.memory, memOpts),
		tools.NewSearchMemoriesTool(s.memory, memOpts),
		tools.NewCreateDocumentTool(s.documents),
		tools.NewUpdateDocumentTool(s.documents),
		tools.NewRequestSuggestionsTool(s.documents),
	)
}

// modelSpec resolves a model selector to the engine's view of it.
func (s *Server) modelSpec(name string) engine.ModelSpec {
	if name == "" {
		name = s.config.DefaultModel
	}
	mc := s.config.Model(name)
	return engine.ModelSpec{
		Name:          name,
		ProviderModel: mc.ProviderModel,
		MaxTokens:     mc.MaxOutputTokens,
		Pricing: message.Pricing{
			InputPer1K:  mc.CostPer1KInput,
			OutputPer1K: mc.CostPer1KOutput,
		},
		Context: message.ContextLimits{
			InputMax:    mc.ContextWindow,
			TotalMax:    mc.ContextWindow + mc.MaxOutputTokens,
			CombinedMax: mc.ContextWindow + mc.MaxOutputTokens,
		},
	}
}
