package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/oauth2"

	"github.com/recall-labs/recall/internal/auth"
	"github.com/recall-labs/recall/internal/chatstore"
	"github.com/recall-labs/recall/internal/config"
	"github.com/recall-labs/recall/internal/engine"
	"github.com/recall-labs/recall/internal/message"
	"github.com/recall-labs/recall/internal/render"
	"github.com/recall-labs/recall/internal/supermemory"
)

type scriptedStream struct {
	chunks []engine.StreamChunk
	pos    int
}

func (s *scriptedStream) Next() bool {
	if s.pos < len(s.chunks) {
		s.pos++
		return true
	}
	return false
}

func (s *scriptedStream) Current() engine.StreamChunk { return s.chunks[s.pos-1] }
func (s *scriptedStream) Err() error                  { return nil }

type scriptedModel struct {
	reply string
}

func (m *scriptedModel) Stream(ctx context.Context, req engine.ModelRequest) (engine.ModelStream, error) {
	return &scriptedStream{chunks: []engine.StreamChunk{{TextDelta: m.reply}}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:       config.ServerConfig{Host: "127.0.0.1", Port: 0},
		DefaultModel: "chat-model",
		Models: map[string]config.ModelConfig{
			"chat-model": {ProviderModel: "gpt-4o", ContextWindow: 128000},
		},
	}
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	base := []Option{WithEngine(engine.New(&scriptedModel{reply: "hello"}, nil))}
	srv := NewServer(testConfig(), nil, append(base, opts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { srv.Stop(context.Background()) })
	return srv, ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var fields map[string]json.RawMessage
	json.NewDecoder(resp.Body).Decode(&fields)
	return resp, fields
}

func guestToken(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, fields := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/guest", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("guest login status = %d", resp.StatusCode)
	}
	var token string
	json.Unmarshal(fields["token"], &token)
	if token == "" {
		t.Fatal("guest login returned no token")
	}
	return token
}

func regularToken(t *testing.T, srv *Server) string {
	t.Helper()
	user := srv.sessions.UpsertUser("pat@example.com", "Pat", "")
	_, token, err := srv.sessions.CreateSession(user)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return token
}

func errorCode(t *testing.T, fields map[string]json.RawMessage) string {
	t.Helper()
	var code string
	json.Unmarshal(fields["code"], &code)
	return code
}

func errorMessage(t *testing.T, fields map[string]json.RawMessage) string {
	t.Helper()
	var msg string
	json.Unmarshal(fields["message"], &msg)
	return msg
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, fields := doJSON(t, http.MethodGet, ts.URL+"/api/v1/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var status string
	json.Unmarshal(fields["status"], &status)
	if status != "healthy" {
		t.Errorf("status = %q", status)
	}
}

func TestGuestSessionLifecycle(t *testing.T) {
	_, ts := newTestServer(t)
	token := guestToken(t, ts)

	resp, fields := doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/session", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session status = %d", resp.StatusCode)
	}
	var user auth.User
	json.Unmarshal(fields["user"], &user)
	if user.Type != auth.UserTypeGuest {
		t.Errorf("user type = %s, want guest", user.Type)
	}
	if !message.IsGuestEmail(user.Email) {
		t.Errorf("guest email = %q", user.Email)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/session", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status after logout = %d, want 401", resp.StatusCode)
	}
}

func TestOAuthCallbackState(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"at-1","token_type":"Bearer"}`)
		case "/userinfo":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"sub":"goog-1","email":"ada@example.com","name":"Ada"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer provider.Close()

	google := auth.NewGoogleAuthenticator("client-id", "secret", "http://localhost/cb",
		auth.WithEndpoint(oauth2.Endpoint{AuthURL: provider.URL + "/auth", TokenURL: provider.URL + "/token"}),
		auth.WithUserinfoURL(provider.URL+"/userinfo"),
	)
	_, ts := newTestServer(t, WithGoogleAuthenticator(google))

	t.Run("forged state is rejected", func(t *testing.T) {
		resp, fields := doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/callback?code=abc&state=forged", "", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		if code := errorCode(t, fields); code != "bad_request:auth" {
			t.Errorf("code = %q", code)
		}
	})

	t.Run("issued state signs in once", func(t *testing.T) {
		resp, fields := doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/login", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login status = %d", resp.StatusCode)
		}
		var state string
		json.Unmarshal(fields["state"], &state)
		if state == "" {
			t.Fatal("login response has no state")
		}

		resp, fields = doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/callback?code=abc&state="+state, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("callback status = %d", resp.StatusCode)
		}
		var login loginResponse
		raw, _ := json.Marshal(fields)
		json.Unmarshal(raw, &login)
		if login.Token == "" || login.Session == nil {
			t.Fatal("callback did not return a session")
		}
		if login.Session.User.Email != "ada@example.com" {
			t.Errorf("email = %q", login.Session.User.Email)
		}

		// Replaying the same state must fail.
		resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/callback?code=abc&state="+state, "", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("replayed state status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestSaveMemory(t *testing.T) {
	var storeCalls int64
	memoryBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&storeCalls, 1)
		switch r.URL.Path {
		case "/v3/memories":
			json.NewEncoder(w).Encode(map[string]string{"id": "mem-1", "status": "queued"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer memoryBackend.Close()

	client := supermemory.NewClient("test-key", supermemory.WithBaseURL(memoryBackend.URL))
	srv, ts := newTestServer(t, WithMemoryClient(client))
	url := ts.URL + "/api/v1/memory"

	t.Run("unauthorized without session", func(t *testing.T) {
		resp, fields := doJSON(t, http.MethodPost, url, "", map[string]string{"memory": "remember me"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
		if code := errorCode(t, fields); code != "unauthorized:api" {
			t.Errorf("code = %q", code)
		}
	})

	t.Run("forbidden for guests without store call", func(t *testing.T) {
		before := atomic.LoadInt64(&storeCalls)
		token := guestToken(t, ts)
		resp, fields := doJSON(t, http.MethodPost, url, token, map[string]string{"memory": "remember me"})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
		if code := errorCode(t, fields); code != "forbidden:auth" {
			t.Errorf("code = %q", code)
		}
		if after := atomic.LoadInt64(&storeCalls); after != before {
			t.Errorf("store was called %d times", after-before)
		}
	})

	t.Run("bad request for empty memory without store call", func(t *testing.T) {
		before := atomic.LoadInt64(&storeCalls)
		token := regularToken(t, srv)
		for _, body := range []any{
			map[string]string{"memory": ""},
			map[string]string{"memory": "   "},
			map[string]any{"memory": 42},
			map[string]any{},
		} {
			resp, _ := doJSON(t, http.MethodPost, url, token, body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("body %v: status = %d, want 400", body, resp.StatusCode)
			}
		}
		if after := atomic.LoadInt64(&storeCalls); after != before {
			t.Errorf("store was called %d times", after-before)
		}
	})

	t.Run("saves for regular users", func(t *testing.T) {
		token := regularToken(t, srv)
		resp, fields := doJSON(t, http.MethodPost, url, token, map[string]string{"memory": "I live in Austin"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var success bool
		json.Unmarshal(fields["success"], &success)
		if !success {
			t.Error("success = false")
		}
		var mem supermemory.Memory
		json.Unmarshal(fields["memory"], &mem)
		if mem.ID != "mem-1" {
			t.Errorf("memory id = %q", mem.ID)
		}
	})
}

func TestSaveMemoryOffline(t *testing.T) {
	t.Run("missing API key", func(t *testing.T) {
		srv, ts := newTestServer(t)
		token := regularToken(t, srv)
		resp, fields := doJSON(t, http.MethodPost, ts.URL+"/api/v1/memory", token, map[string]string{"memory": "x"})
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", resp.StatusCode)
		}
		if code := errorCode(t, fields); code != "offline:api" {
			t.Errorf("code = %q", code)
		}
		if msg := errorMessage(t, fields); msg != "Missing Supermemory API key" {
			t.Errorf("message = %q", msg)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"error":"upstream down"}`)
		}))
		defer backend.Close()

		client := supermemory.NewClient("test-key", supermemory.WithBaseURL(backend.URL))
		srv, ts := newTestServer(t, WithMemoryClient(client))
		token := regularToken(t, srv)
		resp, fields := doJSON(t, http.MethodPost, ts.URL+"/api/v1/memory", token, map[string]string{"memory": "x"})
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", resp.StatusCode)
		}
		if msg := errorMessage(t, fields); !strings.Contains(msg, "supermemory add") || !strings.Contains(msg, "502") {
			t.Errorf("message = %q, want the underlying store error", msg)
		}
	})
}

func TestChatFlow(t *testing.T) {
	srv, ts := newTestServer(t)
	token := regularToken(t, srv)

	// Create a chat session
	resp, fields := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat/sessions", token, createSessionRequest{Title: "Weather talk"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	var chat chatstore.Session
	raw, _ := json.Marshal(fields)
	json.Unmarshal(raw, &chat)
	if chat.ID == "" {
		t.Fatal("chat session has no id")
	}
	if chat.Model != "chat-model" {
		t.Errorf("model = %q, want default", chat.Model)
	}

	// Send a message and get the assistant reply
	msgURL := ts.URL + "/api/v1/chat/sessions/" + chat.ID + "/messages"
	resp, fields = doJSON(t, http.MethodPost, msgURL, token, sendMessageRequest{Text: "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send message status = %d", resp.StatusCode)
	}
	var assistant message.Message
	json.Unmarshal(fields["assistantMessage"], &assistant)
	if assistant.Text() != "hello" {
		t.Errorf("assistant text = %q", assistant.Text())
	}

	// History now holds both turns
	resp, fields = doJSON(t, http.MethodGet, msgURL, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list messages status = %d", resp.StatusCode)
	}
	var msgs []*message.Message
	json.Unmarshal(fields["messages"], &msgs)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}

	// Vote on the assistant message
	voteURL := msgURL + "/" + msgs[1].ID + "/vote"
	resp, _ = doJSON(t, http.MethodPatch, voteURL, token, voteRequest{IsUpvoted: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("vote status = %d", resp.StatusCode)
	}
	resp, fields = doJSON(t, http.MethodGet, voteURL, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get vote status = %d", resp.StatusCode)
	}
	var upvoted bool
	json.Unmarshal(fields["isUpvoted"], &upvoted)
	if !upvoted {
		t.Error("vote not recorded")
	}

	// Edit the user message in place: history truncates and regenerates
	editURL := msgURL + "/" + msgs[0].ID
	resp, _ = doJSON(t, http.MethodPatch, editURL, token, editMessageRequest{Text: "hello again"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit status = %d", resp.StatusCode)
	}
	_, fields = doJSON(t, http.MethodGet, msgURL, token, nil)
	json.Unmarshal(fields["messages"], &msgs)
	if len(msgs) != 2 {
		t.Fatalf("messages after edit = %d, want 2", len(msgs))
	}
	if msgs[0].Text() != "hello again" {
		t.Errorf("edited text = %q", msgs[0].Text())
	}
}

func TestChatOwnership(t *testing.T) {
	srv, ts := newTestServer(t)
	owner := regularToken(t, srv)
	other := guestToken(t, ts)

	_, fields := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat/sessions", owner, createSessionRequest{})
	var chat chatstore.Session
	raw, _ := json.Marshal(fields)
	json.Unmarshal(raw, &chat)

	resp, fields := doJSON(t, http.MethodGet, ts.URL+"/api/v1/chat/sessions/"+chat.ID, other, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign access status = %d, want 403", resp.StatusCode)
	}
	if code := errorCode(t, fields); code != "forbidden:chat" {
		t.Errorf("code = %q", code)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/chat/sessions/missing", owner, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing chat status = %d, want 404", resp.StatusCode)
	}
}

func TestSendMessageValidation(t *testing.T) {
	srv, ts := newTestServer(t)
	token := regularToken(t, srv)

	_, fields := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat/sessions", token, createSessionRequest{})
	var chat chatstore.Session
	raw, _ := json.Marshal(fields)
	json.Unmarshal(raw, &chat)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat/sessions/"+chat.ID+"/messages", token, sendMessageRequest{Text: "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank message status = %d, want 400", resp.StatusCode)
	}
}

func TestRenderedMessages(t *testing.T) {
	srv, ts := newTestServer(t)
	token := guestToken(t, ts)

	_, fields := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat/sessions", token, createSessionRequest{})
	var chat chatstore.Session
	raw, _ := json.Marshal(fields)
	json.Unmarshal(raw, &chat)

	// Seed history directly: a user turn and an assistant turn with a
	// completed memory tool call.
	userMsg := message.NewMessage(message.RoleUser, message.TextPart("what do you remember?"))
	assistant := message.NewMessage(message.RoleAssistant,
		message.Part{
			Type:       message.ToolPartType("searchMemories"),
			ToolCallID: "call-1",
			State:      message.ToolStateOutputAvailable,
			Output:     map[string]any{"count": 1},
		},
		message.TextPart("here is what I found"),
	)
	if err := srv.chats.AppendMessage(chat.ID, userMsg); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if err := srv.chats.AppendMessage(chat.ID, assistant); err != nil {
		t.Fatalf("append assistant: %v", err)
	}

	resp, fields := doJSON(t, http.MethodGet, ts.URL+"/api/v1/chat/sessions/"+chat.ID+"/rendered", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rendered status = %d", resp.StatusCode)
	}

	var rendered []renderedMessage
	json.Unmarshal(fields["messages"], &rendered)
	if len(rendered) != 2 {
		t.Fatalf("rendered messages = %d, want 2", len(rendered))
	}

	userFrags := rendered[0].Fragments
	if len(userFrags) != 1 || userFrags[0].Align != render.AlignRight {
		t.Errorf("user fragments = %+v", userFrags)
	}

	var tool *render.Fragment
	for i := range rendered[1].Fragments {
		if rendered[1].Fragments[i].Kind == render.FragmentTool {
			tool = &rendered[1].Fragments[i]
		}
	}
	if tool == nil {
		t.Fatal("no tool fragment rendered")
	}
	if tool.Badge != render.BadgeCompleted {
		t.Errorf("badge = %s, want Completed", tool.Badge)
	}
	if tool.Notice != render.GuestMemoryNotice {
		t.Errorf("guest memory output not gated: %+v", tool)
	}
	if tool.Output != nil {
		t.Errorf("gated output leaked: %+v", tool.Output)
	}
}
