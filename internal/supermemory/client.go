// Package supermemory is a thin client for the Supermemory REST API.
// Clients are constructed explicitly and injected; nothing here holds
// module-level state.
package supermemory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.supermemory.ai"

// ContainerTag returns the partition key scoping memories to one user.
func ContainerTag(userID string) string {
	return "sm_project_" + userID
}

// Client talks to the Supermemory API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client with the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Memory is the store's view of a saved memory. Beyond ID and content
// the record is opaque to us.
type Memory struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content,omitempty"`
	Status  string `json:"status,omitempty"`
}

type addRequest struct {
	Content       string   `json:"content"`
	ContainerTags []string `json:"containerTags"`
}

// Add stores a memory under the given container tags and returns the
// store's response.
func (c *Client) Add(ctx context.Context, content string, containerTags []string) (*Memory, error) {
	var out Memory
	if err := c.post(ctx, "/v3/memories", addRequest{Content: content, ContainerTags: containerTags}, &out); err != nil {
		return nil, fmt.Errorf("supermemory add: %w", err)
	}
	return &out, nil
}

// SearchRequest parameterizes a memory search.
type SearchRequest struct {
	Query           string   `json:"q"`
	ContainerTags   []string `json:"containerTags,omitempty"`
	Limit           int      `json:"limit,omitempty"`
	ChunkThreshold  float64  `json:"chunkThreshold,omitempty"`
	IncludeFullDocs bool     `json:"includeFullDocs"`
}

// SearchResult is one matching memory.
type SearchResult struct {
	ID      string  `json:"id,omitempty"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// SearchResponse is the store's answer to a search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total,omitempty"`
}

// Search queries the store.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var out SearchResponse
	if err := c.post(ctx, "/v3/search", req, &out); err != nil {
		return nil, fmt.Errorf("supermemory search: %w", err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
