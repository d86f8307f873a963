// Package artifacts stores the documents created by the createDocument
// and updateDocument tools. Storage is in-memory; real persistence is an
// external concern.
package artifacts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the artifact flavor.
type Kind string

const (
	KindText  Kind = "text"
	KindCode  Kind = "code"
	KindSheet Kind = "sheet"
)

// ValidKind reports whether k names a supported artifact kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindText, KindCode, KindSheet:
		return true
	}
	return false
}

// Document is one artifact.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Suggestion is a proposed edit to a document.
type Suggestion struct {
	ID            string `json:"id"`
	DocumentID    string `json:"documentId"`
	OriginalText  string `json:"originalText"`
	SuggestedText string `json:"suggestedText"`
	Description   string `json:"description"`
}

// Store keeps documents and suggestions in memory.
type Store struct {
	documents   map[string]*Document
	suggestions map[string][]Suggestion
	mu          sync.RWMutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		documents:   make(map[string]*Document),
		suggestions: make(map[string][]Suggestion),
	}
}

// Create adds a new document and returns it.
func (s *Store) Create(title string, kind Kind, content string) (*Document, error) {
	if !ValidKind(kind) {
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	doc := &Document{
		ID:        uuid.NewString(),
		Title:     title,
		Kind:      kind,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.documents[doc.ID] = doc
	return doc, nil
}

// Get returns a document by ID.
func (s *Store) Get(id string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	return doc, ok
}

// Update rewrites a document's content.
func (s *Store) Update(id, content string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	doc.Content = content
	doc.UpdatedAt = time.Now().UTC()
	return doc, nil
}

// AddSuggestions records suggestions for a document.
func (s *Store) AddSuggestions(documentID string, suggestions []Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return fmt.Errorf("document %s not found", documentID)
	}
	for i := range suggestions {
		if suggestions[i].ID == "" {
			suggestions[i].ID = uuid.NewString()
		}
		suggestions[i].DocumentID = documentID
	}
	s.suggestions[documentID] = append(s.suggestions[documentID], suggestions...)
	return nil
}

// Suggestions returns the recorded suggestions for a document.
func (s *Store) Suggestions(documentID string) []Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Suggestion, len(s.suggestions[documentID]))
	copy(out, s.suggestions[documentID])
	return out
}
