package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/recall-labs/recall/internal/artifacts"
	"github.com/recall-labs/recall/internal/prompts"
)

// DocumentOutput is the shared result shape of the artifact tools.
type DocumentOutput struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Kind    artifacts.Kind `json:"kind"`
	Content string         `json:"content,omitempty"`
	Message string         `json:"message,omitempty"`
	// Guidance instructs the model how to produce the document body in
	// a follow-up updateDocument call.
	Guidance string `json:"guidance,omitempty"`
}

// kindGuidance returns the writing guidance for a document kind.
func kindGuidance(kind artifacts.Kind) string {
	switch kind {
	case artifacts.KindCode:
		return prompts.CodePrompt
	case artifacts.KindSheet:
		return prompts.SheetPrompt
	default:
		return ""
	}
}

type createDocumentInput struct {
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Content string `json:"content,omitempty"`
}

// NewCreateDocumentTool builds the createDocument tool backed by the
// given artifact store.
func NewCreateDocumentTool(store *artifacts.Store) Tool {
	return Tool{
		Name:        "createDocument",
		Description: "Create a document artifact for writing or content creation activities. The document renders beside the conversation.",
		InputSchema: schemaObject(map[string]any{
			"title":   map[string]any{"type": "string"},
			"kind":    map[string]any{"type": "string", "enum": []string{"text", "code", "sheet"}},
			"content": map[string]any{"type": "string"},
		}, "title", "kind"),
		Execute: func(ctx context.Context, input json.RawMessage) (any, error) {
			var in createDocumentInput
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, fmt.Errorf("invalid createDocument input: %w", err)
			}
			if strings.TrimSpace(in.Title) == "" {
				return nil, fmt.Errorf("document title is required")
			}

			doc, err := store.Create(in.Title, artifacts.Kind(in.Kind), in.Content)
			if err != nil {
				return nil, err
			}
			out := DocumentOutput{
				ID:      doc.ID,
				Title:   doc.Title,
				Kind:    doc.Kind,
				Message: "A document was created and is now visible to the user.",
			}
			if in.Content == "" {
				out.Message = "An empty document was created and is now visible to the user. Write its content with updateDocument."
				out.Guidance = kindGuidance(doc.Kind)
			}
			return out, nil
		},
	}
}

type updateDocumentInput struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// NewUpdateDocumentTool builds the updateDocument tool.
func NewUpdateDocumentTool(store *artifacts.Store) Tool {
	return Tool{
		Name:        "updateDocument",
		Description: "Update an existing document artifact with new content based on the user's request.",
		InputSchema: schemaObject(map[string]any{
			"id":          map[string]any{"type": "string", "description": "The ID of the document to update"},
			"description": map[string]any{"type": "string", "description": "What to change"},
			"content":     map[string]any{"type": "string", "description": "The rewritten document content"},
		}, "id"),
		Execute: func(ctx context.Context, input json.RawMessage) (any, error) {
			var in updateDocumentInput
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, fmt.Errorf("invalid updateDocument input: %w", err)
			}

			// Without content this is a rewrite request: hand back the
			// current body and instructions, then expect a second call
			// carrying the rewritten content.
			if in.Content == "" {
				doc, ok := store.Get(in.ID)
				if !ok {
					return nil, fmt.Errorf("document %s not found", in.ID)
				}
				return DocumentOutput{
					ID:       doc.ID,
					Title:    doc.Title,
					Kind:     doc.Kind,
					Content:  doc.Content,
					Message:  "Call updateDocument again with the rewritten content.",
					Guidance: prompts.UpdateDocumentPrompt(doc.Content, string(doc.Kind)),
				}, nil
			}

			doc, err := store.Update(in.ID, in.Content)
			if err != nil {
				return nil, err
			}
			return DocumentOutput{
				ID:      doc.ID,
				Title:   doc.Title,
				Kind:    doc.Kind,
				Message: "The document has been updated.",
			}, nil
		},
	}
}

type requestSuggestionsInput struct {
	DocumentID  string                 `json:"documentId"`
	Suggestions []artifacts.Suggestion `json:"suggestions,omitempty"`
}

// SuggestionsOutput is the requestSuggestions tool result.
type SuggestionsOutput struct {
	ID          string                 `json:"id"`
	Suggestions []artifacts.Suggestion `json:"suggestions"`
	Message     string                 `json:"message"`
}

// NewRequestSuggestionsTool builds the requestSuggestions tool.
func NewRequestSuggestionsTool(store *artifacts.Store) Tool {
	return Tool{
		Name:        "requestSuggestions",
		Description: "Request writing suggestions for a document artifact.",
		InputSchema: schemaObject(map[string]any{
			"documentId": map[string]any{"type": "string", "description": "The ID of the document to suggest edits for"},
		}, "documentId"),
		Execute: func(ctx context.Context, input json.RawMessage) (any, error) {
			var in requestSuggestionsInput
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, fmt.Errorf("invalid requestSuggestions input: %w", err)
			}

			if len(in.Suggestions) > 0 {
				if err := store.AddSuggestions(in.DocumentID, in.Suggestions); err != nil {
					return nil, err
				}
			} else if _, ok := store.Get(in.DocumentID); !ok {
				return nil, fmt.Errorf("document %s not found", in.DocumentID)
			}

			return SuggestionsOutput{
				ID:          in.DocumentID,
				Suggestions: store.Suggestions(in.DocumentID),
				Message:     "Suggestions have been added to the document.",
			}, nil
		},
	}
}
