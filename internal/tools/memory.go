package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/recall-labs/recall/internal/supermemory"
)

// searchChunkThreshold is the fixed relevance cutoff for memory search.
const searchChunkThreshold = 0.6

// MemoryToolOptions scope the memory tools to one user's partition.
type MemoryToolOptions struct {
	// UserID keys the container tag: sm_project_<UserID>.
	UserID string
}

// AddMemoryOutput is what the addMemory tool returns on success.
type AddMemoryOutput struct {
	Success bool                `json:"success"`
	Memory  *supermemory.Memory `json:"memory"`
}

type addMemoryInput struct {
	Memory string `json:"memory"`
}

// NewAddMemoryTool builds the addMemory tool. A nil client means the
// API key was never configured; execution fails fast.
func NewAddMemoryTool(client *supermemory.Client, opts MemoryToolOptions) Tool {
	containerTags := []string{supermemory.ContainerTag(opts.UserID)}

	return Tool{
		Name: "addMemory",
		Description: "Add (remember) memories/details/information about the user or other facts or entities. " +
			"Run when explicitly asked or when the user mentions durable preferences/facts.",
		InputSchema: schemaObject(map[string]any{
			"memory": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "The text content of the memory to add.",
			},
		}, "memory"),
		Execute: func(ctx context.Context, input json.RawMessage) (any, error) {
			if client == nil {
				return nil, fmt.Errorf("supermemory API key missing")
			}

			var in addMemoryInput
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, fmt.Errorf("invalid addMemory input: %w", err)
			}
			if strings.TrimSpace(in.Memory) == "" {
				return nil, fmt.Errorf("memory content must not be empty")
			}

			res, err := client.Add(ctx, in.Memory, containerTags)
			if err != nil {
				return nil, err
			}
			return AddMemoryOutput{Success: true, Memory: res}, nil
		},
	}
}

// SearchMemoriesOutput is what the searchMemories tool returns.
type SearchMemoriesOutput struct {
	Success bool                       `json:"success"`
	Results []supermemory.SearchResult `json:"results"`
	Count   int                        `json:"count"`
}

type searchMemoriesInput struct {
	InformationToGet string `json:"informationToGet"`
	IncludeFullDocs  *bool  `json:"includeFullDocs,omitempty"`
	Limit            int    `json:"limit,omitempty"`
}

// NewSearchMemoriesTool builds the searchMemories tool.
func NewSearchMemoriesTool(client *supermemory.Client, opts MemoryToolOptions) Tool {
	containerTags := []string{supermemory.ContainerTag(opts.UserID)}

	return Tool{
		Name: "searchMemories",
		Description: "Search (recall) memories/details/information about the user or other facts. " +
			"Use when context from past choices may help the answer.",
		InputSchema: schemaObject(map[string]any{
			"informationToGet": map[string]any{
				"type":        "string",
				"description": "Terms to search for in the user's memories",
			},
			"includeFullDocs": map[string]any{
				"type":        "boolean",
				"default":     true,
				"description": "Include full document content.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"maximum":     50,
				"default":     5,
				"description": "Maximum number of results to return",
			},
		}, "informationToGet"),
		Execute: func(ctx context.Context, input json.RawMessage) (any, error) {
			if client == nil {
				return nil, fmt.Errorf("supermemory API key missing")
			}

			var in searchMemoriesInput
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, fmt.Errorf("invalid searchMemories input: %w", err)
			}
			if strings.TrimSpace(in.InformationToGet) == "" {
				return nil, fmt.Errorf("informationToGet is required")
			}

			includeFullDocs := true
			if in.IncludeFullDocs != nil {
				includeFullDocs = *in.IncludeFullDocs
			}
			limit := in.Limit
			if limit < 1 || limit > 50 {
				limit = 5
			}

			resp, err := client.Search(ctx, supermemory.SearchRequest{
				Query:           in.InformationToGet,
				ContainerTags:   containerTags,
				Limit:           limit,
				ChunkThreshold:  searchChunkThreshold,
				IncludeFullDocs: includeFullDocs,
			})
			if err != nil {
				return nil, err
			}
			return SearchMemoriesOutput{Success: true, Results: resp.Results, Count: len(resp.Results)}, nil
		},
	}
}
