package engine

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/recall-labs/recall/internal/message"
)

// OpenAIClient implements ModelClient on the official OpenAI SDK.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a client with the given API key.
func NewOpenAIClient(apiKey string, opts ...option.RequestOption) *OpenAIClient {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(all...)
	return &OpenAIClient{client: &client}
}

// Stream starts one streaming completion.
func (c *OpenAIClient) Stream(ctx context.Context, req ModelRequest) (ModelStream, error) {
	params := openai.ChatCompletionNewParams{
		Messages: convertMessages(req.System, req.Messages),
		Model:    req.Model,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.InputSchema),
			},
		})
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	return &openaiStream{inner: stream}, nil
}

// convertMessages flattens our part-structured messages into the chat
// completion wire shape. Tool parts become an assistant tool_calls
// entry followed by tool-role results; reasoning parts are not sent
// back to the provider.
func convertMessages(system string, msgs []*message.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}

	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleUser:
			text := msg.Text()
			for _, att := range msg.Attachments() {
				if text != "" {
					text += "\n"
				}
				text += "[attachment: " + att.Name + " (" + att.ContentType + ") " + att.URL + "]"
			}
			if text != "" {
				out = append(out, openai.UserMessage(text))
			}
		case message.RoleAssistant:
			var toolCalls []openai.ChatCompletionMessageToolCallParam
			var toolResults []openai.ChatCompletionMessageParamUnion
			for _, p := range msg.Parts {
				if !p.Type.IsTool() || !p.State.Terminal() {
					continue
				}
				args, err := json.Marshal(p.Input)
				if err != nil {
					args = []byte("{}")
				}
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: p.ToolCallID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      p.Type.ToolName(),
						Arguments: string(args),
					},
				})
				toolResults = append(toolResults, openai.ToolMessage(toolResultContent(p), p.ToolCallID))
			}

			if text := msg.Text(); text != "" || len(toolCalls) > 0 {
				assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
				if text != "" {
					assistant.Content.OfString = openai.String(text)
				}
				out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
			}
			out = append(out, toolResults...)
		}
	}
	return out
}

func toolResultContent(p message.Part) string {
	if p.State == message.ToolStateOutputError {
		return "error: " + p.ErrorText
	}
	data, err := json.Marshal(p.Output)
	if err != nil {
		return "{}"
	}
	return string(data)
}

type openaiStream struct {
	inner interface {
		Next() bool
		Current() openai.ChatCompletionChunk
		Err() error
	}
	current StreamChunk
}

func (s *openaiStream) Next() bool {
	if !s.inner.Next() {
		return false
	}
	evt := s.inner.Current()
	chunk := StreamChunk{}

	if len(evt.Choices) > 0 {
		choice := evt.Choices[0]
		chunk.TextDelta = choice.Delta.Content
		chunk.FinishReason = choice.FinishReason
		for _, tc := range choice.Delta.ToolCalls {
			chunk.ToolCalls = append(chunk.ToolCalls, ToolCallDelta{
				Index:     int(tc.Index),
				ID:        tc.ID,
				Name:      tc.Function.Name,
				ArgsDelta: tc.Function.Arguments,
			})
		}
	}
	if evt.Usage.TotalTokens > 0 {
		chunk.Usage = &ModelUsage{
			InputTokens:       evt.Usage.PromptTokens,
			OutputTokens:      evt.Usage.CompletionTokens,
			ReasoningTokens:   evt.Usage.CompletionTokensDetails.ReasoningTokens,
			CachedInputTokens: evt.Usage.PromptTokensDetails.CachedTokens,
			TotalTokens:       evt.Usage.TotalTokens,
		}
	}

	s.current = chunk
	return true
}

func (s *openaiStream) Current() StreamChunk { return s.current }

func (s *openaiStream) Err() error { return s.inner.Err() }
