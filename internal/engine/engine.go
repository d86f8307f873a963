// Package engine is the streaming chat runtime: it sends the
// conversation to the model, appends parts to the assistant message as
// deltas arrive, drives tool calls through their lifecycle, and reports
// token usage. Thrown tool errors become output-error parts; the engine
// itself never retries.
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/recall-labs/recall/internal/message"
	"github.com/recall-labs/recall/internal/prompts"
	"github.com/recall-labs/recall/internal/tools"
)

// EventKind discriminates stream events sent to subscribers.
type EventKind string

const (
	EventTextDelta      EventKind = "text-delta"
	EventReasoningDelta EventKind = "reasoning-delta"
	EventToolPart       EventKind = "tool-part"
	EventUsage          EventKind = "usage"
	EventFinish         EventKind = "finish"
)

// Event is one incremental update of the assistant turn.
type Event struct {
	Kind      EventKind      `json:"kind"`
	MessageID string         `json:"messageId"`
	Delta     string         `json:"delta,omitempty"`
	Part      *message.Part  `json:"part,omitempty"`
	Usage     *message.Usage `json:"usage,omitempty"`
}

// Sink receives events as they happen. A nil sink drops them.
type Sink func(Event)

// ToolCallDelta is an incremental piece of a streamed tool call.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	ArgsDelta string
}

// ModelUsage is the provider's raw usage block.
type ModelUsage struct {
	InputTokens       int64
	OutputTokens      int64
	ReasoningTokens   int64
	CachedInputTokens int64
	TotalTokens       int64
}

// StreamChunk is one model stream event, provider-agnostic.
type StreamChunk struct {
	TextDelta    string
	ToolCalls    []ToolCallDelta
	FinishReason string
	Usage        *ModelUsage
}

// ModelStream iterates chunks; Err reports a stream failure after Next
// returns false.
type ModelStream interface {
	Next() bool
	Current() StreamChunk
	Err() error
}

// ModelRequest is a single completion request.
type ModelRequest struct {
	Model     string
	System    string
	Messages  []*message.Message
	Tools     []tools.Tool
	MaxTokens int
}

// ModelClient streams completions from a provider.
type ModelClient interface {
	Stream(ctx context.Context, req ModelRequest) (ModelStream, error)
}

// ModelSpec is what the engine needs to know about the selected model.
type ModelSpec struct {
	// Name is the app-level selector, e.g. "chat-model-reasoning".
	Name string
	// ProviderModel is the provider-side identifier, e.g. "gpt-4o".
	ProviderModel string
	MaxTokens     int
	Pricing       message.Pricing
	Context       message.ContextLimits
}

// maxToolRounds bounds the tool loop per user turn.
const maxToolRounds = 5

// Engine runs assistant turns.
type Engine struct {
	client ModelClient
	logger *log.Logger
}

// New creates an engine on a model client.
func New(client ModelClient, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{client: client, logger: logger}
}

// RunInput parameterizes one assistant turn.
type RunInput struct {
	Model    ModelSpec
	Hints    prompts.RequestHints
	History  []*message.Message
	Registry *tools.Registry
	Sink     Sink
}

// Run produces the assistant message for the given history, streaming
// events to the sink as it goes. The returned message is complete and
// validated; usage reflects the whole turn.
func (e *Engine) Run(ctx context.Context, in RunInput) (*message.Message, *message.Usage, error) {
	emit := in.Sink
	if emit == nil {
		emit = func(Event) {}
	}

	assistant := message.NewMessage(message.RoleAssistant)
	usage := &message.Usage{Context: in.Model.Context}
	system := prompts.SystemPrompt(in.Model.Name, in.Hints)

	conversation := append([]*message.Message{}, in.History...)

	var toolSpecs []tools.Tool
	if in.Registry != nil {
		toolSpecs = in.Registry.All()
	}

	for round := 0; round < maxToolRounds; round++ {
		stream, err := e.client.Stream(ctx, ModelRequest{
			Model:     in.Model.ProviderModel,
			System:    system,
			Messages:  append(conversation, assistant),
			Tools:     toolSpecs,
			MaxTokens: in.Model.MaxTokens,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("model stream: %w", err)
		}

		calls, err := e.consumeStream(ctx, stream, assistant, usage, emit)
		if err != nil {
			return nil, nil, err
		}

		if len(calls) == 0 {
			break
		}
		if err := e.executeCalls(ctx, in.Registry, assistant, calls, emit); err != nil {
			return nil, nil, err
		}
	}

	usage.CostUSD = usage.Cost(in.Model.Pricing)
	emit(Event{Kind: EventUsage, MessageID: assistant.ID, Usage: usage})
	emit(Event{Kind: EventFinish, MessageID: assistant.ID})

	return assistant, usage, nil
}

// pendingCall is a tool call assembled from stream deltas. The first
// non-empty ID seen for an index sticks; later deltas for the same
// index only ever extend the arguments.
type pendingCall struct {
	id      string
	name    string
	args    string
	started bool
}

// consumeStream drains one model stream into the assistant message and
// returns any completed tool calls awaiting execution.
func (e *Engine) consumeStream(ctx context.Context, stream ModelStream, assistant *message.Message, usage *message.Usage, emit Sink) ([]pendingCall, error) {
	splitter := newThinkSplitter()
	calls := map[int]*pendingCall{}
	maxIndex := -1

	appendText := func(text, reasoning string) {
		if reasoning != "" {
			appendDelta(assistant, message.PartTypeReasoning, reasoning)
			emit(Event{Kind: EventReasoningDelta, MessageID: assistant.ID, Delta: reasoning})
		}
		if text != "" {
			appendDelta(assistant, message.PartTypeText, text)
			emit(Event{Kind: EventTextDelta, MessageID: assistant.ID, Delta: text})
		}
	}

	for stream.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk := stream.Current()

		if chunk.TextDelta != "" {
			text, reasoning := splitter.Write(chunk.TextDelta)
			appendText(text, reasoning)
		}

		for _, delta := range chunk.ToolCalls {
			call, ok := calls[delta.Index]
			if !ok {
				call = &pendingCall{}
				calls[delta.Index] = call
				if delta.Index > maxIndex {
					maxIndex = delta.Index
				}
			}
			if delta.ID != "" && call.id == "" {
				call.id = delta.ID
			}
			if delta.Name != "" && call.name == "" {
				call.name = delta.Name
			}
			call.args += delta.ArgsDelta

			if !call.started && call.id != "" && call.name != "" {
				call.started = true
				part := message.Part{
					Type:       message.ToolPartType(call.name),
					ToolCallID: call.id,
					State:      message.ToolStateInputStreaming,
				}
				assistant.Parts = append(assistant.Parts, part)
				emit(Event{Kind: EventToolPart, MessageID: assistant.ID, Part: &part})
			}
		}

		if chunk.Usage != nil {
			usage.InputTokens += chunk.Usage.InputTokens
			usage.OutputTokens += chunk.Usage.OutputTokens
			usage.ReasoningTokens += chunk.Usage.ReasoningTokens
			usage.CachedInputTokens += chunk.Usage.CachedInputTokens
			usage.TotalTokens += chunk.Usage.TotalTokens
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("model stream: %w", err)
	}

	text, reasoning := splitter.Flush()
	appendText(text, reasoning)

	ordered := make([]pendingCall, 0, len(calls))
	for i := 0; i <= maxIndex; i++ {
		call, ok := calls[i]
		if !ok {
			continue
		}
		if call.id == "" {
			// Providers may omit the call ID; mint one so the part
			// lifecycle still has an identity.
			call.id = uuid.NewString()
		}
		if !call.started {
			call.started = true
			assistant.Parts = append(assistant.Parts, message.Part{
				Type:       message.ToolPartType(call.name),
				ToolCallID: call.id,
				State:      message.ToolStateInputStreaming,
			})
		}
		ordered = append(ordered, *call)
	}
	return ordered, nil
}

// executeCalls advances each pending call to input-available, executes
// it, and lands it in a terminal state.
func (e *Engine) executeCalls(ctx context.Context, registry *tools.Registry, assistant *message.Message, calls []pendingCall, emit Sink) error {
	for _, call := range calls {
		var input any
		args := call.args
		if args == "" {
			args = "{}"
		}
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			input = args
		}

		running := message.Part{
			Type:       message.ToolPartType(call.name),
			ToolCallID: call.id,
			State:      message.ToolStateInputAvailable,
			Input:      input,
		}
		if err := assistant.AdvanceToolPart(running); err != nil {
			return err
		}
		emit(Event{Kind: EventToolPart, MessageID: assistant.ID, Part: &running})

		terminal := running
		if registry == nil {
			terminal.State = message.ToolStateOutputError
			terminal.ErrorText = fmt.Sprintf("unknown tool %q", call.name)
		} else if output, err := registry.Execute(ctx, call.name, json.RawMessage(args)); err != nil {
			e.logger.Warn("tool call failed", "tool", call.name, "err", err)
			terminal.State = message.ToolStateOutputError
			terminal.ErrorText = err.Error()
		} else {
			terminal.State = message.ToolStateOutputAvailable
			terminal.Output = output
		}

		if err := assistant.AdvanceToolPart(terminal); err != nil {
			return err
		}
		emit(Event{Kind: EventToolPart, MessageID: assistant.ID, Part: &terminal})
	}
	return nil
}

// appendDelta extends the trailing part of the given type, or starts a
// new one if the message ends with something else.
func appendDelta(msg *message.Message, partType message.PartType, delta string) {
	if n := len(msg.Parts); n > 0 && msg.Parts[n-1].Type == partType {
		msg.Parts[n-1].Text += delta
		return
	}
	msg.Parts = append(msg.Parts, message.Part{Type: partType, Text: delta})
}
