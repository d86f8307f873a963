package message

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartType is the discriminant of the Part union. Tool parts use the
// "tool-" prefix followed by the tool name, e.g. "tool-getWeather".
type PartType string

const (
	PartTypeText      PartType = "text"
	PartTypeReasoning PartType = "reasoning"
	PartTypeFile      PartType = "file"

	toolPartPrefix = "tool-"
)

// ToolPartType builds the part type for a named tool.
func ToolPartType(toolName string) PartType {
	return PartType(toolPartPrefix + toolName)
}

// IsTool reports whether the type names a tool invocation part.
func (t PartType) IsTool() bool {
	return strings.HasPrefix(string(t), toolPartPrefix)
}

// ToolName returns the tool name for a tool part type, or "" otherwise.
func (t PartType) ToolName() string {
	if !t.IsTool() {
		return ""
	}
	return strings.TrimPrefix(string(t), toolPartPrefix)
}

// ToolState is the lifecycle stage of a single tool invocation.
// Transitions only move forward:
//
//	input-streaming -> input-available -> output-available | output-error
type ToolState string

const (
	ToolStateInputStreaming  ToolState = "input-streaming"
	ToolStateInputAvailable  ToolState = "input-available"
	ToolStateOutputAvailable ToolState = "output-available"
	ToolStateOutputError     ToolState = "output-error"
)

var toolStateRank = map[ToolState]int{
	ToolStateInputStreaming:  0,
	ToolStateInputAvailable:  1,
	ToolStateOutputAvailable: 2,
	ToolStateOutputError:     2,
}

// Valid reports whether s is one of the four known states.
func (s ToolState) Valid() bool {
	_, ok := toolStateRank[s]
	return ok
}

// Terminal reports whether no further transition is allowed.
func (s ToolState) Terminal() bool {
	return s == ToolStateOutputAvailable || s == ToolStateOutputError
}

// CanTransition reports whether moving from s to next is a legal forward
// step of the lifecycle. Terminal states accept nothing.
func (s ToolState) CanTransition(next ToolState) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	return toolStateRank[next] == toolStateRank[s]+1
}

// Part is one discriminated segment of a streamed chat message: text,
// reasoning, a file attachment, or a tool invocation. The Type field
// selects which of the remaining fields are meaningful.
type Part struct {
	Type PartType `json:"type"`

	// Text and reasoning parts.
	Text string `json:"text,omitempty"`

	// File parts.
	URL       string `json:"url,omitempty"`
	Filename  string `json:"filename,omitempty"`
	MediaType string `json:"mediaType,omitempty"`

	// Tool parts.
	ToolCallID string    `json:"toolCallId,omitempty"`
	State      ToolState `json:"state,omitempty"`
	Input      any       `json:"input,omitempty"`
	Output     any       `json:"output,omitempty"`
	ErrorText  string    `json:"errorText,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// ReasoningPart builds a reasoning part.
func ReasoningPart(text string) Part {
	return Part{Type: PartTypeReasoning, Text: text}
}

// FilePart builds an attachment part from an Attachment.
func FilePart(a Attachment) Part {
	return Part{Type: PartTypeFile, URL: a.URL, Filename: a.Name, MediaType: a.ContentType}
}

// Validate checks the state/field coupling invariant for tool parts:
// the state fully determines which of input/output/errorText are set.
func (p Part) Validate() error {
	if !p.Type.IsTool() {
		return nil
	}
	if p.ToolCallID == "" {
		return fmt.Errorf("tool part %q missing toolCallId", p.Type)
	}
	if !p.State.Valid() {
		return fmt.Errorf("tool part %q has unknown state %q", p.Type, p.State)
	}
	switch p.State {
	case ToolStateOutputAvailable:
		if p.Output == nil {
			return fmt.Errorf("tool part %s in %s has no output", p.ToolCallID, p.State)
		}
		if p.ErrorText != "" {
			return fmt.Errorf("tool part %s in %s has errorText set", p.ToolCallID, p.State)
		}
	case ToolStateOutputError:
		if p.ErrorText == "" {
			return fmt.Errorf("tool part %s in %s has no errorText", p.ToolCallID, p.State)
		}
		if p.Output != nil {
			return fmt.Errorf("tool part %s in %s has output set", p.ToolCallID, p.State)
		}
	default:
		if p.Output != nil || p.ErrorText != "" {
			return fmt.Errorf("tool part %s in %s carries result fields", p.ToolCallID, p.State)
		}
	}
	return nil
}

// Metadata carries per-message bookkeeping.
type Metadata struct {
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a single chat turn: an ordered sequence of parts plus
// metadata. Parts are appended as they stream in; once the turn
// completes the message is immutable except for edit-in-place of a
// user message's text part.
type Message struct {
	ID       string   `json:"id"`
	Role     Role     `json:"role"`
	Parts    []Part   `json:"parts"`
	Metadata Metadata `json:"metadata"`
}

// NewMessage creates a message with a fresh ID and creation timestamp.
func NewMessage(role Role, parts ...Part) *Message {
	return &Message{
		ID:       uuid.NewString(),
		Role:     role,
		Parts:    parts,
		Metadata: Metadata{CreatedAt: time.Now().UTC()},
	}
}

// Text concatenates the message's text parts.
func (m *Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Attachments returns the attachments carried by the message's file parts.
func (m *Message) Attachments() []Attachment {
	var out []Attachment
	for _, p := range m.Parts {
		if p.Type == PartTypeFile {
			out = append(out, Attachment{Name: p.Filename, URL: p.URL, ContentType: p.MediaType})
		}
	}
	return out
}

// ToolPart returns the part for the given tool call ID, if present.
func (m *Message) ToolPart(toolCallID string) (Part, bool) {
	for _, p := range m.Parts {
		if p.Type.IsTool() && p.ToolCallID == toolCallID {
			return p, true
		}
	}
	return Part{}, false
}

// AdvanceToolPart replaces the tool part identified by toolCallID with
// next, enforcing the forward-only state machine. The toolCallID and
// type of the existing part must match.
func (m *Message) AdvanceToolPart(next Part) error {
	if err := next.Validate(); err != nil {
		return err
	}
	for i, p := range m.Parts {
		if p.Type.IsTool() && p.ToolCallID == next.ToolCallID {
			if p.Type != next.Type {
				return fmt.Errorf("tool call %s changed type from %q to %q", next.ToolCallID, p.Type, next.Type)
			}
			if !p.State.CanTransition(next.State) {
				return fmt.Errorf("tool call %s cannot move from %s to %s", next.ToolCallID, p.State, next.State)
			}
			m.Parts[i] = next
			return nil
		}
	}
	return fmt.Errorf("tool call %s not found", next.ToolCallID)
}

// Attachment is an immutable file reference; URL doubles as its identity
// in rendering lists.
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// guestEmailRegex matches the synthetic addresses minted for guest users.
var guestEmailRegex = regexp.MustCompile(`^guest-\d+`)

// IsGuestEmail reports whether the address looks like a provisioned guest
// account. Used as a fallback when the session type is not authoritative.
func IsGuestEmail(email string) bool {
	return guestEmailRegex.MatchString(email)
}
