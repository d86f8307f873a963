// Package render projects streamed chat messages into flat render
// fragments for the client to display. The projection is stateless: it
// is re-evaluated from the message parts on every update and keeps no
// memory between parts beyond what the part itself encodes.
package render

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/recall-labs/recall/internal/chatstore"
	"github.com/recall-labs/recall/internal/message"
)

// FragmentKind discriminates the rendered blocks.
type FragmentKind string

const (
	FragmentText       FragmentKind = "text"
	FragmentEditor     FragmentKind = "editor"
	FragmentReasoning  FragmentKind = "reasoning"
	FragmentAttachment FragmentKind = "attachment"
	FragmentTool       FragmentKind = "tool"
)

// Align is the horizontal placement of a text block.
type Align string

const (
	AlignLeft  Align = "left"
	AlignRight Align = "right"
)

// PreviewKind classifies an attachment preview.
type PreviewKind string

const (
	PreviewImage PreviewKind = "image"
	PreviewPDF   PreviewKind = "pdf"
	PreviewFile  PreviewKind = "file"
)

// Badge is the user-visible tool lifecycle label.
type Badge string

const (
	BadgePending   Badge = "Pending"
	BadgeRunning   Badge = "Running"
	BadgeCompleted Badge = "Completed"
	BadgeError     Badge = "Error"
)

// GuestMemoryNotice is shown in place of memory tool output for guest
// sessions.
const GuestMemoryNotice = "Memory is available for signed-in users only. Sign in to save and search memories."

// Fragment is one rendered block. Kind selects which fields apply.
type Fragment struct {
	Kind FragmentKind `json:"kind"`
	// Key identifies the fragment across re-renders: the part index for
	// text blocks, the attachment URL, or the toolCallId.
	Key string `json:"key"`

	// Text and reasoning fragments.
	Text  string `json:"text,omitempty"`
	Align Align  `json:"align,omitempty"`
	Live  bool   `json:"live,omitempty"`

	// Attachment fragments.
	Preview PreviewKind `json:"preview,omitempty"`
	Name    string      `json:"name,omitempty"`
	URL     string      `json:"url,omitempty"`

	// Tool fragments.
	ToolLabel  string `json:"toolLabel,omitempty"`
	Badge      Badge  `json:"badge,omitempty"`
	ShowInput  bool   `json:"showInput,omitempty"`
	Input      any    `json:"input,omitempty"`
	ShowOutput bool   `json:"showOutput,omitempty"`
	Output     any    `json:"output,omitempty"`
	ErrorText  string `json:"errorText,omitempty"`
	Notice     string `json:"notice,omitempty"`
}

// Options adjust a render pass.
type Options struct {
	// IsGuest gates memory tool output behind a disabled-feature notice.
	IsGuest bool
	// EditingMessageID swaps that user message's text for an editor.
	EditingMessageID string
	// IsLoading marks reasoning blocks as live-updating.
	IsLoading bool
}

var toolLabels = map[string]string{
	"getWeather":         "Get Weather",
	"createDocument":     "Create Document",
	"updateDocument":     "Update Document",
	"requestSuggestions": "Request Suggestions",
	"addMemory":          "Add Memory",
	"searchMemories":     "Search Memories",
}

// ToolLabel returns the display label for a tool name.
func ToolLabel(name string) string {
	if label, ok := toolLabels[name]; ok {
		return label
	}
	return name
}

// StateBadge maps a tool state to its display badge.
func StateBadge(state message.ToolState) Badge {
	switch state {
	case message.ToolStateInputStreaming:
		return BadgePending
	case message.ToolStateInputAvailable:
		return BadgeRunning
	case message.ToolStateOutputAvailable:
		return BadgeCompleted
	default:
		return BadgeError
	}
}

// memoryTools are gated for guest sessions.
var memoryTools = map[string]bool{
	"addMemory":      true,
	"searchMemories": true,
}

// SanitizeText strips control characters from model output before it is
// shown as rich text.
func SanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// Message renders one chat message to fragments: the attachment strip
// first, then the remaining parts in order.
func Message(msg *message.Message, opts Options) []Fragment {
	var out []Fragment

	for _, att := range msg.Attachments() {
		out = append(out, attachmentFragment(att))
	}

	editing := msg.Role == message.RoleUser && opts.EditingMessageID == msg.ID

	for i, part := range msg.Parts {
		switch {
		case part.Type == message.PartTypeFile:
			// Already rendered in the attachment strip.

		case part.Type == message.PartTypeText:
			if editing {
				out = append(out, Fragment{
					Kind: FragmentEditor,
					Key:  fragmentKey(msg.ID, i),
					Text: part.Text,
				})
				continue
			}
			align := AlignLeft
			if msg.Role == message.RoleUser {
				align = AlignRight
			}
			out = append(out, Fragment{
				Kind:  FragmentText,
				Key:   fragmentKey(msg.ID, i),
				Text:  SanitizeText(part.Text),
				Align: align,
			})

		case part.Type == message.PartTypeReasoning:
			out = append(out, Fragment{
				Kind: FragmentReasoning,
				Key:  fragmentKey(msg.ID, i),
				Text: SanitizeText(part.Text),
				Live: opts.IsLoading,
			})

		case part.Type.IsTool():
			out = append(out, toolFragment(part, opts))
		}
	}

	return out
}

func attachmentFragment(att message.Attachment) Fragment {
	preview := PreviewFile
	switch {
	case strings.HasPrefix(att.ContentType, "image"):
		preview = PreviewImage
	case att.ContentType == "application/pdf":
		preview = PreviewPDF
	}
	return Fragment{
		Kind:    FragmentAttachment,
		Key:     att.URL,
		Preview: preview,
		Name:    att.Name,
		URL:     att.URL,
	}
}

func toolFragment(part message.Part, opts Options) Fragment {
	toolName := part.Type.ToolName()
	frag := Fragment{
		Kind:      FragmentTool,
		Key:       part.ToolCallID,
		ToolLabel: ToolLabel(toolName),
		Badge:     StateBadge(part.State),
	}

	// Parameters panel only while the call is running.
	if part.State == message.ToolStateInputAvailable {
		frag.ShowInput = true
		frag.Input = part.Input
	}

	switch part.State {
	case message.ToolStateOutputAvailable:
		frag.ShowOutput = true
		if opts.IsGuest && memoryTools[toolName] {
			frag.Notice = GuestMemoryNotice
		} else {
			frag.Output = part.Output
		}
	case message.ToolStateOutputError:
		frag.ShowOutput = true
		frag.ErrorText = part.ErrorText
	}

	return frag
}

func fragmentKey(messageID string, index int) string {
	return fmt.Sprintf("message-%s-part-%d", messageID, index)
}

// Input is everything a message render depends on.
type Input struct {
	Message *message.Message
	Vote    *chatstore.Vote
	Options Options
}

// ShouldRerender reports whether two render inputs differ. The source
// this service replaced forced a re-render on every pass; here identity
// is by deep equality of the message parts, vote, and options.
func ShouldRerender(prev, next Input) bool {
	if prev.Options != next.Options {
		return true
	}
	if !reflect.DeepEqual(prev.Vote, next.Vote) {
		return true
	}
	switch {
	case prev.Message == nil && next.Message == nil:
		return false
	case prev.Message == nil || next.Message == nil:
		return true
	}
	return !reflect.DeepEqual(prev.Message.Parts, next.Message.Parts)
}
