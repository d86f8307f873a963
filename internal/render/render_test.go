package render

import (
	"testing"

	"github.com/recall-labs/recall/internal/chatstore"
	"github.com/recall-labs/recall/internal/message"
)

func TestTextAlignmentByRole(t *testing.T) {
	user := message.NewMessage(message.RoleUser, message.TextPart("hi"))
	assistant := message.NewMessage(message.RoleAssistant, message.TextPart("hello"))

	userFrags := Message(user, Options{})
	if len(userFrags) != 1 || userFrags[0].Align != AlignRight {
		t.Errorf("user fragments = %+v", userFrags)
	}

	assistantFrags := Message(assistant, Options{})
	if len(assistantFrags) != 1 || assistantFrags[0].Align != AlignLeft {
		t.Errorf("assistant fragments = %+v", assistantFrags)
	}
}

func TestEditModeSwapsEditor(t *testing.T) {
	msg := message.NewMessage(message.RoleUser, message.TextPart("original"))

	frags := Message(msg, Options{EditingMessageID: msg.ID})
	if len(frags) != 1 || frags[0].Kind != FragmentEditor || frags[0].Text != "original" {
		t.Errorf("fragments = %+v", frags)
	}

	// Editing another message leaves this one in view mode.
	frags = Message(msg, Options{EditingMessageID: "other"})
	if frags[0].Kind != FragmentText {
		t.Errorf("fragments = %+v", frags)
	}

	// Assistant messages are never editable.
	assistant := message.NewMessage(message.RoleAssistant, message.TextPart("a"))
	frags = Message(assistant, Options{EditingMessageID: assistant.ID})
	if frags[0].Kind != FragmentText {
		t.Errorf("fragments = %+v", frags)
	}
}

func TestReasoningLiveWhileLoading(t *testing.T) {
	msg := message.NewMessage(message.RoleAssistant, message.ReasoningPart("thinking..."))

	frags := Message(msg, Options{IsLoading: true})
	if len(frags) != 1 || frags[0].Kind != FragmentReasoning || !frags[0].Live {
		t.Errorf("fragments = %+v", frags)
	}

	frags = Message(msg, Options{IsLoading: false})
	if frags[0].Live {
		t.Error("reasoning must not be live once loading finished")
	}
}

func TestAttachmentPreviewKinds(t *testing.T) {
	tests := []struct {
		contentType string
		want        PreviewKind
	}{
		{"image/png", PreviewImage},
		{"image/jpeg", PreviewImage},
		{"application/pdf", PreviewPDF},
		{"text/plain", PreviewFile},
		{"", PreviewFile},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			att := message.Attachment{Name: "f", URL: "https://x/f", ContentType: tt.contentType}
			msg := message.NewMessage(message.RoleUser, message.FilePart(att), message.TextPart("see file"))

			frags := Message(msg, Options{})
			if frags[0].Kind != FragmentAttachment {
				t.Fatalf("first fragment = %+v", frags[0])
			}
			if frags[0].Preview != tt.want {
				t.Errorf("preview = %q, want %q", frags[0].Preview, tt.want)
			}
			if frags[0].Key != att.URL {
				t.Errorf("attachment key = %q, want url", frags[0].Key)
			}
		})
	}
}

func TestAttachmentsPrecedeText(t *testing.T) {
	att := message.Attachment{Name: "f.pdf", URL: "https://x/f.pdf", ContentType: "application/pdf"}
	msg := message.NewMessage(message.RoleUser, message.TextPart("read this"), message.FilePart(att))

	frags := Message(msg, Options{})
	if len(frags) != 2 || frags[0].Kind != FragmentAttachment || frags[1].Kind != FragmentText {
		t.Errorf("fragments = %+v", frags)
	}
}

func toolPart(name string, state message.ToolState) message.Part {
	p := message.Part{
		Type:       message.ToolPartType(name),
		ToolCallID: "call-1",
		State:      state,
	}
	switch state {
	case message.ToolStateInputAvailable:
		p.Input = map[string]any{"q": "x"}
	case message.ToolStateOutputAvailable:
		p.Output = map[string]any{"success": true}
	case message.ToolStateOutputError:
		p.ErrorText = "boom"
	}
	return p
}

func TestToolBadges(t *testing.T) {
	tests := []struct {
		state message.ToolState
		want  Badge
	}{
		{message.ToolStateInputStreaming, BadgePending},
		{message.ToolStateInputAvailable, BadgeRunning},
		{message.ToolStateOutputAvailable, BadgeCompleted},
		{message.ToolStateOutputError, BadgeError},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			msg := message.NewMessage(message.RoleAssistant, toolPart("getWeather", tt.state))
			frags := Message(msg, Options{})
			if frags[0].Badge != tt.want {
				t.Errorf("badge = %q, want %q", frags[0].Badge, tt.want)
			}
		})
	}
}

func TestToolPanels(t *testing.T) {
	// Params panel only while running.
	msg := message.NewMessage(message.RoleAssistant, toolPart("getWeather", message.ToolStateInputAvailable))
	frag := Message(msg, Options{})[0]
	if !frag.ShowInput || frag.Input == nil || frag.ShowOutput {
		t.Errorf("running fragment = %+v", frag)
	}

	// Pending shows neither panel.
	msg = message.NewMessage(message.RoleAssistant, toolPart("getWeather", message.ToolStateInputStreaming))
	frag = Message(msg, Options{})[0]
	if frag.ShowInput || frag.ShowOutput {
		t.Errorf("pending fragment = %+v", frag)
	}

	// Completed shows output, no params.
	msg = message.NewMessage(message.RoleAssistant, toolPart("getWeather", message.ToolStateOutputAvailable))
	frag = Message(msg, Options{})[0]
	if frag.ShowInput || !frag.ShowOutput || frag.Output == nil || frag.ErrorText != "" {
		t.Errorf("completed fragment = %+v", frag)
	}

	// Error shows errorText, no output.
	msg = message.NewMessage(message.RoleAssistant, toolPart("getWeather", message.ToolStateOutputError))
	frag = Message(msg, Options{})[0]
	if !frag.ShowOutput || frag.Output != nil || frag.ErrorText != "boom" {
		t.Errorf("error fragment = %+v", frag)
	}
}

func TestGuestMemoryGating(t *testing.T) {
	for _, tool := range []string{"addMemory", "searchMemories"} {
		t.Run(tool, func(t *testing.T) {
			msg := message.NewMessage(message.RoleAssistant, toolPart(tool, message.ToolStateOutputAvailable))

			guest := Message(msg, Options{IsGuest: true})[0]
			if guest.Notice != GuestMemoryNotice {
				t.Errorf("guest notice = %q", guest.Notice)
			}
			if guest.Output != nil {
				t.Error("guest must never see raw memory tool output")
			}

			regular := Message(msg, Options{IsGuest: false})[0]
			if regular.Notice != "" || regular.Output == nil {
				t.Errorf("regular fragment = %+v", regular)
			}
		})
	}

	// Non-memory tools are not gated.
	msg := message.NewMessage(message.RoleAssistant, toolPart("getWeather", message.ToolStateOutputAvailable))
	frag := Message(msg, Options{IsGuest: true})[0]
	if frag.Notice != "" || frag.Output == nil {
		t.Errorf("weather fragment for guest = %+v", frag)
	}
}

func TestToolLabels(t *testing.T) {
	if ToolLabel("getWeather") != "Get Weather" {
		t.Errorf("label = %q", ToolLabel("getWeather"))
	}
	if ToolLabel("somethingNew") != "somethingNew" {
		t.Errorf("unknown tool label = %q", ToolLabel("somethingNew"))
	}
}

func TestSanitizeText(t *testing.T) {
	in := "hello\x1b[31m world\x00\nnext\tline"
	got := SanitizeText(in)
	want := "hello[31m world\nnext\tline"
	if got != want {
		t.Errorf("SanitizeText() = %q, want %q", got, want)
	}
}

func TestShouldRerender(t *testing.T) {
	msg := message.NewMessage(message.RoleAssistant, message.TextPart("a"))
	vote := &chatstore.Vote{MessageID: msg.ID, IsUpvoted: true}

	base := Input{Message: msg, Vote: vote, Options: Options{}}

	if ShouldRerender(base, base) {
		t.Error("identical input must not re-render")
	}

	same := Input{Message: message.NewMessage(message.RoleAssistant, message.TextPart("a")), Vote: &chatstore.Vote{MessageID: msg.ID, IsUpvoted: true}}
	if ShouldRerender(base, same) {
		t.Error("deep-equal parts and vote must not re-render")
	}

	changedPart := Input{Message: message.NewMessage(message.RoleAssistant, message.TextPart("b")), Vote: vote}
	if !ShouldRerender(base, changedPart) {
		t.Error("changed parts must re-render")
	}

	changedVote := Input{Message: msg, Vote: &chatstore.Vote{MessageID: msg.ID, IsUpvoted: false}}
	if !ShouldRerender(base, changedVote) {
		t.Error("changed vote must re-render")
	}

	changedOpts := Input{Message: msg, Vote: vote, Options: Options{IsGuest: true}}
	if !ShouldRerender(base, changedOpts) {
		t.Error("changed options must re-render")
	}
}
