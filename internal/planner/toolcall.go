package planner

import (
	"context"

	"github.com/flitsinc/taskbridge/internal/eventlog"
	"github.com/flitsinc/taskbridge/internal/protocol"
)

type ToolKind string

const (
	ToolSendToAgent    ToolKind = "send_to_agent"
	ToolReadAttachment ToolKind = "read_attachment"
	ToolAskUser        ToolKind = "ask_user"
	ToolSleep          ToolKind = "sleep"
	ToolDone           ToolKind = "done"
)

// ToolCall is the one structured action an oracle returns per invocation.
// Only the fields relevant to the kind are set.
type ToolCall struct {
	Kind ToolKind `json:"kind"`

	Text        string   `json:"text,omitempty"`        // send_to_agent
	Attachments []string `json:"attachments,omitempty"` // send_to_agent

	Name    string `json:"name,omitempty"`    // read_attachment
	Purpose string `json:"purpose,omitempty"` // read_attachment

	Question string `json:"question,omitempty"` // ask_user
	Summary  string `json:"summary,omitempty"`  // done
}

// Context is the frozen snapshot handed to the oracle. It is assembled
// from copies; the oracle never sees live engine state.
type Context struct {
	State       protocol.TaskState
	TaskExists  bool
	CanSend     bool
	Turns       int
	Events      []eventlog.Event
	Attachments []AttachmentInfo
}

// Oracle is the pluggable decision-maker. It is stateless: everything it
// may consider is in the context snapshot.
type Oracle interface {
	Decide(ctx context.Context, snapshot Context) (ToolCall, error)
}

type AttachmentInfo struct {
	Name    string `json:"name"`
	Mime    string `json:"mime,omitempty"`
	Size    int64  `json:"size"`
	Private bool   `json:"private,omitempty"`
}

// Attachment is the result of resolving a symbolic attachment name.
type Attachment struct {
	OK      bool
	Name    string
	Mime    string
	Size    int64
	Private bool
	Content []byte
	Reason  string
}

// AttachmentResolver maps symbolic names to content. Implemented outside
// the engine; the loop only consumes this narrow read interface.
type AttachmentResolver interface {
	Resolve(name string) Attachment
	List() []AttachmentInfo
}

// Hooks are fire-and-forget host notifications. Nil funcs are skipped;
// none of them affect engine state.
type Hooks struct {
	OnSystem   func(text string)
	OnAskUser  func(question string)
	OnSendEcho func(text string)
}

func (h Hooks) system(text string) {
	if h.OnSystem != nil {
		h.OnSystem(text)
	}
}

func (h Hooks) askUser(question string) {
	if h.OnAskUser != nil {
		h.OnAskUser(question)
	}
}

func (h Hooks) sendEcho(text string) {
	if h.OnSendEcho != nil {
		h.OnSendEcho(text)
	}
}
