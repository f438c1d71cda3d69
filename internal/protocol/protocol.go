package protocol

import (
	"crypto/sha256"
	"encoding/hex"
)

// TaskState enumerates the remote task lifecycle states. The transient
// StateInitializing is local only: it is what a mirror reports before any
// status has been observed from the remote side.
type TaskState string

const (
	StateInitializing  TaskState = "initializing"
	StateSubmitted     TaskState = "submitted"
	StateWorking       TaskState = "working"
	StateInputRequired TaskState = "input-required"
	StateCompleted     TaskState = "completed"
	StateFailed        TaskState = "failed"
	StateCanceled      TaskState = "canceled"
)

// IsTerminal reports whether no further task activity is possible.
func (s TaskState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	default:
		return false
	}
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

const (
	PartKindText = "text"
	PartKindFile = "file"
)

type FileContent struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Bytes    string `json:"bytes,omitempty"` // base64
}

type Part struct {
	Kind string       `json:"kind"`
	Text string       `json:"text,omitempty"`
	File *FileContent `json:"file,omitempty"`
}

func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

func FilePart(name, mimeType, encoded string) Part {
	return Part{Kind: PartKindFile, File: &FileContent{Name: name, MimeType: mimeType, Bytes: encoded}}
}

type Message struct {
	ID    string `json:"message_id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var out string
	for _, part := range m.Parts {
		if part.Kind != PartKindText {
			continue
		}
		if out != "" && part.Text != "" {
			out += "\n"
		}
		out += part.Text
	}
	return out
}

// ContentEqual reports whether two messages carry identical content,
// ignoring the message id. Used to tell idempotent re-delivery apart from
// a remote that recycles ids for different messages.
func ContentEqual(a, b Message) bool {
	if a.Role != b.Role || len(a.Parts) != len(b.Parts) {
		return false
	}
	for i := range a.Parts {
		if !partEqual(a.Parts[i], b.Parts[i]) {
			return false
		}
	}
	return true
}

// ContentHash returns a short stable digest of a message's content,
// ignoring the message id. Two messages are ContentEqual iff their hashes
// match, so the hash can stand in for the content as an identity key.
func ContentHash(m Message) string {
	h := sha256.New()
	h.Write([]byte(m.Role))
	for _, part := range m.Parts {
		h.Write([]byte{0})
		h.Write([]byte(part.Kind))
		h.Write([]byte{0})
		h.Write([]byte(part.Text))
		if part.File != nil {
			h.Write([]byte{0})
			h.Write([]byte(part.File.Name))
			h.Write([]byte{0})
			h.Write([]byte(part.File.MimeType))
			h.Write([]byte{0})
			h.Write([]byte(part.File.Bytes))
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func partEqual(a, b Part) bool {
	if a.Kind != b.Kind || a.Text != b.Text {
		return false
	}
	if (a.File == nil) != (b.File == nil) {
		return false
	}
	if a.File != nil && *a.File != *b.File {
		return false
	}
	return true
}

type TaskStatus struct {
	State   TaskState `json:"state"`
	Message *Message  `json:"message,omitempty"`
}

type Task struct {
	ID      string     `json:"id"`
	Status  TaskStatus `json:"status"`
	History []Message  `json:"history,omitempty"`
}

// Clone returns a deep copy so consumers never hold a live reference into
// the mirror's history.
func (t Task) Clone() Task {
	out := t
	if t.Status.Message != nil {
		msg := cloneMessage(*t.Status.Message)
		out.Status.Message = &msg
	}
	if t.History != nil {
		out.History = make([]Message, len(t.History))
		for i, msg := range t.History {
			out.History[i] = cloneMessage(msg)
		}
	}
	return out
}

func cloneMessage(m Message) Message {
	out := m
	if m.Parts != nil {
		out.Parts = make([]Part, len(m.Parts))
		for i, part := range m.Parts {
			out.Parts[i] = part
			if part.File != nil {
				file := *part.File
				out.Parts[i].File = &file
			}
		}
	}
	return out
}
