package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStateTerminal(t *testing.T) {
	for _, state := range []TaskState{StateCompleted, StateFailed, StateCanceled} {
		assert.True(t, state.IsTerminal(), "state %s", state)
	}
	for _, state := range []TaskState{StateInitializing, StateSubmitted, StateWorking, StateInputRequired} {
		assert.False(t, state.IsTerminal(), "state %s", state)
	}
}

func TestMessageText(t *testing.T) {
	msg := Message{
		ID:   "m1",
		Role: RoleAgent,
		Parts: []Part{
			TextPart("hello"),
			FilePart("report.pdf", "application/pdf", "aGk="),
			TextPart("world"),
		},
	}
	assert.Equal(t, "hello\nworld", msg.Text())
}

func TestContentEqual(t *testing.T) {
	a := Message{ID: "m1", Role: RoleAgent, Parts: []Part{TextPart("hi")}}
	b := Message{ID: "other", Role: RoleAgent, Parts: []Part{TextPart("hi")}}
	assert.True(t, ContentEqual(a, b), "ids are ignored")

	c := Message{ID: "m1", Role: RoleAgent, Parts: []Part{TextPart("bye")}}
	assert.False(t, ContentEqual(a, c))

	d := Message{ID: "m1", Role: RoleUser, Parts: []Part{TextPart("hi")}}
	assert.False(t, ContentEqual(a, d), "role differs")

	e := Message{ID: "m1", Role: RoleAgent, Parts: []Part{FilePart("f", "text/plain", "aGk=")}}
	assert.False(t, ContentEqual(a, e))
}

func TestContentHash(t *testing.T) {
	a := Message{ID: "m1", Role: RoleAgent, Parts: []Part{TextPart("hi")}}
	b := Message{ID: "other", Role: RoleAgent, Parts: []Part{TextPart("hi")}}
	assert.Equal(t, ContentHash(a), ContentHash(b), "ids are ignored")
	assert.Len(t, ContentHash(a), 16)

	c := Message{ID: "m1", Role: RoleAgent, Parts: []Part{TextPart("bye")}}
	assert.NotEqual(t, ContentHash(a), ContentHash(c))

	d := Message{ID: "m1", Role: RoleUser, Parts: []Part{TextPart("hi")}}
	assert.NotEqual(t, ContentHash(a), ContentHash(d), "role is content")

	e := Message{ID: "m1", Role: RoleAgent, Parts: []Part{FilePart("f", "text/plain", "aGk=")}}
	f := Message{ID: "m1", Role: RoleAgent, Parts: []Part{FilePart("f", "text/plain", "eW8=")}}
	assert.NotEqual(t, ContentHash(e), ContentHash(f))
}

func TestFrameRoundTrip(t *testing.T) {
	frames := []Frame{
		SnapshotFrame(Task{
			ID:     "task-1",
			Status: TaskStatus{State: StateWorking},
			History: []Message{
				{ID: "m1", Role: RoleUser, Parts: []Part{TextPart("hello")}},
			},
		}),
		MessageFrame(Message{ID: "m2", Role: RoleAgent, Parts: []Part{TextPart("hi")}}),
		StatusFrame("task-1", StateInputRequired, &Message{ID: "m3", Role: RoleAgent, Parts: []Part{TextPart("ack")}}),
		StatusFrame("task-1", StateWorking, nil),
	}
	for _, frame := range frames {
		data, err := EncodeFrame(frame)
		require.NoError(t, err)
		decoded, err := DecodeFrame(data)
		require.NoError(t, err)
		assert.Equal(t, frame, decoded)
	}
}

func TestDecodeFrameRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"unknown kind":   `{"kind":"bogus"}`,
		"missing task":   `{"kind":"task"}`,
		"missing msg":    `{"kind":"message"}`,
		"missing status": `{"kind":"status_update"}`,
	}
	for name, raw := range cases {
		_, err := DecodeFrame([]byte(raw))
		assert.ErrorIs(t, err, ErrBadFrame, name)
	}
}

func TestTaskCloneIsIndependent(t *testing.T) {
	task := Task{
		ID:     "task-1",
		Status: TaskStatus{State: StateWorking, Message: &Message{ID: "p1", Parts: []Part{TextPart("partial")}}},
		History: []Message{
			{ID: "m1", Role: RoleAgent, Parts: []Part{FilePart("doc.txt", "text/plain", "aGk=")}},
		},
	}
	clone := task.Clone()
	clone.History[0].Parts[0].File.Name = "mutated"
	clone.Status.Message.ID = "mutated"

	assert.Equal(t, "doc.txt", task.History[0].Parts[0].File.Name)
	assert.Equal(t, "p1", task.Status.Message.ID)
}
