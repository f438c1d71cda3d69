package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/flitsinc/taskbridge/internal/protocol"
)

func kinds(events []Event) []Kind {
	out := make([]Kind, len(events))
	for i, evt := range events {
		out[i] = evt.Kind
	}
	return out
}

func TestNewStartsWithInit(t *testing.T) {
	l := New()
	if got := kinds(l.Events()); len(got) != 1 || got[0] != KindInit {
		t.Fatalf("expected single init event, got %v", got)
	}
	if l.Version() == 0 {
		t.Fatal("init append should bump the version")
	}
}

func TestCanSendNowFirstContact(t *testing.T) {
	l := New()
	if !l.CanSendNow(false) {
		t.Fatal("first-contact send must be allowed before any status")
	}
	if l.CanSendNow(true) {
		t.Fatal("no status but task exists: a status fetch is pending, send must wait")
	}
}

func TestCanSendNowFollowsConversation(t *testing.T) {
	l := New()

	l.Append(Event{Kind: KindSentToAgent, Text: "hello"})
	if l.CanSendNow(true) {
		t.Fatal("send already issued this turn")
	}

	l.RecordStatusIfChanged(protocol.StateWorking)
	if l.CanSendNow(true) {
		t.Fatal("working state blocks sends")
	}

	l.RecordStatusIfChanged(protocol.StateInputRequired)
	if !l.CanSendNow(true) {
		t.Fatal("input-required opens the turn")
	}

	l.Append(Event{Kind: KindSentToAgent, Text: "reply"})
	if l.CanSendNow(true) {
		t.Fatal("second send in the same turn must be blocked")
	}

	l.RecordStatusIfChanged(protocol.StateCompleted)
	if l.CanSendNow(true) {
		t.Fatal("terminal state blocks sends")
	}
}

func TestRecordStatusIfChangedDedupes(t *testing.T) {
	l := New()
	if !l.RecordStatusIfChanged(protocol.StateWorking) {
		t.Fatal("first status should append")
	}
	if l.RecordStatusIfChanged(protocol.StateWorking) {
		t.Fatal("repeated status should be dropped")
	}
	if !l.RecordStatusIfChanged(protocol.StateInputRequired) {
		t.Fatal("changed status should append")
	}
	// Intervening non-status events do not hide the last status.
	l.Append(Event{Kind: KindAgentMessage, Text: "hi"})
	if l.RecordStatusIfChanged(protocol.StateInputRequired) {
		t.Fatal("same status past other events should still be dropped")
	}
}

func TestRecordNewRemoteMessages(t *testing.T) {
	l := New()
	task := protocol.Task{
		ID: "task-1",
		History: []protocol.Message{
			{ID: "u1", Role: protocol.RoleUser, Parts: []protocol.Part{protocol.TextPart("mine")}},
			{ID: "a1", Role: protocol.RoleAgent, Parts: []protocol.Part{
				protocol.TextPart("here you go"),
				protocol.FilePart("report.pdf", "application/pdf", "aGk="),
			}},
		},
	}
	if got := l.RecordNewRemoteMessages(task); got != 2 {
		t.Fatalf("expected agent_message + agent_document_added, got %d appends", got)
	}
	events := l.Events()
	last := events[len(events)-1]
	if last.Kind != KindAgentDocument || last.Name != "report.pdf" || last.Mime != "application/pdf" {
		t.Fatalf("unexpected document event %+v", last)
	}

	// Re-delivering the same snapshot is a no-op.
	if got := l.RecordNewRemoteMessages(task); got != 0 {
		t.Fatalf("seen messages must be skipped, got %d appends", got)
	}

	task.History = append(task.History, protocol.Message{
		ID: "a2", Role: protocol.RoleAgent, Parts: []protocol.Part{protocol.TextPart("more")},
	})
	if got := l.RecordNewRemoteMessages(task); got != 1 {
		t.Fatalf("only the fresh message should append, got %d", got)
	}
}

func TestConversationSequence(t *testing.T) {
	l := New()
	l.Append(Event{Kind: KindUserMessage, Text: "please summarize"})
	l.Append(Event{Kind: KindSentToAgent, Text: "please summarize"})
	l.RecordStatusIfChanged(protocol.StateWorking)
	l.RecordNewRemoteMessages(protocol.Task{
		ID: "task-1",
		History: []protocol.Message{
			{ID: "a1", Role: protocol.RoleAgent, Parts: []protocol.Part{protocol.TextPart("summary")}},
		},
	})
	l.RecordStatusIfChanged(protocol.StateInputRequired)

	want := []Kind{KindInit, KindUserMessage, KindSentToAgent, KindStatus, KindAgentMessage, KindStatus}
	got := kinds(l.Events())
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %s, want %s (full %v)", i, got[i], want[i], got)
		}
	}
	if !l.CanSendNow(true) {
		t.Fatal("turn should be open after input-required")
	}
	if l.MediatorTurns() != 1 {
		t.Fatalf("expected 1 turn, got %d", l.MediatorTurns())
	}
}

func TestTail(t *testing.T) {
	l := New()
	l.Append(Event{Kind: KindUserMessage, Text: "a"})
	l.Append(Event{Kind: KindUserMessage, Text: "b"})

	tail := l.Tail(2)
	if len(tail) != 2 || tail[0].Text != "a" || tail[1].Text != "b" {
		t.Fatalf("unexpected tail %+v", tail)
	}
	if got := l.Tail(0); len(got) != 3 {
		t.Fatalf("n<=0 should return everything, got %d", len(got))
	}
	if got := l.Tail(100); len(got) != 3 {
		t.Fatalf("oversized n should clamp, got %d", len(got))
	}
}

func TestWithClockStampsEvents(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	l := New(WithClock(func() time.Time { return at }))
	l.Append(Event{Kind: KindUserMessage, Text: "hi"})
	for _, evt := range l.Events() {
		if !evt.At.Equal(at) {
			t.Fatalf("event %s stamped %v, want %v", evt.Kind, evt.At, at)
		}
	}
}

type captureSink struct {
	events []Event
}

func (s *captureSink) Record(evt Event) { s.events = append(s.events, evt) }

func TestSinkReceivesEveryAppend(t *testing.T) {
	sink := &captureSink{}
	l := New(WithSink(sink))
	l.Append(Event{Kind: KindUserMessage, Text: "hi"})
	if len(sink.events) != 2 {
		t.Fatalf("sink should see init and user_message, got %d", len(sink.events))
	}
	if sink.events[1].Kind != KindUserMessage {
		t.Fatalf("unexpected sink event %+v", sink.events[1])
	}
}

func TestAwaitChangeWakesOnAppend(t *testing.T) {
	l := New()
	since := l.Version()

	woke := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		woke <- l.AwaitChange(ctx, since)
	}()

	time.Sleep(10 * time.Millisecond)
	l.Append(Event{Kind: KindUserMessage, Text: "wake up"})

	select {
	case err := <-woke:
		if err != nil {
			t.Fatalf("await failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never woke")
	}
}

func TestAwaitChangeReturnsImmediatelyWhenBehind(t *testing.T) {
	l := New()
	l.Append(Event{Kind: KindUserMessage, Text: "already there"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.AwaitChange(ctx, 0); err != nil {
		t.Fatalf("a stale version must not block: %v", err)
	}
}
