package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/flitsinc/taskbridge/internal/protocol"
)

// Sink receives a copy of every appended event, for audit persistence.
// Sink failures never affect the log.
type Sink interface {
	Record(Event)
}

// Log is the append-only, totally ordered sequence of domain events for
// one task. It is the sole source of truth for turn-eligibility and for
// "has X already happened" questions. Events are never mutated or removed;
// the length is the only mutable counter.
type Log struct {
	signal Signal

	mu         sync.Mutex
	events     []Event
	seenRemote map[string]struct{}
	sink       Sink

	nowFn func() time.Time
}

type Option func(*Log)

func WithSink(sink Sink) Option {
	return func(l *Log) {
		l.sink = sink
	}
}

func WithClock(nowFn func() time.Time) Option {
	return func(l *Log) {
		if nowFn != nil {
			l.nowFn = nowFn
		}
	}
}

func New(opts ...Option) *Log {
	l := &Log{
		seenRemote: map[string]struct{}{},
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	l.append(Event{Kind: KindInit})
	return l
}

func (l *Log) append(evt Event) {
	if evt.At.IsZero() {
		evt.At = l.nowFn()
	}
	l.mu.Lock()
	l.events = append(l.events, evt)
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		sink.Record(evt)
	}
	l.signal.Bump()
}

// Append records one event and wakes every waiter.
func (l *Log) Append(evt Event) {
	l.append(evt)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Events returns a copy of the full sequence.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Tail returns a copy of at most n most recent events, oldest first.
func (l *Log) Tail(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

func (l *Log) Version() uint64 {
	return l.signal.Version()
}

// AwaitChange blocks until an event is appended past the given version.
func (l *Log) AwaitChange(ctx context.Context, since uint64) error {
	return l.signal.Wait(ctx, since)
}

// RecordStatusIfChanged appends a status event only when the state differs
// from the most recent status event already in the log. Repeated snapshots
// delivering the same status therefore do not grow the log.
func (l *Log) RecordStatusIfChanged(state protocol.TaskState) bool {
	l.mu.Lock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Kind != KindStatus {
			continue
		}
		if l.events[i].State == state {
			l.mu.Unlock()
			return false
		}
		break
	}
	l.mu.Unlock()
	l.append(Event{Kind: KindStatus, State: state})
	return true
}

// RecordNewRemoteMessages appends one agent_message per committed remote
// message not yet reflected in the log, plus an agent_document_added per
// file part. Already-seen message ids are skipped.
func (l *Log) RecordNewRemoteMessages(task protocol.Task) int {
	type doc struct {
		name, mime string
	}
	var fresh []protocol.Message

	l.mu.Lock()
	for _, msg := range task.History {
		if msg.Role != protocol.RoleAgent {
			continue
		}
		if _, ok := l.seenRemote[msg.ID]; ok {
			continue
		}
		l.seenRemote[msg.ID] = struct{}{}
		fresh = append(fresh, msg)
	}
	l.mu.Unlock()

	appended := 0
	for _, msg := range fresh {
		l.append(Event{Kind: KindAgentMessage, Text: msg.Text()})
		appended++
		var docs []doc
		for _, part := range msg.Parts {
			if part.Kind == protocol.PartKindFile && part.File != nil {
				docs = append(docs, doc{name: part.File.Name, mime: part.File.MimeType})
			}
		}
		for _, d := range docs {
			l.append(Event{Kind: KindAgentDocument, Name: d.name, Mime: d.mime})
			appended++
		}
	}
	return appended
}

// CanSendNow answers whether a send is currently legal, scanning backward
// from the end of the log to the most recent status event. The scan (rather
// than a cached flag) makes the answer self-correcting after concurrent
// appends.
func (l *Log) CanSendNow(taskExists bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.events) - 1; i >= 0; i-- {
		evt := l.events[i]
		switch evt.Kind {
		case KindSentToAgent:
			// A send already happened this turn.
			return false
		case KindStatus:
			return evt.State == protocol.StateInputRequired || evt.State == protocol.StateInitializing
		}
	}
	// No status observed yet: only the first-contact send is legal.
	return !taskExists
}

// MediatorTurns counts the sends issued so far.
func (l *Log) MediatorTurns() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, evt := range l.events {
		if evt.Kind == KindSentToAgent {
			n++
		}
	}
	return n
}
