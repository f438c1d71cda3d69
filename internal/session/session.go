package session

import (
	"context"
	"fmt"

	"github.com/flitsinc/taskbridge/internal/eventlog"
	"github.com/flitsinc/taskbridge/internal/idgen"
	"github.com/flitsinc/taskbridge/internal/planner"
	"github.com/flitsinc/taskbridge/internal/protocol"
	"github.com/flitsinc/taskbridge/internal/tasksync"
	"github.com/flitsinc/taskbridge/internal/transport"
)

// Session is the single owner of one conversation: exactly one task sync
// client, one event log and one tool-execution loop. It is constructed per
// active task and discarded on Reset; there is no shared global state.
type Session struct {
	ID string

	proto transport.Protocol
	log   *eventlog.Log
	sync  *tasksync.Client
	loop  *planner.Loop
}

type Options struct {
	// ID names the session for audit purposes; one is generated when empty.
	ID       string
	Oracle   planner.Oracle
	Resolver planner.AttachmentResolver
	Hooks    planner.Hooks
	Sink     eventlog.Sink
}

func New(proto transport.Protocol, opts Options) *Session {
	id := opts.ID
	if id == "" {
		id = idgen.New()
	}
	s := &Session{
		ID:    id,
		proto: proto,
	}

	var logOpts []eventlog.Option
	if opts.Sink != nil {
		logOpts = append(logOpts, eventlog.WithSink(opts.Sink))
	}
	s.log = eventlog.New(logOpts...)

	s.sync = tasksync.New(proto, tasksync.WithObserver(s.onTaskUpdate))
	s.loop = planner.New(s.log, s.sync, proto,
		planner.WithOracle(opts.Oracle),
		planner.WithResolver(opts.Resolver),
		planner.WithHooks(opts.Hooks),
	)
	return s
}

// onTaskUpdate is the consolidated update path: every mirror change lands
// here and is translated into domain events. New remote messages are
// recorded before the status change so the log reads in conversation
// order, then the loop wakes through the log's own signal.
func (s *Session) onTaskUpdate(task protocol.Task) {
	s.log.RecordNewRemoteMessages(task)
	s.log.RecordStatusIfChanged(task.Status.State)
}

// Start launches the decision loop. No-op if it is already running.
func (s *Session) Start(ctx context.Context) {
	s.loop.Start(ctx)
}

// Resume attaches the session to an existing remote task.
func (s *Session) Resume(ctx context.Context, taskID string) error {
	return s.sync.Resume(ctx, taskID)
}

// UserMessage records local user input; the loop wakes on the append and
// decides what to do with it.
func (s *Session) UserMessage(text string) {
	s.log.Append(eventlog.Event{Kind: eventlog.KindUserMessage, Text: text})
}

// SendDirect sends on behalf of the user without consulting the oracle,
// for hosts running in pass-through mode. The same turn-taking and
// attachment rules apply as for oracle-initiated sends.
func (s *Session) SendDirect(ctx context.Context, text string, attachments []string) {
	s.loop.Execute(ctx, planner.ToolCall{
		Kind:        planner.ToolSendToAgent,
		Text:        text,
		Attachments: attachments,
	})
}

// Cancel requests remote cancellation; the resulting status arrives via
// the stream.
func (s *Session) Cancel(ctx context.Context) error {
	id := s.sync.TaskID()
	if id == "" {
		return fmt.Errorf("no active task")
	}
	return s.proto.Cancel(ctx, id)
}

// Task returns a frozen copy of the mirrored task.
func (s *Session) Task() (protocol.Task, bool) {
	return s.sync.Task()
}

// Events returns a copy of the full domain event sequence.
func (s *Session) Events() []eventlog.Event {
	return s.log.Events()
}

// Partials exposes provisional remote messages for display.
func (s *Session) Partials() []protocol.Message {
	return s.sync.Partials()
}

// Log exposes the event log for hosts that want to await changes.
func (s *Session) Log() *eventlog.Log {
	return s.log
}

// Close stops the loop and tears down any live stream. The log keeps its
// contents for display; the session itself is not reusable afterwards.
func (s *Session) Close() {
	s.loop.Stop()
	s.sync.Stop()
}
