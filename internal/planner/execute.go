package planner

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/flitsinc/taskbridge/internal/eventlog"
	"github.com/flitsinc/taskbridge/internal/protocol"
)

// cycle runs one decision: build a frozen context, ask the oracle, apply
// the returned tool call. Returns true once the loop should stop for good.
func (l *Loop) cycle(ctx context.Context) bool {
	task, exists := l.sync.Task()
	if task.Status.State.IsTerminal() {
		// Normal stop condition, not an error. Outstanding network
		// activity is torn down with the subscription.
		l.sync.Stop()
		return true
	}

	if l.oracle == nil {
		// Pass-through mode: the host drives sends directly.
		return false
	}

	snapshot := Context{
		State:      task.Status.State,
		TaskExists: exists,
		CanSend:    l.log.CanSendNow(exists),
		Turns:      l.log.MediatorTurns(),
		Events:     l.log.Tail(defaultContextTail),
	}
	if l.resolver != nil {
		snapshot.Attachments = l.resolver.List()
	}

	call, err := l.oracle.Decide(ctx, snapshot)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		// No retry storm: the next log growth re-decides with fresh context.
		l.log.Append(eventlog.Event{Kind: eventlog.KindError, Code: eventlog.CodeOracleError, Details: err.Error()})
		return false
	}

	l.Execute(ctx, call)
	return false
}

// Execute applies one tool call. Decision cycles funnel through here; a
// host running without an oracle may also call it directly to drive sends.
func (l *Loop) Execute(ctx context.Context, call ToolCall) {
	task, exists := l.sync.Task()
	switch call.Kind {
	case ToolSleep:
		// Fixed short pause; an oracle-supplied duration is unvalidated
		// input and is ignored. Real resumption is event-driven.
		timer := time.NewTimer(l.sleepPause)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	case ToolAskUser:
		l.hooks.askUser(call.Question)
		l.log.Append(eventlog.Event{Kind: eventlog.KindAskedUser, Question: call.Question})
	case ToolDone:
		l.hooks.system("Conversation done: " + call.Summary)
		if exists && !task.Status.State.IsTerminal() {
			if err := l.proto.Cancel(ctx, task.ID); err != nil {
				l.hooks.system("cancel failed: " + err.Error())
			}
		}
	case ToolReadAttachment:
		l.readAttachment(call)
	case ToolSendToAgent:
		l.executeSend(ctx, call)
	default:
		l.log.Append(eventlog.Event{
			Kind:    eventlog.KindError,
			Code:    eventlog.CodeOracleError,
			Details: fmt.Sprintf("unknown tool call %q", call.Kind),
		})
	}
}

func (l *Loop) readAttachment(call ToolCall) {
	evt := eventlog.Event{Kind: eventlog.KindReadAttachment, Name: call.Name}
	switch {
	case l.resolver == nil:
		evt.Reason = "no attachment resolver configured"
	default:
		att := l.resolver.Resolve(call.Name)
		switch {
		case !att.OK:
			evt.Reason = att.Reason
		case att.Private:
			evt.Reason = "attachment is marked private"
		default:
			evt.OK = true
			excerpt := att.Content
			if len(excerpt) > l.excerptCap {
				excerpt = excerpt[:l.excerptCap]
				evt.Truncated = true
			}
			evt.Result = string(excerpt)
		}
	}
	l.log.Append(evt)
}

// executeSend applies a send_to_agent call. Turn-eligibility is re-checked
// here, not just at context-build time: the oracle call took time and the
// turn may have been lost meanwhile. Attachment resolution is all-or-
// nothing so the remote never receives a message silently missing a
// referenced file.
func (l *Loop) executeSend(ctx context.Context, call ToolCall) {
	_, exists := l.sync.Task()
	if !l.log.CanSendNow(exists) {
		l.log.Append(eventlog.Event{Kind: eventlog.KindError, Code: eventlog.CodeSendNotAllowed, Details: "turn not available at execution time"})
		return
	}

	parts, missing := l.buildParts(call)
	if len(missing) > 0 {
		l.log.Append(eventlog.Event{
			Kind:    eventlog.KindError,
			Code:    eventlog.CodeAttachMissing,
			Details: strings.Join(missing, ", "),
		})
		return
	}

	// Recorded before transmitting so a crash mid-send stays auditable.
	l.log.Append(eventlog.Event{Kind: eventlog.KindSentToAgent, Text: call.Text, Attachments: call.Attachments})
	l.hooks.sendEcho(call.Text)

	if !exists {
		stream, err := l.proto.StartStream(ctx, parts)
		if err != nil {
			l.reportSendFailure(err)
			return
		}
		l.sync.Adopt(ctx, stream)
		return
	}

	task, err := l.proto.Send(ctx, l.sync.TaskID(), parts)
	if err != nil {
		l.reportSendFailure(err)
		return
	}
	l.sync.Ingest(protocol.SnapshotFrame(task))
	if !l.sync.Subscribed() {
		l.sync.Resubscribe(ctx)
	}
}

func (l *Loop) buildParts(call ToolCall) ([]protocol.Part, []string) {
	var parts []protocol.Part
	if call.Text != "" {
		parts = append(parts, protocol.TextPart(call.Text))
	}
	var missing []string
	for _, name := range call.Attachments {
		if l.resolver == nil {
			missing = append(missing, name)
			continue
		}
		att := l.resolver.Resolve(name)
		if !att.OK {
			missing = append(missing, name)
			continue
		}
		parts = append(parts, protocol.FilePart(att.Name, att.Mime, base64.StdEncoding.EncodeToString(att.Content)))
	}
	return parts, missing
}

// reportSendFailure downgrades a transport failure during send to a host
// notification plus an audit event; the loop re-evaluates on the next
// trigger.
func (l *Loop) reportSendFailure(err error) {
	l.hooks.system("send failed: " + err.Error())
	l.log.Append(eventlog.Event{Kind: eventlog.KindError, Code: eventlog.CodeTransport, Details: err.Error()})
}
