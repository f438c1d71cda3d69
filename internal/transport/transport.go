package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/flitsinc/taskbridge/internal/protocol"
)

// ErrStreamClosed is returned by Stream.Recv once the remote side has
// closed the stream normally.
var ErrStreamClosed = errors.New("stream closed")

// Stream delivers frames pushed by the remote task endpoint.
type Stream interface {
	Recv(ctx context.Context) (protocol.Frame, error)
	Close() error
}

// Protocol abstracts the remote task endpoint regardless of wire encoding.
// Cancellation is asynchronous: Cancel requests it, the resulting status is
// observed later via the stream or a snapshot.
type Protocol interface {
	// StartStream begins a new task from the given parts and streams its
	// frames; the new task id arrives in the first task or message frame.
	StartStream(ctx context.Context, parts []protocol.Part) (Stream, error)

	// Send delivers parts to an existing task without opening a stream.
	Send(ctx context.Context, taskID string, parts []protocol.Part) (protocol.Task, error)

	// Resubscribe reattaches to live updates for an existing task.
	Resubscribe(ctx context.Context, taskID string) (Stream, error)

	// GetSnapshot fetches a full point-in-time view of the task.
	GetSnapshot(ctx context.Context, taskID string) (protocol.Task, error)

	Cancel(ctx context.Context, taskID string) error
}

// Error wraps a network or stream failure so callers can tell transport
// trouble apart from protocol-level conditions.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsTransportError(err error) bool {
	var te *Error
	return errors.As(err, &te)
}
