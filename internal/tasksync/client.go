package tasksync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flitsinc/taskbridge/internal/idgen"
	"github.com/flitsinc/taskbridge/internal/protocol"
	"github.com/flitsinc/taskbridge/internal/transport"
)

// Observer receives a frozen copy of the task whenever ingesting a frame
// changed the mirror.
type Observer func(protocol.Task)

// Client maintains the single authoritative local mirror of one remote
// task and keeps it consistent across stream disconnects. All mutation of
// the mirror goes through Ingest; consumers only ever see copies.
type Client struct {
	proto transport.Protocol

	mu       sync.Mutex
	task     protocol.Task
	exists   bool
	partials map[string]protocol.Message
	order    []string // partial buffer arrival order

	observer Observer

	streamCancel context.CancelFunc
	streamGen    uint64

	backoffBase time.Duration
	backoffCap  time.Duration
}

type Option func(*Client)

func WithObserver(fn Observer) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

func WithBackoff(base, limit time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = base
		c.backoffCap = limit
	}
}

func New(proto transport.Protocol, opts ...Option) *Client {
	c := &Client{
		proto:    proto,
		partials: map[string]protocol.Message{},
		task:     protocol.Task{Status: protocol.TaskStatus{State: protocol.StateInitializing}},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Task returns a frozen copy of the mirror and whether a remote task is
// known to exist yet.
func (c *Client) Task() (protocol.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task.Clone(), c.exists
}

// Partials returns the provisional messages buffered from working-status
// updates, in arrival order. They are never part of History.
func (c *Client) Partials() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Message, 0, len(c.order))
	for _, id := range c.order {
		if msg, ok := c.partials[id]; ok {
			out = append(out, msg)
		}
	}
	return out
}

// Ingest reduces one frame into the mirror and notifies the observer when
// anything changed. Ingesting the same frame twice is a no-op the second
// time: history merges deduplicate by message id, and a duplicate id whose
// content diverges is committed under a synthesized id instead of being
// dropped or overwriting the original.
func (c *Client) Ingest(frame protocol.Frame) bool {
	c.mu.Lock()
	changed := c.reduce(frame)
	var snapshot protocol.Task
	notify := changed && c.observer != nil
	if notify {
		snapshot = c.task.Clone()
	}
	c.mu.Unlock()

	if notify {
		c.observer(snapshot)
	}
	return changed
}

// reduce applies one frame. Caller holds c.mu.
func (c *Client) reduce(frame protocol.Frame) bool {
	switch frame.Kind {
	case protocol.FrameKindTask:
		return c.reduceSnapshot(*frame.Task)
	case protocol.FrameKindMessage:
		return c.commitMessage(*frame.Message)
	case protocol.FrameKindStatusUpdate:
		return c.reduceStatus(*frame.Status)
	default:
		return false
	}
}

func (c *Client) reduceSnapshot(snap protocol.Task) bool {
	changed := false
	if snap.ID != "" && snap.ID != c.task.ID {
		c.task.ID = snap.ID
		c.exists = true
		changed = true
	}
	if snap.Status.State != "" && snap.Status.State != c.task.Status.State {
		c.task.Status.State = snap.Status.State
		changed = true
	}
	// Merge, never replace: messages already known locally survive a stale
	// snapshot that omits them.
	for _, msg := range snap.History {
		if c.commitMessage(msg) {
			changed = true
		}
	}
	if snap.Status.Message != nil {
		if c.reduceCarriedMessage(snap.Status.State, *snap.Status.Message) {
			changed = true
		}
	}
	return changed
}

func (c *Client) reduceStatus(status protocol.Status) bool {
	changed := false
	if status.TaskID != "" && status.TaskID != c.task.ID {
		c.task.ID = status.TaskID
		c.exists = true
		changed = true
	}
	if status.State != "" && status.State != c.task.Status.State {
		c.task.Status.State = status.State
		changed = true
	}
	if status.Message != nil {
		if c.reduceCarriedMessage(status.State, *status.Message) {
			changed = true
		}
	}
	return changed
}

// reduceCarriedMessage handles a message piggybacked on a status: while the
// remote is working it is provisional and lives in the side buffer; under
// any other status it is committed and the matching partial is discarded.
func (c *Client) reduceCarriedMessage(state protocol.TaskState, msg protocol.Message) bool {
	if state == protocol.StateWorking {
		if prev, ok := c.partials[msg.ID]; ok && protocol.ContentEqual(prev, msg) {
			return false
		}
		if _, ok := c.partials[msg.ID]; !ok {
			c.order = append(c.order, msg.ID)
		}
		c.partials[msg.ID] = msg
		return true
	}
	return c.commitMessage(msg)
}

// commitMessage appends msg to history unless an identical message with the
// same id is already committed. A reused id with different content gets a
// disambiguated id so both messages survive. The replacement id is derived
// from the content, so redelivering the same divergent frame (a reconnect
// snapshot still carries the recycled id) resolves to the id already in
// history and stays a no-op. Caller holds c.mu.
func (c *Client) commitMessage(msg protocol.Message) bool {
	c.dropPartial(msg.ID)
	if msg.ID == "" {
		msg.ID = idgen.New()
	}
	disambiguated := false
	for _, known := range c.task.History {
		if known.ID != msg.ID {
			continue
		}
		if protocol.ContentEqual(known, msg) {
			return false
		}
		msg.ID = idgen.Disambiguate(msg.ID, protocol.ContentHash(msg))
		disambiguated = true
		break
	}
	if disambiguated {
		for _, known := range c.task.History {
			if known.ID == msg.ID && protocol.ContentEqual(known, msg) {
				return false
			}
		}
	}
	c.task.History = append(c.task.History, msg)
	return true
}

func (c *Client) dropPartial(id string) {
	if _, ok := c.partials[id]; !ok {
		return
	}
	delete(c.partials, id)
	for i, pid := range c.order {
		if pid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Resume fetches a full snapshot for taskID, ingests it, then opens the
// live subscription. The initial fetch failing is surfaced to the caller.
func (c *Client) Resume(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}
	snap, err := c.proto.GetSnapshot(ctx, taskID)
	if err != nil {
		return fmt.Errorf("resume %s: %w", taskID, err)
	}
	c.Ingest(protocol.SnapshotFrame(snap))
	c.OpenSubscription(ctx, taskID)
	return nil
}

func (c *Client) terminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task.Status.State.IsTerminal()
}

// TaskID returns the current task id, or "" when no task exists yet.
func (c *Client) TaskID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task.ID
}
