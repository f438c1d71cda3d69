package tasksync

import (
	"context"

	"github.com/flitsinc/taskbridge/internal/protocol"
	"github.com/flitsinc/taskbridge/internal/transport"
)

// OpenSubscription attaches to the live stream for taskID. It is
// idempotent in effect: any previously open stream for this client is
// cancelled first, so at most one live connection exists per task. A
// background snapshot fetch is issued after the stream is consuming, so no
// frame is lost in the subscribe/snapshot race; overlap is harmless because
// ingestion deduplicates.
func (c *Client) OpenSubscription(ctx context.Context, taskID string) {
	if taskID == "" {
		return
	}
	sctx, gen := c.swapStream(ctx)
	go func() {
		defer c.clearStream(gen)
		c.runSubscription(sctx, taskID, nil)
	}()
}

// Adopt consumes frames from an already-open stream, typically the one
// returned by StartStream for a brand-new task. Once the stream ends, the
// client falls back to the normal resubscribe/reconnect path using the task
// id learned from the stream.
func (c *Client) Adopt(ctx context.Context, stream transport.Stream) {
	sctx, gen := c.swapStream(ctx)
	go func() {
		defer c.clearStream(gen)
		c.runSubscription(sctx, "", stream)
	}()
}

// Resubscribe forces a fresh subscription for the current task, e.g. after
// a request/response send when no live stream is open.
func (c *Client) Resubscribe(ctx context.Context) {
	if id := c.TaskID(); id != "" {
		c.OpenSubscription(ctx, id)
	}
}

// Subscribed reports whether a live stream is currently open.
func (c *Client) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamCancel != nil
}

// Stop cancels any live stream. The mirror keeps its state.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.streamCancel
	c.streamCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Client) swapStream(ctx context.Context) (context.Context, uint64) {
	sctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.streamCancel != nil {
		c.streamCancel()
	}
	c.streamCancel = cancel
	c.streamGen++
	gen := c.streamGen
	c.mu.Unlock()
	return sctx, gen
}

func (c *Client) clearStream(gen uint64) {
	c.mu.Lock()
	if c.streamGen == gen && c.streamCancel != nil {
		c.streamCancel()
		c.streamCancel = nil
	}
	c.mu.Unlock()
}

// runSubscription consumes initial (if non-nil) and then reconnects with
// exponential backoff until the context is cancelled or the task reaches a
// terminal status. The backoff resets on every received frame.
func (c *Client) runSubscription(ctx context.Context, taskID string, initial transport.Stream) {
	retry := newBackoff(c.backoffBase, c.backoffCap)

	if initial != nil {
		c.consume(ctx, initial, retry)
		_ = initial.Close()
		if taskID == "" {
			taskID = c.TaskID()
		}
	}

	for {
		if ctx.Err() != nil || c.terminal() || taskID == "" {
			return
		}
		stream, err := c.proto.Resubscribe(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if sleepCtx(ctx, retry.Next()) != nil {
				return
			}
			continue
		}
		go c.refreshSnapshot(ctx, taskID)
		c.consume(ctx, stream, retry)
		_ = stream.Close()
		if ctx.Err() != nil || c.terminal() {
			return
		}
		if sleepCtx(ctx, retry.Next()) != nil {
			return
		}
	}
}

func (c *Client) consume(ctx context.Context, stream transport.Stream, retry *backoff) {
	for {
		frame, err := stream.Recv(ctx)
		if err != nil {
			return
		}
		retry.Reset()
		c.Ingest(frame)
	}
}

// refreshSnapshot reconciles the mirror against a full fetch. Runs after a
// (re)subscribe; a failure here is harmless, the stream itself will catch
// the mirror up.
func (c *Client) refreshSnapshot(ctx context.Context, taskID string) {
	snap, err := c.proto.GetSnapshot(ctx, taskID)
	if err != nil {
		return
	}
	c.Ingest(protocol.SnapshotFrame(snap))
}
