package tasksync

import (
	"context"
	"time"
)

const (
	defaultBackoffBase = 250 * time.Millisecond
	defaultBackoffCap  = 5 * time.Second
)

// backoff produces reconnect delays: base, doubling per failure, capped.
// Reset puts it back at the base after a successfully received frame.
type backoff struct {
	base    time.Duration
	cap     time.Duration
	attempt int
}

func newBackoff(base, limit time.Duration) *backoff {
	if base <= 0 {
		base = defaultBackoffBase
	}
	if limit <= 0 {
		limit = defaultBackoffCap
	}
	return &backoff{base: base, cap: limit}
}

func (b *backoff) Next() time.Duration {
	delay := b.base << b.attempt
	if delay > b.cap || delay <= 0 {
		delay = b.cap
	} else {
		b.attempt++
	}
	return delay
}

func (b *backoff) Reset() {
	b.attempt = 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
