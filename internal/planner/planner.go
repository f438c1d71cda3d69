package planner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flitsinc/taskbridge/internal/eventlog"
	"github.com/flitsinc/taskbridge/internal/tasksync"
	"github.com/flitsinc/taskbridge/internal/transport"
)

const (
	defaultSleepPause  = 750 * time.Millisecond
	defaultExcerptCap  = 4096
	defaultContextTail = 64
)

// Loop is the event-driven controller that turns event-log growth into at
// most one externally visible action per decision cycle. One loop owns one
// task; Start on a running loop is a no-op.
type Loop struct {
	log    *eventlog.Log
	sync   *tasksync.Client
	proto  transport.Protocol
	oracle Oracle

	resolver AttachmentResolver
	hooks    Hooks

	sleepPause time.Duration
	excerptCap int

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*Loop)

func WithOracle(oracle Oracle) Option {
	return func(l *Loop) {
		l.oracle = oracle
	}
}

func WithResolver(resolver AttachmentResolver) Option {
	return func(l *Loop) {
		l.resolver = resolver
	}
}

func WithHooks(hooks Hooks) Option {
	return func(l *Loop) {
		l.hooks = hooks
	}
}

func WithSleepPause(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 && d <= time.Second {
			l.sleepPause = d
		}
	}
}

func New(log *eventlog.Log, syncClient *tasksync.Client, proto transport.Protocol, opts ...Option) *Loop {
	l := &Loop{
		log:        log,
		sync:       syncClient,
		proto:      proto,
		sleepPause: defaultSleepPause,
		excerptCap: defaultExcerptCap,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Start launches the decision loop. Returns false if one is already
// running for this task.
func (l *Loop) Start(ctx context.Context) bool {
	if !l.running.CompareAndSwap(false, true) {
		return false
	}
	lctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.mu.Lock()
	l.cancel = cancel
	l.done = done
	l.mu.Unlock()
	go func() {
		defer close(done)
		defer l.running.Store(false)
		l.run(lctx)
	}()
	return true
}

// Stop halts the loop and cancels outstanding work. In-flight effects may
// finish, their results are discarded.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (l *Loop) Running() bool {
	return l.running.Load()
}

// run executes decision cycles until the task turns terminal or the
// context is cancelled. The log version is captured before each cycle;
// waiting on that version afterwards coalesces any number of appends that
// happened during the cycle into exactly one more cycle.
func (l *Loop) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		seen := l.log.Version()
		if stop := l.cycle(ctx); stop {
			return
		}
		if err := l.log.AwaitChange(ctx, seen); err != nil {
			return
		}
	}
}
