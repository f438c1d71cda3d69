package eventlog

import (
	"context"
	"sync"
)

// Signal is a single-slot condition variable: a monotonically increasing
// version plus a waiter list. A waiter passes in the last version it has
// seen; any bump past that version resolves the wait, so a change that
// lands between observing the version and calling Wait is never missed.
type Signal struct {
	mu      sync.Mutex
	version uint64
	waiters []chan struct{}
}

func (s *Signal) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Bump increments the version and releases every current waiter.
func (s *Signal) Bump() uint64 {
	s.mu.Lock()
	s.version++
	version := s.version
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	return version
}

// Wait blocks until the version exceeds since or ctx is done.
func (s *Signal) Wait(ctx context.Context, since uint64) error {
	s.mu.Lock()
	if s.version > since {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
