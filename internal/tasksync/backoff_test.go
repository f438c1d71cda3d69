package tasksync

import (
	"testing"
	"time"
)

func TestBackoffDoublesToCap(t *testing.T) {
	b := newBackoff(250*time.Millisecond, 5*time.Second)
	want := []time.Duration{
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	for i, d := range want {
		if got := b.Next(); got != d {
			t.Fatalf("attempt %d: got %v, want %v", i, got, d)
		}
	}
}

func TestBackoffResetReturnsToBase(t *testing.T) {
	b := newBackoff(250*time.Millisecond, 5*time.Second)
	for i := 0; i < 4; i++ {
		b.Next()
	}
	b.Reset()
	if got := b.Next(); got != 250*time.Millisecond {
		t.Fatalf("after reset: got %v", got)
	}
}

func TestBackoffDefaults(t *testing.T) {
	b := newBackoff(0, 0)
	if b.base != defaultBackoffBase || b.cap != defaultBackoffCap {
		t.Fatalf("defaults not applied: base=%v cap=%v", b.base, b.cap)
	}
}
