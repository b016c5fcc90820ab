package engine

import (
	"context"
	"sync"
)

// Barrier releases once it has received exactly n signals, in any order. Signals past n are
// ignored.
type Barrier struct {
	mu   sync.Mutex
	want int
	got  int
	done chan struct{}
}

func NewBarrier(n int) *Barrier {
	b := &Barrier{want: n, done: make(chan struct{})}
	if n <= 0 {
		close(b.done)
	}
	return b
}

func (b *Barrier) Signal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.got >= b.want {
		return
	}
	b.got++
	if b.got == b.want {
		close(b.done)
	}
}

func (b *Barrier) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.got
}

func (b *Barrier) Done() <-chan struct{} { return b.done }

// Wait blocks until the barrier releases or ctx ends.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
