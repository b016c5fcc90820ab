// Package pqueue is the binary min-heap used by the pathfinder frontier.
package pqueue

import (
	"github.com/zyedidia/generic/heap"
	"github.com/zyedidia/generic/mapset"
)

// Queue is a min-heap ordered by a caller-supplied strict-less comparator. Ties pop in an
// unspecified order.
type Queue[T comparable] struct {
	h *heap.Heap[T]

	members mapset.Set[T]
	dups    map[T]int
}

// New builds a queue, optionally seeded from items.
func New[T comparable](less func(a, b T) bool, items ...T) *Queue[T] {
	q := &Queue[T]{
		h:       heap.New[T](less),
		members: mapset.New[T](),
		dups:    map[T]int{},
	}
	for _, it := range items {
		q.Push(it)
	}
	return q
}

func (q *Queue[T]) Push(x T) {
	q.h.Push(x)
	if q.members.Has(x) {
		q.dups[x]++
		return
	}
	q.members.Put(x)
}

// Pop removes and returns the minimum. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (x T, ok bool) {
	x, ok = q.h.Pop()
	if !ok {
		return x, false
	}
	if n := q.dups[x]; n > 0 {
		if n == 1 {
			delete(q.dups, x)
		} else {
			q.dups[x] = n - 1
		}
	} else {
		q.members.Remove(x)
	}
	return x, true
}

func (q *Queue[T]) Peek() (T, bool) { return q.h.Peek() }

// Contains reports whether x is still queued (at least one copy).
func (q *Queue[T]) Contains(x T) bool { return q.members.Has(x) }

func (q *Queue[T]) Size() int { return q.h.Size() }

func (q *Queue[T]) IsEmpty() bool { return q.h.Size() == 0 }
