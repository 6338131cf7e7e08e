// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package jobq provides the closable FIFO channel that carries jobs from
// submitters to the infq dispatch loop. Unlike a Go channel it can grow without
// bound, so a send never blocks, and closing it hands any undelivered items
// back to the caller instead of leaving them to be drained.
package jobq

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
	"github.com/petenewcomb/infq-go/internal/cerr"
)

const (
	ErrClosed = cerr.Error("job channel closed")
	ErrFull   = cerr.Error("job channel full")
)

// Queue is a multi-producer FIFO channel. A non-positive limit means the queue
// is unbounded.
type Queue[T any] struct {
	mu     sync.Mutex
	items  deque.Deque[T]
	limit  int
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func New[T any](limit int) *Queue[T] {
	return &Queue[T]{
		limit: limit,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Send appends v. Returns ErrClosed after Close and ErrFull if the queue is
// bounded and at its limit. Never blocks.
func (q *Queue[T]) Send(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if q.limit > 0 && q.items.Len() >= q.limit {
		q.mu.Unlock()
		return ErrFull
	}
	q.items.PushBack(v)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Receive removes and returns the item at the front of the queue, blocking
// until one is available, the queue is closed (ErrClosed), or ctx is done
// (ctx.Err()).
func (q *Queue[T]) Receive(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			v := q.items.PopFront()
			more := q.items.Len() > 0
			q.mu.Unlock()
			if more {
				// Pass the signal on in case there is more than one receiver.
				q.signal()
			}
			return v, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			var zero T
			return zero, ErrClosed
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Close rejects further sends, wakes blocked receivers, and returns the items
// that were never received, in order. Subsequent calls return nil.
func (q *Queue[T]) Close() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)

	var rest []T
	if n := q.items.Len(); n > 0 {
		rest = make([]T, 0, n)
		for q.items.Len() > 0 {
			rest = append(rest, q.items.PopFront())
		}
	}
	return rest
}

// Len returns the number of items waiting to be received.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
