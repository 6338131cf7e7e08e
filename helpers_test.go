// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq_test

import (
	"cmp"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/addrummond/heap"
	"github.com/petenewcomb/infq-go"
	"github.com/stretchr/testify/require"
)

const patience = 5 * time.Second

// run starts q in the background and returns once it has left the buffering
// stage. The channel receives Run's result.
func run[T any](t require.TestingT, q *infq.Queue[T]) <-chan error {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	runErr := make(chan error, 1)
	go func() { runErr <- q.Run(context.Background()) }()

	expired, cancel := context.WithCancel(context.Background())
	cancel()
	require.Eventually(t, func() bool {
		return !errors.Is(q.Wait(expired), infq.ErrNotStarted)
	}, patience, time.Millisecond)
	return runErr
}

// stop shuts q down and returns Run's result.
func stop[T any](t require.TestingT, q *infq.Queue[T], runErr <-chan error) error {
	q.Shutdown()
	select {
	case err := <-runErr:
		return err
	case <-time.After(patience):
		require.Fail(t, "Run did not return after Shutdown")
		return nil
	}
}

// timeline records the intervals during which producers ran, on a logical
// clock, and computes the largest number that overlapped.
type timeline struct {
	clock  atomic.Uint64
	mu     sync.Mutex
	events heap.Heap[timelineEvent, heap.Min]
}

type timelineEvent struct {
	at    uint64
	delta int
}

func (a *timelineEvent) Cmp(b *timelineEvent) int {
	return cmp.Compare(a.at, b.at)
}

// begin marks the start of an interval and returns the function that marks its
// end.
func (tl *timeline) begin() func() {
	start := tl.clock.Add(1)
	return func() {
		end := tl.clock.Add(1)
		tl.mu.Lock()
		defer tl.mu.Unlock()
		heap.PushOrderable(&tl.events, timelineEvent{at: start, delta: 1})
		heap.PushOrderable(&tl.events, timelineEvent{at: end, delta: -1})
	}
}

// maxOverlap drains the recorded intervals.
func (tl *timeline) maxOverlap() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	current, peak := 0, 0
	for {
		event, ok := heap.PopOrderable(&tl.events)
		if !ok {
			return peak
		}
		current += event.delta
		peak = max(peak, current)
	}
}

// recorder collects values from concurrent goroutines.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder[T]) get() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}
