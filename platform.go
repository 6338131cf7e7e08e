// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq

import "sync"

// PlatformState is the aggregate busy/idle state of a [Queue].
type PlatformState int

const (
	// Idle means no job holds a permit.
	Idle PlatformState = iota
	// Processing means at least one job holds a permit.
	Processing
)

func (s PlatformState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// A PlatformObserver is called on every change of [PlatformState], in order.
// It runs while the queue's state lock is held, so it must return quickly and
// must not call back into the queue.
type PlatformObserver func(PlatformState)

// platformTracker derives PlatformState from the number of held permits. The
// count is kept here rather than read from the permit pool so that the flip to
// Processing and back happens exactly once per busy period, under one lock.
type platformTracker struct {
	mu        sync.RWMutex
	held      int
	state     PlatformState
	observers []PlatformObserver
}

func (t *platformTracker) acquired() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.held++
	if t.held == 1 {
		t.set(Processing)
	}
}

func (t *platformTracker) released() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.held--
	switch {
	case t.held < 0:
		panic("platform state released more permits than were acquired")
	case t.held == 0:
		t.set(Idle)
	}
}

func (t *platformTracker) set(s PlatformState) {
	t.state = s
	for _, f := range t.observers {
		f(s)
	}
}

func (t *platformTracker) load() PlatformState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}
