// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package permit

import "sync/atomic"

// limit holds a concurrency limit together with a channel that is closed
// whenever the limit is replaced. Waiters select on the channel so that a
// limit change wakes them without going through the waiter queue.
type limit struct {
	state atomic.Pointer[limitState]
}

type limitState struct {
	value      int
	changeChan chan struct{}
}

func (l *limit) load() (int, <-chan struct{}) {
	s := l.state.Load()
	if s == nil {
		s = &limitState{changeChan: make(chan struct{})}
		if !l.state.CompareAndSwap(nil, s) {
			s = l.state.Load()
		}
	}
	return s.value, s.changeChan
}

func (l *limit) store(v int) {
	old := l.state.Swap(&limitState{
		value:      v,
		changeChan: make(chan struct{}),
	})
	if old != nil {
		close(old.changeChan)
	}
}
