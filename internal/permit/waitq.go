// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package permit

import (
	"sync"

	"github.com/gammazero/deque"
)

// A waiter is registered in a waitQueue by a goroutine that could not obtain a
// permit. Its notification channel has a buffer of one, which doubles as the
// record of whether the waiter is still listening:
//
//   - notify finds the buffer empty: the waiter gets the notification.
//   - notify finds the buffer full: the waiter already closed itself, so the
//     notification moves on to the next waiter.
//   - close finds the buffer full: the waiter was notified but never received
//     it, so close passes the notification on.
//
// waiter values may be copied freely.
type waiter struct {
	q          *waitQueue
	notifyChan chan struct{}
}

func (w waiter) done() <-chan struct{} {
	return w.notifyChan
}

func (w waiter) close() {
	select {
	case w.notifyChan <- struct{}{}:
	default:
		w.q.notify()
	}
}

type waitQueue struct {
	mu      sync.Mutex
	waiters deque.Deque[waiter]
}

// add registers a new waiter at the back of the queue. Never blocks.
func (q *waitQueue) add() waiter {
	w := waiter{
		q:          q,
		notifyChan: make(chan struct{}, 1),
	}
	q.mu.Lock()
	q.waiters.PushBack(w)
	q.mu.Unlock()
	return w
}

// notify signals the first waiter still listening, if any.
func (q *waitQueue) notify() {
	for {
		q.mu.Lock()
		if q.waiters.Len() == 0 {
			q.mu.Unlock()
			return
		}
		w := q.waiters.PopFront()
		q.mu.Unlock()

		select {
		case w.notifyChan <- struct{}{}:
			return
		default:
			// Closed waiter, try the next one.
		}
	}
}

func (q *waitQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiters.Len()
}
