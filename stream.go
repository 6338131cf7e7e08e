// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"

	"github.com/gammazero/deque"
)

// TerminationReason describes why a stream ended.
type TerminationReason int

const (
	// Finished means the producer signaled normal completion.
	Finished TerminationReason = iota + 1
	// Failed means the producer signaled failure with an error.
	Failed
	// Cancelled means the consumer stopped reading or the stream was
	// cancelled from outside, for instance by [Queue.Shutdown] or
	// [Registry.CancelAll].
	Cancelled
)

func (r TerminationReason) String() string {
	switch r {
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "open"
	}
}

// A TerminationFunc observes the end of a stream. It is called exactly once,
// from whichever goroutine terminated the stream, and must not block.
type TerminationFunc func(reason TerminationReason, err error)

// NewStream creates a connected pair: the [Stream] read by a consumer and the
// [Handle] written by a producer. The buffer between them is unbounded, so the
// producer never blocks and no item is ever dropped unless the stream is
// cancelled.
func NewStream[T any]() (*Stream[T], *Handle[T]) {
	p := &pipe[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	return &Stream[T]{p: p}, &Handle[T]{p: p}
}

// Stream is the consumer side of a job's output.
type Stream[T any] struct {
	p *pipe[T]
}

// Next returns the next item. At the end of the stream it returns [io.EOF] if
// the producer finished normally, the producer's error if it failed, or an
// error wrapping [ErrCancelled] if the stream was cancelled. Items buffered
// before a failure are delivered before the failure; items buffered before a
// cancellation are discarded.
//
// If ctx is done first, Next returns ctx.Err() and leaves the stream intact.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	return s.p.next(ctx)
}

// All returns an iterator over the remaining items. Iteration ends after the
// last item of a finished stream, or after yielding a non-nil error. Breaking
// out of the loop early, or ctx being done, cancels the stream so that the
// producer can notice nobody is listening.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := s.p.next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					s.p.terminate(Cancelled, cancellation(context.Cause(ctx)))
				}
				yield(item, err)
				return
			}
			if !yield(item, nil) {
				s.Cancel()
				return
			}
		}
	}
}

// Collect reads the stream to its end and returns the items received. The
// error is nil if the producer finished normally.
func (s *Stream[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for item, err := range s.All(ctx) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Cancel tells the producer that the consumer has gone away. Buffered items
// are discarded and subsequent calls to [Handle.Yield] fail. Has no effect if
// the stream already ended.
func (s *Stream[T]) Cancel() {
	s.p.terminate(Cancelled, cancellation(context.Canceled))
}

// Done returns a channel that is closed when the stream terminates, even if
// buffered items remain to be read.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.p.done
}

// Handle is the producer side of a job's output.
type Handle[T any] struct {
	p *pipe[T]
}

// Yield emits one item. It returns an error wrapping [ErrCancelled] once the
// stream has been cancelled, or [ErrStreamClosed] if the producer already
// finished or failed it.
func (h *Handle[T]) Yield(item T) error {
	return h.p.push(item)
}

// Finish signals normal completion. Has no effect if the stream already ended.
func (h *Handle[T]) Finish() {
	h.p.terminate(Finished, nil)
}

// Fail ends the stream with err, which the consumer receives after any
// buffered items. A nil err is equivalent to [Handle.Finish]. Has no effect if
// the stream already ended.
func (h *Handle[T]) Fail(err error) {
	if err == nil {
		h.Finish()
		return
	}
	h.p.terminate(Failed, err)
}

// Cancel ends the stream with an error wrapping [ErrCancelled] and cause. Has
// no effect if the stream already ended.
func (h *Handle[T]) Cancel(cause error) {
	h.p.terminate(Cancelled, cancellation(cause))
}

// OnTermination registers f to be called when the stream ends. If it already
// ended, f is called immediately.
func (h *Handle[T]) OnTermination(f TerminationFunc) {
	h.p.observe(f)
}

// Done returns a channel that is closed when the stream terminates.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.p.done
}

// Termination returns the reason the stream ended and the accompanying error,
// or a zero reason if it is still open.
func (h *Handle[T]) Termination() (TerminationReason, error) {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	return h.p.reason, h.p.err
}

type pipe[T any] struct {
	mu        sync.Mutex
	items     deque.Deque[T]
	reason    TerminationReason
	err       error
	observers []TerminationFunc
	ready     chan struct{}
	done      chan struct{}
}

func (p *pipe[T]) push(item T) error {
	p.mu.Lock()
	switch p.reason {
	case Cancelled:
		err := p.err
		p.mu.Unlock()
		return err
	case Finished, Failed:
		p.mu.Unlock()
		return ErrStreamClosed
	}
	p.items.PushBack(item)
	p.mu.Unlock()

	select {
	case p.ready <- struct{}{}:
	default:
	}
	return nil
}

func (p *pipe[T]) next(ctx context.Context) (T, error) {
	var zero T
	for {
		p.mu.Lock()
		if p.items.Len() > 0 {
			item := p.items.PopFront()
			p.mu.Unlock()
			return item, nil
		}
		reason, err := p.reason, p.err
		p.mu.Unlock()

		switch reason {
		case Finished:
			return zero, io.EOF
		case Failed, Cancelled:
			return zero, err
		}

		select {
		case <-p.ready:
		case <-p.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// terminate ends the stream and reports whether this call was the one that
// did so.
func (p *pipe[T]) terminate(reason TerminationReason, err error) bool {
	p.mu.Lock()
	if p.reason != 0 {
		p.mu.Unlock()
		return false
	}
	p.reason = reason
	p.err = err
	if reason == Cancelled {
		p.items.Clear()
	}
	observers := p.observers
	p.observers = nil
	close(p.done)
	p.mu.Unlock()

	for _, f := range observers {
		f(reason, err)
	}
	return true
}

func (p *pipe[T]) observe(f TerminationFunc) {
	p.mu.Lock()
	if p.reason == 0 {
		p.observers = append(p.observers, f)
		p.mu.Unlock()
		return
	}
	reason, err := p.reason, p.err
	p.mu.Unlock()
	f(reason, err)
}
