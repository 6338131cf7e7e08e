// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq

import "sync/atomic"

// TrackingHandle is a [Handle] that remembers whether its stream was
// cancelled. A producer emitting a long sequence of items can poll
// [TrackingHandle.IsCancelled] between items to find out cheaply that nobody
// is listening anymore, without threading a context through its loop.
type TrackingHandle[T any] struct {
	*Handle[T]
	cancelled atomic.Bool
}

// Track wraps h. The flag is set only when the stream terminates with
// [Cancelled]; finishing or failing the stream leaves it false.
func Track[T any](h *Handle[T]) *TrackingHandle[T] {
	th := &TrackingHandle[T]{Handle: h}
	h.OnTermination(func(reason TerminationReason, _ error) {
		if reason == Cancelled {
			th.cancelled.Store(true)
		}
	})
	return th
}

// IsCancelled reports whether the stream has been cancelled. It never blocks
// and is safe to call concurrently with production.
func (h *TrackingHandle[T]) IsCancelled() bool {
	return h.cancelled.Load()
}
