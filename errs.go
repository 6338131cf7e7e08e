// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq

import (
	"errors"
	"fmt"
)

type constError string

func (e constError) Error() string {
	return string(e)
}

// Queue lifecycle errors, returned synchronously by [Queue.Submit],
// [Queue.Run], and [Queue.Wait].
const ErrNotStarted = constError("queue not started")
const ErrAlreadyRunning = constError("queue already running")
const ErrAlreadyShutdown = constError("queue already shut down")
const ErrSubmissionFailed = constError("submission failed")

// ErrCancelled is wrapped by every error that reports cancellation, whether of
// a stream, a permit wait, or the dispatch loop. The underlying cause, such as
// [context.Canceled], is wrapped as well.
const ErrCancelled = constError("cancelled")

// ErrStreamClosed is returned by [Handle.Yield] after the stream has finished
// or failed.
const ErrStreamClosed = constError("stream closed")

// ErrProducerPanic is reported on a job's stream when its producer panics.
const ErrProducerPanic = constError("producer panicked")

const errQueueShutdown = constError("queue shut down")

// cancellation returns an error wrapping both ErrCancelled and cause.
func cancellation(cause error) error {
	switch {
	case cause == nil:
		return ErrCancelled
	case errors.Is(cause, ErrCancelled):
		return cause
	default:
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
}
