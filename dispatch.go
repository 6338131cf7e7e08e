// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petenewcomb/infq-go/internal/jobq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// dispatch is the body of Run. It receives jobs in order and starts each one
// once it holds a permit, until the channel is closed or ctx is done. It then
// cancels whatever is left in the channel and waits for the started jobs.
func (q *Queue[T]) dispatch(ctx context.Context, channel *jobq.Queue[*job[T]]) error {
	var group errgroup.Group
	var loopErr error
	started := 0
	for {
		j, err := channel.Receive(ctx)
		if err != nil {
			loopErr = err
			break
		}
		if err := q.permits.Acquire(ctx); err != nil {
			q.abandon([]*job[T]{j}, context.Cause(ctx))
			loopErr = err
			break
		}
		q.platform.acquired()
		started++
		group.Go(func() error {
			defer func() {
				// Release the permit first so that a waiting job can take it
				// over without the platform briefly reporting Idle.
				q.permits.Release()
				q.platform.released()
			}()
			q.execute(ctx, j)
			return nil
		})
	}

	cause := context.Cause(ctx)
	if cause == nil {
		cause = errQueueShutdown
	}
	q.abandon(channel.Close(), cause)
	_ = group.Wait()

	var err error
	if !errors.Is(loopErr, jobq.ErrClosed) && !errors.Is(cause, errQueueShutdown) {
		err = fmt.Errorf("dispatch loop stopped: %w", cancellation(cause))
	}
	q.logger.Debug("Queue stopped",
		zap.Int("started", started),
		zap.Error(err))
	return err
}

// execute runs one job to completion and makes sure its stream ends. The job's
// context and its stream are tied together: cancelling either one cancels the
// other.
func (q *Queue[T]) execute(scope context.Context, j *job[T]) {
	ctx, cancel := context.WithCancelCause(scope)
	defer cancel(nil)

	j.handle.OnTermination(func(reason TerminationReason, err error) {
		if reason == Cancelled {
			cancel(err)
		}
	})
	stop := context.AfterFunc(ctx, func() {
		j.handle.Cancel(context.Cause(ctx))
	})
	defer stop()

	logger := q.logger.With(zap.Uint64("job", j.id))
	logger.Debug("Starting job")
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrProducerPanic, r)
			j.handle.Fail(err)
			logger.Error("Job failed",
				zap.Duration("duration", duration),
				zap.Error(err))
			return
		}
		if ctx.Err() != nil {
			j.handle.Cancel(context.Cause(ctx))
			logger.Debug("Job cancelled",
				zap.Duration("duration", duration),
				zap.Error(context.Cause(ctx)))
			return
		}
		j.handle.Finish()
		logger.Debug("Job completed", zap.Duration("duration", duration))
	}()

	j.producer(ctx, j.handle)
}
