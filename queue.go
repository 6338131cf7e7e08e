// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/petenewcomb/infq-go/internal/jobq"
	"github.com/petenewcomb/infq-go/internal/permit"
	"go.uber.org/zap"
)

// A ProducerFunc generates the output of one job. It pushes zero or more items
// into h and returns; it has no return value of its own, so a failure must be
// reported with [Handle.Fail]. If it returns without ending the stream, the
// queue finishes the stream for it.
//
// ctx is cancelled when the consumer cancels the stream or when the queue is
// shut down. In both cases h's [TrackingHandle.IsCancelled] also becomes true,
// so a producer may check whichever is more convenient between items.
//
// Each ProducerFunc runs in its own goroutine and must therefore be
// thread-safe, including its access to any captured variables. A panic is
// recovered and reported on the job's stream as [ErrProducerPanic].
type ProducerFunc[T any] = func(ctx context.Context, h *TrackingHandle[T])

// Queue is a bounded-concurrency scheduler for streaming jobs. Jobs may be
// submitted at any time before [Queue.Shutdown]; those submitted before
// [Queue.Run] are buffered and start, in submission order, once it is called.
// At most the configured number of jobs run at once, and the aggregate
// [PlatformState] tracks whether any are running.
//
// The lifecycle is strictly New → Run → Shutdown. Run must be called exactly
// once and Shutdown exactly once after it; see each method for what happens
// otherwise.
type Queue[T any] struct {
	mu    sync.Mutex
	state queueState[T]

	permits  *permit.Pool
	platform platformTracker
	priority Priority
	backlog  int
	logger   *zap.Logger

	nextJobID atomic.Uint64
	done      chan struct{}
}

type stage int

const (
	stageBuffering stage = iota
	stageRunning
	stageShutDown
)

func (s stage) String() string {
	switch s {
	case stageBuffering:
		return "buffering"
	case stageRunning:
		return "running"
	default:
		return "shut down"
	}
}

// queueState is replaced wholesale on every transition. Only the fields of the
// current stage are set.
type queueState[T any] struct {
	stage   stage
	pending []*job[T]               // buffering
	channel *jobq.Queue[*job[T]]    // running
	cancel  context.CancelCauseFunc // running
}

type job[T any] struct {
	id       uint64
	producer ProducerFunc[T]
	handle   *TrackingHandle[T]
}

// New creates a queue in the buffering stage.
func New[T any](opts ...Option) *Queue[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	q := &Queue[T]{
		permits:  permit.New(o.maxConcurrency),
		priority: o.priority,
		backlog:  o.backlogLimit,
		logger:   o.logger.With(zap.String("component", "infq")),
		done:     make(chan struct{}),
	}
	q.platform.observers = o.observers
	return q
}

// Submit adds a job and returns the stream its producer writes to. The stream
// is returned immediately; the job starts once the queue is running and a
// permit is available.
//
// Returns [ErrAlreadyShutdown] after [Queue.Shutdown], and an error wrapping
// [ErrSubmissionFailed] if the backlog limit has been reached or the dispatch
// loop has stopped. Panics if producer is nil.
func (q *Queue[T]) Submit(producer ProducerFunc[T]) (*Stream[T], error) {
	if producer == nil {
		panic("producer function must be non-nil")
	}

	stream, h := NewStream[T]()
	j := &job[T]{
		id:       q.nextJobID.Add(1),
		producer: producer,
		handle:   Track(h),
	}

	at, err := q.enqueue(j)
	if err != nil {
		q.logger.Debug("Job rejected",
			zap.Uint64("job", j.id),
			zap.Stringer("stage", at),
			zap.Error(err))
		return nil, err
	}
	q.logger.Debug("Job submitted",
		zap.Uint64("job", j.id),
		zap.Stringer("stage", at))
	return stream, nil
}

func (q *Queue[T]) enqueue(j *job[T]) (stage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch q.state.stage {
	case stageBuffering:
		if q.backlog > 0 && len(q.state.pending) >= q.backlog {
			return stageBuffering, fmt.Errorf("%w: %w", ErrSubmissionFailed, jobq.ErrFull)
		}
		q.state.pending = append(q.state.pending, j)
		return stageBuffering, nil
	case stageRunning:
		if err := q.state.channel.Send(j); err != nil {
			return stageRunning, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
		}
		return stageRunning, nil
	default:
		return stageShutDown, ErrAlreadyShutdown
	}
}

// Run starts the queue and dispatches jobs until [Queue.Shutdown] is called or
// ctx is done, then waits for every started job to return.
//
// Jobs buffered before Run start first, in the order they were submitted. Each
// job is started once a permit is available; waiting for it is interrupted by
// Shutdown or by ctx.
//
// Returns nil after Shutdown. If ctx is done first, Run returns an error
// wrapping [ErrCancelled] and the context's cause; the queue then accepts no
// more jobs (Submit fails with [ErrSubmissionFailed]) but must still be shut
// down. Returns [ErrAlreadyRunning] if Run was already called and
// [ErrAlreadyShutdown] after Shutdown, without starting anything.
func (q *Queue[T]) Run(ctx context.Context) error {
	channel, scope, cancel, err := q.start(ctx)
	if err != nil {
		return err
	}
	defer close(q.done)
	defer cancel(nil)
	return q.dispatch(scope, channel)
}

func (q *Queue[T]) start(ctx context.Context) (*jobq.Queue[*job[T]], context.Context, context.CancelCauseFunc, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch q.state.stage {
	case stageRunning:
		return nil, nil, nil, ErrAlreadyRunning
	case stageShutDown:
		return nil, nil, nil, ErrAlreadyShutdown
	}

	// Submit enforces the backlog limit while buffering too, so the pending
	// jobs always fit.
	channel := jobq.New[*job[T]](q.backlog)
	for _, j := range q.state.pending {
		if err := channel.Send(j); err != nil {
			panic(fmt.Sprintf("flushing buffered jobs: %v", err))
		}
	}

	scope, cancel := context.WithCancelCause(context.WithValue(ctx, priorityContextKey{}, q.priority))
	q.logger.Debug("Queue started",
		zap.Int("buffered", len(q.state.pending)),
		zap.Int("max_concurrency", q.permits.Limit()),
		zap.Stringer("priority", q.priority))
	q.state = queueState[T]{
		stage:   stageRunning,
		channel: channel,
		cancel:  cancel,
	}
	return channel, scope, cancel, nil
}

// Shutdown stops the queue: no further jobs are accepted, jobs that have not
// started are cancelled without running, and every running job's context and
// stream are cancelled. [Queue.Run] returns once the running jobs have
// returned.
//
// Calling Shutdown before Run or more than once is a programming error and
// panics.
func (q *Queue[T]) Shutdown() {
	channel, cancel := q.beginShutdown()
	abandoned := channel.Close()
	cancel(errQueueShutdown)
	q.abandon(abandoned, errQueueShutdown)
	q.logger.Debug("Queue shut down", zap.Int("abandoned", len(abandoned)))
}

func (q *Queue[T]) beginShutdown() (*jobq.Queue[*job[T]], context.CancelCauseFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch q.state.stage {
	case stageBuffering:
		panic("Shutdown called before Run")
	case stageShutDown:
		panic("Shutdown called more than once")
	}
	channel, cancel := q.state.channel, q.state.cancel
	q.state = queueState[T]{stage: stageShutDown}
	return channel, cancel
}

// PlatformState returns [Processing] if any job holds a permit and [Idle]
// otherwise.
func (q *Queue[T]) PlatformState() PlatformState {
	return q.platform.load()
}

// SetMaxConcurrency changes the concurrency limit; see [WithMaxConcurrency]
// for the meaning of the value. Raising the limit starts waiting jobs right
// away. Lowering it does not stop running jobs.
func (q *Queue[T]) SetMaxConcurrency(n int) {
	q.permits.SetLimit(n)
	q.logger.Debug("Concurrency limit changed", zap.Int("max_concurrency", n))
}

// Pending returns the number of jobs submitted but not yet picked up by the
// dispatch loop.
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch q.state.stage {
	case stageBuffering:
		return len(q.state.pending)
	case stageRunning:
		return q.state.channel.Len()
	default:
		return 0
	}
}

// Running returns the number of jobs currently holding a permit.
func (q *Queue[T]) Running() int {
	return q.permits.Held()
}

// Done returns a channel that is closed when [Queue.Run] returns after having
// started the queue.
func (q *Queue[T]) Done() <-chan struct{} {
	return q.done
}

// Wait blocks until [Queue.Run] has returned or ctx is done. Returns
// [ErrNotStarted] if Run has not been called.
func (q *Queue[T]) Wait(ctx context.Context) error {
	q.mu.Lock()
	started := q.state.stage != stageBuffering
	q.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// abandon cancels the streams of jobs that will never start.
func (q *Queue[T]) abandon(jobs []*job[T], cause error) {
	for _, j := range jobs {
		j.handle.Cancel(cause)
		q.logger.Debug("Job abandoned", zap.Uint64("job", j.id), zap.Error(cause))
	}
}
