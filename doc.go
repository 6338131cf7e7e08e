// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package infq provides an in-process scheduler for streaming jobs such as
// on-device model inference. Each job is a producer function that pushes a
// stream of items, for instance generated tokens, to whoever submitted it.
//
// A [Queue] accepts jobs from any goroutine and runs at most a configured
// number of them at a time. Jobs submitted before the queue is started with
// [Queue.Run] are held in a buffer and started in submission order once it
// is, so callers never need to coordinate with the queue's startup. The
// queue reports an aggregate [PlatformState], busy or idle, so that a host
// can, for example, keep a device awake only while work is in progress.
//
// Every job's output travels through a [Stream] and its producer-side
// [Handle]. Cancellation flows both ways: a consumer that stops reading
// cancels the producer's context, and shutting down the queue cancels every
// stream. A producer that prefers not to thread a context through its inner
// loop can poll [TrackingHandle.IsCancelled] between items instead.
//
// A [Registry] groups the handles of jobs that belong to some larger unit of
// work, such as a user session, so that they can all be cancelled together
// when it ends.
//
// Logging uses [go.uber.org/zap]; see the otinfq subpackage for tracing and
// metrics.
package infq
