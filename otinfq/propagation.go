// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package otinfq provides OpenTelemetry and zap integration for the infq
// inference task queue. Its wrappers add logging, metrics, and tracing to
// producer functions, and carry the submitter's trace context into the job,
// which otherwise only sees the context passed to [infq.Queue.Run].
package otinfq

import (
	"context"

	"github.com/petenewcomb/infq-go"
	"go.opentelemetry.io/otel/trace"
)

// Propagate wraps a producer so that it runs with the span context found in
// ctx, the submitter's context, as its remote parent. Spans the producer
// starts are thus attributed to the request that submitted the job rather
// than to the queue.
//
// The job context's cancellation and values are left intact; only the span
// context is replaced. If ctx carries no valid span context the producer is
// returned unchanged.
func Propagate[T any](
	ctx context.Context,
	producer infq.ProducerFunc[T],
) infq.ProducerFunc[T] {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return producer
	}
	return func(jobCtx context.Context, h *infq.TrackingHandle[T]) {
		producer(trace.ContextWithRemoteSpanContext(jobCtx, sc), h)
	}
}
