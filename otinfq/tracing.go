// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otinfq

import (
	"context"

	"github.com/petenewcomb/infq-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Traced adds a span with the given operation name around a producer. The
// span is parented to the span found in ctx, the submitter's context, by way
// of [Propagate]. It records the job's priority and how its stream ended, and
// is marked as an error if the producer failed the stream.
func Traced[T any](
	ctx context.Context,
	operationName string,
	producer infq.ProducerFunc[T],
) infq.ProducerFunc[T] {
	traced := func(ctx context.Context, h *infq.TrackingHandle[T]) {
		tracer := otel.Tracer(instrumentationName)
		ctx, span := tracer.Start(ctx, operationName,
			trace.WithAttributes(
				attribute.String("infq.priority", infq.PriorityFromContext(ctx).String())))
		defer span.End()

		producer(ctx, h)

		reason, err := h.Termination()
		if reason == 0 {
			// Still open; the queue will finish it.
			reason = infq.Finished
		}
		span.SetAttributes(attribute.String("infq.termination", reason.String()))
		switch reason {
		case infq.Failed:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case infq.Cancelled:
			span.AddEvent("cancelled")
		}
	}
	return Propagate(ctx, traced)
}
