// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otinfq

import (
	"context"

	"github.com/petenewcomb/infq-go"
)

// Instrumented combines tracing, metrics, and logging for a producer into a
// single wrapper. ctx is the submitter's context, used to parent the span.
func Instrumented[T any](
	ctx context.Context,
	operationName string,
	producer infq.ProducerFunc[T],
) infq.ProducerFunc[T] {
	// Apply wrappers inside-out so that the span covers everything.
	logged := Logged(operationName, producer)
	metered := Metrics(operationName, logged)
	return Traced(ctx, operationName, metered)
}

// InstrumentedSubmit is a convenience that submits an instrumented producer
// to q.
//
// Example:
//
//	stream, err := otinfq.InstrumentedSubmit(ctx, q, "generate", myProducer)
func InstrumentedSubmit[T any](
	ctx context.Context,
	q *infq.Queue[T],
	operationName string,
	producer infq.ProducerFunc[T],
) (*infq.Stream[T], error) {
	return q.Submit(Instrumented(ctx, operationName, producer))
}

// Observers returns the logging and metrics platform observers for a queue
// named name, ready to pass to [infq.WithPlatformObserver]. The metric is
// named name + ".processing".
func Observers(name string) ([]infq.Option, error) {
	metered, err := MetricsObserver(name + ".processing")
	if err != nil {
		return nil, err
	}
	return []infq.Option{
		infq.WithPlatformObserver(LoggedObserver(name)),
		infq.WithPlatformObserver(metered),
	}, nil
}
