// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otinfq

import (
	"context"
	"time"

	"github.com/petenewcomb/infq-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/petenewcomb/infq-go/otinfq"

// Metrics adds metrics collection to a producer. It records, under the given
// prefix, a ".count" of executions, a ".duration" histogram in seconds, and
// ".errors" and ".cancellations" counters by how the stream ended.
func Metrics[T any](
	metricName string,
	producer infq.ProducerFunc[T],
) infq.ProducerFunc[T] {
	return func(ctx context.Context, h *infq.TrackingHandle[T]) {
		startTime := time.Now()
		meter := otel.GetMeterProvider().Meter(instrumentationName)

		counter, _ := meter.Int64Counter(metricName + ".count")
		duration, _ := meter.Float64Histogram(metricName+".duration",
			metric.WithUnit("s"))

		counter.Add(ctx, 1)

		// Record even if the producer panics; the queue reports the panic on
		// the stream after this function unwinds.
		didPanic := true
		defer func() {
			duration.Record(ctx, time.Since(startTime).Seconds())
			reason, _ := h.Termination()
			switch {
			case didPanic || reason == infq.Failed:
				errorCounter, _ := meter.Int64Counter(metricName + ".errors")
				errorCounter.Add(ctx, 1)
			case reason == infq.Cancelled:
				cancelCounter, _ := meter.Int64Counter(metricName + ".cancellations")
				cancelCounter.Add(ctx, 1)
			}
		}()

		producer(ctx, h)
		didPanic = false
	}
}

// MetricsObserver returns a platform observer that maintains an up-down
// counter named metricName which is 1 while the queue is processing and 0
// while it is idle. Returns an error if the instrument cannot be created.
func MetricsObserver(metricName string) (infq.PlatformObserver, error) {
	meter := otel.GetMeterProvider().Meter(instrumentationName)
	busy, err := meter.Int64UpDownCounter(metricName,
		metric.WithDescription("1 while the queue has a running job, 0 otherwise"))
	if err != nil {
		return nil, err
	}
	return func(s infq.PlatformState) {
		ctx := context.Background()
		switch s {
		case infq.Processing:
			busy.Add(ctx, 1)
		case infq.Idle:
			busy.Add(ctx, -1)
		}
	}, nil
}
