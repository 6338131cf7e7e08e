// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otinfq

import (
	"context"
	"time"

	"github.com/petenewcomb/infq-go"
	"go.uber.org/zap"
)

// Logged adds structured logging to a producer. It logs the start of the job
// and, once the producer returns, how long it took and how its stream ended.
func Logged[T any](
	operationName string,
	producer infq.ProducerFunc[T],
) infq.ProducerFunc[T] {
	return func(ctx context.Context, h *infq.TrackingHandle[T]) {
		logger := zap.L().With(
			zap.String("operation", operationName),
			zap.String("component", "otinfq"))

		logger.Debug("Starting producer",
			zap.Stringer("priority", infq.PriorityFromContext(ctx)))

		startTime := time.Now()
		producer(ctx, h)
		duration := time.Since(startTime)

		// A producer that returns without ending its stream is finished by
		// the queue afterward, so an open stream counts as completed here.
		switch reason, err := h.Termination(); reason {
		case infq.Failed:
			logger.Error("Producer failed",
				zap.Duration("duration", duration),
				zap.Error(err))
		case infq.Cancelled:
			logger.Debug("Producer cancelled",
				zap.Duration("duration", duration),
				zap.Error(err))
		default:
			logger.Debug("Producer completed",
				zap.Duration("duration", duration))
		}
	}
}

// LoggedObserver returns a platform observer that logs every change of
// state at info level.
func LoggedObserver(name string) infq.PlatformObserver {
	return func(s infq.PlatformState) {
		zap.L().Info("Platform state changed",
			zap.String("queue", name),
			zap.String("component", "otinfq"),
			zap.Stringer("state", s))
	}
}
