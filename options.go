// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Priority is an advisory scheduling hint attached to the context of every job
// run by a [Queue]. The queue itself does not act on it; producers that hand
// work to a host scheduler may read it with [PriorityFromContext].
type Priority int

const (
	PriorityBackground    Priority = -2
	PriorityUtility       Priority = -1
	PriorityMedium        Priority = 0
	PriorityUserInitiated Priority = 1
)

func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityUtility:
		return "utility"
	case PriorityMedium:
		return "medium"
	case PriorityUserInitiated:
		return "user-initiated"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler], accepting the names
// returned by [Priority.String].
func (p *Priority) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "background":
		*p = PriorityBackground
	case "utility":
		*p = PriorityUtility
	case "medium", "":
		*p = PriorityMedium
	case "user-initiated", "userinitiated", "high":
		*p = PriorityUserInitiated
	default:
		return fmt.Errorf("unknown priority %q", text)
	}
	return nil
}

type priorityContextKey struct{}

// PriorityFromContext returns the priority hint of the queue running the job
// whose context is ctx, or [PriorityMedium] if there is none.
func PriorityFromContext(ctx context.Context) Priority {
	p, _ := ctx.Value(priorityContextKey{}).(Priority)
	return p
}

// An Option configures a [Queue].
type Option func(*options)

type options struct {
	maxConcurrency int
	priority       Priority
	backlogLimit   int
	logger         *zap.Logger
	observers      []PlatformObserver
}

func defaultOptions() options {
	return options{
		maxConcurrency: -1,
		logger:         zap.L(),
	}
}

// WithMaxConcurrency limits how many jobs run at the same time. A negative
// value, the default, means no limit. Zero means no job is started until
// [Queue.SetMaxConcurrency] is called with a non-zero value.
func WithMaxConcurrency(n int) Option {
	return func(o *options) { o.maxConcurrency = n }
}

// WithPriority sets the advisory priority hint passed to producers.
func WithPriority(p Priority) Option {
	return func(o *options) { o.priority = p }
}

// WithBacklogLimit caps the number of jobs waiting to start. Once the cap is
// reached, [Queue.Submit] fails with [ErrSubmissionFailed] rather than block
// or drop. A non-positive value, the default, means no cap.
func WithBacklogLimit(n int) Option {
	return func(o *options) { o.backlogLimit = n }
}

// WithLogger sets the logger. Defaults to [zap.L] at the time the queue is
// created.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = zap.NewNop()
		}
		o.logger = logger
	}
}

// WithPlatformObserver registers f to be called on every change of the
// queue's [PlatformState]. May be given more than once.
func WithPlatformObserver(f PlatformObserver) Option {
	return func(o *options) {
		if f == nil {
			panic("platform observer must be non-nil")
		}
		o.observers = append(o.observers, f)
	}
}
