package core

import (
	"context"
	"time"
)

// Phase names used for derivation metrics.
const (
	PhaseRecipe = "recipe"
	PhaseTag    = "tag"
)

// MetricsRecorder receives operation timings and derivation counts.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	Derived(ctx context.Context, phase string, passes, count int)
}

// Tracer starts spans around engine and service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
func (noopMetrics) Derived(context.Context, string, int, int)            {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
