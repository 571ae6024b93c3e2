// Package core runs value propagation over an indexed recipe graph and
// reports the outcome. The engine is single threaded: one Engine owns one
// value store for the duration of a run.
package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"valuegen/internal/graph"
	"valuegen/internal/values"
)

// Engine derives missing values by alternating recipe-cost inference and
// tag-average inference until neither yields a new value. It rescans every
// missing item on each pass instead of ordering the graph, so recipe cycles
// simply stay unresolved until a value enters them from outside.
type Engine struct {
	index    *graph.Index
	values   *values.Store
	universe []Identifier
	logger   *zap.Logger
	metrics  MetricsRecorder
	tracer   Tracer
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLogger narrates passes and rounds at debug level.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records phase timings and derivation counts.
func WithMetrics(metrics MetricsRecorder) EngineOption {
	return func(e *Engine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// WithTracer wraps phases and runs in spans.
func WithTracer(tracer Tracer) EngineOption {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// NewEngine binds an index to the value store it will mutate.
func NewEngine(index *graph.Index, store *values.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		index:    index,
		values:   store,
		universe: index.Universe(),
		logger:   zap.NewNop(),
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Values returns the store the engine mutates.
func (e *Engine) Values() *values.Store { return e.values }

// Missing returns the universe items that have no value yet, sorted.
func (e *Engine) Missing() []Identifier {
	return e.values.Missing(e.universe)
}

// PhaseResult counts one phase run to its fixed point.
type PhaseResult struct {
	Passes  int
	Derived int
}

// RoundResult is one recipe phase followed by one tag phase.
type RoundResult struct {
	Recipe PhaseResult
	Tag    PhaseResult
}

// Total returns the number of items newly valued in the round.
func (r RoundResult) Total() int { return r.Recipe.Derived + r.Tag.Derived }

// Summary describes a converged run.
type Summary struct {
	Rounds        int
	RecipeDerived int
	TagDerived    int
	Valued        int
}

// RecipePhase repeats RecipePass until a pass derives nothing.
func (e *Engine) RecipePhase(ctx context.Context) PhaseResult {
	return e.phase(ctx, PhaseRecipe, e.RecipePass)
}

// TagPhase repeats TagPass until a pass derives nothing.
func (e *Engine) TagPhase(ctx context.Context) PhaseResult {
	return e.phase(ctx, PhaseTag, e.TagPass)
}

func (e *Engine) phase(ctx context.Context, name string, pass func() int) PhaseResult {
	ctx, span := e.tracer.Start(ctx, "engine."+name+"_phase")
	start := time.Now()
	var res PhaseResult
	for {
		n := pass()
		res.Passes++
		res.Derived += n
		e.logger.Debug("pass finished", zap.String("phase", name), zap.Int("pass", res.Passes), zap.Int("derived", n))
		if n == 0 {
			break
		}
	}
	span.End(nil)
	e.metrics.Observe(ctx, "engine."+name+"_phase", true, time.Since(start))
	e.metrics.Derived(ctx, name, res.Passes, res.Derived)
	return res
}

// Round runs the recipe phase and then the tag phase, each to its own fixed point.
func (e *Engine) Round(ctx context.Context) RoundResult {
	return RoundResult{
		Recipe: e.RecipePhase(ctx),
		Tag:    e.TagPhase(ctx),
	}
}

// Run repeats rounds while a round values at least one item. Every round
// that continues the loop strictly grows the store, so the number of rounds
// is bounded by the universe size.
func (e *Engine) Run(ctx context.Context) Summary {
	ctx, span := e.tracer.Start(ctx, "engine.run")
	start := time.Now()
	var sum Summary
	for {
		round := e.Round(ctx)
		sum.Rounds++
		sum.RecipeDerived += round.Recipe.Derived
		sum.TagDerived += round.Tag.Derived
		e.logger.Debug("meta round finished",
			zap.Int("round", sum.Rounds),
			zap.Int("recipe_derived", round.Recipe.Derived),
			zap.Int("tag_derived", round.Tag.Derived),
		)
		if round.Total() == 0 {
			break
		}
	}
	sum.Valued = e.values.Len()
	span.End(nil)
	e.metrics.Observe(ctx, "engine.run", true, time.Since(start))
	return sum
}
