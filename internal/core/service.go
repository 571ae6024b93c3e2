package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"valuegen/internal/graph"
	"valuegen/internal/values"
)

// ErrNoRepository is returned by persistence operations on a service built
// without a repository.
var ErrNoRepository = errors.New("no value repository configured")

// Service runs a full generation: index the dump, seed the hard values,
// propagate, and report on the items that were missing at the start.
type Service struct {
	policy  graph.Policy
	repo    ValueRepository
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  Tracer
	hints   bool
	now     func() time.Time
	newID   func() string
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithPolicy replaces the default recipe filtering policy.
func WithPolicy(policy graph.Policy) ServiceOption {
	return func(s *Service) { s.policy = policy }
}

// WithRepository enables Persist and the run lookups.
func WithRepository(repo ValueRepository) ServiceOption {
	return func(s *Service) { s.repo = repo }
}

// WithServiceLogger sets the logger handed to the service and its engines.
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceMetrics sets the metrics recorder.
func WithServiceMetrics(metrics MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithServiceTracer sets the tracer.
func WithServiceTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithHints computes nearest-valued hints for unresolved items.
func WithHints(enabled bool) ServiceOption {
	return func(s *Service) { s.hints = enabled }
}

// WithClock overrides the time source used to stamp runs.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how run ids are minted.
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService constructs a service with the default policy and no repository.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		policy:  graph.DefaultPolicy(),
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the filtering policy in effect.
func (s *Service) Policy() graph.Policy { return s.policy }

// Result is the outcome of one generation.
type Result struct {
	RunID      string
	CreatedAt  time.Time
	IndexStats graph.Stats
	Summary    Summary
	Report     Report
	Values     *values.Store
	Hints      []Hint
}

// Snapshot converts the result into its persisted form.
func (r Result) Snapshot() ValueSnapshot {
	return ValueSnapshot{
		RunID:      r.RunID,
		CreatedAt:  r.CreatedAt,
		Values:     r.Report.Document(),
		Unresolved: r.Report.UnresolvedStrings(),
		Stats: RunStats{
			Rounds:          r.Summary.Rounds,
			RecipeDerived:   r.Summary.RecipeDerived,
			TagDerived:      r.Summary.TagDerived,
			OriginalMissing: r.Report.Total,
			Given:           r.Report.GivenCount(),
		},
	}
}

// Generate derives values for every item of the dump that has no hard value.
func (s *Service) Generate(ctx context.Context, recipes []Recipe, hard map[string]Value) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "service.generate")
	start := time.Now()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, "service.generate", err == nil, time.Since(start))
	}()
	if err = ctx.Err(); err != nil {
		return Result{}, err
	}

	index := graph.Build(recipes, s.policy)
	store, err := values.Seed(hard, s.policy.EmptyItem)
	if err != nil {
		return Result{}, err
	}
	stats := index.Stats()
	s.logger.Info("recipe graph indexed",
		zap.Int("recipes", stats.Total),
		zap.Int("kept", stats.Kept),
		zap.Int("excluded", stats.Excluded),
		zap.Int("tags", stats.Tags),
		zap.Int("recipe_ids", index.RecipeCount()),
		zap.Int("tag_ids", index.TagCount()),
		zap.Int("items", len(index.Universe())),
	)

	engine := NewEngine(index, store, WithLogger(s.logger), WithMetrics(s.metrics), WithTracer(s.tracer))
	missing := engine.Missing()
	summary := engine.Run(ctx)
	report := BuildReport(missing, store)
	s.logger.Debug("items valued", zap.Stringers("ids", report.GivenIDs()))

	res = Result{
		RunID:      s.newID(),
		CreatedAt:  s.now(),
		IndexStats: stats,
		Summary:    summary,
		Report:     report,
		Values:     store,
	}
	if s.hints {
		res.Hints = Hints(report.Unresolved, store, s.policy.EmptyItem)
	}
	s.logger.Info("generation finished",
		zap.String("run_id", res.RunID),
		zap.Int("rounds", summary.Rounds),
		zap.Int("recipe_derived", summary.RecipeDerived),
		zap.Int("tag_derived", summary.TagDerived),
		zap.Int("given", report.GivenCount()),
		zap.Int("unresolved", len(report.Unresolved)),
	)
	return res, nil
}

// Persist stores the result's snapshot in the repository.
func (s *Service) Persist(ctx context.Context, res Result) (err error) {
	if s.repo == nil {
		return ErrNoRepository
	}
	ctx, span := s.tracer.Start(ctx, "service.persist")
	start := time.Now()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, "service.persist", err == nil, time.Since(start))
	}()
	if err = s.repo.Save(ctx, res.Snapshot()); err != nil {
		return fmt.Errorf("persist run %s: %w", res.RunID, err)
	}
	s.logger.Info("run persisted", zap.String("run_id", res.RunID))
	return nil
}

// Latest returns the newest persisted run.
func (s *Service) Latest(ctx context.Context) (ValueSnapshot, error) {
	if s.repo == nil {
		return ValueSnapshot{}, ErrNoRepository
	}
	return s.repo.Latest(ctx)
}

// Get returns a persisted run by id.
func (s *Service) Get(ctx context.Context, runID string) (ValueSnapshot, error) {
	if s.repo == nil {
		return ValueSnapshot{}, ErrNoRepository
	}
	return s.repo.Get(ctx, runID)
}

// Runs lists persisted runs, newest first.
func (s *Service) Runs(ctx context.Context) ([]RunSummary, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	return s.repo.List(ctx)
}
