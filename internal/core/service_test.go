package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"valuegen/internal/graph"
	"valuegen/internal/infra/persistence/memory"
	"valuegen/pkg/domain"
)

func sampleDump() []Recipe {
	return []Recipe{
		craft("r:plank", in("m:log"), ing("m:plank", 4, 1)),
		craft("r:stick", in("m:plank", "m:plank"), ing("m:stick", 4, 1)),
		typed("r:burn", "emi:fuel", in("m:stick"), ing("m:heat", 1, 1)),
		craft("r:mystery", in("m:ghost"), ing("m:plank3", 1, 1)),
	}
}

func fixedService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	base := []ServiceOption{
		WithClock(func() time.Time { return at }),
		WithIDGenerator(func() string { return "run-1" }),
	}
	return NewService(append(base, opts...)...)
}

func TestServiceGenerate(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	svc := fixedService(t, WithServiceLogger(zap.New(core)), WithHints(true))

	res, err := svc.Generate(context.Background(), sampleDump(), map[string]Value{"m:log": 8})
	require.NoError(t, err)
	require.Equal(t, "run-1", res.RunID)
	require.Equal(t, graph.Stats{Total: 4, Kept: 3, Excluded: 1}, res.IndexStats)
	require.Equal(t, map[string]Value{"m:plank": 2, "m:stick": 1}, res.Report.Document())
	require.Equal(t, []string{"m:ghost", "m:plank3"}, res.Report.UnresolvedStrings())
	require.Len(t, res.Hints, 2)
	require.Equal(t, id("m:plank"), res.Hints[1].Nearest)
	require.Equal(t, 1, logs.FilterMessage("generation finished").Len())
	indexed := logs.FilterMessage("recipe graph indexed").AllUntimed()
	require.Len(t, indexed, 1)
	require.Equal(t, int64(3), indexed[0].ContextMap()["recipe_ids"])
	require.Equal(t, int64(0), indexed[0].ContextMap()["tag_ids"])
	valued := logs.FilterMessage("items valued").AllUntimed()
	require.Len(t, valued, 1)
	require.Equal(t, []any{"m:plank", "m:stick"}, valued[0].ContextMap()["ids"])

	want := ValueSnapshot{
		RunID:      "run-1",
		CreatedAt:  time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		Values:     map[string]Value{"m:plank": 2, "m:stick": 1},
		Unresolved: []string{"m:ghost", "m:plank3"},
		Stats:      RunStats{Rounds: 2, RecipeDerived: 2, OriginalMissing: 4, Given: 2},
	}
	if diff := cmp.Diff(want, res.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceGenerateRejectsMalformedHardValues(t *testing.T) {
	_, err := NewService().Generate(context.Background(), sampleDump(), map[string]Value{"log": 8})
	require.ErrorIs(t, err, domain.ErrMalformedIdentifier)
}

func TestServiceGenerateHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	metrics := NewExpvarMetricsRecorder("")
	_, err := NewService(WithServiceMetrics(metrics)).Generate(ctx, sampleDump(), nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int64(1), metrics.Snapshot().Results["service.generate"]["error"])
}

func TestServiceCustomPolicy(t *testing.T) {
	policy := graph.DefaultPolicy()
	policy.ExcludedTypes = nil
	svc := fixedService(t, WithPolicy(policy))
	require.Empty(t, svc.Policy().ExcludedTypes)
	res, err := svc.Generate(context.Background(), sampleDump(), map[string]Value{"m:log": 8})
	require.NoError(t, err)
	require.Equal(t, Value(1), res.Report.Document()["m:heat"])
}

func TestServicePersistAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore()
	tracer := NewJSONTracer(nil)
	svc := fixedService(t, WithRepository(repo), WithServiceTracer(tracer))

	res, err := svc.Generate(ctx, sampleDump(), map[string]Value{"m:log": 8})
	require.NoError(t, err)
	require.NoError(t, svc.Persist(ctx, res))

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, res.Snapshot(), latest)
	got, err := svc.Get(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, Value(2), got.Values["m:plank"])
	runs, err := svc.Runs(ctx)
	require.NoError(t, err)
	require.Equal(t, []RunSummary{{RunID: "run-1", CreatedAt: res.CreatedAt, Given: 2, Unresolved: 2}}, runs)

	_, err = svc.Get(ctx, "nope")
	var nf ErrNotFound
	require.True(t, errors.As(err, &nf))

	ops := []string{}
	for _, e := range tracer.Entries() {
		if e.Operation == "service.generate" || e.Operation == "service.persist" {
			ops = append(ops, e.Operation)
		}
	}
	require.Equal(t, []string{"service.generate", "service.persist"}, ops)
}

func TestServiceWithoutRepository(t *testing.T) {
	ctx := context.Background()
	svc := NewService()
	require.ErrorIs(t, svc.Persist(ctx, Result{RunID: "x"}), ErrNoRepository)
	_, err := svc.Latest(ctx)
	require.ErrorIs(t, err, ErrNoRepository)
	_, err = svc.Get(ctx, "x")
	require.ErrorIs(t, err, ErrNoRepository)
	_, err = svc.Runs(ctx)
	require.ErrorIs(t, err, ErrNoRepository)
}

func TestServiceDefaultRunIDsAreUnique(t *testing.T) {
	svc := NewService()
	a, err := svc.Generate(context.Background(), nil, nil)
	require.NoError(t, err)
	b, err := svc.Generate(context.Background(), nil, nil)
	require.NoError(t, err)
	require.NotEqual(t, a.RunID, b.RunID)
	require.Len(t, a.RunID, 36)
}
