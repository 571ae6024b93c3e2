package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	ctx := context.Background()
	rec := NewExpvarMetricsRecorder("")
	require.True(t, strings.HasPrefix(rec.Name(), "valuegen_metrics_"))
	rec.Observe(ctx, "engine.run", true, 2*time.Millisecond)
	rec.Observe(ctx, "engine.run", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)
	rec.Derived(ctx, PhaseRecipe, 3, 7)
	rec.Derived(ctx, "", 1, 1)

	snap := rec.Snapshot()
	require.InDelta(t, 3.0, snap.DurationsMS["engine.run"], 0.001)
	require.Equal(t, map[string]int64{"success": 1, "error": 1}, snap.Results["engine.run"])
	require.Equal(t, map[string]int64{PhaseRecipe: 7}, snap.Derived)
	require.Equal(t, map[string]int64{PhaseRecipe: 3}, snap.Passes)

	published := expvar.Get(rec.Name())
	require.NotNil(t, published)
	require.Contains(t, published.String(), `"derived_total":{"recipe":7}`)
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "service.generate")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "service.persist")
	span.End(errors.New("disk full"))

	entries := tracer.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "success", entries[0].Status)
	require.Equal(t, "error", entries[1].Status)
	require.Equal(t, "disk full", entries[1].Error)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var decoded JSONTraceEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	require.Equal(t, "service.persist", decoded.Operation)
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	ctx := context.Background()
	rec := NewPrometheusMetricsRecorder()
	rec.Observe(ctx, "engine.run", true, time.Millisecond)
	rec.Observe(ctx, "engine.run", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)
	rec.Derived(ctx, PhaseTag, 2, 5)
	rec.Derived(ctx, PhaseTag, 1, 0)

	require.Equal(t, 1.0, testutil.ToFloat64(rec.operations.WithLabelValues("engine.run", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.operations.WithLabelValues("engine.run", "error")))
	require.Equal(t, 5.0, testutil.ToFloat64(rec.derived.WithLabelValues(PhaseTag)))
	require.Equal(t, 3.0, testutil.ToFloat64(rec.passes.WithLabelValues(PhaseTag)))

	path := filepath.Join(t.TempDir(), "valuegen.prom")
	require.NoError(t, rec.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `valuegen_derived_values_total{phase="tag"} 5`)
	families, err := rec.registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 4)
}

func TestOTelTracerRecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracer := NewOTelTracer(tp.Tracer("valuegen-test"))
	_, span := tracer.Start(context.Background(), "engine.run")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "service.persist")
	span.End(errors.New("boom"))

	ended := sr.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, "engine.run", ended[0].Name())
	require.Equal(t, codes.Ok, ended[0].Status().Code)
	require.Equal(t, codes.Error, ended[1].Status().Code)
	require.Equal(t, "boom", ended[1].Status().Description)

	_, noop := NewOTelTracer(nil).Start(context.Background(), "noop")
	noop.End(nil)
}

func TestStdoutOTelTracerFlushesOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	tracer, shutdown, err := NewStdoutOTelTracer(&buf)
	require.NoError(t, err)
	_, span := tracer.Start(context.Background(), "service.generate")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "service.persist")
	span.End(errors.New("disk full"))

	require.NoError(t, shutdown(context.Background()))
	out := buf.String()
	require.Contains(t, out, `"Name":"service.generate"`)
	require.Contains(t, out, `"Name":"service.persist"`)
	require.Contains(t, out, "disk full")
	require.Contains(t, out, ServiceName)
}

func TestMultiTracerEndsEverySpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	jsonTracer := NewJSONTracer(nil)

	m := MultiTracer{jsonTracer, NewOTelTracer(tp.Tracer("valuegen-test"))}
	_, span := m.Start(context.Background(), "engine.round")
	span.End(errors.New("boom"))

	require.Len(t, jsonTracer.Entries(), 1)
	require.Equal(t, "engine.round", jsonTracer.Entries()[0].Operation)
	ended := sr.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, codes.Error, ended[0].Status().Code)
}

func TestMultiMetricsFansOut(t *testing.T) {
	a := NewExpvarMetricsRecorder("")
	b := NewPrometheusMetricsRecorder()
	m := MultiMetrics{a, b}
	m.Observe(context.Background(), "service.generate", true, time.Millisecond)
	m.Derived(context.Background(), PhaseRecipe, 1, 2)
	require.Equal(t, int64(2), a.Snapshot().Derived[PhaseRecipe])
	require.Equal(t, 2.0, testutil.ToFloat64(b.derived.WithLabelValues(PhaseRecipe)))
}
