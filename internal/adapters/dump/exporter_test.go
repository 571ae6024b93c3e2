package dump

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"valuegen/internal/blob"
	"valuegen/internal/core"
	"valuegen/pkg/domain"
)

func generate(t *testing.T, hints bool) core.Result {
	t.Helper()
	recipes, err := DecodeRecipes([]byte(`[
	  {"id": "r:plank", "type": "emi:crafting",
	   "input": [{"id": "m:log", "ammount": 1, "chance": 1}],
	   "output": [{"id": "m:plank", "ammount": 4, "chance": 1}]},
	  {"id": "r:planks", "type": "emi:crafting",
	   "input": [{"id": "m:ghost", "ammount": 1, "chance": 1}],
	   "output": [{"id": "m:planks", "ammount": 1, "chance": 1}]}
	]`))
	require.NoError(t, err)
	svc := core.NewService(core.WithHints(hints))
	res, err := svc.Generate(context.Background(), recipes, map[string]domain.Value{"m:log": 32})
	require.NoError(t, err)
	return res
}

func readJSON(t *testing.T, store blob.Store, key string, v any) blob.Info {
	t.Helper()
	info, err := store.Head(context.Background(), key)
	require.NoError(t, err)
	data, err := blob.ReadAll(context.Background(), store, key)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
	return info
}

func TestExportWritesValuesAndUnresolved(t *testing.T) {
	store := blob.NewMemory()
	res := generate(t, true)

	err := NewExporter(store, nil).Export(context.Background(), res, Keys{Values: DefaultValuesKey, Unresolved: DefaultUnresolvedKey})
	require.NoError(t, err)

	var doc map[string]domain.Value
	info := readJSON(t, store, DefaultValuesKey, &doc)
	require.Equal(t, "application/json", info.ContentType)
	require.Equal(t, map[string]domain.Value{"m:plank": 8}, doc)

	var unresolved []UnresolvedEntry
	readJSON(t, store, DefaultUnresolvedKey, &unresolved)
	logValue, plankValue := domain.Value(32), domain.Value(8)
	want := []UnresolvedEntry{
		{ID: "m:ghost", Nearest: "m:log", NearestValue: &logValue},
		{ID: "m:planks", Nearest: "m:plank", NearestValue: &plankValue},
	}
	if diff := cmp.Diff(want, unresolved); diff != "" {
		t.Fatalf("unresolved mismatch (-want +got):\n%s", diff)
	}
}

func TestExportReplacesPreviousDocument(t *testing.T) {
	store := blob.NewMemory()
	exp := NewExporter(store, nil)
	_, err := exp.WriteValues(context.Background(), "out.json", map[string]domain.Value{"m:old": 1})
	require.NoError(t, err)
	_, err = exp.WriteValues(context.Background(), "out.json", map[string]domain.Value{"m:new": 2})
	require.NoError(t, err)

	var doc map[string]domain.Value
	readJSON(t, store, "out.json", &doc)
	require.Equal(t, map[string]domain.Value{"m:new": 2}, doc)
}

func TestExportLogsWhetherDocumentWasReplaced(t *testing.T) {
	zc, logs := observer.New(zap.InfoLevel)
	store := blob.NewMockS3ForTests()
	exp := NewExporter(store, zap.New(zc))
	for i := 0; i < 2; i++ {
		_, err := exp.WriteValues(context.Background(), "out/new_values.json", map[string]domain.Value{"m:a": domain.Value(i)})
		require.NoError(t, err)
	}
	entries := logs.FilterMessage("values written").AllUntimed()
	require.Len(t, entries, 2)
	require.Equal(t, false, entries[0].ContextMap()["replaced"])
	require.Equal(t, true, entries[1].ContextMap()["replaced"])
}

func TestExportToFilesystemIsPrettyAndSorted(t *testing.T) {
	store, err := blob.NewFilesystem(t.TempDir())
	require.NoError(t, err)
	_, err = NewExporter(store, nil).WriteValues(context.Background(), "new_values.json", map[string]domain.Value{"m:b": 2, "m:a": 1})
	require.NoError(t, err)

	data, err := blob.ReadAll(context.Background(), store, "new_values.json")
	require.NoError(t, err)
	require.Equal(t, "{\n  \"m:a\": 1,\n  \"m:b\": 2\n}\n", string(data))
}

func TestExportEmptyDocuments(t *testing.T) {
	store := blob.NewMemory()
	exp := NewExporter(store, nil)
	_, err := exp.WriteValues(context.Background(), "v.json", nil)
	require.NoError(t, err)
	_, err = exp.WriteUnresolved(context.Background(), "u.json", nil)
	require.NoError(t, err)

	data, err := blob.ReadAll(context.Background(), store, "v.json")
	require.NoError(t, err)
	require.Equal(t, "{}\n", string(data))
	data, err = blob.ReadAll(context.Background(), store, "u.json")
	require.NoError(t, err)
	require.Equal(t, "[]\n", string(data))
}

func TestExportSkipsUnresolvedWithoutKey(t *testing.T) {
	store := blob.NewMemory()
	require.NoError(t, NewExporter(store, nil).Export(context.Background(), generate(t, false), Keys{}))
	_, err := store.Head(context.Background(), DefaultValuesKey)
	require.NoError(t, err)
	_, err = store.Head(context.Background(), DefaultUnresolvedKey)
	require.ErrorIs(t, err, blob.ErrNotFound)
}

func TestUnresolvedEntriesWithoutHints(t *testing.T) {
	got := UnresolvedEntries([]domain.Identifier{domain.MustParseIdentifier("m:x")}, nil)
	require.Equal(t, []UnresolvedEntry{{ID: "m:x"}}, got)
}
