package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"valuegen/internal/graph"
	"valuegen/internal/values"
	"valuegen/pkg/domain"
)

func id(s string) Identifier { return domain.MustParseIdentifier(s) }

func ing(s string, amount uint64, chance float32) Ingredient {
	return domain.NewIngredient(id(s), amount, chance)
}

func craft(rid string, inputs []Ingredient, outputs ...Ingredient) Recipe {
	return Recipe{ID: id(rid), Type: id("emi:crafting"), Inputs: inputs, Outputs: outputs}
}

func typed(rid, rtype string, inputs []Ingredient, outputs ...Ingredient) Recipe {
	return Recipe{ID: id(rid), Type: id(rtype), Inputs: inputs, Outputs: outputs}
}

func tag(tid string, members ...string) Recipe {
	inputs := make([]Ingredient, 0, len(members))
	for _, m := range members {
		inputs = append(inputs, ing(m, 1, 1))
	}
	return Recipe{ID: id(tid), Type: id("emi:tag"), Inputs: inputs}
}

func in(ids ...string) []Ingredient {
	out := make([]Ingredient, 0, len(ids))
	for _, s := range ids {
		out = append(out, ing(s, 1, 1))
	}
	return out
}

type fixture struct {
	engine  *Engine
	store   *values.Store
	missing []Identifier
}

func newFixture(t *testing.T, hard map[string]Value, recipes ...Recipe) fixture {
	t.Helper()
	policy := graph.DefaultPolicy()
	store, err := values.Seed(hard, policy.EmptyItem)
	require.NoError(t, err)
	engine := NewEngine(graph.Build(recipes, policy), store)
	return fixture{engine: engine, store: store, missing: engine.Missing()}
}

func (f fixture) run(t *testing.T) (Summary, Report) {
	t.Helper()
	sum := f.engine.Run(context.Background())
	return sum, BuildReport(f.missing, f.store)
}

func (f fixture) value(t *testing.T, s string) Value {
	t.Helper()
	v, ok := f.store.Get(id(s))
	require.Truef(t, ok, "%s has no value", s)
	return v
}
