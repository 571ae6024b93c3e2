// Package dump reads recipe dumps and hard value tables from blob storage,
// writes the derived documents back, and re-runs generation when the input
// files change.
package dump

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"valuegen/internal/blob"
	"valuegen/pkg/domain"
)

// Inputs holds the decoded documents a generation needs.
type Inputs struct {
	Recipes []domain.Recipe
	Hard    map[string]domain.Value
}

// Loader fetches both input documents from one blob store.
type Loader struct {
	store  blob.Store
	logger *zap.Logger
}

// NewLoader binds a loader to store. A nil logger is replaced by a no-op.
func NewLoader(store blob.Store, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, logger: logger}
}

// Load fetches and decodes the hard value table and the recipe dump in parallel.
func (l *Loader) Load(ctx context.Context, hardKey, recipesKey string) (Inputs, error) {
	var in Inputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := blob.ReadAll(gctx, l.store, hardKey)
		if err != nil {
			return fmt.Errorf("read hard values %s: %w", hardKey, err)
		}
		hard, err := DecodeHardValues(data)
		if err != nil {
			return fmt.Errorf("hard values %s: %w", hardKey, err)
		}
		in.Hard = hard
		return nil
	})
	g.Go(func() error {
		data, err := blob.ReadAll(gctx, l.store, recipesKey)
		if err != nil {
			return fmt.Errorf("read recipe dump %s: %w", recipesKey, err)
		}
		recipes, err := DecodeRecipes(data)
		if err != nil {
			return fmt.Errorf("recipe dump %s: %w", recipesKey, err)
		}
		in.Recipes = recipes
		return nil
	})
	if err := g.Wait(); err != nil {
		return Inputs{}, err
	}
	l.logger.Debug("inputs loaded",
		zap.String("driver", string(l.store.Driver())),
		zap.String("hard_key", hardKey),
		zap.Int("hard_values", len(in.Hard)),
		zap.String("recipes_key", recipesKey),
		zap.Int("recipes", len(in.Recipes)),
	)
	return in, nil
}

// DecodeRecipes parses a recipe dump: a JSON array of recipe records.
func DecodeRecipes(data []byte) ([]domain.Recipe, error) {
	var recipes []domain.Recipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		return nil, fmt.Errorf("decode recipes: %w", err)
	}
	return recipes, nil
}

// DecodeHardValues parses a JSON object of canonical identifiers to
// non-negative integers. Keys are validated when the value store is seeded.
func DecodeHardValues(data []byte) (map[string]domain.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var hard map[string]domain.Value
	if err := dec.Decode(&hard); err != nil {
		return nil, fmt.Errorf("decode hard values: %w", err)
	}
	if hard == nil {
		hard = map[string]domain.Value{}
	}
	return hard, nil
}
