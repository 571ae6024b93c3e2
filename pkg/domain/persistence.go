package domain

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// RunStats summarizes how a run converged.
type RunStats struct {
	Rounds          int `json:"rounds"`
	RecipeDerived   int `json:"recipe_derived"`
	TagDerived      int `json:"tag_derived"`
	OriginalMissing int `json:"original_missing"`
	Given           int `json:"given"`
}

// ValueSnapshot is the persisted outcome of one finished run. Values holds
// only the originally-missing items that received a value.
type ValueSnapshot struct {
	RunID      string           `json:"run_id"`
	CreatedAt  time.Time        `json:"created_at"`
	Values     map[string]Value `json:"values"`
	Unresolved []string         `json:"unresolved"`
	Stats      RunStats         `json:"stats"`
}

// Clone returns a deep copy so stores never share maps with callers.
func (s ValueSnapshot) Clone() ValueSnapshot {
	out := s
	if s.Values != nil {
		out.Values = make(map[string]Value, len(s.Values))
		for k, v := range s.Values {
			out.Values[k] = v
		}
	}
	if s.Unresolved != nil {
		out.Unresolved = append([]string(nil), s.Unresolved...)
	}
	return out
}

// RunSummary is the listing form of a persisted snapshot.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
	Given      int       `json:"given"`
	Unresolved int       `json:"unresolved"`
}

// Summary derives the listing form.
func (s ValueSnapshot) Summary() RunSummary {
	return RunSummary{RunID: s.RunID, CreatedAt: s.CreatedAt, Given: len(s.Values), Unresolved: len(s.Unresolved)}
}

// SortRunSummaries orders newest first, breaking ties by run id.
func SortRunSummaries(runs []RunSummary) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].RunID < runs[j].RunID
	})
}

// ValueRepository persists finished runs.
type ValueRepository interface {
	Save(ctx context.Context, snapshot ValueSnapshot) error
	Get(ctx context.Context, runID string) (ValueSnapshot, error)
	Latest(ctx context.Context) (ValueSnapshot, error)
	List(ctx context.Context) ([]RunSummary, error)
	Close() error
}

// ErrNotFound is returned when a run id is unknown or no run exists yet.
type ErrNotFound struct {
	RunID string
}

func (e ErrNotFound) Error() string {
	if e.RunID == "" {
		return "no persisted run found"
	}
	return fmt.Sprintf("run %s not found", e.RunID)
}
