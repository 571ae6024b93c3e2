package core

import (
	"github.com/agnivade/levenshtein"

	"valuegen/internal/values"
)

// Hint pairs an unresolved item with the closest valued item in the same
// namespace, measured by edit distance between paths.
type Hint struct {
	ID           Identifier
	Nearest      Identifier
	NearestValue Value
	Distance     int
	Found        bool
}

// Hints suggests a reference value for each unresolved item. Items equal to
// skip (the synthetic empty item) are never suggested. Ties resolve to the
// identifier that sorts first.
func Hints(unresolved []Identifier, store *values.Store, skip Identifier) []Hint {
	byNamespace := make(map[string][]Identifier)
	for _, id := range store.Keys() {
		if id == skip {
			continue
		}
		byNamespace[id.Namespace] = append(byNamespace[id.Namespace], id)
	}
	out := make([]Hint, 0, len(unresolved))
	for _, id := range unresolved {
		h := Hint{ID: id}
		for _, cand := range byNamespace[id.Namespace] {
			d := levenshtein.ComputeDistance(id.Path, cand.Path)
			if !h.Found || d < h.Distance {
				v, _ := store.Get(cand)
				h.Nearest, h.NearestValue, h.Distance, h.Found = cand, v, d, true
			}
		}
		out = append(out, h)
	}
	return out
}
