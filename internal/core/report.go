package core

import (
	"sort"

	"go.uber.org/zap"

	"valuegen/internal/values"
)

// Report partitions the items that were missing before propagation into
// those that received a value and those still unresolved.
type Report struct {
	Given      map[Identifier]Value
	Unresolved []Identifier
	Total      int
}

// BuildReport reads the final store against the originally missing items.
func BuildReport(originalMissing []Identifier, store *values.Store) Report {
	r := Report{Given: make(map[Identifier]Value), Total: len(originalMissing)}
	for _, id := range originalMissing {
		if v, ok := store.Get(id); ok {
			r.Given[id] = v
			continue
		}
		r.Unresolved = append(r.Unresolved, id)
	}
	sortIDs(r.Unresolved)
	return r
}

// GivenCount returns how many originally missing items received a value.
func (r Report) GivenCount() int { return len(r.Given) }

// GivenIDs returns the valued items, sorted.
func (r Report) GivenIDs() []Identifier {
	out := make([]Identifier, 0, len(r.Given))
	for id := range r.Given {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

// Document renders the string-keyed numeric table handed to the writer.
func (r Report) Document() map[string]Value {
	out := make(map[string]Value, len(r.Given))
	for id, v := range r.Given {
		out[id.String()] = v
	}
	return out
}

// UnresolvedStrings renders the unresolved items in canonical form.
func (r Report) UnresolvedStrings() []string {
	out := make([]string, 0, len(r.Unresolved))
	for _, id := range r.Unresolved {
		out = append(out, id.String())
	}
	return out
}

func sortIDs(ids []Identifier) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

func zapID(key string, id Identifier) zap.Field {
	return zap.Stringer(key, id)
}
