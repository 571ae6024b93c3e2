// Package values holds the mutable item -> value table the propagation
// engine fills in.
package values

import (
	"fmt"
	"sort"

	"valuegen/pkg/domain"
)

// Store maps identifiers to non-negative values. It is not safe for
// concurrent use; the engine owns it for the duration of a run.
type Store struct {
	values map[domain.Identifier]domain.Value
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: make(map[domain.Identifier]domain.Value)}
}

// Seed parses hard values into a new store and then records empty with
// value 0 so recipes with absent output slots need no special casing.
// A key without a namespace separator is a fatal precondition violation.
func Seed(hard map[string]domain.Value, empty domain.Identifier) (*Store, error) {
	s := &Store{values: make(map[domain.Identifier]domain.Value, len(hard)+1)}
	for key, v := range hard {
		id, err := domain.ParseIdentifier(key)
		if err != nil {
			return nil, fmt.Errorf("hard value key: %w", err)
		}
		s.values[id] = v
	}
	s.values[empty] = 0
	return s, nil
}

// Get returns the value of id and whether it is known.
func (s *Store) Get(id domain.Identifier) (domain.Value, bool) {
	v, ok := s.values[id]
	return v, ok
}

// Has reports whether id has a value.
func (s *Store) Has(id domain.Identifier) bool {
	_, ok := s.values[id]
	return ok
}

// Set records a value for id, replacing any previous one.
func (s *Store) Set(id domain.Identifier, v domain.Value) {
	s.values[id] = v
}

// Len returns the number of known values.
func (s *Store) Len() int { return len(s.values) }

// Missing filters ids down to those without a value, preserving order.
func (s *Store) Missing(ids []domain.Identifier) []domain.Identifier {
	out := make([]domain.Identifier, 0, len(ids))
	for _, id := range ids {
		if !s.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot returns a copy of the table.
func (s *Store) Snapshot() map[domain.Identifier]domain.Value {
	out := make(map[domain.Identifier]domain.Value, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Keys returns every known identifier, sorted.
func (s *Store) Keys() []domain.Identifier {
	out := make([]domain.Identifier, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
