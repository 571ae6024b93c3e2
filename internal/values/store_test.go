package values

import (
	"errors"
	"testing"

	"valuegen/pkg/domain"
)

func TestSeedParsesKeysAndAddsEmpty(t *testing.T) {
	empty := domain.NewIdentifier("emi", "empty")
	s, err := Seed(map[string]domain.Value{"minecraft:stone": 1, "minecraft:diamond": 8192}, empty)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 values, got %d", s.Len())
	}
	if v, ok := s.Get(domain.NewIdentifier("minecraft", "diamond")); !ok || v != 8192 {
		t.Fatalf("diamond = %d,%v", v, ok)
	}
	if v, ok := s.Get(empty); !ok || v != 0 {
		t.Fatalf("empty = %d,%v", v, ok)
	}
}

func TestSeedEmptyOverridesHardValue(t *testing.T) {
	empty := domain.NewIdentifier("emi", "empty")
	s, err := Seed(map[string]domain.Value{"emi:empty": 7}, empty)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if v, _ := s.Get(empty); v != 0 {
		t.Fatalf("empty must always be 0, got %d", v)
	}
}

func TestSeedRejectsMalformedKey(t *testing.T) {
	_, err := Seed(map[string]domain.Value{"stone": 1}, domain.NewIdentifier("emi", "empty"))
	if !errors.Is(err, domain.ErrMalformedIdentifier) {
		t.Fatalf("expected ErrMalformedIdentifier, got %v", err)
	}
}

func TestStoreMissingKeysAndSnapshot(t *testing.T) {
	s := NewStore()
	a, b, c := domain.NewIdentifier("m", "a"), domain.NewIdentifier("m", "b"), domain.NewIdentifier("m", "c")
	s.Set(c, 3)
	s.Set(a, 1)
	if got := s.Missing([]domain.Identifier{a, b, c}); len(got) != 1 || got[0] != b {
		t.Fatalf("missing = %v", got)
	}
	keys := s.Keys()
	if len(keys) != 2 || keys[0] != a || keys[1] != c {
		t.Fatalf("keys = %v", keys)
	}
	snap := s.Snapshot()
	snap[b] = 2
	if s.Has(b) {
		t.Fatalf("snapshot must be a copy")
	}
	s.Set(a, 5)
	if v, _ := s.Get(a); v != 5 {
		t.Fatalf("set must replace, got %d", v)
	}
}
