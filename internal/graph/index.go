// Package graph indexes a recipe dump for value propagation: the universe of
// referenced items, which recipes produce each item, and the forward and
// reverse tag membership indices. Indices are read-only once built.
package graph

import (
	"sort"

	"valuegen/pkg/domain"
)

// Stats counts how the raw recipe list was partitioned.
type Stats struct {
	Total        int `json:"total"`
	Kept         int `json:"kept"`
	Excluded     int `json:"excluded"`
	Tags         int `json:"tags"`
	ExcludedTags int `json:"excluded_tags"`
}

// Index holds the derived lookup structures.
type Index struct {
	universe  []domain.Identifier
	recipes   map[domain.Identifier]domain.Recipe
	producers map[domain.Identifier][]domain.Identifier
	tags      map[domain.Identifier]domain.TagMembership
	tagsOf    map[domain.Identifier][]domain.Identifier
	stats     Stats
}

// Build filters recipes according to policy and indexes the survivors.
// The input slice is not retained or modified.
func Build(recipes []domain.Recipe, policy Policy) *Index {
	sets := policy.sets()
	idx := &Index{
		recipes:   make(map[domain.Identifier]domain.Recipe),
		producers: make(map[domain.Identifier][]domain.Identifier),
		tags:      make(map[domain.Identifier]domain.TagMembership),
		tagsOf:    make(map[domain.Identifier][]domain.Identifier),
	}
	idx.stats.Total = len(recipes)

	var kept []domain.Recipe
	var order []domain.Identifier
	for _, r := range recipes {
		switch {
		case sets.excluded(r):
			idx.stats.Excluded++
		case sets.isTag(r):
			if sets.tagExcluded(r.ID) {
				idx.stats.ExcludedTags++
				continue
			}
			idx.stats.Tags++
			idx.addTag(domain.NewTagMembership(r))
		default:
			idx.stats.Kept++
			kept = append(kept, r)
			if _, seen := idx.recipes[r.ID]; !seen {
				order = append(order, r.ID)
			}
			// a repeated recipe id keeps the last body
			idx.recipes[r.ID] = r
		}
	}

	items := make(map[domain.Identifier]struct{})
	for _, r := range kept {
		for _, in := range r.Inputs {
			items[in.ID] = struct{}{}
		}
		for _, out := range r.Outputs {
			items[out.ID] = struct{}{}
		}
	}
	idx.universe = make([]domain.Identifier, 0, len(items))
	for id := range items {
		idx.universe = append(idx.universe, id)
	}
	sort.Slice(idx.universe, func(i, j int) bool { return idx.universe[i].Less(idx.universe[j]) })

	// one producer entry per output slot, so a recipe that lists an item
	// twice is visited twice for it
	for _, id := range order {
		for _, out := range idx.recipes[id].Outputs {
			idx.producers[out.ID] = append(idx.producers[out.ID], id)
		}
	}
	return idx
}

// addTag records a tag definition. A redefined tag resolves to its last
// member list, while the reverse index keeps the entries of every
// definition.
func (idx *Index) addTag(tag domain.TagMembership) {
	for _, member := range tag.Members() {
		idx.tagsOf[member] = append(idx.tagsOf[member], tag.Tag())
	}
	idx.tags[tag.Tag()] = tag
}

// Universe returns every item referenced by a surviving recipe, sorted.
func (idx *Index) Universe() []domain.Identifier {
	out := make([]domain.Identifier, len(idx.universe))
	copy(out, idx.universe)
	return out
}

// Producers returns the ids of recipes whose outputs include item, in dump order.
func (idx *Index) Producers(item domain.Identifier) []domain.Identifier {
	return idx.producers[item]
}

// Recipe looks up a surviving recipe by id.
func (idx *Index) Recipe(id domain.Identifier) (domain.Recipe, bool) {
	r, ok := idx.recipes[id]
	return r, ok
}

// TagMembers returns the members of tag.
func (idx *Index) TagMembers(tag domain.Identifier) ([]domain.Identifier, bool) {
	t, ok := idx.tags[tag]
	if !ok {
		return nil, false
	}
	return t.Members(), true
}

// TagsOf returns the tags item belongs to, in dump order.
func (idx *Index) TagsOf(item domain.Identifier) []domain.Identifier {
	return idx.tagsOf[item]
}

// TagCount returns the number of indexed tags.
func (idx *Index) TagCount() int { return len(idx.tags) }

// RecipeCount returns the number of distinct surviving recipe ids.
func (idx *Index) RecipeCount() int { return len(idx.recipes) }

// Stats returns partition counts.
func (idx *Index) Stats() Stats { return idx.stats }
