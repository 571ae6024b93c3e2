package graph

import "valuegen/pkg/domain"

// Policy configures which recipes take part in indexing.
type Policy struct {
	// ExcludedTypes lists recipe types that encode consumption or destruction
	// rather than a value-preserving transformation.
	ExcludedTypes []domain.Identifier
	// ExcludedTypeNamespaces drops every recipe whose type lives in one of
	// these namespaces (loot-table pseudo recipes).
	ExcludedTypeNamespaces []string
	// TagType marks tag-definition recipes.
	TagType domain.Identifier
	// ExcludedTags are tag ids dropped instead of converted.
	ExcludedTags []domain.Identifier
	// EmptyItem is the synthetic "no item" identifier seeded with value 0.
	EmptyItem domain.Identifier
}

// DefaultPolicy mirrors the exclusions used for EMI recipe dumps.
func DefaultPolicy() Policy {
	return Policy{
		ExcludedTypes: []domain.Identifier{
			domain.NewIdentifier("emi", "fuel"),
			domain.NewIdentifier("emi", "composting"),
			domain.NewIdentifier("emi", "world_interaction"),
			domain.NewIdentifier("emi", "anvil_repairing"),
			domain.NewIdentifier("emi", "grinding"),
		},
		ExcludedTypeNamespaces: []string{"emi_loot"},
		TagType:                domain.NewIdentifier("emi", "tag"),
		ExcludedTags: []domain.Identifier{
			domain.NewIdentifier("emi", "/tag/item/minecraft/axes"),
			domain.NewIdentifier("emi", "/tag/item/minecraft/hoes"),
			domain.NewIdentifier("emi", "/tag/item/minecraft/pickaxes"),
			domain.NewIdentifier("emi", "/tag/item/minecraft/shovels"),
			domain.NewIdentifier("emi", "/tag/item/minecraft/swords"),
			domain.NewIdentifier("emi", "/tag/item/minecraft/tools"),
		},
		EmptyItem: domain.NewIdentifier("emi", "empty"),
	}
}

type policySets struct {
	types      map[domain.Identifier]struct{}
	namespaces map[string]struct{}
	tags       map[domain.Identifier]struct{}
	tagType    domain.Identifier
}

func (p Policy) sets() policySets {
	s := policySets{
		types:      make(map[domain.Identifier]struct{}, len(p.ExcludedTypes)),
		namespaces: make(map[string]struct{}, len(p.ExcludedTypeNamespaces)),
		tags:       make(map[domain.Identifier]struct{}, len(p.ExcludedTags)),
		tagType:    p.TagType,
	}
	for _, t := range p.ExcludedTypes {
		s.types[t] = struct{}{}
	}
	for _, ns := range p.ExcludedTypeNamespaces {
		s.namespaces[ns] = struct{}{}
	}
	for _, t := range p.ExcludedTags {
		s.tags[t] = struct{}{}
	}
	return s
}

func (s policySets) excluded(r domain.Recipe) bool {
	if _, ok := s.types[r.Type]; ok {
		return true
	}
	_, ok := s.namespaces[r.Type.Namespace]
	return ok
}

func (s policySets) isTag(r domain.Recipe) bool {
	return r.Type == s.tagType
}

func (s policySets) tagExcluded(id domain.Identifier) bool {
	_, ok := s.tags[id]
	return ok
}
