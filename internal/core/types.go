package core

import "valuegen/pkg/domain"

type (
	Identifier    = domain.Identifier
	Ingredient    = domain.Ingredient
	Recipe        = domain.Recipe
	TagMembership = domain.TagMembership
	Value         = domain.Value
	ValueSnapshot = domain.ValueSnapshot
	RunSummary    = domain.RunSummary
	RunStats      = domain.RunStats
	ErrNotFound   = domain.ErrNotFound
)
