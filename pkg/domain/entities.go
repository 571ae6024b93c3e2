// Package domain defines the entity model shared by the value-propagation
// engine and its collaborators: identifiers, ingredients, recipes and tag
// memberships, plus the persisted outcome of a finished run.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedIdentifier is returned when an identifier string lacks the
// namespace/path separator.
var ErrMalformedIdentifier = errors.New("malformed identifier")

// identifierSeparator splits the namespace from the path.
const identifierSeparator = ":"

// Identifier names an item, fluid, recipe, recipe type or tag.
type Identifier struct {
	Namespace string `json:"namespace"`
	Path      string `json:"path"`
}

// NewIdentifier builds an identifier from its two parts.
func NewIdentifier(namespace, path string) Identifier {
	return Identifier{Namespace: namespace, Path: path}
}

// ParseIdentifier splits s at the first separator. Everything after the first
// separator belongs to the path, so "emi:/tag/item/c:ingots" is valid.
func ParseIdentifier(s string) (Identifier, error) {
	namespace, path, ok := strings.Cut(s, identifierSeparator)
	if !ok {
		return Identifier{}, fmt.Errorf("%w: %q", ErrMalformedIdentifier, s)
	}
	return Identifier{Namespace: namespace, Path: path}, nil
}

// MustParseIdentifier is ParseIdentifier for literals known to be valid.
func MustParseIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String renders the canonical "namespace:path" form.
func (id Identifier) String() string {
	return id.Namespace + identifierSeparator + id.Path
}

// IsZero reports whether both parts are empty.
func (id Identifier) IsZero() bool {
	return id.Namespace == "" && id.Path == ""
}

// Compare orders identifiers by their canonical string form.
func (id Identifier) Compare(other Identifier) int {
	return strings.Compare(id.String(), other.String())
}

// Less reports whether id sorts before other.
func (id Identifier) Less(other Identifier) bool {
	return id.Compare(other) < 0
}

// UnmarshalJSON accepts the dump's object form as well as "namespace:path".
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseIdentifier(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
	type plain Identifier
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode identifier: %w", err)
	}
	*id = Identifier(obj)
	return nil
}

// Ingredient is one input or output slot of a recipe. Chance is the
// probability the slot is realized; guaranteed slots carry 1.
type Ingredient struct {
	ID     Identifier `json:"id"`
	Amount uint64     `json:"ammount"`
	Chance float32    `json:"chance"`
}

// NewIngredient builds an ingredient slot.
func NewIngredient(id Identifier, amount uint64, chance float32) Ingredient {
	return Ingredient{ID: id, Amount: amount, Chance: chance}
}

// UnmarshalJSON reads the dump's "ammount" key and also accepts "amount".
func (in *Ingredient) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      Identifier `json:"id"`
		Ammount *uint64    `json:"ammount"`
		Amount  *uint64    `json:"amount"`
		Chance  float32    `json:"chance"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode ingredient: %w", err)
	}
	in.ID = raw.ID
	in.Chance = raw.Chance
	in.Amount = 0
	switch {
	case raw.Ammount != nil:
		in.Amount = *raw.Ammount
	case raw.Amount != nil:
		in.Amount = *raw.Amount
	}
	return nil
}

func (in Ingredient) String() string {
	return fmt.Sprintf("%s x%d %g%%", in.ID, in.Amount, in.Chance*100)
}

// Recipe transforms inputs into outputs. Type classifies the recipe and
// drives exclusion during indexing.
type Recipe struct {
	ID      Identifier   `json:"id"`
	Type    Identifier   `json:"type"`
	Inputs  []Ingredient `json:"input"`
	Outputs []Ingredient `json:"output"`
}

// TagMembership records that a tag contains the listed members.
type TagMembership struct {
	tag     Identifier
	members []Identifier
}

// NewTagMembership converts a tag-definition recipe: the tag is the recipe
// id, the members are the ids of its inputs.
func NewTagMembership(recipe Recipe) TagMembership {
	members := make([]Identifier, 0, len(recipe.Inputs))
	for _, in := range recipe.Inputs {
		members = append(members, in.ID)
	}
	return TagMembership{tag: recipe.ID, members: members}
}

// Tag returns the tag identifier.
func (t TagMembership) Tag() Identifier { return t.tag }

// Members returns a copy of the member list.
func (t TagMembership) Members() []Identifier {
	out := make([]Identifier, len(t.members))
	copy(out, t.members)
	return out
}

// Len returns the number of members, duplicates included.
func (t TagMembership) Len() int { return len(t.members) }

// Value is a derived or hard base value. Values are never negative.
type Value = uint64
