package core

import "math"

// RecipePass prices every currently missing item from each recipe that
// produces it and returns how many items received their first value.
func (e *Engine) RecipePass() int {
	derived := 0
	for _, item := range e.Missing() {
		for _, rid := range e.index.Producers(item) {
			recipe, ok := e.index.Recipe(rid)
			if !ok {
				continue
			}
			quote, ok := e.quote(item, recipe)
			if !ok {
				continue
			}
			if e.commit(item, quote) {
				derived++
			}
		}
	}
	return derived
}

// costQuote is the price one recipe assigns to one unit of an item.
type costQuote struct {
	perUnit  Value
	weighted Value
}

// outputSplit partitions a recipe's outputs relative to the item being priced.
type outputSplit struct {
	// priced sums the flat unit value of outputs that already have a value,
	// regardless of their amount.
	priced    Value
	units     uint64
	chosen    Ingredient
	hasChosen bool
}

// betterSlot reports whether candidate beats the slot chosen so far. With no
// slot chosen the bar is chance 0, so zero-chance slots are never chosen.
func betterSlot(candidate Ingredient, current Ingredient, hasCurrent bool) bool {
	var bar float32
	if hasCurrent {
		bar = current.Chance
	}
	return candidate.Chance > bar
}

func (e *Engine) splitOutputs(item Identifier, outputs []Ingredient) outputSplit {
	var s outputSplit
	for _, out := range outputs {
		if v, ok := e.values.Get(out.ID); ok {
			s.priced += v
			continue
		}
		if out.ID == item && betterSlot(out, s.chosen, s.hasChosen) {
			s.chosen = out
			s.hasChosen = true
		}
		s.units += out.Amount
	}
	return s
}

// inputSum adds the value of every input slot; amounts are not multiplied in.
func (e *Engine) inputSum(inputs []Ingredient) (Value, bool) {
	var sum Value
	for _, in := range inputs {
		v, ok := e.values.Get(in.ID)
		if !ok {
			return 0, false
		}
		sum += v
	}
	return sum, true
}

func (e *Engine) quote(item Identifier, recipe Recipe) (costQuote, bool) {
	inputs, ok := e.inputSum(recipe.Inputs)
	if !ok {
		return costQuote{}, false
	}
	split := e.splitOutputs(item, recipe.Outputs)
	if split.units == 0 {
		return costQuote{}, false
	}
	if split.priced > inputs {
		// by-products worth more than the inputs would make the cost negative
		return costQuote{}, false
	}
	perUnit := (inputs - split.priced) / split.units
	q := costQuote{perUnit: perUnit, weighted: perUnit}
	if split.hasChosen {
		q.weighted = weightByChance(perUnit, split.chosen.Chance)
	}
	return q, true
}

// weightByChance scales a unit cost by the inverse of the slot's chance and
// floors the result. The chance is widened from single precision first.
// Results beyond the Value range saturate at math.MaxUint64 and NaN maps to 0.
func weightByChance(perUnit Value, chance float32) Value {
	f := math.Floor(float64(perUnit) * (1 / float64(chance)))
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxUint64:
		return math.MaxUint64
	}
	return Value(f)
}

// commit stores a quote and reports whether item received its first value.
func (e *Engine) commit(item Identifier, q costQuote) bool {
	existing, ok := e.values.Get(item)
	if !ok {
		e.values.Set(item, q.weighted)
		return true
	}
	// Known quirk kept for output compatibility: the unweighted per-unit cost
	// is compared against the stored value, which may itself be weighted, but
	// the weighted cost is what replaces it.
	if q.perUnit < existing {
		e.values.Set(item, q.weighted)
	}
	return false
}
