package core

import "sort"

// tagCandidate is one tag an item belongs to, with its full member list.
type tagCandidate struct {
	tag     Identifier
	members []Identifier
}

// byMemberCount orders smaller tags first; equal sizes keep dump order.
func byMemberCount(candidates []tagCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].members) < len(candidates[j].members)
	})
}

func (e *Engine) candidateTags(item Identifier) []tagCandidate {
	tags := e.index.TagsOf(item)
	out := make([]tagCandidate, 0, len(tags))
	for _, tag := range tags {
		members, ok := e.index.TagMembers(tag)
		if !ok {
			continue
		}
		out = append(out, tagCandidate{tag: tag, members: members})
	}
	byMemberCount(out)
	return out
}

// tagMean averages the known values among members. It fails when no member
// is known or the known values sum to zero.
func (e *Engine) tagMean(members []Identifier) (Value, bool) {
	var sum Value
	var count uint64
	for _, m := range members {
		if v, ok := e.values.Get(m); ok {
			sum += v
			count++
		}
	}
	if sum == 0 || count == 0 {
		return 0, false
	}
	return sum / count, true
}

// TagPass values each missing item from the first of its tags, smallest
// first, that yields a non-zero mean, and returns how many items it valued.
// Values assigned earlier in the pass count toward later items' means.
func (e *Engine) TagPass() int {
	derived := 0
	for _, item := range e.Missing() {
		for _, c := range e.candidateTags(item) {
			mean, ok := e.tagMean(c.members)
			if !ok {
				continue
			}
			e.logger.Debug("valued via tag", zapID("item", item), zapID("tag", c.tag))
			e.values.Set(item, mean)
			derived++
			break
		}
	}
	return derived
}
