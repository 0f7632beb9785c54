package levelup

import (
	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/rules"
)

// groupState tracks which group features a character owns, by subclass.
// Validation appends picks to it as they are accepted, so a batch of picks
// can chain (a tier-1 pick unlocking a tier-2 pick in the same level-up).
type groupState struct {
	group *rules.SubclassGroup
	owned map[rules.FeatureID]rules.SubclassID
}

func newGroupState(reg *rules.Registry, ch *character.Character, group *rules.SubclassGroup) *groupState {
	st := &groupState{group: group, owned: make(map[rules.FeatureID]rules.SubclassID)}
	for _, owned := range ch.Features {
		f := reg.Feature(owned.Feature)
		if f == nil || f.Group != group.ID {
			continue
		}
		st.owned[f.ID] = owned.Subclass
	}
	return st
}

func (st *groupState) owns(id rules.FeatureID) bool {
	_, ok := st.owned[id]
	return ok
}

// add records an accepted pick so later picks in the batch see it.
func (st *groupState) add(f *rules.Feature) {
	st.owned[f.ID] = f.Subclass
}

// ownsTier reports whether a feature of the given tier is owned in a
// subclass.
func (st *groupState) ownsTier(reg *rules.Registry, subclass rules.SubclassID, tier int) bool {
	for id, sc := range st.owned {
		if sc != subclass {
			continue
		}
		if f := reg.Feature(id); f != nil && f.Tier == tier {
			return true
		}
	}
	return false
}

// masteryRank is the subclass's internal rank: owned modules divided by the
// group's modules-per-mastery count.
func (st *groupState) masteryRank(subclass rules.SubclassID) int {
	modules := 0
	for _, sc := range st.owned {
		if sc == subclass {
			modules++
		}
	}
	return modules / st.group.ModulesPerRank()
}

// strategy gates feature eligibility for one subclass progression system.
// rankCeiling, when positive, further caps modular-mastery eligibility per
// the triggering feature.
type strategy interface {
	eligible(reg *rules.Registry, st *groupState, classLevel, rankCeiling int) []*rules.Feature
}

func strategyFor(t rules.SystemType) strategy {
	switch t {
	case rules.SystemModularLinear:
		return modularLinear{}
	case rules.SystemModularMastery:
		return modularMastery{}
	default:
		return linear{}
	}
}

// linear subclasses take no feature picks; the engine auto-grants whatever
// is attached at each level for the chosen subclass.
type linear struct{}

func (linear) eligible(*rules.Registry, *groupState, int, int) []*rules.Feature {
	return nil
}

// modularLinear gates picks by tier unlock level and the chain invariant:
// a tier T > 1 feature requires an owned tier T-1 feature in the same
// subclass. The candidate pool spans every subclass in the group.
type modularLinear struct{}

func (modularLinear) eligible(reg *rules.Registry, st *groupState, classLevel, _ int) []*rules.Feature {
	var out []*rules.Feature
	for _, f := range reg.GroupFeatures(st.group.ID) {
		if st.owns(f.ID) {
			continue
		}
		if st.group.TierUnlockLevel(f.Tier) > classLevel {
			continue
		}
		if f.Tier > 1 && !st.ownsTier(reg, f.Subclass, f.Tier-1) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// modularMastery gates picks purely by rank: a feature's mastery rank must
// not exceed its subclass's current rank, nor the trigger's rank ceiling.
// No level-indexed attachment applies.
type modularMastery struct{}

func (modularMastery) eligible(reg *rules.Registry, st *groupState, _, rankCeiling int) []*rules.Feature {
	var out []*rules.Feature
	for _, f := range reg.GroupFeatures(st.group.ID) {
		if st.owns(f.ID) {
			continue
		}
		if f.MasteryRank > st.masteryRank(f.Subclass) {
			continue
		}
		if rankCeiling > 0 && f.MasteryRank > rankCeiling {
			continue
		}
		out = append(out, f)
	}
	return out
}
