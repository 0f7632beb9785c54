// Package rules holds the static reference data the engine computes against:
// classes, features, subclass groups, proficiency progressions, skills,
// spells, and equipment. Rule data is loaded once from YAML into an
// immutable Registry; the engine never mutates it.
package rules

// TierName is one rung of the proficiency ladder.
type TierName string

const (
	Untrained TierName = "untrained"
	Trained   TierName = "trained"
	Expert    TierName = "expert"
	Master    TierName = "master"
	Legendary TierName = "legendary"
)

// Tier couples a tier name with its bonus and the minimum character level
// required to reach it through skill-point upgrades.
type Tier struct {
	Name     TierName
	Bonus    int
	MinLevel int
}

// TierLadder is the canonical tier ordering, ascending by bonus. Gating and
// display always use this table, never insertion order of progression rows.
var TierLadder = []Tier{
	{Name: Untrained, Bonus: 0, MinLevel: 0},
	{Name: Trained, Bonus: 2, MinLevel: 0},
	{Name: Expert, Bonus: 5, MinLevel: 3},
	{Name: Master, Bonus: 8, MinLevel: 7},
	{Name: Legendary, Bonus: 12, MinLevel: 14},
}

// TierByName looks up a tier in the canonical ladder.
func TierByName(name TierName) (Tier, bool) {
	for _, t := range TierLadder {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// TierRank returns the ladder index of a tier name (Untrained = 0).
// Unknown names rank below Untrained.
func TierRank(name TierName) int {
	for i, t := range TierLadder {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// NextTier returns the tier one rung above, or false at the top.
func NextTier(name TierName) (Tier, bool) {
	rank := TierRank(name)
	if rank < 0 || rank+1 >= len(TierLadder) {
		return Tier{}, false
	}
	return TierLadder[rank+1], true
}

// PrevTier returns the tier one rung below, or false at the bottom.
func PrevTier(name TierName) (Tier, bool) {
	rank := TierRank(name)
	if rank <= 0 {
		return Tier{}, false
	}
	return TierLadder[rank-1], true
}

// UpgradeCost returns the skill-point cost to upgrade from the given tier
// to the next rung: Untrained 1, Trained 2, Expert 3, Master 5.
func UpgradeCost(from TierName) (int, bool) {
	switch from {
	case Untrained:
		return 1, true
	case Trained:
		return 2, true
	case Expert:
		return 3, true
	case Master:
		return 5, true
	default:
		return 0, false
	}
}
