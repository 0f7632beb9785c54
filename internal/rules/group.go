package rules

// SubclassID identifies a subclass within a group.
type SubclassID string

// GroupID identifies a subclass group.
type GroupID string

// SystemType selects the progression strategy for a subclass group.
type SystemType string

const (
	// SystemLinear picks one subclass once, then auto-grants its features
	// at each level.
	SystemLinear SystemType = "linear"
	// SystemModularLinear picks features from level-unlocked tiers, chained
	// so that tier T requires an owned tier T-1 feature.
	SystemModularLinear SystemType = "modular_linear"
	// SystemModularMastery picks features gated by a mastery rank that
	// advances with every K modules taken in a subclass.
	SystemModularMastery SystemType = "modular_mastery"
)

// IsValid reports whether the system type is one of the three known systems.
func (s SystemType) IsValid() bool {
	switch s {
	case SystemLinear, SystemModularLinear, SystemModularMastery:
		return true
	default:
		return false
	}
}

// Subclass is one member of a subclass group.
type Subclass struct {
	ID          SubclassID
	Name        string
	Description string
}

// DefaultModulesPerMastery is how many modules advance a mastery rank when
// a group does not configure its own count.
const DefaultModulesPerMastery = 2

// SubclassGroup is a named set of mutually exclusive subclasses of a class.
type SubclassGroup struct {
	ID         GroupID
	Class      ClassID
	Name       string
	SystemType SystemType
	Subclasses []Subclass

	// TierUnlocks maps tier number to the class level that unlocks it
	// (modular-linear). When absent, tier N unlocks at class level N.
	TierUnlocks map[int]int

	// ModulesPerMastery is the K in "every K modules advance the mastery
	// rank" (modular-mastery). Zero falls back to DefaultModulesPerMastery.
	ModulesPerMastery int
}

// HasSubclass reports whether id names a member of the group.
func (g *SubclassGroup) HasSubclass(id SubclassID) bool {
	for _, sc := range g.Subclasses {
		if sc.ID == id {
			return true
		}
	}
	return false
}

// TierUnlockLevel returns the class level at which a tier unlocks.
func (g *SubclassGroup) TierUnlockLevel(tier int) int {
	if g.TierUnlocks != nil {
		if lvl, ok := g.TierUnlocks[tier]; ok {
			return lvl
		}
	}
	// Without an explicit table, tier <= class level gates eligibility.
	return tier
}

// ModulesPerRank returns the configured modules-per-mastery count.
func (g *SubclassGroup) ModulesPerRank() int {
	if g.ModulesPerMastery > 0 {
		return g.ModulesPerMastery
	}
	return DefaultModulesPerMastery
}
