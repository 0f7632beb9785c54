package rules

import "github.com/ironlantern/charforge/internal/stats"

// FeatureID identifies a feature in rule data.
type FeatureID string

// FeatureScope declares where a feature attaches.
type FeatureScope string

const (
	ScopeClassFeature   FeatureScope = "class_feature"
	ScopeSubclass       FeatureScope = "subclass_feature"
	ScopeSubclassChoice FeatureScope = "subclass_choice"
	ScopeGainSubclass   FeatureScope = "gain_subclass_feature"
)

// FeatureKind declares what a feature does when granted.
type FeatureKind string

const (
	KindFeat            FeatureKind = "feat"
	KindSkillFeat       FeatureKind = "skill_feat"
	KindProficiencyMod  FeatureKind = "proficiency_modifier"
	KindSpellTable      FeatureKind = "spell_table"
	KindMartialMastery  FeatureKind = "martial_mastery"
	KindAbilityIncrease FeatureKind = "ability_score_increase"
)

// SlotRow declares spell slots granted by a spell table: at class level
// Level, Count slots of rank Rank exist.
type SlotRow struct {
	Level int `yaml:"level"`
	Rank  int `yaml:"rank"`
	Count int `yaml:"count"`
}

// Feature is the static definition of anything a character can own: class
// features, subclass modules, feats, spell tables.
type Feature struct {
	ID          FeatureID
	Name        string
	Description string
	Scope       FeatureScope
	Kind        FeatureKind

	// Class the feature belongs to; empty for general feats.
	Class ClassID

	// Level is the class level this feature auto-attaches at (class features
	// and linear subclass features). Zero means not level-attached.
	Level int

	// LevelRequired and MinLevel gate eligibility for picked features.
	LevelRequired int
	MinLevel      int

	// Subclass and Group place subclass-scoped features.
	Subclass SubclassID
	Group    GroupID

	// Tier gates modular-linear subclass features (chain invariant: owning
	// a tier T feature requires a tier T-1 feature in the same subclass).
	Tier int

	// MasteryRank gates modular-mastery subclass features.
	MasteryRank int

	// RankCeiling caps eligible mastery ranks for picks granted by a
	// gain-subclass-feature trigger. Zero means no ceiling.
	RankCeiling int

	// Picks is how many selections a gain-subclass-feature trigger grants.
	// Zero is treated as one.
	Picks int

	// Spell-table fields. Origin is the magic tradition whose caps stack
	// across every source sharing it.
	Origin          string
	CastingAbility  stats.Ability
	CantripFormula  string
	KnownFormula    string
	PreparedFormula string
	Slots           []SlotRow

	// Proficiency-modifier fields.
	ProficiencyCode string
	ProficiencyTier TierName
}

// PickCount returns the number of selections this trigger grants.
func (f *Feature) PickCount() int {
	if f.Picks <= 0 {
		return 1
	}
	return f.Picks
}
