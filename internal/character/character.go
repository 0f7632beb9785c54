// Package character defines the mutable character aggregate the engine
// operates on. The aggregate is plain state plus small invariant-preserving
// helpers; rule interpretation lives in the engine packages.
package character

import (
	"sort"

	"github.com/google/uuid"
	"github.com/ironlantern/charforge/internal/override"
	"github.com/ironlantern/charforge/internal/rules"
	"github.com/ironlantern/charforge/internal/stats"
)

// TransactionSource tags why a skill-point transaction was recorded.
type TransactionSource string

const (
	SourceLevelAward TransactionSource = "level_award"
	SourceSpend      TransactionSource = "spend"
	SourceRefund     TransactionSource = "refund"
	SourceAdmin      TransactionSource = "admin"
)

// SkillPointTransaction is one append-only entry in the skill-point ledger.
type SkillPointTransaction struct {
	ID      string
	Amount  int
	Source  TransactionSource
	Reason  string
	AtLevel int
	Class   rules.ClassID // awarding class, when Source is level_award
}

// OwnedFeature records a feature (or racial feature) the character owns.
// Rows are created and deleted, never mutated.
type OwnedFeature struct {
	ID            string
	Feature       rules.FeatureID // XOR RacialFeature
	RacialFeature string
	Subclass      rules.SubclassID
	Option        string
	AtLevel       int // total character level when granted
}

// KnownSpell is a spell the character has learned.
type KnownSpell struct {
	Spell  rules.SpellID
	Origin string
	Rank   int
}

// PreparedSpell is a known spell currently prepared into a slot.
type PreparedSpell struct {
	Spell  rules.SpellID
	Origin string
	Rank   int
}

// Character is the aggregate root. All engine mutations go through one
// operation at a time per character; the aggregate itself is not locked.
type Character struct {
	ID   string
	Name string

	Abilities stats.Scores

	// Level is the total character level across all classes.
	Level int

	// ClassLevels maps class to levels taken. Entries never hold zero;
	// a class reduced to zero levels is removed.
	ClassLevels map[rules.ClassID]int

	// History records which class each total level was taken in, oldest
	// first. Level-down pops the most recent entry.
	History []rules.ClassID

	// Subclasses records the chosen subclass per linear subclass group.
	Subclasses map[rules.GroupID]rules.SubclassID

	// HPMax and HPGains track hit points; HPGains records the gain at each
	// total level so level-down can subtract exactly what was rolled.
	HPMax   int
	HPGains map[int]int

	Features     []OwnedFeature
	Transactions []SkillPointTransaction
	Known        []KnownSpell
	Prepared     []PreparedSpell

	// SkillTiers maps skill to its proficiency tier. Untrained skills have
	// no entry.
	SkillTiers map[rules.SkillID]rules.TierName

	// Equipped gear feeds attack and defense rows.
	Weapons []rules.WeaponID
	Armor   rules.ArmorID

	Overrides *override.Store
}

// New creates a level-zero character with default scores.
func New(name string) *Character {
	return &Character{
		ID:          uuid.NewString(),
		Name:        name,
		Abilities:   stats.DefaultScores(),
		ClassLevels: make(map[rules.ClassID]int),
		Subclasses:  make(map[rules.GroupID]rules.SubclassID),
		HPGains:     make(map[int]int),
		SkillTiers:  make(map[rules.SkillID]rules.TierName),
		Overrides:   override.NewStore(),
	}
}

// ClassLevel returns the character's levels in a class (0 if none).
func (c *Character) ClassLevel(class rules.ClassID) int {
	return c.ClassLevels[class]
}

// ClassIDs returns the classes the character has levels in, sorted for
// deterministic iteration.
func (c *Character) ClassIDs() []rules.ClassID {
	out := make([]rules.ClassID, 0, len(c.ClassLevels))
	for id := range c.ClassLevels {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetClassLevel sets the class-progress row, removing it at zero.
func (c *Character) SetClassLevel(class rules.ClassID, level int) {
	if level <= 0 {
		delete(c.ClassLevels, class)
		return
	}
	c.ClassLevels[class] = level
}

// OwnsFeature reports whether the character owns the feature.
func (c *Character) OwnsFeature(id rules.FeatureID) bool {
	for _, f := range c.Features {
		if f.Feature == id {
			return true
		}
	}
	return false
}

// GrantFeature appends an owned-feature row and returns it.
func (c *Character) GrantFeature(id rules.FeatureID, subclass rules.SubclassID, option string, atLevel int) OwnedFeature {
	owned := OwnedFeature{
		ID:       uuid.NewString(),
		Feature:  id,
		Subclass: subclass,
		Option:   option,
		AtLevel:  atLevel,
	}
	c.Features = append(c.Features, owned)
	return owned
}

// RemoveFeaturesAtLevel deletes owned features granted at the given total
// level and returns how many were removed.
func (c *Character) RemoveFeaturesAtLevel(level int) int {
	kept := c.Features[:0]
	removed := 0
	for _, f := range c.Features {
		if f.AtLevel == level {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	c.Features = kept
	return removed
}

// FeaturesOfSubclass returns owned features recorded against a subclass.
func (c *Character) FeaturesOfSubclass(subclass rules.SubclassID) []OwnedFeature {
	var out []OwnedFeature
	for _, f := range c.Features {
		if f.Subclass == subclass {
			out = append(out, f)
		}
	}
	return out
}

// SkillTier returns the character's tier in a skill (Untrained if absent).
func (c *Character) SkillTier(skill rules.SkillID) rules.TierName {
	if tier, ok := c.SkillTiers[skill]; ok {
		return tier
	}
	return rules.Untrained
}

// SetSkillTier updates a skill's tier, removing the record at Untrained.
func (c *Character) SetSkillTier(skill rules.SkillID, tier rules.TierName) {
	if tier == rules.Untrained {
		delete(c.SkillTiers, skill)
		return
	}
	c.SkillTiers[skill] = tier
}

// FormulaVars builds the variable context formulas evaluate against:
// ability scores and modifiers, the total level, and one "<class>_level"
// token per class the character has levels in.
func (c *Character) FormulaVars() map[string]float64 {
	vars := c.Abilities.Variables()
	vars["level"] = float64(c.Level)
	for class, level := range c.ClassLevels {
		vars[string(class)+"_level"] = float64(level)
	}
	return vars
}

// KnowsSpell reports whether the spell is known for an origin.
func (c *Character) KnowsSpell(spell rules.SpellID, origin string) bool {
	for _, k := range c.Known {
		if k.Spell == spell && k.Origin == origin {
			return true
		}
	}
	return false
}

// PreparedCount returns how many prepared spells exist at a rank for an origin.
func (c *Character) PreparedCount(origin string, rank int) int {
	count := 0
	for _, p := range c.Prepared {
		if p.Origin == origin && p.Rank == rank {
			count++
		}
	}
	return count
}
