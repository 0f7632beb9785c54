package rules

// ClassID identifies a class in rule data.
type ClassID string

// Class is the static definition of a character class.
type Class struct {
	ID          ClassID
	Name        string
	Description string

	// HitDie is the die rolled for hit points on level-up (e.g. 10 for d10).
	HitDie int

	// SkillPointsPerLevel is the skill-point award appended to the ledger
	// each time a level in this class is gained. Zero means no award.
	SkillPointsPerLevel int

	// StartingSkillCap caps how many Trained skills the first level in this
	// class grants, as a formula over ability modifiers (e.g. "3 + int_mod").
	StartingSkillCap string

	// SkillFeatPicks maps class level to the number of skill-feat picks
	// required at that level. Absent levels require zero picks.
	SkillFeatPicks map[int]int
}

// SkillFeatPicksAt returns the configured skill-feat pick count for a level.
func (c *Class) SkillFeatPicksAt(level int) int {
	if c.SkillFeatPicks == nil {
		return 0
	}
	return c.SkillFeatPicks[level]
}
