package rules

import "github.com/ironlantern/charforge/internal/stats"

// SkillID identifies a skill in rule data.
type SkillID string

// Skill is the static definition of a skill. Skills may carry up to two
// governing abilities whose totals are computed independently, and may be
// sub-skills of a parent skill.
type Skill struct {
	ID          SkillID
	Name        string
	Description string

	// Primary and Secondary are the governing abilities. Secondary may be
	// empty for single-ability skills.
	Primary   stats.Ability
	Secondary stats.Ability

	// Parent makes this a sub-skill: it inherits the parent's governing
	// abilities and proficiency lookup code.
	Parent SkillID

	// Code is the proficiency-progression lookup key. Defaults to the ID.
	Code string
}

// ProficiencyCode returns the progression lookup key for the skill.
func (s *Skill) ProficiencyCode() string {
	if s.Code != "" {
		return s.Code
	}
	return string(s.ID)
}

// ProficiencyProgression grants a tier for a proficiency code (or weapon/
// armor group) once a class reaches AtLevel levels.
type ProficiencyProgression struct {
	Class   ClassID
	Code    string
	Tier    TierName
	AtLevel int
}
