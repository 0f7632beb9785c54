// Package stats provides ability scores, modifiers, and the dice facility.
package stats

import (
	"fmt"
	"strings"
)

// Ability identifies one of the six core ability scores.
type Ability string

const (
	Strength     Ability = "strength"
	Dexterity    Ability = "dexterity"
	Constitution Ability = "constitution"
	Intelligence Ability = "intelligence"
	Wisdom       Ability = "wisdom"
	Charisma     Ability = "charisma"
)

// Abilities lists all abilities in canonical order.
var Abilities = []Ability{Strength, Dexterity, Constitution, Intelligence, Wisdom, Charisma}

// IsValid returns true if the ability is one of the six core abilities.
func (a Ability) IsValid() bool {
	switch a {
	case Strength, Dexterity, Constitution, Intelligence, Wisdom, Charisma:
		return true
	default:
		return false
	}
}

// Short returns the three-letter abbreviation used in derivation strings.
func (a Ability) Short() string {
	switch a {
	case Strength:
		return "STR"
	case Dexterity:
		return "DEX"
	case Constitution:
		return "CON"
	case Intelligence:
		return "INT"
	case Wisdom:
		return "WIS"
	case Charisma:
		return "CHA"
	default:
		return "???"
	}
}

// ParseAbility parses an ability name or abbreviation, case-insensitive.
func ParseAbility(s string) (Ability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strength", "str":
		return Strength, nil
	case "dexterity", "dex":
		return Dexterity, nil
	case "constitution", "con":
		return Constitution, nil
	case "intelligence", "int":
		return Intelligence, nil
	case "wisdom", "wis":
		return Wisdom, nil
	case "charisma", "cha":
		return Charisma, nil
	default:
		return "", fmt.Errorf("unknown ability: %s", s)
	}
}

// Scores holds the six core ability scores.
type Scores struct {
	Strength     int
	Dexterity    int
	Constitution int
	Intelligence int
	Wisdom       int
	Charisma     int
}

// DefaultScores returns scores with all values at 10.
func DefaultScores() Scores {
	return Scores{
		Strength:     10,
		Dexterity:    10,
		Constitution: 10,
		Intelligence: 10,
		Wisdom:       10,
		Charisma:     10,
	}
}

// Modifier calculates the ability modifier using floor division.
// Formula: floor((score - 10) / 2)
// Examples: 8=-1, 9=-1, 10=0, 11=0, 12=+1, 14=+2, 16=+3, 18=+4
func Modifier(score int) int {
	diff := score - 10
	if diff >= 0 {
		return diff / 2
	}
	// Floor division for negative numbers
	return (diff - 1) / 2
}

// Get returns the score for the named ability.
func (s Scores) Get(a Ability) int {
	switch a {
	case Strength:
		return s.Strength
	case Dexterity:
		return s.Dexterity
	case Constitution:
		return s.Constitution
	case Intelligence:
		return s.Intelligence
	case Wisdom:
		return s.Wisdom
	case Charisma:
		return s.Charisma
	default:
		return 0
	}
}

// Set returns a copy of the scores with the named ability changed.
func (s Scores) Set(a Ability, value int) Scores {
	switch a {
	case Strength:
		s.Strength = value
	case Dexterity:
		s.Dexterity = value
	case Constitution:
		s.Constitution = value
	case Intelligence:
		s.Intelligence = value
	case Wisdom:
		s.Wisdom = value
	case Charisma:
		s.Charisma = value
	}
	return s
}

// Mod returns the modifier for the named ability.
func (s Scores) Mod(a Ability) int {
	return Modifier(s.Get(a))
}

// Variables returns the formula-context variables derived from the scores:
// full scores (e.g. "strength") plus modifiers (e.g. "str_mod", "strength_mod").
func (s Scores) Variables() map[string]float64 {
	vars := make(map[string]float64, len(Abilities)*3)
	for _, a := range Abilities {
		score := s.Get(a)
		mod := Modifier(score)
		vars[string(a)] = float64(score)
		vars[string(a)+"_mod"] = float64(mod)
		vars[strings.ToLower(a.Short())+"_mod"] = float64(mod)
	}
	return vars
}
