// Package override layers user-supplied adjustments over system-computed
// values: an optional formula, an optional final value, and reason-tagged
// additive deltas, resolved in that order with a derivation trail.
package override

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ironlantern/charforge/internal/rules"
	"github.com/ironlantern/charforge/internal/stats"
)

// Key addresses one resolvable numeric field. The concrete types form a
// closed set; the string form exists only for persistence and display.
type Key interface {
	// String returns the stable serialized target key, e.g. "skill:stealth:0".
	String() string
}

// AbilityKey addresses an ability score.
type AbilityKey struct {
	Ability stats.Ability
}

func (k AbilityKey) String() string { return "ability:" + string(k.Ability) }

// SkillKey addresses one governing-ability column of a skill total.
// Column 0 is the primary ability, 1 the secondary.
type SkillKey struct {
	Skill  rules.SkillID
	Column int
}

func (k SkillKey) String() string { return fmt.Sprintf("skill:%s:%d", k.Skill, k.Column) }

// DefenseKey addresses a defense value (armor, dodge, reflex, fortitude, will).
type DefenseKey struct {
	Name string
}

func (k DefenseKey) String() string { return "defense:" + k.Name }

// AttackKey addresses the attack bonus of an equipped weapon.
type AttackKey struct {
	Weapon rules.WeaponID
}

func (k AttackKey) String() string { return "attack:" + string(k.Weapon) }

// ProfTierKey addresses the resolved proficiency tier for a code.
type ProfTierKey struct {
	Code string
}

func (k ProfTierKey) String() string { return "prof_tier:" + k.Code }

// CapKind selects which spellcasting cap a SpellCapKey addresses.
type CapKind string

const (
	CapCantrips CapKind = "cantrips"
	CapKnown    CapKind = "known"
	CapPrepared CapKind = "prepared"
)

// SpellCapKey addresses one cap of a spell-table feature.
type SpellCapKey struct {
	Feature rules.FeatureID
	Kind    CapKind
}

func (k SpellCapKey) String() string { return fmt.Sprintf("spell_cap:%s:%s", k.Feature, k.Kind) }

// SpellDCKey addresses the spell save difficulty class of a magic origin.
type SpellDCKey struct {
	Origin string
}

func (k SpellDCKey) String() string { return "spell_dc:" + k.Origin }

// SlotsKey addresses the remaining spell slots of an origin at a rank,
// overridable to represent expenditure between rests.
type SlotsKey struct {
	Origin string
	Rank   int
}

func (k SlotsKey) String() string { return fmt.Sprintf("slots:%s:%d", k.Origin, k.Rank) }

// ParseKey is the inverse of Key.String. It rebuilds the typed key from
// its serialized form.
func ParseKey(s string) (Key, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("malformed key %q", s)
	}
	switch kind {
	case "ability":
		a, err := stats.ParseAbility(rest)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", s, err)
		}
		return AbilityKey{Ability: a}, nil
	case "skill":
		skill, col, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("malformed skill key %q", s)
		}
		column, err := strconv.Atoi(col)
		if err != nil {
			return nil, fmt.Errorf("skill key %q: bad column", s)
		}
		return SkillKey{Skill: rules.SkillID(skill), Column: column}, nil
	case "defense":
		return DefenseKey{Name: rest}, nil
	case "attack":
		return AttackKey{Weapon: rules.WeaponID(rest)}, nil
	case "prof_tier":
		return ProfTierKey{Code: rest}, nil
	case "spell_cap":
		feature, capKind, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("malformed spell cap key %q", s)
		}
		switch CapKind(capKind) {
		case CapCantrips, CapKnown, CapPrepared:
		default:
			return nil, fmt.Errorf("spell cap key %q: unknown cap %q", s, capKind)
		}
		return SpellCapKey{Feature: rules.FeatureID(feature), Kind: CapKind(capKind)}, nil
	case "spell_dc":
		return SpellDCKey{Origin: rest}, nil
	case "slots":
		origin, rankStr, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("malformed slots key %q", s)
		}
		rank, err := strconv.Atoi(rankStr)
		if err != nil {
			return nil, fmt.Errorf("slots key %q: bad rank", s)
		}
		return SlotsKey{Origin: origin, Rank: rank}, nil
	default:
		return nil, fmt.Errorf("unknown key kind %q", kind)
	}
}
