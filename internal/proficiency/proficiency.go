// Package proficiency resolves the best proficiency tier a character holds
// for a code, across every class they have levels in.
package proficiency

import (
	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/rules"
)

// Resolution is the outcome of a proficiency lookup.
type Resolution struct {
	Tier        rules.TierName
	Bonus       int
	Proficient  bool
	SourceClass rules.ClassID
}

// untrained is the fallback when no progression row matches.
func untrained() Resolution {
	return Resolution{Tier: rules.Untrained, Bonus: 0, Proficient: false}
}

// Resolve finds the best (highest-bonus) tier for a code. For every class
// the character has at least one level in, progression rows for the code
// whose at-level threshold is met are considered; ties keep the first row
// found, with classes scanned in sorted order so resolution is
// deterministic. Owned proficiency-modifier features also contribute.
// Tier names always come from the canonical ladder.
func Resolve(reg *rules.Registry, ch *character.Character, code string) Resolution {
	best := untrained()

	for _, classID := range ch.ClassIDs() {
		classLevel := ch.ClassLevel(classID)
		if classLevel < 1 {
			continue
		}
		for _, row := range reg.Progressions(classID) {
			if row.Code != code || row.AtLevel > classLevel {
				continue
			}
			tier, ok := rules.TierByName(row.Tier)
			if !ok {
				continue
			}
			if tier.Bonus > best.Bonus {
				best = Resolution{
					Tier:        tier.Name,
					Bonus:       tier.Bonus,
					Proficient:  tier.Name != rules.Untrained,
					SourceClass: classID,
				}
			}
		}
	}

	for _, owned := range ch.Features {
		feat := reg.Feature(owned.Feature)
		if feat == nil || feat.Kind != rules.KindProficiencyMod || feat.ProficiencyCode != code {
			continue
		}
		tier, ok := rules.TierByName(feat.ProficiencyTier)
		if !ok {
			continue
		}
		if tier.Bonus > best.Bonus {
			best = Resolution{
				Tier:        tier.Name,
				Bonus:       tier.Bonus,
				Proficient:  tier.Name != rules.Untrained,
				SourceClass: feat.Class,
			}
		}
	}

	return best
}

// ResolveItem resolves an item-specific code, falling back to its group
// code only when no item-specific row exists for any of the character's
// classes. Item rows take precedence over group rows even at a lower bonus.
func ResolveItem(reg *rules.Registry, ch *character.Character, itemCode, groupCode string) Resolution {
	if hasRows(reg, ch, itemCode) {
		return Resolve(reg, ch, itemCode)
	}
	return Resolve(reg, ch, groupCode)
}

// hasRows reports whether any class of the character defines a progression
// row for the code, regardless of level thresholds.
func hasRows(reg *rules.Registry, ch *character.Character, code string) bool {
	for _, classID := range ch.ClassIDs() {
		for _, row := range reg.Progressions(classID) {
			if row.Code == code {
				return true
			}
		}
	}
	return false
}
