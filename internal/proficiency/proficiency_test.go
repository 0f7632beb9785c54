package proficiency

import (
	"testing"

	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/rules"
	"github.com/ironlantern/charforge/internal/stats"
)

func testRegistry(t *testing.T) *rules.Registry {
	t.Helper()
	reg, err := rules.NewRegistry(
		[]*rules.Class{
			{ID: "fighter", Name: "Fighter", HitDie: 10},
			{ID: "wizard", Name: "Wizard", HitDie: 6},
		},
		[]*rules.Feature{
			{
				ID:              "weapon_adept",
				Name:            "Weapon Adept",
				Kind:            rules.KindProficiencyMod,
				Class:           "fighter",
				ProficiencyCode: "weapon:martial",
				ProficiencyTier: rules.Master,
			},
		},
		nil,
		[]*rules.Skill{
			{ID: "stealth", Name: "Stealth", Primary: stats.Dexterity},
		},
		nil, nil, nil,
		[]rules.ProficiencyProgression{
			{Class: "fighter", Code: "dodge", Tier: rules.Trained, AtLevel: 0},
			{Class: "wizard", Code: "dodge", Tier: rules.Expert, AtLevel: 3},
			{Class: "fighter", Code: "weapon:martial", Tier: rules.Trained, AtLevel: 0},
			{Class: "fighter", Code: "weapon:longsword", Tier: rules.Expert, AtLevel: 2},
			{Class: "fighter", Code: "will", Tier: rules.Expert, AtLevel: 9},
		},
	)
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	return reg
}

func TestResolveBestAcrossClasses(t *testing.T) {
	reg := testRegistry(t)
	ch := character.New("Tamsin")
	ch.SetClassLevel("fighter", 2)
	ch.SetClassLevel("wizard", 4)
	ch.Level = 6

	got := Resolve(reg, ch, "dodge")
	if got.Tier != rules.Expert {
		t.Errorf("Tier = %v, expected expert", got.Tier)
	}
	if got.Bonus != 5 {
		t.Errorf("Bonus = %d, expected 5", got.Bonus)
	}
	if !got.Proficient {
		t.Error("Proficient = false, expected true")
	}
	if got.SourceClass != "wizard" {
		t.Errorf("SourceClass = %v, expected wizard", got.SourceClass)
	}
}

func TestResolveThresholdNotMet(t *testing.T) {
	reg := testRegistry(t)
	ch := character.New("Tamsin")
	ch.SetClassLevel("fighter", 2)
	ch.SetClassLevel("wizard", 2) // wizard expert row needs level 3
	ch.Level = 4

	got := Resolve(reg, ch, "dodge")
	if got.Tier != rules.Trained || got.SourceClass != "fighter" {
		t.Errorf("got %+v, expected trained via fighter", got)
	}
}

func TestResolveUntrainedFallback(t *testing.T) {
	reg := testRegistry(t)
	ch := character.New("Tamsin")
	ch.SetClassLevel("fighter", 1)
	ch.Level = 1

	got := Resolve(reg, ch, "arcana")
	if got.Tier != rules.Untrained || got.Bonus != 0 || got.Proficient {
		t.Errorf("got %+v, expected untrained fallback", got)
	}
}

func TestResolveNoClassLevels(t *testing.T) {
	reg := testRegistry(t)
	ch := character.New("Tamsin")

	got := Resolve(reg, ch, "dodge")
	if got.Tier != rules.Untrained {
		t.Errorf("Tier = %v, expected untrained for level-zero character", got.Tier)
	}
}

func TestResolveProficiencyModFeature(t *testing.T) {
	reg := testRegistry(t)
	ch := character.New("Tamsin")
	ch.SetClassLevel("fighter", 1)
	ch.Level = 1
	ch.GrantFeature("weapon_adept", "", "", 1)

	got := Resolve(reg, ch, "weapon:martial")
	if got.Tier != rules.Master {
		t.Errorf("Tier = %v, expected master from owned feature", got.Tier)
	}
}

func TestResolveItemPrecedence(t *testing.T) {
	reg := testRegistry(t)
	ch := character.New("Tamsin")
	ch.SetClassLevel("fighter", 3)
	ch.Level = 3

	// Item-specific row exists and wins over the group.
	got := ResolveItem(reg, ch, "weapon:longsword", "weapon:martial")
	if got.Tier != rules.Expert {
		t.Errorf("Tier = %v, expected expert from item row", got.Tier)
	}

	// No item row for the mace: group fallback applies.
	got = ResolveItem(reg, ch, "weapon:mace", "weapon:martial")
	if got.Tier != rules.Trained {
		t.Errorf("Tier = %v, expected trained from group fallback", got.Tier)
	}
}

func TestResolveItemPrecedenceEvenWhenLocked(t *testing.T) {
	reg := testRegistry(t)
	ch := character.New("Tamsin")
	ch.SetClassLevel("fighter", 1) // longsword row needs level 2
	ch.Level = 1

	// The item row exists but its threshold is unmet; the item code still
	// takes precedence, so the result is untrained, not the group tier.
	got := ResolveItem(reg, ch, "weapon:longsword", "weapon:martial")
	if got.Tier != rules.Untrained {
		t.Errorf("Tier = %v, expected untrained (item row locked)", got.Tier)
	}
}
