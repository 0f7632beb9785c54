package character

import (
	"testing"

	"github.com/ironlantern/charforge/internal/rules"
)

func TestClassLevels(t *testing.T) {
	c := New("Tamsin")

	if c.ClassLevel("fighter") != 0 {
		t.Errorf("new character fighter level = %d, expected 0", c.ClassLevel("fighter"))
	}

	c.SetClassLevel("fighter", 3)
	c.SetClassLevel("wizard", 1)
	if c.ClassLevel("fighter") != 3 {
		t.Errorf("fighter level = %d, expected 3", c.ClassLevel("fighter"))
	}

	ids := c.ClassIDs()
	if len(ids) != 2 || ids[0] != "fighter" || ids[1] != "wizard" {
		t.Errorf("ClassIDs = %v, expected [fighter wizard]", ids)
	}

	// Rows with zero levels are removed entirely.
	c.SetClassLevel("wizard", 0)
	if _, ok := c.ClassLevels["wizard"]; ok {
		t.Error("wizard row still present after reaching 0 levels")
	}
}

func TestOwnedFeatures(t *testing.T) {
	c := New("Tamsin")

	c.GrantFeature("power_attack", "", "", 1)
	c.GrantFeature("cleave", "", "", 2)
	c.GrantFeature("rage", "berserker", "", 2)

	if !c.OwnsFeature("power_attack") {
		t.Error("OwnsFeature(power_attack) = false, expected true")
	}
	if c.OwnsFeature("whirlwind") {
		t.Error("OwnsFeature(whirlwind) = true, expected false")
	}

	if got := c.FeaturesOfSubclass("berserker"); len(got) != 1 || got[0].Feature != "rage" {
		t.Errorf("FeaturesOfSubclass(berserker) = %+v, expected [rage]", got)
	}

	removed := c.RemoveFeaturesAtLevel(2)
	if removed != 2 {
		t.Errorf("RemoveFeaturesAtLevel(2) = %d, expected 2", removed)
	}
	if c.OwnsFeature("cleave") {
		t.Error("cleave still owned after removal")
	}
	if !c.OwnsFeature("power_attack") {
		t.Error("power_attack removed but was granted at level 1")
	}
}

func TestSkillTiers(t *testing.T) {
	c := New("Tamsin")

	if c.SkillTier("stealth") != rules.Untrained {
		t.Errorf("default tier = %v, expected untrained", c.SkillTier("stealth"))
	}

	c.SetSkillTier("stealth", rules.Expert)
	if c.SkillTier("stealth") != rules.Expert {
		t.Errorf("tier = %v, expected expert", c.SkillTier("stealth"))
	}

	// Returning to Untrained deletes the record.
	c.SetSkillTier("stealth", rules.Untrained)
	if _, ok := c.SkillTiers["stealth"]; ok {
		t.Error("untrained skill still has a record")
	}
}

func TestSpellHelpers(t *testing.T) {
	c := New("Tamsin")
	c.Known = append(c.Known, KnownSpell{Spell: "fireball", Origin: "arcane", Rank: 3})
	c.Prepared = append(c.Prepared,
		PreparedSpell{Spell: "fireball", Origin: "arcane", Rank: 3},
		PreparedSpell{Spell: "haste", Origin: "arcane", Rank: 3},
	)

	if !c.KnowsSpell("fireball", "arcane") {
		t.Error("KnowsSpell(fireball, arcane) = false, expected true")
	}
	if c.KnowsSpell("fireball", "divine") {
		t.Error("KnowsSpell(fireball, divine) = true, expected false")
	}
	if got := c.PreparedCount("arcane", 3); got != 2 {
		t.Errorf("PreparedCount(arcane, 3) = %d, expected 2", got)
	}
}
