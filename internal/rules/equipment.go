package rules

// WeaponID identifies a weapon definition.
type WeaponID string

// Weapon is the static definition of a weapon. Traits select the governing
// ability for attack rows: ranged always uses DEX; finesse offers the higher
// of STR/DEX for hit and damage; balanced offers the higher for hit only.
type Weapon struct {
	ID     WeaponID
	Name   string
	Group  string // proficiency group, e.g. "weapon:simple"
	Damage string // dice notation, e.g. "1d8"

	Ranged   bool
	Finesse  bool
	Balanced bool
}

// ProficiencyCode returns the item-specific progression lookup key. Item
// rows take precedence over the weapon's group when both exist.
func (w *Weapon) ProficiencyCode() string {
	return "weapon:" + string(w.ID)
}

// ArmorID identifies an armor definition.
type ArmorID string

// Armor is the static definition of an armor piece.
type Armor struct {
	ID    ArmorID
	Name  string
	Group string // proficiency group, e.g. "armor:light"

	// Base is the flat armor value contributed while equipped.
	Base int

	// DexCap limits the Dexterity contribution to Dodge while equipped.
	// Nil means uncapped.
	DexCap *int
}

// ProficiencyCode returns the item-specific progression lookup key.
func (a *Armor) ProficiencyCode() string {
	return "armor:" + string(a.ID)
}

// SpellID identifies a spell definition.
type SpellID string

// Spell is the static definition of a spell.
type Spell struct {
	ID          SpellID
	Name        string
	Description string
	Rank        int    // 0 = cantrip
	Origin      string // magic tradition, e.g. "arcane"
}

// IsCantrip reports whether the spell is a rank-0 cantrip.
func (s *Spell) IsCantrip() bool {
	return s.Rank == 0
}
