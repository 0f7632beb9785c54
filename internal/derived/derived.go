// Package derived computes the display snapshot of a character: ability
// rows, defenses, attack rows, skill totals, spell DCs, and spellcasting
// blocks. Every value is routed through the override pipeline before it
// is returned.
package derived

import (
	"log/slog"

	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/override"
	"github.com/ironlantern/charforge/internal/proficiency"
	"github.com/ironlantern/charforge/internal/rules"
	"github.com/ironlantern/charforge/internal/spellcasting"
	"github.com/ironlantern/charforge/internal/stats"
)

// AbilityRow is one resolved ability score with its modifier.
type AbilityRow struct {
	Ability    stats.Ability
	Score      int
	Modifier   int
	Derivation string
}

// DefenseRow is one resolved defense value.
type DefenseRow struct {
	Name       string
	Tier       rules.TierName
	Proficient bool
	Value      int
	Derivation string
}

// AttackRow is the resolved attack line for one equipped weapon.
type AttackRow struct {
	Weapon     rules.WeaponID
	Name       string
	Tier       rules.TierName
	Proficient bool

	HitAbility stats.Ability
	HitBonus   int
	Derivation string

	DamageAbility stats.Ability
	DamageBonus   int
	DamageDice    string
}

// SkillColumn is one governing-ability total of a skill.
type SkillColumn struct {
	Ability    stats.Ability
	Value      int
	Derivation string
}

// SkillRow is one resolved skill. Secondary is nil for single-ability
// skills.
type SkillRow struct {
	Skill      rules.SkillID
	Name       string
	Tier       rules.TierName
	Proficient bool
	Primary    SkillColumn
	Secondary  *SkillColumn
}

// SpellDCRow is the resolved spell save DC for one magic origin.
type SpellDCRow struct {
	Origin     string
	Ability    stats.Ability
	Value      int
	Derivation string
}

// SlotStatus reports slot usage at one rank.
type SlotStatus struct {
	Rank      int
	Total     int
	Remaining int
}

// SpellBlock summarizes one magic origin: caps, counts, and slots. OverCap
// marks known counts that exceed the current caps, which can happen after
// a cap formula shrinks; the state is surfaced, not auto-corrected.
type SpellBlock struct {
	Origin   string
	Caps     spellcasting.Caps
	Cantrips int
	Known    int
	Prepared int
	Slots    []SlotStatus
	OverCap  bool
}

// Snapshot is the full derived-stat view of a character at one moment.
type Snapshot struct {
	CharacterID string
	Name        string
	Level       int
	HPMax       int

	Abilities    []AbilityRow
	Defenses     []DefenseRow
	Attacks      []AttackRow
	Skills       []SkillRow
	SpellDCs     []SpellDCRow
	Spellcasting []SpellBlock
}

// Calculator produces snapshots for one character against rule data. It is
// read-only and safe to run concurrently across characters.
type Calculator struct {
	Reg *rules.Registry
	Ch  *character.Character
}

// defense names in display order with their governing abilities. Armor has
// no ability contribution; its base comes from the equipped armor piece.
var defenseTable = []struct {
	name    string
	ability stats.Ability
}{
	{"armor", ""},
	{"dodge", stats.Dexterity},
	{"reflex", stats.Dexterity},
	{"fortitude", stats.Constitution},
	{"will", stats.Wisdom},
}

// Snapshot computes the whole derived view. Formula failures on this path
// fall back to the system value with a logged warning; gating operations
// never read snapshots.
func (c *Calculator) Snapshot() *Snapshot {
	abilityRows, eff := c.abilityRows()
	vars := c.varsFor(eff)

	return &Snapshot{
		CharacterID:  c.Ch.ID,
		Name:         c.Ch.Name,
		Level:        c.Ch.Level,
		HPMax:        c.Ch.HPMax,
		Abilities:    abilityRows,
		Defenses:     c.defenseRows(eff, vars),
		Attacks:      c.attackRows(eff, vars),
		Skills:       c.skillRows(eff, vars),
		SpellDCs:     c.spellDCRows(eff, vars),
		Spellcasting: c.spellBlocks(),
	}
}

// abilityRows resolves each ability score through its override layers and
// returns the effective scores every downstream value computes from.
func (c *Calculator) abilityRows() ([]AbilityRow, stats.Scores) {
	baseVars := c.Ch.FormulaVars()
	eff := c.Ch.Abilities
	rows := make([]AbilityRow, 0, len(stats.Abilities))
	for _, a := range stats.Abilities {
		base := c.Ch.Abilities.Get(a)
		value, derivation := c.resolve(override.AbilityKey{Ability: a}, base, string(a), baseVars)
		eff = eff.Set(a, value)
		rows = append(rows, AbilityRow{
			Ability:    a,
			Score:      value,
			Modifier:   stats.Modifier(value),
			Derivation: derivation,
		})
	}
	return rows, eff
}

func (c *Calculator) defenseRows(eff stats.Scores, vars map[string]float64) []DefenseRow {
	var equipped *rules.Armor
	if c.Ch.Armor != "" {
		equipped = c.Reg.Armor(c.Ch.Armor)
		if equipped == nil {
			slog.Warn("equipped armor not in rule data", "character", c.Ch.ID, "armor", c.Ch.Armor)
		}
	}

	rows := make([]DefenseRow, 0, len(defenseTable))
	for _, d := range defenseTable {
		var res proficiency.Resolution
		base := 0
		mod := 0
		label := "prof + ½ level"

		switch {
		case d.name == "armor":
			res = proficiency.Resolution{Tier: rules.Untrained}
			if equipped != nil {
				base = equipped.Base
				res = c.itemTier(equipped.ProficiencyCode(), equipped.Group)
			}
			label = "armor + prof + ½ level"
		default:
			res = c.tierFor(d.name)
			mod = eff.Mod(d.ability)
			if d.name == "dodge" && equipped != nil && equipped.DexCap != nil && mod > *equipped.DexCap {
				mod = *equipped.DexCap
			}
			label = "prof + ½ level + " + d.ability.Short()
		}

		system := base + res.Bonus + halfLevel(c.Ch.Level, res.Proficient) + mod
		value, derivation := c.resolve(override.DefenseKey{Name: d.name}, system, label, vars)
		rows = append(rows, DefenseRow{
			Name:       d.name,
			Tier:       res.Tier,
			Proficient: res.Proficient,
			Value:      value,
			Derivation: derivation,
		})
	}
	return rows
}

func (c *Calculator) attackRows(eff stats.Scores, vars map[string]float64) []AttackRow {
	var rows []AttackRow
	for _, id := range c.Ch.Weapons {
		w := c.Reg.Weapon(id)
		if w == nil {
			slog.Warn("equipped weapon not in rule data", "character", c.Ch.ID, "weapon", id)
			continue
		}
		res := c.itemTier(w.ProficiencyCode(), w.Group)
		hitAbility, damageAbility := governingAbilities(w, eff)

		system := res.Bonus + halfLevel(c.Ch.Level, res.Proficient) + eff.Mod(hitAbility)
		label := "prof + ½ level + " + hitAbility.Short()
		value, derivation := c.resolve(override.AttackKey{Weapon: w.ID}, system, label, vars)

		rows = append(rows, AttackRow{
			Weapon:        w.ID,
			Name:          w.Name,
			Tier:          res.Tier,
			Proficient:    res.Proficient,
			HitAbility:    hitAbility,
			HitBonus:      value,
			Derivation:    derivation,
			DamageAbility: damageAbility,
			DamageBonus:   eff.Mod(damageAbility),
			DamageDice:    w.Damage,
		})
	}
	return rows
}

// governingAbilities selects the hit and damage abilities from weapon
// traits. Ranged weapons always use Dexterity; finesse offers the higher
// of Strength/Dexterity for both; balanced offers the higher for hit only.
func governingAbilities(w *rules.Weapon, eff stats.Scores) (hit, damage stats.Ability) {
	higher := stats.Strength
	if eff.Mod(stats.Dexterity) > eff.Mod(stats.Strength) {
		higher = stats.Dexterity
	}
	switch {
	case w.Ranged:
		return stats.Dexterity, stats.Dexterity
	case w.Finesse:
		return higher, higher
	case w.Balanced:
		return higher, stats.Strength
	default:
		return stats.Strength, stats.Strength
	}
}

func (c *Calculator) skillRows(eff stats.Scores, vars map[string]float64) []SkillRow {
	var rows []SkillRow
	for _, s := range c.Reg.Skills() {
		lookup := s
		if s.Parent != "" {
			if parent := c.Reg.Skill(s.Parent); parent != nil {
				lookup = parent
			}
		}
		res := c.skillTier(lookup)
		half := halfLevel(c.Ch.Level, res.Proficient)

		row := SkillRow{
			Skill:      s.ID,
			Name:       s.Name,
			Tier:       res.Tier,
			Proficient: res.Proficient,
		}
		row.Primary = c.skillColumn(s.ID, 0, lookup.Primary, res.Bonus, half, eff, vars)
		if lookup.Secondary != "" {
			col := c.skillColumn(s.ID, 1, lookup.Secondary, res.Bonus, half, eff, vars)
			row.Secondary = &col
		}
		rows = append(rows, row)
	}
	return rows
}

func (c *Calculator) skillColumn(id rules.SkillID, column int, ability stats.Ability, bonus, half int, eff stats.Scores, vars map[string]float64) SkillColumn {
	system := bonus + half + eff.Mod(ability)
	label := "prof + ½ level + " + ability.Short()
	value, derivation := c.resolve(override.SkillKey{Skill: id, Column: column}, system, label, vars)
	return SkillColumn{Ability: ability, Value: value, Derivation: derivation}
}

func (c *Calculator) spellDCRows(eff stats.Scores, vars map[string]float64) []SpellDCRow {
	acct := &spellcasting.Accountant{Reg: c.Reg, Ch: c.Ch}
	var rows []SpellDCRow
	for _, origin := range acct.Origins() {
		ability := castingAbility(acct, origin)
		res := c.tierFor("spell:" + origin)

		system := 10 + res.Bonus + halfLevel(c.Ch.Level, res.Proficient) + eff.Mod(ability)
		label := "10 + prof + ½ level + " + ability.Short()
		value, derivation := c.resolve(override.SpellDCKey{Origin: origin}, system, label, vars)
		rows = append(rows, SpellDCRow{
			Origin:     origin,
			Ability:    ability,
			Value:      value,
			Derivation: derivation,
		})
	}
	return rows
}

// castingAbility picks the origin's casting ability from its first source
// declaring one. Sources are scanned in sorted order, so multi-source
// origins resolve deterministically.
func castingAbility(acct *spellcasting.Accountant, origin string) stats.Ability {
	for _, src := range acct.Sources() {
		if src.Origin == origin && src.CastingAbility != "" {
			return src.CastingAbility
		}
	}
	return stats.Intelligence
}

func (c *Calculator) spellBlocks() []SpellBlock {
	acct := &spellcasting.Accountant{Reg: c.Reg, Ch: c.Ch}
	var blocks []SpellBlock
	for _, origin := range acct.Origins() {
		caps := acct.CapsForDisplay(origin)
		block := SpellBlock{
			Origin:   origin,
			Caps:     caps,
			Cantrips: acct.CantripCount(origin),
			Known:    acct.KnownCount(origin),
		}
		for _, p := range c.Ch.Prepared {
			if p.Origin == origin {
				block.Prepared++
			}
		}
		for _, rank := range slotRanks(acct, origin) {
			block.Slots = append(block.Slots, SlotStatus{
				Rank:      rank,
				Total:     acct.TotalSlots(origin, rank),
				Remaining: acct.SlotsRemaining(origin, rank),
			})
		}
		block.OverCap = block.Cantrips > caps.Cantrips || block.Known > caps.Known ||
			(caps.Prepared > 0 && block.Prepared > caps.Prepared)
		blocks = append(blocks, block)
	}
	return blocks
}

// slotRanks collects the distinct ranks with at least one slot for an
// origin, ascending.
func slotRanks(acct *spellcasting.Accountant, origin string) []int {
	seen := make(map[int]bool)
	maxRank := 0
	for _, src := range acct.Sources() {
		if src.Origin != origin {
			continue
		}
		for _, row := range src.Slots {
			seen[row.Rank] = true
			if row.Rank > maxRank {
				maxRank = row.Rank
			}
		}
	}
	var ranks []int
	for rank := 1; rank <= maxRank; rank++ {
		if seen[rank] && acct.TotalSlots(origin, rank) > 0 {
			ranks = append(ranks, rank)
		}
	}
	return ranks
}

// tierFor resolves a proficiency code and applies any tier override.
func (c *Calculator) tierFor(code string) proficiency.Resolution {
	return c.applyTierOverride(code, proficiency.Resolve(c.Reg, c.Ch, code))
}

// itemTier resolves with item-over-group precedence; the override is
// addressed by the item code.
func (c *Calculator) itemTier(itemCode, groupCode string) proficiency.Resolution {
	return c.applyTierOverride(itemCode, proficiency.ResolveItem(c.Reg, c.Ch, itemCode, groupCode))
}

// applyTierOverride replaces a resolution when a prof_tier final override
// exists for the code. The stored value is a ladder rank, clamped.
func (c *Calculator) applyTierOverride(code string, res proficiency.Resolution) proficiency.Resolution {
	rank, ok := c.Ch.Overrides.Final(override.ProfTierKey{Code: code})
	if !ok {
		return res
	}
	if rank < 0 {
		rank = 0
	}
	if rank >= len(rules.TierLadder) {
		rank = len(rules.TierLadder) - 1
	}
	t := rules.TierLadder[rank]
	return proficiency.Resolution{
		Tier:       t.Name,
		Bonus:      t.Bonus,
		Proficient: t.Name != rules.Untrained,
	}
}

// skillTier resolves a skill's effective tier: the better of the
// character's own skill record and any class progression for the skill's
// code, then any tier override.
func (c *Calculator) skillTier(lookup *rules.Skill) proficiency.Resolution {
	res := proficiency.Resolve(c.Reg, c.Ch, lookup.ProficiencyCode())
	if name := c.Ch.SkillTier(lookup.ID); name != rules.Untrained {
		if t, ok := rules.TierByName(name); ok && t.Bonus > res.Bonus {
			res = proficiency.Resolution{Tier: t.Name, Bonus: t.Bonus, Proficient: true}
		}
	}
	return c.applyTierOverride(lookup.ProficiencyCode(), res)
}

// resolve routes a system value through the override pipeline. A formula
// failure on this display path keeps the system value and logs a warning.
func (c *Calculator) resolve(key override.Key, system int, label string, vars map[string]float64) (int, string) {
	layers := c.Ch.Overrides.LayersFor(key, system, label)
	result, err := override.Resolve(layers, vars)
	if err != nil {
		slog.Warn("override formula failed; displaying system value",
			"character", c.Ch.ID, "key", key.String(), "error", err)
		fallback, _ := override.Resolve(override.Layers{System: system, SystemLabel: label}, nil)
		return fallback.Value, fallback.Derivation
	}
	return result.Value, result.Derivation
}

// halfLevel is the proficiency-gated half-level bonus.
func halfLevel(level int, proficient bool) int {
	if !proficient {
		return 0
	}
	return (level + 1) / 2
}

// varsFor builds the formula context from resolved ability scores rather
// than raw ones, so overridden abilities flow into formula overrides.
func (c *Calculator) varsFor(eff stats.Scores) map[string]float64 {
	vars := eff.Variables()
	vars["level"] = float64(c.Ch.Level)
	for class, level := range c.Ch.ClassLevels {
		vars[string(class)+"_level"] = float64(level)
	}
	return vars
}
