package main

import (
	"fmt"
	"strings"

	"github.com/ironlantern/charforge/internal/derived"
)

// printSnapshot renders the character sheet the way a GM would read it.
func printSnapshot(snap *derived.Snapshot) {
	fmt.Printf("%s  (level %d, %d HP)\n", snap.Name, snap.Level, snap.HPMax)

	fmt.Println("\nAbilities")
	for _, row := range snap.Abilities {
		fmt.Printf("  %-14s %3d  (%+d)\n", row.Ability, row.Score, row.Modifier)
	}

	fmt.Println("\nDefenses")
	for _, row := range snap.Defenses {
		fmt.Printf("  %-14s %3d  [%s]  %s\n", row.Name, row.Value, row.Tier, row.Derivation)
	}

	if len(snap.Attacks) > 0 {
		fmt.Println("\nAttacks")
		for _, row := range snap.Attacks {
			fmt.Printf("  %-14s hit %+d (%s), damage %s %+d (%s)  [%s]\n",
				row.Name, row.HitBonus, row.HitAbility.Short(),
				row.DamageDice, row.DamageBonus, row.DamageAbility.Short(), row.Tier)
		}
	}

	fmt.Println("\nSkills")
	for _, row := range snap.Skills {
		cols := make([]string, 0, 2)
		cols = append(cols, fmt.Sprintf("%s %+d", row.Primary.Ability.Short(), row.Primary.Value))
		if row.Secondary != nil {
			cols = append(cols, fmt.Sprintf("%s %+d", row.Secondary.Ability.Short(), row.Secondary.Value))
		}
		fmt.Printf("  %-14s %-22s [%s]\n", row.Name, strings.Join(cols, " / "), row.Tier)
	}

	for _, dc := range snap.SpellDCs {
		fmt.Printf("\nSpell DC (%s): %d\n", dc.Origin, dc.Value)
	}
	for _, block := range snap.Spellcasting {
		fmt.Printf("\nSpellcasting: %s\n", block.Origin)
		fmt.Printf("  cantrips %d/%d, known %d/%d", block.Cantrips, block.Caps.Cantrips, block.Known, block.Caps.Known)
		if block.OverCap {
			fmt.Print("  (over cap)")
		}
		fmt.Println()
		for _, slot := range block.Slots {
			fmt.Printf("  rank %d slots: %d/%d\n", slot.Rank, slot.Remaining, slot.Total)
		}
	}
}
