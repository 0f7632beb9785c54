// Command validate-rules loads a rule data directory and reports whether
// it cross-validates, so authors catch malformed formulas and dangling
// references before the engine ever sees them.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ironlantern/charforge/internal/rules"
)

func main() {
	dir := flag.String("dir", "rules", "Path to rule data directory")
	flag.Parse()

	reg, err := rules.LoadDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rule data in %s is invalid:\n  %v\n", *dir, err)
		os.Exit(1)
	}

	fmt.Printf("Rule data in %s is valid.\n", *dir)
	fmt.Printf("  classes:   %d\n", len(reg.Classes()))
	fmt.Printf("  features:  %d\n", len(reg.Features()))
	fmt.Printf("  groups:    %d\n", len(reg.Groups()))
	fmt.Printf("  skills:    %d\n", len(reg.Skills()))
	fmt.Printf("  spells:    %d\n", len(reg.Spells()))
	fmt.Printf("  weapons:   %d\n", len(reg.Weapons()))
	fmt.Printf("  armor:     %d\n", len(reg.ArmorPieces()))
}
