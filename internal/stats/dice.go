package stats

import (
	"math/rand"
	"regexp"
	"strconv"
)

// Roller rolls dice from an explicit random source. Randomness is confined
// to this type so that formula evaluation elsewhere stays deterministic;
// only player-facing rolls (hit-point gains) go through a Roller.
type Roller struct {
	rng *rand.Rand
}

// NewRoller creates a Roller seeded from the given seed. The same seed
// reproduces the same sequence of rolls.
func NewRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// Die rolls a single die with the given number of sides (1..sides).
func (r *Roller) Die(sides int) int {
	if sides <= 0 {
		return 0
	}
	return r.rng.Intn(sides) + 1
}

// Roll rolls n dice with the specified number of sides and returns the total.
func (r *Roller) Roll(n, sides int) int {
	total := 0
	for i := 0; i < n; i++ {
		total += r.Die(sides)
	}
	return total
}

// RollWithBonus rolls n dice with the specified number of sides and adds a bonus.
func (r *Roller) RollWithBonus(n, sides, bonus int) int {
	return r.Roll(n, sides) + bonus
}

// diceNotationRegex matches dice notation like "1d6", "2d4+1", "1d8-2"
var diceNotationRegex = regexp.MustCompile(`^(\d+)d(\d+)([+-]\d+)?$`)

// ParseDice parses dice notation and returns the roll result.
// Supports formats: "1d6", "2d4", "1d8+2", "2d6-1".
// Returns 0 if the notation is invalid.
func (r *Roller) ParseDice(notation string) int {
	if notation == "" {
		return 0
	}

	matches := diceNotationRegex.FindStringSubmatch(notation)
	if matches == nil {
		return 0
	}

	count, _ := strconv.Atoi(matches[1])
	sides, _ := strconv.Atoi(matches[2])

	bonus := 0
	if matches[3] != "" {
		bonus, _ = strconv.Atoi(matches[3])
	}

	return r.RollWithBonus(count, sides, bonus)
}
