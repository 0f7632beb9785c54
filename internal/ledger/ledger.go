// Package ledger maintains the append-only skill-point transaction log and
// the tier upgrades it funds. The running balance never goes negative as a
// result of an engine-initiated spend.
package ledger

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/rules"
)

// InsufficientPointsError is returned when a spend exceeds the balance.
type InsufficientPointsError struct {
	Cost    int
	Balance int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient skill points: need %d, have %d", e.Cost, e.Balance)
}

// LevelGateError is returned when the character's total level is below the
// minimum required to reach the target tier.
type LevelGateError struct {
	Tier     rules.TierName
	Required int
	Level    int
}

func (e *LevelGateError) Error() string {
	return fmt.Sprintf("tier %s requires character level %d, have %d", e.Tier, e.Required, e.Level)
}

// ErrTierCapped is returned when upgrading past the top of the ladder or
// retraining below the bottom.
var ErrTierCapped = fmt.Errorf("no adjacent proficiency tier")

// Balance sums every transaction amount for the character.
func Balance(ch *character.Character) int {
	total := 0
	for _, tx := range ch.Transactions {
		total += tx.Amount
	}
	return total
}

// Award appends a level-award transaction (a class's per-level grant).
func Award(ch *character.Character, class rules.ClassID, amount, atLevel int) character.SkillPointTransaction {
	tx := character.SkillPointTransaction{
		ID:      uuid.NewString(),
		Amount:  amount,
		Source:  character.SourceLevelAward,
		Reason:  fmt.Sprintf("level %d in %s", atLevel, class),
		AtLevel: atLevel,
		Class:   class,
	}
	ch.Transactions = append(ch.Transactions, tx)
	return tx
}

// UpgradeSkill raises a skill one tier, spending points. It fails with
// LevelGateError if the character's total level cannot reach the target
// tier, and with InsufficientPointsError if the balance cannot cover the
// cost. No state changes on failure.
func UpgradeSkill(ch *character.Character, skill rules.SkillID) (character.SkillPointTransaction, error) {
	current := ch.SkillTier(skill)
	target, ok := rules.NextTier(current)
	if !ok {
		return character.SkillPointTransaction{}, ErrTierCapped
	}
	if ch.Level < target.MinLevel {
		return character.SkillPointTransaction{}, &LevelGateError{
			Tier:     target.Name,
			Required: target.MinLevel,
			Level:    ch.Level,
		}
	}
	cost, ok := rules.UpgradeCost(current)
	if !ok {
		return character.SkillPointTransaction{}, ErrTierCapped
	}
	if balance := Balance(ch); balance < cost {
		return character.SkillPointTransaction{}, &InsufficientPointsError{Cost: cost, Balance: balance}
	}

	tx := character.SkillPointTransaction{
		ID:      uuid.NewString(),
		Amount:  -cost,
		Source:  character.SourceSpend,
		Reason:  fmt.Sprintf("upgrade %s to %s", skill, target.Name),
		AtLevel: ch.Level,
	}
	ch.Transactions = append(ch.Transactions, tx)
	ch.SetSkillTier(skill, target.Name)
	return tx, nil
}

// RetrainSkill lowers a skill one tier, refunding the cost of the rung
// being undone. Returning to Untrained deletes the proficiency record.
func RetrainSkill(ch *character.Character, skill rules.SkillID) (character.SkillPointTransaction, error) {
	current := ch.SkillTier(skill)
	below, ok := rules.PrevTier(current)
	if !ok {
		return character.SkillPointTransaction{}, ErrTierCapped
	}
	// The rung being undone was bought from the tier below.
	refund, ok := rules.UpgradeCost(below.Name)
	if !ok {
		return character.SkillPointTransaction{}, ErrTierCapped
	}

	tx := character.SkillPointTransaction{
		ID:      uuid.NewString(),
		Amount:  refund,
		Source:  character.SourceRefund,
		Reason:  fmt.Sprintf("retrain %s to %s", skill, below.Name),
		AtLevel: ch.Level,
	}
	ch.Transactions = append(ch.Transactions, tx)
	ch.SetSkillTier(skill, below.Name)
	return tx, nil
}

// PruneAboveLevel removes transactions recorded above the given total level
// (the level-down path) and returns how many were removed.
func PruneAboveLevel(ch *character.Character, level int) int {
	kept := ch.Transactions[:0]
	removed := 0
	for _, tx := range ch.Transactions {
		if tx.AtLevel > level {
			removed++
			continue
		}
		kept = append(kept, tx)
	}
	ch.Transactions = kept
	return removed
}

// Correction records one self-healing downgrade applied by CorrectNegative.
type Correction struct {
	Skill  rules.SkillID
	From   rules.TierName
	To     rules.TierName
	Refund int
}

// CorrectNegative greedily downgrades the highest-bonus skills until the
// balance is non-negative or every skill is Untrained. It is invoked only
// from the level-down path; each downgrade is returned so the caller can
// audit it. This is deliberate self-healing, not an error path.
func CorrectNegative(ch *character.Character) []Correction {
	var corrections []Correction
	for Balance(ch) < 0 {
		skill, ok := highestTierSkill(ch)
		if !ok {
			break // all skills untrained; nothing left to refund
		}
		from := ch.SkillTier(skill)
		tx, err := RetrainSkill(ch, skill)
		if err != nil {
			break
		}
		corrections = append(corrections, Correction{
			Skill:  skill,
			From:   from,
			To:     ch.SkillTier(skill),
			Refund: tx.Amount,
		})
	}
	return corrections
}

// highestTierSkill picks the skill with the highest tier bonus, breaking
// ties by ID so correction order is deterministic.
func highestTierSkill(ch *character.Character) (rules.SkillID, bool) {
	type candidate struct {
		skill rules.SkillID
		bonus int
	}
	var candidates []candidate
	for skill, tierName := range ch.SkillTiers {
		tier, ok := rules.TierByName(tierName)
		if !ok || tier.Bonus <= 0 {
			continue
		}
		candidates = append(candidates, candidate{skill: skill, bonus: tier.Bonus})
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].bonus != candidates[j].bonus {
			return candidates[i].bonus > candidates[j].bonus
		}
		return candidates[i].skill < candidates[j].skill
	})
	return candidates[0].skill, true
}
