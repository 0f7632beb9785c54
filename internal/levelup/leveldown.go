package levelup

import (
	"errors"
	"log/slog"

	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/ledger"
	"github.com/ironlantern/charforge/internal/rules"
)

// ErrNoLevels is returned when leveling down a level-zero character.
var ErrNoLevels = errors.New("character has no levels to remove")

// DownResult reports what a level-down removed and corrected.
type DownResult struct {
	Class              rules.ClassID
	ClassLevel         int
	TotalLevel         int
	HPLost             int
	FeaturesRemoved    int
	TransactionsPruned int
	Corrections        []ledger.Correction
}

// LevelDown undoes the character's most recent level: owned features and
// skill-point transactions recorded at the removed level go away, the
// class-progress row decrements (and disappears at zero), and a negative
// ledger balance is healed by greedily downgrading the highest-tier skills.
// At total level zero every skill proficiency is cleared outright.
func LevelDown(ch *character.Character) (*DownResult, error) {
	if ch.Level < 1 || len(ch.History) == 0 {
		return nil, ErrNoLevels
	}
	removed := ch.Level
	class := ch.History[len(ch.History)-1]
	res := &DownResult{
		Class:      class,
		ClassLevel: ch.ClassLevel(class) - 1,
		TotalLevel: removed - 1,
	}

	res.FeaturesRemoved = ch.RemoveFeaturesAtLevel(removed)
	ch.SetClassLevel(class, ch.ClassLevel(class)-1)
	ch.Level = removed - 1
	ch.History = ch.History[:len(ch.History)-1]

	if gain, ok := ch.HPGains[removed]; ok {
		ch.HPMax -= gain
		delete(ch.HPGains, removed)
		res.HPLost = gain
	}

	res.TransactionsPruned = ledger.PruneAboveLevel(ch, ch.Level)
	if ledger.Balance(ch) < 0 {
		res.Corrections = ledger.CorrectNegative(ch)
		for _, c := range res.Corrections {
			slog.Info("ledger self-heal downgraded skill",
				"character", ch.ID, "skill", c.Skill,
				"from", c.From, "to", c.To, "refund", c.Refund)
		}
	}

	// A subclass choice whose features are all gone is un-chosen.
	for group, subclass := range ch.Subclasses {
		if len(ch.FeaturesOfSubclass(subclass)) == 0 {
			delete(ch.Subclasses, group)
		}
	}

	if ch.Level == 0 {
		ch.SkillTiers = make(map[rules.SkillID]rules.TierName)
	}

	slog.Info("level-down committed",
		"character", ch.ID, "class", class,
		"total_level", ch.Level, "features_removed", res.FeaturesRemoved,
		"transactions_pruned", res.TransactionsPruned,
		"skills_corrected", len(res.Corrections))
	return res, nil
}
