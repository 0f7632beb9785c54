// Package engine is the facade callers use to operate on characters. It
// loads the aggregate from a Store, runs exactly one mutation at a time
// per character, persists the result, and emits an audit fact for every
// mutation that succeeds.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/derived"
	"github.com/ironlantern/charforge/internal/ledger"
	"github.com/ironlantern/charforge/internal/levelup"
	"github.com/ironlantern/charforge/internal/override"
	"github.com/ironlantern/charforge/internal/rules"
	"github.com/ironlantern/charforge/internal/spellcasting"
	"github.com/ironlantern/charforge/internal/stats"
)

// Actor identifies who requested an operation, for the audit trail.
type Actor struct {
	ID   string
	Name string
	Role string
}

// Store loads and saves character aggregates. Implementations must return
// a fresh aggregate from LoadCharacter; the engine mutates it in place and
// saves it back.
type Store interface {
	LoadCharacter(ctx context.Context, id string) (*character.Character, error)
	SaveCharacter(ctx context.Context, ch *character.Character) error
}

// Engine coordinates all character operations.
type Engine struct {
	Reg   *rules.Registry
	Store Store
	Audit AuditSink

	rollMu sync.Mutex
	roller *stats.Roller

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New builds an engine. The seed feeds the hit-point roller; sink may be
// nil, in which case audit facts are dropped.
func New(reg *rules.Registry, store Store, sink AuditSink, seed int64) *Engine {
	if sink == nil {
		sink = discardSink{}
	}
	return &Engine{
		Reg:    reg,
		Store:  store,
		Audit:  sink,
		roller: stats.NewRoller(seed),
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-character mutex, creating it on first use.
// Locks are never removed; the map grows with the set of characters
// touched over the process lifetime.
func (e *Engine) lockFor(id string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	mu, ok := e.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[id] = mu
	}
	return mu
}

// mutate runs fn against the loaded aggregate under the character's lock,
// saves on success, and records an audit fact. fn returns the detail line
// for the audit trail.
func (e *Engine) mutate(ctx context.Context, actor Actor, id, action string, fn func(ch *character.Character) (string, error)) error {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	ch, err := e.Store.LoadCharacter(ctx, id)
	if err != nil {
		return fmt.Errorf("load character %s: %w", id, err)
	}
	detail, err := fn(ch)
	if err != nil {
		return err
	}
	if err := e.Store.SaveCharacter(ctx, ch); err != nil {
		return fmt.Errorf("save character %s: %w", id, err)
	}
	e.Audit.Record(newFact(actor, id, action, detail))
	slog.Debug("character mutated", "character", id, "action", action, "actor", actor.Name)
	return nil
}

// ComputeSnapshot builds the derived-stat snapshot. Reads take no lock;
// the snapshot is computed against the loaded copy of the aggregate.
func (e *Engine) ComputeSnapshot(ctx context.Context, id string) (*derived.Snapshot, error) {
	ch, err := e.Store.LoadCharacter(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load character %s: %w", id, err)
	}
	calc := &derived.Calculator{Reg: e.Reg, Ch: ch}
	return calc.Snapshot(), nil
}

// LevelUp validates the picks against the rule data and, when they hold,
// commits the new level in one step.
func (e *Engine) LevelUp(ctx context.Context, actor Actor, id string, class rules.ClassID, picks levelup.Picks) (*levelup.Result, error) {
	var result *levelup.Result
	err := e.mutate(ctx, actor, id, "level_up", func(ch *character.Character) (string, error) {
		prop := levelup.NewProposal(e.Reg, ch, class, picks)
		if err := prop.Validate(); err != nil {
			return "", err
		}
		e.rollMu.Lock()
		res, err := prop.Commit(e.roller)
		e.rollMu.Unlock()
		if err != nil {
			return "", err
		}
		result = res
		return fmt.Sprintf("%s to class level %d (total %d)", class, res.ClassLevel, res.TotalLevel), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LevelDown removes the most recent level and unwinds everything it
// granted.
func (e *Engine) LevelDown(ctx context.Context, actor Actor, id string) (*levelup.DownResult, error) {
	var result *levelup.DownResult
	err := e.mutate(ctx, actor, id, "level_down", func(ch *character.Character) (string, error) {
		res, err := levelup.LevelDown(ch)
		if err != nil {
			return "", err
		}
		result = res
		return fmt.Sprintf("%s to total level %d", res.Class, res.TotalLevel), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetOverrideFormula installs or replaces a formula override on a key.
func (e *Engine) SetOverrideFormula(ctx context.Context, actor Actor, id string, key override.Key, expr, reason string) error {
	return e.mutate(ctx, actor, id, "set_override_formula", func(ch *character.Character) (string, error) {
		if err := ch.Overrides.SetFormula(key, expr, reason); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %q (%s)", key.String(), expr, reason), nil
	})
}

// SetOverrideFinal installs or replaces a final-value override on a key.
func (e *Engine) SetOverrideFinal(ctx context.Context, actor Actor, id string, key override.Key, value int, reason string) error {
	return e.mutate(ctx, actor, id, "set_override_final", func(ch *character.Character) (string, error) {
		if err := ch.Overrides.SetFinal(key, value, reason); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %d (%s)", key.String(), value, reason), nil
	})
}

// AddOverrideDelta appends a summed delta to a key and returns its ID.
func (e *Engine) AddOverrideDelta(ctx context.Context, actor Actor, id string, key override.Key, amount int, reason string) (string, error) {
	var deltaID string
	err := e.mutate(ctx, actor, id, "add_override_delta", func(ch *character.Character) (string, error) {
		did, err := ch.Overrides.AddDelta(key, amount, reason)
		if err != nil {
			return "", err
		}
		deltaID = did
		return fmt.Sprintf("%s %+d (%s)", key.String(), amount, reason), nil
	})
	return deltaID, err
}

// RemoveOverrideDelta removes a delta by ID.
func (e *Engine) RemoveOverrideDelta(ctx context.Context, actor Actor, id string, key override.Key, deltaID string) error {
	return e.mutate(ctx, actor, id, "remove_override_delta", func(ch *character.Character) (string, error) {
		if err := ch.Overrides.RemoveDelta(key, deltaID); err != nil {
			return "", err
		}
		return key.String() + " delta " + deltaID, nil
	})
}

// ClearOverrideFormula removes the formula override on a key.
func (e *Engine) ClearOverrideFormula(ctx context.Context, actor Actor, id string, key override.Key) error {
	return e.mutate(ctx, actor, id, "clear_override_formula", func(ch *character.Character) (string, error) {
		if err := ch.Overrides.ClearFormula(key); err != nil {
			return "", err
		}
		return key.String(), nil
	})
}

// ClearOverrideFinal removes the final-value override on a key.
func (e *Engine) ClearOverrideFinal(ctx context.Context, actor Actor, id string, key override.Key) error {
	return e.mutate(ctx, actor, id, "clear_override_final", func(ch *character.Character) (string, error) {
		if err := ch.Overrides.ClearFinal(key); err != nil {
			return "", err
		}
		return key.String(), nil
	})
}

// LearnSpell adds a spell to the character's known list for an origin.
func (e *Engine) LearnSpell(ctx context.Context, actor Actor, id string, spell rules.SpellID, origin string) error {
	return e.mutate(ctx, actor, id, "learn_spell", func(ch *character.Character) (string, error) {
		acct := &spellcasting.Accountant{Reg: e.Reg, Ch: ch}
		if err := acct.Learn(spell, origin); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s (%s)", spell, origin), nil
	})
}

// UnlearnSpell removes a known spell, along with any prepared copies.
func (e *Engine) UnlearnSpell(ctx context.Context, actor Actor, id string, spell rules.SpellID, origin string) error {
	return e.mutate(ctx, actor, id, "unlearn_spell", func(ch *character.Character) (string, error) {
		acct := &spellcasting.Accountant{Reg: e.Reg, Ch: ch}
		if err := acct.Unlearn(spell, origin); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s (%s)", spell, origin), nil
	})
}

// PrepareSpell prepares a known spell into a free slot.
func (e *Engine) PrepareSpell(ctx context.Context, actor Actor, id string, spell rules.SpellID, origin string) error {
	return e.mutate(ctx, actor, id, "prepare_spell", func(ch *character.Character) (string, error) {
		acct := &spellcasting.Accountant{Reg: e.Reg, Ch: ch}
		if err := acct.Prepare(spell, origin); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s (%s)", spell, origin), nil
	})
}

// UnprepareSpell releases a prepared spell's slot.
func (e *Engine) UnprepareSpell(ctx context.Context, actor Actor, id string, spell rules.SpellID, origin string) error {
	return e.mutate(ctx, actor, id, "unprepare_spell", func(ch *character.Character) (string, error) {
		acct := &spellcasting.Accountant{Reg: e.Reg, Ch: ch}
		if err := acct.Unprepare(spell, origin); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s (%s)", spell, origin), nil
	})
}

// UpgradeSkillTier spends skill points to raise a skill one tier.
func (e *Engine) UpgradeSkillTier(ctx context.Context, actor Actor, id string, skill rules.SkillID) error {
	return e.mutate(ctx, actor, id, "upgrade_skill", func(ch *character.Character) (string, error) {
		tx, err := ledger.UpgradeSkill(ch, skill)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s to %s (%d points)", skill, ch.SkillTier(skill), -tx.Amount), nil
	})
}

// RetrainSkillTier lowers a skill one tier and refunds the points the
// upgrade to the current tier cost.
func (e *Engine) RetrainSkillTier(ctx context.Context, actor Actor, id string, skill rules.SkillID) error {
	return e.mutate(ctx, actor, id, "retrain_skill", func(ch *character.Character) (string, error) {
		tx, err := ledger.RetrainSkill(ch, skill)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s to %s (%d points back)", skill, ch.SkillTier(skill), tx.Amount), nil
	})
}
