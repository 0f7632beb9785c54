// Package spellcasting accounts for spell entitlements: cantrip/known/
// prepared caps and slot counts summed across every spellcasting source a
// character owns, and the learn/prepare operations those caps gate.
package spellcasting

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/formula"
	"github.com/ironlantern/charforge/internal/override"
	"github.com/ironlantern/charforge/internal/rules"
)

// CapExceededError is returned when learning or preparing would exceed a
// summed cap for an origin.
type CapExceededError struct {
	Origin string
	Kind   string // "cantrips", "known", "prepared", "slots"
	Cap    int
	Have   int
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("%s cap exceeded for %s origin: %d of %d used", e.Kind, e.Origin, e.Have, e.Cap)
}

// ErrUnknownSpell is returned when a spell reference is not in rule data.
var ErrUnknownSpell = errors.New("unknown spell")

// ErrNotKnown is returned when preparing a spell that is not known.
var ErrNotKnown = errors.New("spell is not known")

// ErrNotFound is returned when unlearning/unpreparing a missing entry.
var ErrNotFound = errors.New("spell entry not found")

// Accountant computes entitlements for one character against rule data.
// Read operations are safe to run concurrently across characters; the
// mutating operations (Learn, Prepare, ...) assume the engine's
// single-writer lock is held.
type Accountant struct {
	Reg *rules.Registry
	Ch  *character.Character
}

// Caps is the summed entitlement for one magic origin.
type Caps struct {
	Origin   string
	Cantrips int
	Known    int
	Prepared int
}

// Sources returns the spell-table features the character owns, sorted by
// feature ID for deterministic summation order.
func (a *Accountant) Sources() []*rules.Feature {
	var out []*rules.Feature
	seen := make(map[rules.FeatureID]bool)
	for _, owned := range a.Ch.Features {
		feat := a.Reg.Feature(owned.Feature)
		if feat == nil || feat.Kind != rules.KindSpellTable || seen[feat.ID] {
			continue
		}
		seen[feat.ID] = true
		out = append(out, feat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Origins returns the magic origins the character has at least one source
// for, sorted.
func (a *Accountant) Origins() []string {
	seen := make(map[string]bool)
	for _, src := range a.Sources() {
		seen[src.Origin] = true
	}
	out := make([]string, 0, len(seen))
	for origin := range seen {
		out = append(out, origin)
	}
	sort.Strings(out)
	return out
}

// CapsFor sums the caps of every source sharing the origin. Multiple
// sources stack additively; the engine never takes the maximum. Formula
// failures are hard errors here because caps gate learn/prepare decisions.
func (a *Accountant) CapsFor(origin string) (Caps, error) {
	caps := Caps{Origin: origin}
	vars := a.Ch.FormulaVars()
	for _, src := range a.Sources() {
		if src.Origin != origin {
			continue
		}
		cantrips, err := a.capOf(src, override.CapCantrips, src.CantripFormula, vars)
		if err != nil {
			return Caps{}, err
		}
		known, err := a.capOf(src, override.CapKnown, src.KnownFormula, vars)
		if err != nil {
			return Caps{}, err
		}
		prepared, err := a.capOf(src, override.CapPrepared, src.PreparedFormula, vars)
		if err != nil {
			return Caps{}, err
		}
		caps.Cantrips += cantrips
		caps.Known += known
		caps.Prepared += prepared
	}
	return caps, nil
}

// CapsForDisplay is CapsFor with the lenient display fallback: a failing
// formula contributes zero and logs a warning instead of failing the
// snapshot. Gating decisions never use this path.
func (a *Accountant) CapsForDisplay(origin string) Caps {
	caps, err := a.CapsFor(origin)
	if err != nil {
		slog.Warn("spell cap formula failed; displaying zero",
			"character", a.Ch.ID, "origin", origin, "error", err)
		return Caps{Origin: origin}
	}
	return caps
}

// capOf evaluates one cap formula and applies its overrides.
func (a *Accountant) capOf(src *rules.Feature, kind override.CapKind, expr string, vars map[string]float64) (int, error) {
	base := 0
	if expr != "" {
		v, err := formula.Eval(expr, vars)
		if err != nil {
			return 0, fmt.Errorf("feature %s %s cap: %w", src.ID, kind, err)
		}
		base = v
	}
	key := override.SpellCapKey{Feature: src.ID, Kind: kind}
	layers := a.Ch.Overrides.LayersFor(key, base, "")
	result, err := override.Resolve(layers, vars)
	if err != nil {
		return 0, fmt.Errorf("feature %s %s cap override: %w", src.ID, kind, err)
	}
	return result.Value, nil
}

// TotalSlots sums the slot counts at a rank across every source of the
// origin. Within one source, slot rows are absolute: the row with the
// highest unlocked level wins; across sources, counts are summed, never
// maxed.
func (a *Accountant) TotalSlots(origin string, rank int) int {
	total := 0
	for _, src := range a.Sources() {
		if src.Origin != origin {
			continue
		}
		classLevel := a.Ch.ClassLevel(src.Class)
		count := 0
		bestLevel := -1
		for _, row := range src.Slots {
			if row.Rank != rank || row.Level > classLevel {
				continue
			}
			if row.Level > bestLevel {
				bestLevel = row.Level
				count = row.Count
			}
		}
		total += count
	}
	return total
}

// SlotsRemaining returns available slots at a rank: total slots minus
// prepared spells, unless overridden to represent expenditure between
// rests. Clearing the override resets to the computed value.
func (a *Accountant) SlotsRemaining(origin string, rank int) int {
	system := a.TotalSlots(origin, rank) - a.Ch.PreparedCount(origin, rank)
	if system < 0 {
		system = 0
	}
	key := override.SlotsKey{Origin: origin, Rank: rank}
	if v, ok := a.Ch.Overrides.Final(key); ok {
		return v
	}
	return system
}

// CantripCount counts known cantrips for an origin.
func (a *Accountant) CantripCount(origin string) int {
	count := 0
	for _, k := range a.Ch.Known {
		if k.Origin == origin && k.Rank == 0 {
			count++
		}
	}
	return count
}

// KnownCount counts known leveled (non-cantrip) spells for an origin.
func (a *Accountant) KnownCount(origin string) int {
	count := 0
	for _, k := range a.Ch.Known {
		if k.Origin == origin && k.Rank > 0 {
			count++
		}
	}
	return count
}

// Learn adds a spell to the known list, failing with CapExceededError when
// the summed cap for its origin is already reached. State is unchanged on
// failure. Caps shrinking later can leave an over-cap state; that state is
// tolerated, not auto-corrected.
func (a *Accountant) Learn(spellID rules.SpellID, origin string) error {
	spell := a.Reg.Spell(spellID)
	if spell == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSpell, spellID)
	}
	if a.Ch.KnowsSpell(spellID, origin) {
		return fmt.Errorf("spell %s already known for %s origin", spellID, origin)
	}
	caps, err := a.CapsFor(origin)
	if err != nil {
		return err
	}
	if spell.IsCantrip() {
		if have := a.CantripCount(origin); have >= caps.Cantrips {
			return &CapExceededError{Origin: origin, Kind: "cantrips", Cap: caps.Cantrips, Have: have}
		}
	} else {
		if have := a.KnownCount(origin); have >= caps.Known {
			return &CapExceededError{Origin: origin, Kind: "known", Cap: caps.Known, Have: have}
		}
	}
	a.Ch.Known = append(a.Ch.Known, character.KnownSpell{
		Spell:  spellID,
		Origin: origin,
		Rank:   spell.Rank,
	})
	return nil
}

// Unlearn removes a known spell. It always succeeds if the entry exists,
// and also removes any prepared entries for the spell since known is a
// prerequisite for prepared.
func (a *Accountant) Unlearn(spellID rules.SpellID, origin string) error {
	found := false
	kept := a.Ch.Known[:0]
	for _, k := range a.Ch.Known {
		if k.Spell == spellID && k.Origin == origin {
			found = true
			continue
		}
		kept = append(kept, k)
	}
	a.Ch.Known = kept
	if !found {
		return fmt.Errorf("%w: %s (%s)", ErrNotFound, spellID, origin)
	}

	keptPrepared := a.Ch.Prepared[:0]
	for _, p := range a.Ch.Prepared {
		if p.Spell == spellID && p.Origin == origin {
			continue
		}
		keptPrepared = append(keptPrepared, p)
	}
	a.Ch.Prepared = keptPrepared
	return nil
}

// Prepare consumes one slot at the spell's rank. It fails if the spell is
// not known, the prepared cap is reached, or no slots remain at the rank.
func (a *Accountant) Prepare(spellID rules.SpellID, origin string) error {
	spell := a.Reg.Spell(spellID)
	if spell == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSpell, spellID)
	}
	if !a.Ch.KnowsSpell(spellID, origin) {
		return fmt.Errorf("%w: %s (%s)", ErrNotKnown, spellID, origin)
	}
	caps, err := a.CapsFor(origin)
	if err != nil {
		return err
	}
	if caps.Prepared > 0 {
		prepared := len(a.preparedFor(origin))
		if prepared >= caps.Prepared {
			return &CapExceededError{Origin: origin, Kind: "prepared", Cap: caps.Prepared, Have: prepared}
		}
	}
	if remaining := a.SlotsRemaining(origin, spell.Rank); remaining <= 0 {
		return &CapExceededError{Origin: origin, Kind: "slots", Cap: a.TotalSlots(origin, spell.Rank), Have: a.Ch.PreparedCount(origin, spell.Rank)}
	}
	a.Ch.Prepared = append(a.Ch.Prepared, character.PreparedSpell{
		Spell:  spellID,
		Origin: origin,
		Rank:   spell.Rank,
	})
	return nil
}

// Unprepare releases a prepared entry. Always succeeds if it exists.
func (a *Accountant) Unprepare(spellID rules.SpellID, origin string) error {
	for i, p := range a.Ch.Prepared {
		if p.Spell == spellID && p.Origin == origin {
			a.Ch.Prepared = append(a.Ch.Prepared[:i], a.Ch.Prepared[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s (%s)", ErrNotFound, spellID, origin)
}

func (a *Accountant) preparedFor(origin string) []character.PreparedSpell {
	var out []character.PreparedSpell
	for _, p := range a.Ch.Prepared {
		if p.Origin == origin {
			out = append(out, p)
		}
	}
	return out
}
