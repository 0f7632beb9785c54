// Package levelup advances a character one level in a chosen class through
// a small state machine: picks are proposed, validated in full, and then
// committed atomically, or rejected with no mutation at all. The reverse
// path undoes the most recent level.
package levelup

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/formula"
	"github.com/ironlantern/charforge/internal/ledger"
	"github.com/ironlantern/charforge/internal/rules"
	"github.com/ironlantern/charforge/internal/stats"
)

// State is the proposal's position in the machine. Proposed moves to
// Validated or Rejected; Validated moves to Committed. Committed and
// Rejected are terminal.
type State string

const (
	StateProposed  State = "proposed"
	StateValidated State = "validated"
	StateCommitted State = "committed"
	StateRejected  State = "rejected"
)

// ErrNotProposed is returned when Validate runs on a decided proposal.
var ErrNotProposed = errors.New("proposal already validated or decided")

// ErrNotValidated is returned when Commit runs before a passing Validate.
var ErrNotValidated = errors.New("proposal is not validated")

// ValidationError is a business-rule violation found before commit.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Detail }

// ConsistencyError marks a pick that would violate a character invariant,
// such as granting an already-owned feature.
type ConsistencyError struct {
	Detail string
}

func (e *ConsistencyError) Error() string { return "consistency violation: " + e.Detail }

// IncreaseMode selects how an ability-score increase distributes points.
type IncreaseMode string

const (
	// IncreaseBalanced grants +1 to each of two distinct abilities.
	IncreaseBalanced IncreaseMode = "balanced"
	// IncreaseFocused grants +2 to the first ability and +1 to an
	// optional second.
	IncreaseFocused IncreaseMode = "focused"
)

// AbilityIncrease is the player's ability-score-increase selection.
type AbilityIncrease struct {
	Mode      IncreaseMode
	Abilities []stats.Ability
}

// SubclassPick carries the player's selections for one subclass group:
// a subclass choice (linear groups, first pick only) and/or a set of
// feature picks (modular groups).
type SubclassPick struct {
	Subclass rules.SubclassID
	Features []rules.FeatureID
}

// Picks is everything the player submits alongside a level-up.
type Picks struct {
	AbilityIncrease *AbilityIncrease
	FeatPicks       []rules.FeatureID
	SkillFeatPicks  []rules.FeatureID
	SubclassPicks   map[rules.GroupID]SubclassPick

	// StartingSkills is only valid on the first level in the class.
	StartingSkills []rules.SkillID
}

// Result reports what a committed level-up changed.
type Result struct {
	Class          rules.ClassID
	ClassLevel     int
	TotalLevel     int
	HPGain         int
	Granted        []rules.FeatureID
	SkillPoints    int
	StartingSkills []rules.SkillID
}

// subclassGrant is one planned subclass feature grant.
type subclassGrant struct {
	feature  rules.FeatureID
	subclass rules.SubclassID
}

// plan is the validated outcome, computed entirely before any mutation.
type plan struct {
	newClassLevel   int
	newTotal        int
	autoFeatures    []*rules.Feature
	subclassChoices map[rules.GroupID]rules.SubclassID
	subclassGrants  []subclassGrant
	featGrants      []rules.FeatureID
	skillFeatGrants []rules.FeatureID
	abilityDeltas   map[stats.Ability]int
	startingSkills  []rules.SkillID
	skillPoints     int
}

// Proposal is one level-up attempt moving through the state machine.
type Proposal struct {
	Reg   *rules.Registry
	Ch    *character.Character
	Class rules.ClassID
	Picks Picks

	state State
	plan  *plan
}

// NewProposal starts a proposal in the Proposed state.
func NewProposal(reg *rules.Registry, ch *character.Character, class rules.ClassID, picks Picks) *Proposal {
	return &Proposal{Reg: reg, Ch: ch, Class: class, Picks: picks, state: StateProposed}
}

// State returns the proposal's current state.
func (p *Proposal) State() State { return p.state }

// Validate checks every pick against the rules. On failure the proposal is
// Rejected and the character is untouched; on success it is Validated and
// carries a complete mutation plan.
func (p *Proposal) Validate() error {
	if p.state != StateProposed {
		return ErrNotProposed
	}
	pl, err := p.buildPlan()
	if err != nil {
		p.state = StateRejected
		return err
	}
	p.plan = pl
	p.state = StateValidated
	return nil
}

func (p *Proposal) buildPlan() (*plan, error) {
	class := p.Reg.Class(p.Class)
	if class == nil {
		return nil, &ValidationError{Detail: fmt.Sprintf("unknown class %q", p.Class)}
	}

	pl := &plan{
		newClassLevel:   p.Ch.ClassLevel(p.Class) + 1,
		newTotal:        p.Ch.Level + 1,
		subclassChoices: make(map[rules.GroupID]rules.SubclassID),
		abilityDeltas:   make(map[stats.Ability]int),
		skillPoints:     class.SkillPointsPerLevel,
	}
	pl.autoFeatures = p.Reg.FeaturesAtLevel(p.Class, pl.newClassLevel)

	if err := p.validateAbilityIncrease(pl); err != nil {
		return nil, err
	}
	if err := p.validateFeatPicks(pl); err != nil {
		return nil, err
	}
	if err := p.validateSkillFeatPicks(class, pl); err != nil {
		return nil, err
	}
	if err := p.validateSubclassPicks(pl); err != nil {
		return nil, err
	}
	if err := p.validateStartingSkills(class, pl); err != nil {
		return nil, err
	}
	return pl, nil
}

func (p *Proposal) validateAbilityIncrease(pl *plan) error {
	granted := false
	for _, f := range pl.autoFeatures {
		if f.Kind == rules.KindAbilityIncrease {
			granted = true
		}
	}
	pick := p.Picks.AbilityIncrease
	if !granted {
		if pick != nil {
			return &ValidationError{Detail: "no ability-score increase is granted at this level"}
		}
		return nil
	}
	if pick == nil {
		return &ValidationError{Detail: "ability-score increase selection is required"}
	}
	for _, a := range pick.Abilities {
		if !a.IsValid() {
			return &ValidationError{Detail: fmt.Sprintf("invalid ability name %q", a)}
		}
	}
	if len(pick.Abilities) == 2 && pick.Abilities[0] == pick.Abilities[1] {
		return &ValidationError{Detail: "ability-score increase targets must be distinct"}
	}
	switch pick.Mode {
	case IncreaseBalanced:
		if len(pick.Abilities) != 2 {
			return &ValidationError{Detail: "balanced increase requires exactly two abilities"}
		}
		pl.abilityDeltas[pick.Abilities[0]] += 1
		pl.abilityDeltas[pick.Abilities[1]] += 1
	case IncreaseFocused:
		if len(pick.Abilities) < 1 || len(pick.Abilities) > 2 {
			return &ValidationError{Detail: "focused increase requires one or two abilities"}
		}
		pl.abilityDeltas[pick.Abilities[0]] += 2
		if len(pick.Abilities) == 2 {
			pl.abilityDeltas[pick.Abilities[1]] += 1
		}
	default:
		return &ValidationError{Detail: fmt.Sprintf("unknown increase mode %q", pick.Mode)}
	}
	return nil
}

func (p *Proposal) validateFeatPicks(pl *plan) error {
	seen := make(map[rules.FeatureID]bool)
	for _, id := range p.Picks.FeatPicks {
		if seen[id] {
			return &ValidationError{Detail: fmt.Sprintf("duplicate feat pick %q", id)}
		}
		seen[id] = true
		f := p.Reg.Feature(id)
		if f == nil {
			return &ValidationError{Detail: fmt.Sprintf("unknown feat %q", id)}
		}
		if f.Kind != rules.KindFeat {
			return &ValidationError{Detail: fmt.Sprintf("%q is not a feat", id)}
		}
		if f.Level != 0 {
			return &ValidationError{Detail: fmt.Sprintf("feat %q is level-attached, not pickable", id)}
		}
		if f.Class != "" && f.Class != p.Class {
			return &ValidationError{Detail: fmt.Sprintf("feat %q belongs to class %q", id, f.Class)}
		}
		if f.MinLevel > pl.newTotal || f.LevelRequired > pl.newTotal {
			return &ValidationError{Detail: fmt.Sprintf("feat %q requires a higher level", id)}
		}
		if p.Ch.OwnsFeature(id) {
			return &ConsistencyError{Detail: fmt.Sprintf("feat %q is already owned", id)}
		}
		pl.featGrants = append(pl.featGrants, id)
	}
	return nil
}

func (p *Proposal) validateSkillFeatPicks(class *rules.Class, pl *plan) error {
	required := class.SkillFeatPicksAt(pl.newClassLevel)
	if required == 0 {
		// The field is ignored when no picks are configured.
		return nil
	}
	available := make(map[rules.FeatureID]bool)
	count := 0
	for _, f := range p.Reg.Feats(rules.KindSkillFeat, p.Class, pl.newTotal) {
		if p.Ch.OwnsFeature(f.ID) {
			continue
		}
		available[f.ID] = true
		count++
	}
	// When fewer options exist than the configured count, the requirement
	// relaxes to as many as available.
	if count < required {
		required = count
	}
	if len(p.Picks.SkillFeatPicks) != required {
		return &ValidationError{Detail: fmt.Sprintf("skill feat picks: got %d, need %d", len(p.Picks.SkillFeatPicks), required)}
	}
	seen := make(map[rules.FeatureID]bool)
	for _, id := range p.Picks.SkillFeatPicks {
		if seen[id] {
			return &ValidationError{Detail: fmt.Sprintf("duplicate skill feat pick %q", id)}
		}
		seen[id] = true
		if !available[id] {
			return &ValidationError{Detail: fmt.Sprintf("skill feat %q is not available", id)}
		}
		pl.skillFeatGrants = append(pl.skillFeatGrants, id)
	}
	return nil
}

func (p *Proposal) validateSubclassPicks(pl *plan) error {
	for _, group := range p.Reg.GroupsForClass(p.Class) {
		pick := p.Picks.SubclassPicks[group.ID]
		triggers := p.Reg.GainTriggersAtLevel(p.Class, pl.newClassLevel, group.ID)

		if group.SystemType == rules.SystemLinear {
			if err := p.validateLinearGroup(pl, group, pick, triggers); err != nil {
				return err
			}
			continue
		}
		if err := p.validateModularGroup(pl, group, pick, triggers); err != nil {
			return err
		}
	}
	for id := range p.Picks.SubclassPicks {
		if g := p.Reg.Group(id); g == nil || g.Class != p.Class {
			return &ValidationError{Detail: fmt.Sprintf("subclass group %q does not belong to class %q", id, p.Class)}
		}
	}
	return nil
}

func (p *Proposal) validateLinearGroup(pl *plan, group *rules.SubclassGroup, pick SubclassPick, triggers []*rules.Feature) error {
	if len(pick.Features) > 0 {
		return &ValidationError{Detail: fmt.Sprintf("group %q is linear and takes no feature picks", group.ID)}
	}
	chosen, has := p.Ch.Subclasses[group.ID]
	if has && pick.Subclass != "" && pick.Subclass != chosen {
		return &ConsistencyError{Detail: fmt.Sprintf("subclass for group %q is already %q", group.ID, chosen)}
	}
	if !has {
		if len(triggers) == 0 {
			if pick.Subclass != "" {
				return &ValidationError{Detail: fmt.Sprintf("group %q grants no subclass choice at this level", group.ID)}
			}
			return nil
		}
		if pick.Subclass == "" {
			return &ValidationError{Detail: fmt.Sprintf("group %q requires a subclass choice", group.ID)}
		}
		if !group.HasSubclass(pick.Subclass) {
			return &ValidationError{Detail: fmt.Sprintf("subclass %q is not in group %q", pick.Subclass, group.ID)}
		}
		chosen = pick.Subclass
		pl.subclassChoices[group.ID] = chosen
	}

	for _, f := range p.Reg.SubclassFeaturesAtLevel(group.ID, chosen, pl.newClassLevel) {
		if p.Ch.OwnsFeature(f.ID) {
			return &ConsistencyError{Detail: fmt.Sprintf("subclass feature %q is already owned", f.ID)}
		}
		pl.subclassGrants = append(pl.subclassGrants, subclassGrant{feature: f.ID, subclass: chosen})
	}
	return nil
}

func (p *Proposal) validateModularGroup(pl *plan, group *rules.SubclassGroup, pick SubclassPick, triggers []*rules.Feature) error {
	if pick.Subclass != "" {
		return &ValidationError{Detail: fmt.Sprintf("group %q is modular; subclasses are not chosen, only features", group.ID)}
	}
	allowed := 0
	ceiling := 0
	for _, t := range triggers {
		allowed += t.PickCount()
		if t.RankCeiling > ceiling {
			ceiling = t.RankCeiling
		}
	}
	if allowed == 0 {
		if len(pick.Features) > 0 {
			return &ValidationError{Detail: fmt.Sprintf("group %q grants no picks at this level", group.ID)}
		}
		return nil
	}
	if len(pick.Features) > allowed {
		return &ValidationError{Detail: fmt.Sprintf("group %q: %d picks submitted, %d granted", group.ID, len(pick.Features), allowed)}
	}

	st := newGroupState(p.Reg, p.Ch, group)
	strat := strategyFor(group.SystemType)
	for _, id := range pick.Features {
		f := p.Reg.Feature(id)
		if f == nil || f.Group != group.ID {
			return &ValidationError{Detail: fmt.Sprintf("feature %q is not in group %q", id, group.ID)}
		}
		if st.owns(id) {
			return &ConsistencyError{Detail: fmt.Sprintf("feature %q is already owned", id)}
		}
		if !featureIn(strat.eligible(p.Reg, st, pl.newClassLevel, ceiling), id) {
			return &ValidationError{Detail: fmt.Sprintf("feature %q is not eligible", id)}
		}
		st.add(f)
		pl.subclassGrants = append(pl.subclassGrants, subclassGrant{feature: id, subclass: f.Subclass})
	}
	// Unused picks are only acceptable when nothing remains to pick.
	if len(pick.Features) < allowed && len(strat.eligible(p.Reg, st, pl.newClassLevel, ceiling)) > 0 {
		return &ValidationError{Detail: fmt.Sprintf("group %q: %d picks granted but only %d submitted", group.ID, allowed, len(pick.Features))}
	}
	return nil
}

func featureIn(features []*rules.Feature, id rules.FeatureID) bool {
	for _, f := range features {
		if f.ID == id {
			return true
		}
	}
	return false
}

func (p *Proposal) validateStartingSkills(class *rules.Class, pl *plan) error {
	if len(p.Picks.StartingSkills) == 0 {
		return nil
	}
	if pl.newClassLevel != 1 {
		return &ValidationError{Detail: "starting skills are only valid on the first level in a class"}
	}
	seen := make(map[rules.SkillID]bool)
	for _, id := range p.Picks.StartingSkills {
		if seen[id] {
			return &ValidationError{Detail: fmt.Sprintf("duplicate starting skill %q", id)}
		}
		seen[id] = true
		if p.Reg.Skill(id) == nil {
			return &ValidationError{Detail: fmt.Sprintf("unknown skill %q", id)}
		}
	}
	picks := p.Picks.StartingSkills
	if class.StartingSkillCap != "" {
		limit, err := formula.Eval(class.StartingSkillCap, p.Ch.FormulaVars())
		if err != nil {
			return fmt.Errorf("starting skill cap for %q: %w", class.ID, err)
		}
		if limit < 0 {
			limit = 0
		}
		// Excess picks are silently truncated to the cap.
		if len(picks) > limit {
			picks = picks[:limit]
		}
	}
	pl.startingSkills = picks
	return nil
}

// Commit applies the validated plan. Nothing in the plan can fail, so the
// aggregate mutates atomically: a caller seeing Committed sees every step
// applied.
func (p *Proposal) Commit(roller *stats.Roller) (*Result, error) {
	if p.state != StateValidated {
		return nil, ErrNotValidated
	}
	pl := p.plan
	class := p.Reg.Class(p.Class)
	res := &Result{
		Class:          p.Class,
		ClassLevel:     pl.newClassLevel,
		TotalLevel:     pl.newTotal,
		StartingSkills: pl.startingSkills,
	}

	p.Ch.SetClassLevel(p.Class, pl.newClassLevel)
	p.Ch.Level = pl.newTotal
	p.Ch.History = append(p.Ch.History, p.Class)

	for _, f := range pl.autoFeatures {
		p.Ch.GrantFeature(f.ID, "", "", pl.newTotal)
		res.Granted = append(res.Granted, f.ID)
	}
	for group, subclass := range pl.subclassChoices {
		p.Ch.Subclasses[group] = subclass
	}
	for _, g := range pl.subclassGrants {
		p.Ch.GrantFeature(g.feature, g.subclass, "", pl.newTotal)
		res.Granted = append(res.Granted, g.feature)
	}
	for a, delta := range pl.abilityDeltas {
		p.Ch.Abilities = p.Ch.Abilities.Set(a, p.Ch.Abilities.Get(a)+delta)
	}
	for _, id := range pl.featGrants {
		p.Ch.GrantFeature(id, "", "", pl.newTotal)
		res.Granted = append(res.Granted, id)
	}
	for _, id := range pl.skillFeatGrants {
		p.Ch.GrantFeature(id, "", "", pl.newTotal)
		res.Granted = append(res.Granted, id)
	}
	for _, id := range pl.startingSkills {
		if p.Ch.SkillTier(id) == rules.Untrained {
			p.Ch.SetSkillTier(id, rules.Trained)
		}
	}
	if pl.skillPoints > 0 {
		ledger.Award(p.Ch, p.Class, pl.skillPoints, pl.newTotal)
		res.SkillPoints = pl.skillPoints
	}

	gain := roller.Die(class.HitDie) + p.Ch.Abilities.Mod(stats.Constitution)
	if gain < 1 {
		gain = 1
	}
	p.Ch.HPMax += gain
	p.Ch.HPGains[pl.newTotal] = gain
	res.HPGain = gain

	p.state = StateCommitted
	slog.Info("level-up committed",
		"character", p.Ch.ID, "class", p.Class,
		"class_level", pl.newClassLevel, "total_level", pl.newTotal,
		"hp_gain", gain, "features", len(res.Granted))
	return res, nil
}
