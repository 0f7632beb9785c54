package rules

import (
	"fmt"
	"sort"

	"github.com/ironlantern/charforge/internal/formula"
)

// Registry is the immutable collection of all loaded rule data. Build one
// with NewRegistry (or LoadDir) and share it freely; lookups never mutate.
type Registry struct {
	classes      map[ClassID]*Class
	features     map[FeatureID]*Feature
	groups       map[GroupID]*SubclassGroup
	skills       map[SkillID]*Skill
	spells       map[SpellID]*Spell
	weapons      map[WeaponID]*Weapon
	armor        map[ArmorID]*Armor
	progressions map[ClassID][]ProficiencyProgression
}

// NewRegistry assembles a registry from already-built rule data and
// validates cross-references. Malformed data fails construction rather than
// surfacing later inside engine operations.
func NewRegistry(
	classes []*Class,
	features []*Feature,
	groups []*SubclassGroup,
	skills []*Skill,
	spells []*Spell,
	weapons []*Weapon,
	armor []*Armor,
	progressions []ProficiencyProgression,
) (*Registry, error) {
	r := &Registry{
		classes:      make(map[ClassID]*Class, len(classes)),
		features:     make(map[FeatureID]*Feature, len(features)),
		groups:       make(map[GroupID]*SubclassGroup, len(groups)),
		skills:       make(map[SkillID]*Skill, len(skills)),
		spells:       make(map[SpellID]*Spell, len(spells)),
		weapons:      make(map[WeaponID]*Weapon, len(weapons)),
		armor:        make(map[ArmorID]*Armor, len(armor)),
		progressions: make(map[ClassID][]ProficiencyProgression),
	}
	for _, c := range classes {
		if _, dup := r.classes[c.ID]; dup {
			return nil, fmt.Errorf("duplicate class %q", c.ID)
		}
		r.classes[c.ID] = c
	}
	for _, f := range features {
		if _, dup := r.features[f.ID]; dup {
			return nil, fmt.Errorf("duplicate feature %q", f.ID)
		}
		r.features[f.ID] = f
	}
	for _, g := range groups {
		if _, dup := r.groups[g.ID]; dup {
			return nil, fmt.Errorf("duplicate subclass group %q", g.ID)
		}
		r.groups[g.ID] = g
	}
	for _, s := range skills {
		if _, dup := r.skills[s.ID]; dup {
			return nil, fmt.Errorf("duplicate skill %q", s.ID)
		}
		r.skills[s.ID] = s
	}
	for _, s := range spells {
		if _, dup := r.spells[s.ID]; dup {
			return nil, fmt.Errorf("duplicate spell %q", s.ID)
		}
		r.spells[s.ID] = s
	}
	for _, w := range weapons {
		if _, dup := r.weapons[w.ID]; dup {
			return nil, fmt.Errorf("duplicate weapon %q", w.ID)
		}
		r.weapons[w.ID] = w
	}
	for _, a := range armor {
		if _, dup := r.armor[a.ID]; dup {
			return nil, fmt.Errorf("duplicate armor %q", a.ID)
		}
		r.armor[a.ID] = a
	}
	for _, p := range progressions {
		r.progressions[p.Class] = append(r.progressions[p.Class], p)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// validate cross-checks references and parses every formula string so that
// unparsable rule data is rejected at load time, not mid-operation.
func (r *Registry) validate() error {
	for id, c := range r.classes {
		if c.HitDie <= 0 {
			return fmt.Errorf("class %q: hit die must be positive", id)
		}
		if c.StartingSkillCap != "" {
			if _, err := formula.Parse(c.StartingSkillCap); err != nil {
				return fmt.Errorf("class %q: starting skill cap: %w", id, err)
			}
		}
	}
	for id, f := range r.features {
		if f.Class != "" {
			if _, ok := r.classes[f.Class]; !ok {
				return fmt.Errorf("feature %q: unknown class %q", id, f.Class)
			}
		}
		if f.Group != "" {
			g, ok := r.groups[f.Group]
			if !ok {
				return fmt.Errorf("feature %q: unknown subclass group %q", id, f.Group)
			}
			if f.Subclass != "" && !g.HasSubclass(f.Subclass) {
				return fmt.Errorf("feature %q: subclass %q not in group %q", id, f.Subclass, f.Group)
			}
		}
		if f.Kind == KindSpellTable {
			if f.Origin == "" {
				return fmt.Errorf("feature %q: spell table requires an origin", id)
			}
			for _, expr := range []string{f.CantripFormula, f.KnownFormula, f.PreparedFormula} {
				if expr == "" {
					continue
				}
				if _, err := formula.Parse(expr); err != nil {
					return fmt.Errorf("feature %q: %w", id, err)
				}
			}
		}
		if f.Kind == KindProficiencyMod {
			if f.ProficiencyCode == "" {
				return fmt.Errorf("feature %q: proficiency modifier requires a code", id)
			}
			if _, ok := TierByName(f.ProficiencyTier); !ok {
				return fmt.Errorf("feature %q: unknown tier %q", id, f.ProficiencyTier)
			}
		}
	}
	for id, g := range r.groups {
		if !g.SystemType.IsValid() {
			return fmt.Errorf("subclass group %q: invalid system type %q", id, g.SystemType)
		}
		if _, ok := r.classes[g.Class]; !ok {
			return fmt.Errorf("subclass group %q: unknown class %q", id, g.Class)
		}
		if len(g.Subclasses) == 0 {
			return fmt.Errorf("subclass group %q: no subclasses", id)
		}
	}
	for id, s := range r.skills {
		if s.Parent != "" {
			if _, ok := r.skills[s.Parent]; !ok {
				return fmt.Errorf("skill %q: unknown parent %q", id, s.Parent)
			}
		} else if !s.Primary.IsValid() {
			// Sub-skills inherit their parent's governing abilities.
			return fmt.Errorf("skill %q: invalid primary ability %q", id, s.Primary)
		}
		if s.Secondary != "" && !s.Secondary.IsValid() {
			return fmt.Errorf("skill %q: invalid secondary ability %q", id, s.Secondary)
		}
	}
	for class, rows := range r.progressions {
		if _, ok := r.classes[class]; !ok {
			return fmt.Errorf("proficiency progression: unknown class %q", class)
		}
		for _, p := range rows {
			if _, ok := TierByName(p.Tier); !ok {
				return fmt.Errorf("proficiency progression for %q/%q: unknown tier %q", class, p.Code, p.Tier)
			}
		}
	}
	return nil
}

// Class returns the class definition, or nil.
func (r *Registry) Class(id ClassID) *Class { return r.classes[id] }

// Feature returns the feature definition, or nil.
func (r *Registry) Feature(id FeatureID) *Feature { return r.features[id] }

// Group returns the subclass group definition, or nil.
func (r *Registry) Group(id GroupID) *SubclassGroup { return r.groups[id] }

// Skill returns the skill definition, or nil.
func (r *Registry) Skill(id SkillID) *Skill { return r.skills[id] }

// Spell returns the spell definition, or nil.
func (r *Registry) Spell(id SpellID) *Spell { return r.spells[id] }

// Weapon returns the weapon definition, or nil.
func (r *Registry) Weapon(id WeaponID) *Weapon { return r.weapons[id] }

// Armor returns the armor definition, or nil.
func (r *Registry) Armor(id ArmorID) *Armor { return r.armor[id] }

// Progressions returns the proficiency progression rows for a class.
func (r *Registry) Progressions(class ClassID) []ProficiencyProgression {
	return r.progressions[class]
}

// Skills returns all skills sorted by ID for stable iteration.
func (r *Registry) Skills() []*Skill {
	out := make([]*Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Classes returns all classes sorted by ID for stable iteration.
func (r *Registry) Classes() []*Class {
	out := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Features returns all features sorted by ID for stable iteration.
func (r *Registry) Features() []*Feature {
	out := make([]*Feature, 0, len(r.features))
	for _, f := range r.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Groups returns all subclass groups sorted by ID.
func (r *Registry) Groups() []*SubclassGroup {
	out := make([]*SubclassGroup, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Spells returns all spells sorted by ID.
func (r *Registry) Spells() []*Spell {
	out := make([]*Spell, 0, len(r.spells))
	for _, s := range r.spells {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Weapons returns all weapons sorted by ID.
func (r *Registry) Weapons() []*Weapon {
	out := make([]*Weapon, 0, len(r.weapons))
	for _, w := range r.weapons {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ArmorPieces returns all armor sorted by ID.
func (r *Registry) ArmorPieces() []*Armor {
	out := make([]*Armor, 0, len(r.armor))
	for _, a := range r.armor {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FeaturesAtLevel returns all features that auto-attach when the class
// reaches the given class level, sorted by ID.
func (r *Registry) FeaturesAtLevel(class ClassID, level int) []*Feature {
	var out []*Feature
	for _, f := range r.features {
		if f.Class == class && f.Level == level && f.Scope == ScopeClassFeature {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SubclassFeaturesAtLevel returns linear subclass features of a subclass
// attached at the given class level, sorted by ID.
func (r *Registry) SubclassFeaturesAtLevel(group GroupID, subclass SubclassID, level int) []*Feature {
	var out []*Feature
	for _, f := range r.features {
		if f.Group == group && f.Subclass == subclass && f.Level == level && f.Scope == ScopeSubclass {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GainTriggersAtLevel returns the gain-subclass-feature triggers a class
// attaches at a level for one group, sorted by ID.
func (r *Registry) GainTriggersAtLevel(class ClassID, level int, group GroupID) []*Feature {
	var out []*Feature
	for _, f := range r.features {
		if f.Class == class && f.Level == level && f.Scope == ScopeGainSubclass && f.Group == group {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GroupFeatures returns all pickable subclass features of a group, sorted
// by ID. For modular systems this is the candidate pool across all member
// subclasses.
func (r *Registry) GroupFeatures(group GroupID) []*Feature {
	var out []*Feature
	for _, f := range r.features {
		if f.Group == group && (f.Scope == ScopeSubclass || f.Scope == ScopeSubclassChoice) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GroupsForClass returns the subclass groups belonging to a class, sorted
// by ID.
func (r *Registry) GroupsForClass(class ClassID) []*SubclassGroup {
	var out []*SubclassGroup
	for _, g := range r.groups {
		if g.Class == class {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Feats returns the feats of a kind available to a class at a level: general
// feats plus the class's own, gated by MinLevel/LevelRequired, sorted by ID.
func (r *Registry) Feats(kind FeatureKind, class ClassID, level int) []*Feature {
	var out []*Feature
	for _, f := range r.features {
		if f.Kind != kind || f.Scope != "" && f.Scope != ScopeClassFeature {
			continue
		}
		if f.Level != 0 {
			continue // level-attached grants are not pickable
		}
		if f.Class != "" && f.Class != class {
			continue
		}
		if f.MinLevel > level || f.LevelRequired > level {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
