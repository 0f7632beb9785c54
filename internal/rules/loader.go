package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ironlantern/charforge/internal/stats"
	"gopkg.in/yaml.v3"
)

// ClassDefinition represents a class in the YAML file.
type ClassDefinition struct {
	Name                string      `yaml:"name"`
	Description         string      `yaml:"description"`
	HitDie              int         `yaml:"hit_die"`
	SkillPointsPerLevel int         `yaml:"skill_points_per_level"`
	StartingSkillCap    string      `yaml:"starting_skill_cap"`
	SkillFeatPicks      map[int]int `yaml:"skill_feat_picks"`
}

// ClassesConfig represents the structure of the classes.yaml file.
type ClassesConfig struct {
	Classes map[string]ClassDefinition `yaml:"classes"`
}

// FeatureDefinition represents a feature in the YAML file.
type FeatureDefinition struct {
	Name            string    `yaml:"name"`
	Description     string    `yaml:"description"`
	Scope           string    `yaml:"scope"`
	Kind            string    `yaml:"kind"`
	Class           string    `yaml:"class"`
	Level           int       `yaml:"level"`
	LevelRequired   int       `yaml:"level_required"`
	MinLevel        int       `yaml:"min_level"`
	Subclass        string    `yaml:"subclass"`
	Group           string    `yaml:"group"`
	Tier            int       `yaml:"tier"`
	MasteryRank     int       `yaml:"mastery_rank"`
	RankCeiling     int       `yaml:"rank_ceiling"`
	Picks           int       `yaml:"picks"`
	Origin          string    `yaml:"origin"`
	CastingAbility  string    `yaml:"casting_ability"`
	CantripFormula  string    `yaml:"cantrip_formula"`
	KnownFormula    string    `yaml:"known_formula"`
	PreparedFormula string    `yaml:"prepared_formula"`
	Slots           []SlotRow `yaml:"slots"`
	ProficiencyCode string    `yaml:"proficiency_code"`
	ProficiencyTier string    `yaml:"proficiency_tier"`
}

// FeaturesConfig represents the structure of the features.yaml file.
type FeaturesConfig struct {
	Features map[string]FeatureDefinition `yaml:"features"`
}

// SubclassGroupDefinition represents a subclass group in the YAML file.
type SubclassGroupDefinition struct {
	Name              string            `yaml:"name"`
	Class             string            `yaml:"class"`
	SystemType        string            `yaml:"system_type"`
	Subclasses        map[string]string `yaml:"subclasses"` // id -> display name
	TierUnlocks       map[int]int       `yaml:"tier_unlocks"`
	ModulesPerMastery int               `yaml:"modules_per_mastery"`
}

// GroupsConfig represents the structure of the subclass_groups.yaml file.
type GroupsConfig struct {
	Groups map[string]SubclassGroupDefinition `yaml:"groups"`
}

// SkillDefinition represents a skill in the YAML file.
type SkillDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Primary     string `yaml:"primary"`
	Secondary   string `yaml:"secondary"`
	Parent      string `yaml:"parent"`
	Code        string `yaml:"code"`
}

// SkillsConfig represents the structure of the skills.yaml file.
type SkillsConfig struct {
	Skills map[string]SkillDefinition `yaml:"skills"`
}

// ProgressionDefinition represents a proficiency progression row in YAML.
type ProgressionDefinition struct {
	Class   string `yaml:"class"`
	Code    string `yaml:"code"`
	Tier    string `yaml:"tier"`
	AtLevel int    `yaml:"at_level"`
}

// ProficiencyConfig represents the structure of the proficiency.yaml file.
type ProficiencyConfig struct {
	Progressions []ProgressionDefinition `yaml:"progressions"`
}

// SpellDefinition represents a spell in the YAML file.
type SpellDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Rank        int    `yaml:"rank"`
	Origin      string `yaml:"origin"`
}

// SpellsConfig represents the structure of the spells.yaml file.
type SpellsConfig struct {
	Spells map[string]SpellDefinition `yaml:"spells"`
}

// WeaponDefinition represents a weapon in the YAML file.
type WeaponDefinition struct {
	Name     string `yaml:"name"`
	Group    string `yaml:"group"`
	Damage   string `yaml:"damage"`
	Ranged   bool   `yaml:"ranged"`
	Finesse  bool   `yaml:"finesse"`
	Balanced bool   `yaml:"balanced"`
}

// ArmorDefinition represents an armor piece in the YAML file.
type ArmorDefinition struct {
	Name   string `yaml:"name"`
	Group  string `yaml:"group"`
	Base   int    `yaml:"base"`
	DexCap *int   `yaml:"dex_cap"`
}

// EquipmentConfig represents the structure of the equipment.yaml file.
type EquipmentConfig struct {
	Weapons map[string]WeaponDefinition `yaml:"weapons"`
	Armor   map[string]ArmorDefinition  `yaml:"armor"`
}

// LoadDir loads every rule file from a data directory and assembles a
// validated Registry. Missing optional files (equipment, spells) load as
// empty; classes and skills are required.
func LoadDir(dir string) (*Registry, error) {
	var classesCfg ClassesConfig
	if err := loadYAML(filepath.Join(dir, "classes.yaml"), &classesCfg, true); err != nil {
		return nil, err
	}
	var featuresCfg FeaturesConfig
	if err := loadYAML(filepath.Join(dir, "features.yaml"), &featuresCfg, false); err != nil {
		return nil, err
	}
	var groupsCfg GroupsConfig
	if err := loadYAML(filepath.Join(dir, "subclass_groups.yaml"), &groupsCfg, false); err != nil {
		return nil, err
	}
	var skillsCfg SkillsConfig
	if err := loadYAML(filepath.Join(dir, "skills.yaml"), &skillsCfg, true); err != nil {
		return nil, err
	}
	var profCfg ProficiencyConfig
	if err := loadYAML(filepath.Join(dir, "proficiency.yaml"), &profCfg, false); err != nil {
		return nil, err
	}
	var spellsCfg SpellsConfig
	if err := loadYAML(filepath.Join(dir, "spells.yaml"), &spellsCfg, false); err != nil {
		return nil, err
	}
	var equipCfg EquipmentConfig
	if err := loadYAML(filepath.Join(dir, "equipment.yaml"), &equipCfg, false); err != nil {
		return nil, err
	}
	return BuildRegistry(classesCfg, featuresCfg, groupsCfg, skillsCfg, profCfg, spellsCfg, equipCfg)
}

// loadYAML reads and unmarshals one file. Optional files that don't exist
// leave the target at its zero value.
func loadYAML(path string, target any, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("failed to read rule file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}
	return nil
}

// BuildRegistry converts parsed YAML configs into a validated Registry.
func BuildRegistry(
	classesCfg ClassesConfig,
	featuresCfg FeaturesConfig,
	groupsCfg GroupsConfig,
	skillsCfg SkillsConfig,
	profCfg ProficiencyConfig,
	spellsCfg SpellsConfig,
	equipCfg EquipmentConfig,
) (*Registry, error) {
	var classes []*Class
	for id, def := range classesCfg.Classes {
		classes = append(classes, &Class{
			ID:                  ClassID(id),
			Name:                def.Name,
			Description:         def.Description,
			HitDie:              def.HitDie,
			SkillPointsPerLevel: def.SkillPointsPerLevel,
			StartingSkillCap:    def.StartingSkillCap,
			SkillFeatPicks:      def.SkillFeatPicks,
		})
	}

	var features []*Feature
	for id, def := range featuresCfg.Features {
		var casting stats.Ability
		if def.CastingAbility != "" {
			parsed, err := stats.ParseAbility(def.CastingAbility)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", id, err)
			}
			casting = parsed
		}
		features = append(features, &Feature{
			ID:              FeatureID(id),
			Name:            def.Name,
			Description:     def.Description,
			Scope:           FeatureScope(def.Scope),
			Kind:            FeatureKind(def.Kind),
			Class:           ClassID(def.Class),
			Level:           def.Level,
			LevelRequired:   def.LevelRequired,
			MinLevel:        def.MinLevel,
			Subclass:        SubclassID(def.Subclass),
			Group:           GroupID(def.Group),
			Tier:            def.Tier,
			MasteryRank:     def.MasteryRank,
			RankCeiling:     def.RankCeiling,
			Picks:           def.Picks,
			Origin:          def.Origin,
			CastingAbility:  casting,
			CantripFormula:  def.CantripFormula,
			KnownFormula:    def.KnownFormula,
			PreparedFormula: def.PreparedFormula,
			Slots:           def.Slots,
			ProficiencyCode: def.ProficiencyCode,
			ProficiencyTier: TierName(def.ProficiencyTier),
		})
	}

	var groups []*SubclassGroup
	for id, def := range groupsCfg.Groups {
		g := &SubclassGroup{
			ID:                GroupID(id),
			Class:             ClassID(def.Class),
			Name:              def.Name,
			SystemType:        SystemType(def.SystemType),
			TierUnlocks:       def.TierUnlocks,
			ModulesPerMastery: def.ModulesPerMastery,
		}
		for scID, scName := range def.Subclasses {
			g.Subclasses = append(g.Subclasses, Subclass{ID: SubclassID(scID), Name: scName})
		}
		// Map iteration is unordered; sort for stable candidate listings.
		sort.Slice(g.Subclasses, func(i, j int) bool { return g.Subclasses[i].ID < g.Subclasses[j].ID })
		groups = append(groups, g)
	}

	var skills []*Skill
	for id, def := range skillsCfg.Skills {
		skill := &Skill{
			ID:          SkillID(id),
			Name:        def.Name,
			Description: def.Description,
			Parent:      SkillID(def.Parent),
			Code:        def.Code,
		}
		// Sub-skills may omit abilities; they inherit the parent's.
		if def.Primary != "" || def.Parent == "" {
			primary, err := stats.ParseAbility(def.Primary)
			if err != nil {
				return nil, fmt.Errorf("skill %q: %w", id, err)
			}
			skill.Primary = primary
		}
		if def.Secondary != "" {
			secondary, err := stats.ParseAbility(def.Secondary)
			if err != nil {
				return nil, fmt.Errorf("skill %q: %w", id, err)
			}
			skill.Secondary = secondary
		}
		skills = append(skills, skill)
	}

	var progressions []ProficiencyProgression
	for _, def := range profCfg.Progressions {
		progressions = append(progressions, ProficiencyProgression{
			Class:   ClassID(def.Class),
			Code:    def.Code,
			Tier:    TierName(def.Tier),
			AtLevel: def.AtLevel,
		})
	}

	var spells []*Spell
	for id, def := range spellsCfg.Spells {
		spells = append(spells, &Spell{
			ID:          SpellID(id),
			Name:        def.Name,
			Description: def.Description,
			Rank:        def.Rank,
			Origin:      def.Origin,
		})
	}

	var weapons []*Weapon
	for id, def := range equipCfg.Weapons {
		weapons = append(weapons, &Weapon{
			ID:       WeaponID(id),
			Name:     def.Name,
			Group:    def.Group,
			Damage:   def.Damage,
			Ranged:   def.Ranged,
			Finesse:  def.Finesse,
			Balanced: def.Balanced,
		})
	}

	var armor []*Armor
	for id, def := range equipCfg.Armor {
		armor = append(armor, &Armor{
			ID:     ArmorID(id),
			Name:   def.Name,
			Group:  def.Group,
			Base:   def.Base,
			DexCap: def.DexCap,
		})
	}

	return NewRegistry(classes, features, groups, skills, spells, weapons, armor, progressions)
}
