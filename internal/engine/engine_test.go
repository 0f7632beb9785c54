package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/levelup"
	"github.com/ironlantern/charforge/internal/override"
	"github.com/ironlantern/charforge/internal/rules"
	"github.com/ironlantern/charforge/internal/spellcasting"
	"github.com/ironlantern/charforge/internal/stats"
)

// memStore keeps aggregates in a map and counts saves so tests can assert
// that failed mutations never persist.
type memStore struct {
	chars map[string]*character.Character
	saves int
}

func newMemStore() *memStore {
	return &memStore{chars: make(map[string]*character.Character)}
}

func (s *memStore) LoadCharacter(ctx context.Context, id string) (*character.Character, error) {
	ch, ok := s.chars[id]
	if !ok {
		return nil, errors.New("no such character")
	}
	return ch, nil
}

func (s *memStore) SaveCharacter(ctx context.Context, ch *character.Character) error {
	s.chars[ch.ID] = ch
	s.saves++
	return nil
}

func testRegistry(t *testing.T) *rules.Registry {
	t.Helper()
	reg, err := rules.NewRegistry(
		[]*rules.Class{
			{ID: "fighter", Name: "Fighter", HitDie: 10, SkillPointsPerLevel: 2, StartingSkillCap: "2"},
			{ID: "wizard", Name: "Wizard", HitDie: 6},
		},
		[]*rules.Feature{
			{
				ID:             "wizard_spells",
				Name:           "Wizard Spellcasting",
				Kind:           rules.KindSpellTable,
				Scope:          rules.ScopeClassFeature,
				Class:          "wizard",
				Level:          1,
				Origin:         "arcane",
				CantripFormula: "2",
				KnownFormula:   "2",
				CastingAbility: stats.Intelligence,
				Slots: []rules.SlotRow{
					{Level: 1, Rank: 1, Count: 2},
				},
			},
		},
		nil,
		[]*rules.Skill{
			{ID: "athletics", Name: "Athletics", Primary: stats.Strength},
			{ID: "stealth", Name: "Stealth", Primary: stats.Dexterity},
		},
		[]*rules.Spell{
			{ID: "light", Name: "Light", Rank: 0, Origin: "arcane"},
			{ID: "shield", Name: "Shield", Rank: 1, Origin: "arcane"},
			{ID: "sleep", Name: "Sleep", Rank: 1, Origin: "arcane"},
		},
		nil, nil, nil,
	)
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	return reg
}

func testEngine(t *testing.T) (*Engine, *memStore, *MemorySink, *character.Character) {
	t.Helper()
	store := newMemStore()
	sink := &MemorySink{}
	eng := New(testRegistry(t), store, sink, 1)
	ch := character.New("Brennic")
	store.chars[ch.ID] = ch
	return eng, store, sink, ch
}

var gm = Actor{ID: "a1", Name: "gm", Role: "admin"}

func TestLevelUpPersistsAndAudits(t *testing.T) {
	eng, store, sink, ch := testEngine(t)

	res, err := eng.LevelUp(context.Background(), gm, ch.ID, "fighter", levelup.Picks{
		StartingSkills: []rules.SkillID{"athletics"},
	})
	if err != nil {
		t.Fatalf("LevelUp error: %v", err)
	}
	if res.TotalLevel != 1 || res.ClassLevel != 1 {
		t.Errorf("result levels = %d/%d, want 1/1", res.ClassLevel, res.TotalLevel)
	}
	if ch.Level != 1 || ch.SkillTier("athletics") != rules.Trained {
		t.Errorf("aggregate not mutated: level %d tier %s", ch.Level, ch.SkillTier("athletics"))
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
	facts := sink.Facts()
	if len(facts) != 1 {
		t.Fatalf("facts = %d, want 1", len(facts))
	}
	if facts[0].Action != "level_up" || facts[0].ActorName != "gm" || facts[0].CharacterID != ch.ID {
		t.Errorf("unexpected fact %+v", facts[0])
	}
}

func TestLevelUpValidationFailureDoesNotPersist(t *testing.T) {
	eng, store, sink, ch := testEngine(t)

	_, err := eng.LevelUp(context.Background(), gm, ch.ID, "fighter", levelup.Picks{
		FeatPicks: []rules.FeatureID{"no_such_feat"},
	})
	var verr *levelup.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0", store.saves)
	}
	if len(sink.Facts()) != 0 {
		t.Errorf("facts recorded for a failed mutation")
	}
	if ch.Level != 0 {
		t.Errorf("level = %d, want 0", ch.Level)
	}
}

func TestLevelDown(t *testing.T) {
	eng, _, _, ch := testEngine(t)
	ctx := context.Background()

	if _, err := eng.LevelUp(ctx, gm, ch.ID, "fighter", levelup.Picks{}); err != nil {
		t.Fatalf("LevelUp error: %v", err)
	}
	res, err := eng.LevelDown(ctx, gm, ch.ID)
	if err != nil {
		t.Fatalf("LevelDown error: %v", err)
	}
	if res.Class != "fighter" || res.TotalLevel != 0 {
		t.Errorf("result = %+v", res)
	}
	if ch.Level != 0 || ch.HPMax != 0 {
		t.Errorf("level %d hp %d after level-down", ch.Level, ch.HPMax)
	}

	if _, err := eng.LevelDown(ctx, gm, ch.ID); !errors.Is(err, levelup.ErrNoLevels) {
		t.Errorf("error = %v, want ErrNoLevels", err)
	}
}

func TestOverrideLifecycle(t *testing.T) {
	eng, _, _, ch := testEngine(t)
	ctx := context.Background()
	key := override.AbilityKey{Ability: stats.Strength}

	if err := eng.SetOverrideFinal(ctx, gm, ch.ID, key, 18, "belt of might"); err != nil {
		t.Fatalf("SetOverrideFinal error: %v", err)
	}
	snap, err := eng.ComputeSnapshot(ctx, ch.ID)
	if err != nil {
		t.Fatalf("ComputeSnapshot error: %v", err)
	}
	for _, row := range snap.Abilities {
		if row.Ability == stats.Strength && row.Score != 18 {
			t.Errorf("strength = %d, want 18", row.Score)
		}
	}

	if err := eng.SetOverrideFinal(ctx, gm, ch.ID, key, 20, ""); !errors.Is(err, override.ErrMissingReason) {
		t.Errorf("error = %v, want ErrMissingReason", err)
	}

	deltaID, err := eng.AddOverrideDelta(ctx, gm, ch.ID, key, 2, "blessing")
	if err != nil {
		t.Fatalf("AddOverrideDelta error: %v", err)
	}
	if err := eng.RemoveOverrideDelta(ctx, gm, ch.ID, key, deltaID); err != nil {
		t.Fatalf("RemoveOverrideDelta error: %v", err)
	}
	if err := eng.ClearOverrideFinal(ctx, gm, ch.ID, key); err != nil {
		t.Fatalf("ClearOverrideFinal error: %v", err)
	}
	if err := eng.ClearOverrideFinal(ctx, gm, ch.ID, key); !errors.Is(err, override.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSpellLifecycle(t *testing.T) {
	eng, _, sink, ch := testEngine(t)
	ctx := context.Background()

	if _, err := eng.LevelUp(ctx, gm, ch.ID, "wizard", levelup.Picks{}); err != nil {
		t.Fatalf("LevelUp error: %v", err)
	}
	if err := eng.LearnSpell(ctx, gm, ch.ID, "shield", "arcane"); err != nil {
		t.Fatalf("LearnSpell error: %v", err)
	}
	if err := eng.PrepareSpell(ctx, gm, ch.ID, "shield", "arcane"); err != nil {
		t.Fatalf("PrepareSpell error: %v", err)
	}
	if len(ch.Prepared) != 1 {
		t.Fatalf("prepared = %d, want 1", len(ch.Prepared))
	}
	if err := eng.UnprepareSpell(ctx, gm, ch.ID, "shield", "arcane"); err != nil {
		t.Fatalf("UnprepareSpell error: %v", err)
	}
	if err := eng.UnlearnSpell(ctx, gm, ch.ID, "shield", "arcane"); err != nil {
		t.Fatalf("UnlearnSpell error: %v", err)
	}

	if err := eng.PrepareSpell(ctx, gm, ch.ID, "shield", "arcane"); !errors.Is(err, spellcasting.ErrNotKnown) {
		t.Errorf("error = %v, want ErrNotKnown", err)
	}

	var actions []string
	for _, f := range sink.Facts() {
		actions = append(actions, f.Action)
	}
	want := []string{"level_up", "learn_spell", "prepare_spell", "unprepare_spell", "unlearn_spell"}
	if len(actions) != len(want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("action[%d] = %q, want %q", i, actions[i], want[i])
		}
	}
}

func TestSkillTierUpgradeAndRetrain(t *testing.T) {
	eng, _, _, ch := testEngine(t)
	ctx := context.Background()

	// Two fighter levels award 4 points.
	for i := 0; i < 2; i++ {
		if _, err := eng.LevelUp(ctx, gm, ch.ID, "fighter", levelup.Picks{}); err != nil {
			t.Fatalf("LevelUp error: %v", err)
		}
	}
	if err := eng.UpgradeSkillTier(ctx, gm, ch.ID, "stealth"); err != nil {
		t.Fatalf("UpgradeSkillTier error: %v", err)
	}
	if got := ch.SkillTier("stealth"); got != rules.Trained {
		t.Errorf("tier = %s, want trained", got)
	}
	if err := eng.RetrainSkillTier(ctx, gm, ch.ID, "stealth"); err != nil {
		t.Fatalf("RetrainSkillTier error: %v", err)
	}
	if got := ch.SkillTier("stealth"); got != rules.Untrained {
		t.Errorf("tier = %s, want untrained", got)
	}
}

func TestSnapshotMissingCharacter(t *testing.T) {
	eng, _, _, _ := testEngine(t)
	if _, err := eng.ComputeSnapshot(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for missing character")
	}
}
