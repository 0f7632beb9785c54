package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/engine"
	"github.com/ironlantern/charforge/internal/override"
	"github.com/ironlantern/charforge/internal/rules"
	"github.com/ironlantern/charforge/internal/stats"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleCharacter(t *testing.T, name string) *character.Character {
	t.Helper()
	ch := character.New(name)
	ch.Abilities = ch.Abilities.Set(stats.Strength, 16).Set(stats.Intelligence, 14)
	ch.Level = 3
	ch.ClassLevels["fighter"] = 3
	ch.History = []rules.ClassID{"fighter", "fighter", "fighter"}
	ch.Subclasses["fighter_path"] = "champion"
	ch.HPMax = 28
	ch.HPGains[1] = 11
	ch.HPGains[2] = 9
	ch.HPGains[3] = 8
	ch.SkillTiers["athletics"] = rules.Expert
	ch.Weapons = []rules.WeaponID{"longsword"}
	ch.Armor = "chainmail"
	ch.GrantFeature("champion_strike", "champion", "", 1)
	ch.Transactions = append(ch.Transactions,
		character.SkillPointTransaction{ID: "t1", Amount: 2, Source: character.SourceLevelAward, Reason: "level 1", AtLevel: 1, Class: "fighter"},
		character.SkillPointTransaction{ID: "t2", Amount: -1, Source: character.SourceSpend, Reason: "upgrade athletics", AtLevel: 2},
	)
	ch.Known = append(ch.Known, character.KnownSpell{Spell: "shield", Origin: "arcane", Rank: 1})
	ch.Prepared = append(ch.Prepared, character.PreparedSpell{Spell: "shield", Origin: "arcane", Rank: 1})
	if err := ch.Overrides.SetFinal(override.AbilityKey{Ability: stats.Strength}, 18, "belt of might"); err != nil {
		t.Fatalf("SetFinal error: %v", err)
	}
	if _, err := ch.Overrides.AddDelta(override.DefenseKey{Name: "will"}, 2, "blessing"); err != nil {
		t.Fatalf("AddDelta error: %v", err)
	}
	return ch
}

func TestCharacterRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ch := sampleCharacter(t, "Brennic")

	if err := db.CreateCharacter(ctx, ch); err != nil {
		t.Fatalf("CreateCharacter error: %v", err)
	}
	got, err := db.LoadCharacter(ctx, ch.ID)
	if err != nil {
		t.Fatalf("LoadCharacter error: %v", err)
	}

	if got.Name != "Brennic" || got.Level != 3 || got.HPMax != 28 {
		t.Errorf("core fields = %q/%d/%d", got.Name, got.Level, got.HPMax)
	}
	if got.Abilities.Strength != 16 || got.Abilities.Intelligence != 14 {
		t.Errorf("abilities = %+v", got.Abilities)
	}
	if got.ClassLevels["fighter"] != 3 {
		t.Errorf("class levels = %v", got.ClassLevels)
	}
	if len(got.History) != 3 || got.History[2] != "fighter" {
		t.Errorf("history = %v", got.History)
	}
	if got.Subclasses["fighter_path"] != "champion" {
		t.Errorf("subclasses = %v", got.Subclasses)
	}
	if got.HPGains[2] != 9 {
		t.Errorf("hp gains = %v", got.HPGains)
	}
	if got.SkillTier("athletics") != rules.Expert {
		t.Errorf("athletics tier = %s", got.SkillTier("athletics"))
	}
	if len(got.Weapons) != 1 || got.Weapons[0] != "longsword" || got.Armor != "chainmail" {
		t.Errorf("gear = %v / %s", got.Weapons, got.Armor)
	}
	if len(got.Features) != 1 || got.Features[0].Feature != "champion_strike" || got.Features[0].Subclass != "champion" {
		t.Errorf("features = %+v", got.Features)
	}
	if len(got.Transactions) != 2 || got.Transactions[0].ID != "t1" || got.Transactions[1].Amount != -1 {
		t.Errorf("transactions = %+v", got.Transactions)
	}
	if len(got.Known) != 1 || !got.KnowsSpell("shield", "arcane") {
		t.Errorf("known = %+v", got.Known)
	}
	if got.PreparedCount("arcane", 1) != 1 {
		t.Errorf("prepared = %+v", got.Prepared)
	}
	if v, ok := got.Overrides.Final(override.AbilityKey{Ability: stats.Strength}); !ok || v != 18 {
		t.Errorf("strength override = %d, %v", v, ok)
	}
	if deltas := got.Overrides.Deltas(override.DefenseKey{Name: "will"}); len(deltas) != 1 || deltas[0].Amount != 2 {
		t.Errorf("will deltas = %+v", deltas)
	}
}

func TestSaveReplacesChildRows(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ch := sampleCharacter(t, "Brennic")
	if err := db.CreateCharacter(ctx, ch); err != nil {
		t.Fatalf("CreateCharacter error: %v", err)
	}

	ch.Prepared = nil
	ch.SetSkillTier("athletics", rules.Master)
	if err := db.SaveCharacter(ctx, ch); err != nil {
		t.Fatalf("SaveCharacter error: %v", err)
	}

	got, err := db.LoadCharacter(ctx, ch.ID)
	if err != nil {
		t.Fatalf("LoadCharacter error: %v", err)
	}
	if len(got.Prepared) != 0 {
		t.Errorf("prepared = %+v, want none", got.Prepared)
	}
	if got.SkillTier("athletics") != rules.Master {
		t.Errorf("athletics tier = %s", got.SkillTier("athletics"))
	}
}

func TestDuplicateName(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.CreateCharacter(ctx, character.New("Brennic")); err != nil {
		t.Fatalf("CreateCharacter error: %v", err)
	}
	err := db.CreateCharacter(ctx, character.New("brennic"))
	if !errors.Is(err, ErrCharacterExists) {
		t.Errorf("error = %v, want ErrCharacterExists", err)
	}
}

func TestLoadByNameCaseInsensitive(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ch := character.New("Brennic")
	if err := db.CreateCharacter(ctx, ch); err != nil {
		t.Fatalf("CreateCharacter error: %v", err)
	}
	got, err := db.LoadCharacterByName(ctx, "BRENNIC")
	if err != nil {
		t.Fatalf("LoadCharacterByName error: %v", err)
	}
	if got.ID != ch.ID {
		t.Errorf("loaded %s, want %s", got.ID, ch.ID)
	}
}

func TestLoadMissing(t *testing.T) {
	db := testDB(t)
	if _, err := db.LoadCharacter(context.Background(), "nope"); !errors.Is(err, ErrCharacterNotFound) {
		t.Errorf("error = %v, want ErrCharacterNotFound", err)
	}
}

func TestDeleteCharacterCascades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ch := sampleCharacter(t, "Brennic")
	if err := db.CreateCharacter(ctx, ch); err != nil {
		t.Fatalf("CreateCharacter error: %v", err)
	}
	if err := db.DeleteCharacter(ctx, ch.ID); err != nil {
		t.Fatalf("DeleteCharacter error: %v", err)
	}
	if err := db.DeleteCharacter(ctx, ch.ID); !errors.Is(err, ErrCharacterNotFound) {
		t.Errorf("second delete error = %v, want ErrCharacterNotFound", err)
	}

	var count int
	if err := db.DB().QueryRow("SELECT COUNT(*) FROM character_features").Scan(&count); err != nil {
		t.Fatalf("count query error: %v", err)
	}
	if count != 0 {
		t.Errorf("feature rows = %d after cascade delete", count)
	}
}

func TestListCharacters(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for _, name := range []string{"Wren", "Aldous"} {
		if err := db.CreateCharacter(ctx, character.New(name)); err != nil {
			t.Fatalf("CreateCharacter error: %v", err)
		}
	}
	list, err := db.ListCharacters(ctx)
	if err != nil {
		t.Fatalf("ListCharacters error: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Aldous" || list[1].Name != "Wren" {
		t.Errorf("list = %+v", list)
	}
}

func TestAuditSink(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	sink := NewAuditSink(db)

	sink.Record(engine.AuditFact{
		ID: "f1", At: time.Now().UTC().Add(-time.Minute),
		ActorName: "gm", CharacterID: "c1", Action: "level_up", Detail: "fighter to 1",
	})
	sink.Record(engine.AuditFact{
		ID: "f2", At: time.Now().UTC(),
		ActorName: "gm", CharacterID: "c1", Action: "learn_spell", Detail: "shield",
	})
	sink.Record(engine.AuditFact{
		ID: "f3", At: time.Now().UTC(),
		ActorName: "gm", CharacterID: "other", Action: "level_up",
	})

	facts, err := db.RecentFacts(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("RecentFacts error: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("facts = %d, want 2", len(facts))
	}
	if facts[0].ID != "f2" || facts[1].ID != "f1" {
		t.Errorf("order = %s, %s", facts[0].ID, facts[1].ID)
	}
}

func TestQueryBuilderPlaceholders(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{"sqlite unchanged", &SQLiteDialect{}, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"postgres numbered", &PostgresDialect{}, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"postgres none", &PostgresDialect{}, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewQueryBuilder(tt.dialect).Build(tt.query); got != tt.want {
				t.Errorf("Build = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildWithReturning(t *testing.T) {
	q := "INSERT INTO t (a) VALUES (?)"
	if got := NewQueryBuilder(&SQLiteDialect{}).BuildWithReturning(q, "id"); got != q {
		t.Errorf("sqlite = %q", got)
	}
	want := "INSERT INTO t (a) VALUES ($1) RETURNING id"
	if got := NewQueryBuilder(&PostgresDialect{}).BuildWithReturning(q, "id"); got != want {
		t.Errorf("postgres = %q, want %q", got, want)
	}
}
