package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/override"
	"github.com/ironlantern/charforge/internal/rules"
)

// ErrCharacterNotFound is returned when a character lookup fails.
var ErrCharacterNotFound = errors.New("character not found")

// ErrCharacterExists is returned when creating a duplicate character name.
var ErrCharacterExists = errors.New("character name already taken")

// CreateCharacter inserts a brand-new aggregate. It fails with
// ErrCharacterExists when the name is taken (case-insensitively).
func (d *Database) CreateCharacter(ctx context.Context, ch *character.Character) error {
	err := d.SaveCharacter(ctx, ch)
	if err != nil && d.dialect.IsDuplicateKeyError(err) {
		return ErrCharacterExists
	}
	return err
}

// SaveCharacter upserts the whole aggregate in one transaction. Child rows
// are replaced wholesale; the aggregate is small enough that diffing is
// not worth the bookkeeping.
func (d *Database) SaveCharacter(ctx context.Context, ch *character.Character) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	classLevels, err := json.Marshal(ch.ClassLevels)
	if err != nil {
		return fmt.Errorf("marshal class levels: %w", err)
	}
	history, err := json.Marshal(historyOrEmpty(ch.History))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	subclasses, err := json.Marshal(ch.Subclasses)
	if err != nil {
		return fmt.Errorf("marshal subclasses: %w", err)
	}
	hpGains, err := json.Marshal(ch.HPGains)
	if err != nil {
		return fmt.Errorf("marshal hp gains: %w", err)
	}
	skillTiers, err := json.Marshal(ch.SkillTiers)
	if err != nil {
		return fmt.Errorf("marshal skill tiers: %w", err)
	}
	weapons, err := json.Marshal(weaponsOrEmpty(ch.Weapons))
	if err != nil {
		return fmt.Errorf("marshal weapons: %w", err)
	}

	upsert := d.qb.Build(`INSERT INTO characters
		(id, name, strength, dexterity, constitution, intelligence, wisdom, charisma,
		 level, hp_max, class_levels, history, subclasses, hp_gains, skill_tiers,
		 weapons, armor, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			strength = excluded.strength,
			dexterity = excluded.dexterity,
			constitution = excluded.constitution,
			intelligence = excluded.intelligence,
			wisdom = excluded.wisdom,
			charisma = excluded.charisma,
			level = excluded.level,
			hp_max = excluded.hp_max,
			class_levels = excluded.class_levels,
			history = excluded.history,
			subclasses = excluded.subclasses,
			hp_gains = excluded.hp_gains,
			skill_tiers = excluded.skill_tiers,
			weapons = excluded.weapons,
			armor = excluded.armor,
			updated_at = CURRENT_TIMESTAMP`)
	if _, err := tx.ExecContext(ctx, upsert,
		ch.ID, ch.Name,
		ch.Abilities.Strength, ch.Abilities.Dexterity, ch.Abilities.Constitution,
		ch.Abilities.Intelligence, ch.Abilities.Wisdom, ch.Abilities.Charisma,
		ch.Level, ch.HPMax,
		string(classLevels), string(history), string(subclasses),
		string(hpGains), string(skillTiers),
		string(weapons), string(ch.Armor),
	); err != nil {
		return fmt.Errorf("upsert character: %w", err)
	}

	for _, table := range []string{"character_features", "skill_transactions", "known_spells", "prepared_spells", "override_records"} {
		del := d.qb.Build("DELETE FROM " + table + " WHERE character_id = ?")
		if _, err := tx.ExecContext(ctx, del, ch.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	featQ := d.qb.Build(`INSERT INTO character_features
		(id, character_id, feature, racial_feature, subclass, option, at_level, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, f := range ch.Features {
		if _, err := tx.ExecContext(ctx, featQ,
			f.ID, ch.ID, string(f.Feature), f.RacialFeature, string(f.Subclass), f.Option, f.AtLevel, i); err != nil {
			return fmt.Errorf("insert feature: %w", err)
		}
	}

	txQ := d.qb.Build(`INSERT INTO skill_transactions
		(id, character_id, amount, source, reason, at_level, class, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, t := range ch.Transactions {
		if _, err := tx.ExecContext(ctx, txQ,
			t.ID, ch.ID, t.Amount, string(t.Source), t.Reason, t.AtLevel, string(t.Class), i); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	knownQ := d.qb.Build(`INSERT INTO known_spells
		(character_id, spell, origin, rank, position) VALUES (?, ?, ?, ?, ?)`)
	for i, k := range ch.Known {
		if _, err := tx.ExecContext(ctx, knownQ, ch.ID, string(k.Spell), k.Origin, k.Rank, i); err != nil {
			return fmt.Errorf("insert known spell: %w", err)
		}
	}

	prepQ := d.qb.Build(`INSERT INTO prepared_spells
		(character_id, spell, origin, rank, position) VALUES (?, ?, ?, ?, ?)`)
	for i, p := range ch.Prepared {
		if _, err := tx.ExecContext(ctx, prepQ, ch.ID, string(p.Spell), p.Origin, p.Rank, i); err != nil {
			return fmt.Errorf("insert prepared spell: %w", err)
		}
	}

	var overrides []override.Record
	if ch.Overrides != nil {
		overrides = ch.Overrides.Records()
	}
	ovrQ := d.qb.Build(`INSERT INTO override_records
		(character_id, key, value, reason) VALUES (?, ?, ?, ?)`)
	for _, r := range overrides {
		if _, err := tx.ExecContext(ctx, ovrQ, ch.ID, r.Key, r.Value, r.Reason); err != nil {
			return fmt.Errorf("insert override: %w", err)
		}
	}

	return tx.Commit()
}

// LoadCharacter reads the whole aggregate by ID.
func (d *Database) LoadCharacter(ctx context.Context, id string) (*character.Character, error) {
	return d.loadCharacter(ctx, "SELECT id FROM characters WHERE id = ?", id)
}

// LoadCharacterByName reads the whole aggregate by (case-insensitive) name.
func (d *Database) LoadCharacterByName(ctx context.Context, name string) (*character.Character, error) {
	return d.loadCharacter(ctx, "SELECT id FROM characters WHERE name = ?", name)
}

func (d *Database) loadCharacter(ctx context.Context, idQuery string, arg any) (*character.Character, error) {
	var id string
	if err := d.db.QueryRowContext(ctx, d.qb.Build(idQuery), arg).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("find character: %w", err)
	}

	ch := &character.Character{ID: id}
	var classLevels, history, subclasses, hpGains, skillTiers, weapons, armor string

	row := d.db.QueryRowContext(ctx, d.qb.Build(`SELECT
		name, strength, dexterity, constitution, intelligence, wisdom, charisma,
		level, hp_max, class_levels, history, subclasses, hp_gains, skill_tiers,
		weapons, armor
		FROM characters WHERE id = ?`), id)
	if err := row.Scan(&ch.Name,
		&ch.Abilities.Strength, &ch.Abilities.Dexterity, &ch.Abilities.Constitution,
		&ch.Abilities.Intelligence, &ch.Abilities.Wisdom, &ch.Abilities.Charisma,
		&ch.Level, &ch.HPMax, &classLevels, &history, &subclasses, &hpGains,
		&skillTiers, &weapons, &armor); err != nil {
		return nil, fmt.Errorf("scan character: %w", err)
	}
	ch.Armor = rules.ArmorID(armor)

	if err := json.Unmarshal([]byte(classLevels), &ch.ClassLevels); err != nil {
		return nil, fmt.Errorf("unmarshal class levels: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &ch.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	if err := json.Unmarshal([]byte(subclasses), &ch.Subclasses); err != nil {
		return nil, fmt.Errorf("unmarshal subclasses: %w", err)
	}
	if err := json.Unmarshal([]byte(hpGains), &ch.HPGains); err != nil {
		return nil, fmt.Errorf("unmarshal hp gains: %w", err)
	}
	if err := json.Unmarshal([]byte(skillTiers), &ch.SkillTiers); err != nil {
		return nil, fmt.Errorf("unmarshal skill tiers: %w", err)
	}
	if err := json.Unmarshal([]byte(weapons), &ch.Weapons); err != nil {
		return nil, fmt.Errorf("unmarshal weapons: %w", err)
	}
	if ch.ClassLevels == nil {
		ch.ClassLevels = make(map[rules.ClassID]int)
	}
	if ch.Subclasses == nil {
		ch.Subclasses = make(map[rules.GroupID]rules.SubclassID)
	}
	if ch.HPGains == nil {
		ch.HPGains = make(map[int]int)
	}
	if ch.SkillTiers == nil {
		ch.SkillTiers = make(map[rules.SkillID]rules.TierName)
	}

	if err := d.loadFeatures(ctx, ch); err != nil {
		return nil, err
	}
	if err := d.loadTransactions(ctx, ch); err != nil {
		return nil, err
	}
	if err := d.loadSpells(ctx, ch); err != nil {
		return nil, err
	}
	if err := d.loadOverrides(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (d *Database) loadFeatures(ctx context.Context, ch *character.Character) error {
	rows, err := d.db.QueryContext(ctx, d.qb.Build(`SELECT id, feature, racial_feature, subclass, option, at_level
		FROM character_features WHERE character_id = ? ORDER BY position`), ch.ID)
	if err != nil {
		return fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f character.OwnedFeature
		var feature, subclass string
		if err := rows.Scan(&f.ID, &feature, &f.RacialFeature, &subclass, &f.Option, &f.AtLevel); err != nil {
			return fmt.Errorf("scan feature: %w", err)
		}
		f.Feature = rules.FeatureID(feature)
		f.Subclass = rules.SubclassID(subclass)
		ch.Features = append(ch.Features, f)
	}
	return rows.Err()
}

func (d *Database) loadTransactions(ctx context.Context, ch *character.Character) error {
	rows, err := d.db.QueryContext(ctx, d.qb.Build(`SELECT id, amount, source, reason, at_level, class
		FROM skill_transactions WHERE character_id = ? ORDER BY position`), ch.ID)
	if err != nil {
		return fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t character.SkillPointTransaction
		var source, class string
		if err := rows.Scan(&t.ID, &t.Amount, &source, &t.Reason, &t.AtLevel, &class); err != nil {
			return fmt.Errorf("scan transaction: %w", err)
		}
		t.Source = character.TransactionSource(source)
		t.Class = rules.ClassID(class)
		ch.Transactions = append(ch.Transactions, t)
	}
	return rows.Err()
}

func (d *Database) loadSpells(ctx context.Context, ch *character.Character) error {
	rows, err := d.db.QueryContext(ctx, d.qb.Build(`SELECT spell, origin, rank
		FROM known_spells WHERE character_id = ? ORDER BY position`), ch.ID)
	if err != nil {
		return fmt.Errorf("query known spells: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k character.KnownSpell
		var spell string
		if err := rows.Scan(&spell, &k.Origin, &k.Rank); err != nil {
			return fmt.Errorf("scan known spell: %w", err)
		}
		k.Spell = rules.SpellID(spell)
		ch.Known = append(ch.Known, k)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	prows, err := d.db.QueryContext(ctx, d.qb.Build(`SELECT spell, origin, rank
		FROM prepared_spells WHERE character_id = ? ORDER BY position`), ch.ID)
	if err != nil {
		return fmt.Errorf("query prepared spells: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var p character.PreparedSpell
		var spell string
		if err := prows.Scan(&spell, &p.Origin, &p.Rank); err != nil {
			return fmt.Errorf("scan prepared spell: %w", err)
		}
		p.Spell = rules.SpellID(spell)
		ch.Prepared = append(ch.Prepared, p)
	}
	return prows.Err()
}

func (d *Database) loadOverrides(ctx context.Context, ch *character.Character) error {
	rows, err := d.db.QueryContext(ctx, d.qb.Build(`SELECT key, value, reason
		FROM override_records WHERE character_id = ?`), ch.ID)
	if err != nil {
		return fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()
	var records []override.Record
	for rows.Next() {
		var r override.Record
		if err := rows.Scan(&r.Key, &r.Value, &r.Reason); err != nil {
			return fmt.Errorf("scan override: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	ch.Overrides = override.FromRecords(records)
	return nil
}

// DeleteCharacter removes the character and its child rows.
func (d *Database) DeleteCharacter(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, d.qb.Build("DELETE FROM characters WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

// CharacterSummary is one row of the character list.
type CharacterSummary struct {
	ID    string
	Name  string
	Level int
	HPMax int
}

// ListCharacters returns summaries of all characters sorted by name.
func (d *Database) ListCharacters(ctx context.Context) ([]CharacterSummary, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id, name, level, hp_max FROM characters ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()
	var out []CharacterSummary
	for rows.Next() {
		var s CharacterSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Level, &s.HPMax); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func historyOrEmpty(h []rules.ClassID) []rules.ClassID {
	if h == nil {
		return []rules.ClassID{}
	}
	return h
}

func weaponsOrEmpty(w []rules.WeaponID) []rules.WeaponID {
	if w == nil {
		return []rules.WeaponID{}
	}
	return w
}
