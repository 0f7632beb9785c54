// Package database persists character aggregates and the audit log. It
// speaks SQLite for single-host deployments and PostgreSQL for shared
// ones, behind a small dialect abstraction.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Database wraps the connection and provides persistence operations.
type Database struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open opens the database described by cfg and runs schema migrations.
func Open(cfg Config) (*Database, error) {
	dialect := NewDialect(DialectType(cfg.Driver))

	var dsn string
	switch dialect.(type) {
	case *PostgresDialect:
		p := cfg.Postgres
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dsn = cfg.SQLitePath
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, ok := dialect.(*PostgresDialect); ok {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init statement %q: %w", stmt, err)
		}
	}

	d := &Database{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// migrate creates the schema if it doesn't exist. Child tables cascade on
// character deletion so DeleteCharacter is one statement.
func (d *Database) migrate() error {
	collate := d.dialect.CaseInsensitiveCollation()
	nameType := "TEXT"
	if _, ok := d.dialect.(*PostgresDialect); ok {
		nameType = "CITEXT"
	}

	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS characters (
			id TEXT PRIMARY KEY,
			name %s UNIQUE NOT NULL %s,
			strength INTEGER NOT NULL DEFAULT 10,
			dexterity INTEGER NOT NULL DEFAULT 10,
			constitution INTEGER NOT NULL DEFAULT 10,
			intelligence INTEGER NOT NULL DEFAULT 10,
			wisdom INTEGER NOT NULL DEFAULT 10,
			charisma INTEGER NOT NULL DEFAULT 10,
			level INTEGER NOT NULL DEFAULT 0,
			hp_max INTEGER NOT NULL DEFAULT 0,
			class_levels TEXT NOT NULL DEFAULT '{}',
			history TEXT NOT NULL DEFAULT '[]',
			subclasses TEXT NOT NULL DEFAULT '{}',
			hp_gains TEXT NOT NULL DEFAULT '{}',
			skill_tiers TEXT NOT NULL DEFAULT '{}',
			weapons TEXT NOT NULL DEFAULT '[]',
			armor TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, nameType, collate),

		`CREATE TABLE IF NOT EXISTS character_features (
			id TEXT PRIMARY KEY,
			character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
			feature TEXT NOT NULL DEFAULT '',
			racial_feature TEXT NOT NULL DEFAULT '',
			subclass TEXT NOT NULL DEFAULT '',
			option TEXT NOT NULL DEFAULT '',
			at_level INTEGER NOT NULL,
			position INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS skill_transactions (
			id TEXT PRIMARY KEY,
			character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
			amount INTEGER NOT NULL,
			source TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			at_level INTEGER NOT NULL,
			class TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS known_spells (
			character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
			spell TEXT NOT NULL,
			origin TEXT NOT NULL,
			rank INTEGER NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (character_id, spell, origin)
		)`,

		`CREATE TABLE IF NOT EXISTS prepared_spells (
			character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
			spell TEXT NOT NULL,
			origin TEXT NOT NULL,
			rank INTEGER NOT NULL,
			position INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS override_records (
			character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
			key TEXT NOT NULL,
			value TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (character_id, key)
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			at TIMESTAMP NOT NULL,
			actor_id TEXT NOT NULL DEFAULT '',
			actor_name TEXT NOT NULL DEFAULT '',
			actor_role TEXT NOT NULL DEFAULT '',
			character_id TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE INDEX IF NOT EXISTS idx_features_character ON character_features(character_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_character ON skill_transactions(character_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_character ON audit_log(character_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// DB returns the underlying sql.DB for advanced operations.
func (d *Database) DB() *sql.DB {
	return d.db
}
