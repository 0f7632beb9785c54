package database

import "strings"

// SQLiteDialect implements Dialect for the modernc.org/sqlite driver.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string {
	return "sqlite"
}

// Placeholder is always "?"; SQLite placeholders are positional.
func (d *SQLiteDialect) Placeholder(position int) string {
	return "?"
}

func (d *SQLiteDialect) SupportsLastInsertID() bool {
	return true
}

func (d *SQLiteDialect) ReturningClause(column string) string {
	return ""
}

// InitStatements enables foreign keys, switches to WAL for concurrent
// readers, and waits on locks instead of failing immediately.
func (d *SQLiteDialect) InitStatements() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
}

func (d *SQLiteDialect) IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (d *SQLiteDialect) CaseInsensitiveCollation() string {
	return "COLLATE NOCASE"
}
