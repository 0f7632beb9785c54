package database

import (
	"fmt"
	"strings"
)

// PostgresDialect implements Dialect for the lib/pq driver.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string {
	return "postgres"
}

// Placeholder returns "$N"; PostgreSQL placeholders are numbered.
func (d *PostgresDialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

func (d *PostgresDialect) SupportsLastInsertID() bool {
	return false
}

func (d *PostgresDialect) ReturningClause(column string) string {
	return fmt.Sprintf(" RETURNING %s", column)
}

// InitStatements enables citext for case-insensitive name columns.
// Foreign keys need no setup in PostgreSQL.
func (d *PostgresDialect) InitStatements() []string {
	return []string{
		"CREATE EXTENSION IF NOT EXISTS citext",
	}
}

// IsDuplicateKeyError matches error code 23505 (unique_violation).
func (d *PostgresDialect) IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "23505") ||
		strings.Contains(errStr, "unique constraint")
}

// CaseInsensitiveCollation is empty; name columns use CITEXT instead.
func (d *PostgresDialect) CaseInsensitiveCollation() string {
	return ""
}
