package database

import "strings"

// QueryBuilder rewrites queries written with ? placeholders into the
// dialect's placeholder style.
type QueryBuilder struct {
	dialect Dialect
}

// NewQueryBuilder creates a QueryBuilder for the given dialect.
func NewQueryBuilder(dialect Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: dialect}
}

// Build converts ? placeholders to the dialect's form. SQLite queries
// pass through unchanged; PostgreSQL gets $1, $2, and so on.
func (qb *QueryBuilder) Build(query string) string {
	if _, ok := qb.dialect.(*SQLiteDialect); ok {
		return query
	}
	var result strings.Builder
	position := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result.WriteString(qb.dialect.Placeholder(position))
			position++
		} else {
			result.WriteByte(query[i])
		}
	}
	return result.String()
}

// BuildWithReturning appends a RETURNING clause on dialects that cannot
// report LastInsertId.
func (qb *QueryBuilder) BuildWithReturning(query string, column string) string {
	converted := qb.Build(query)
	if !qb.dialect.SupportsLastInsertID() {
		converted += qb.dialect.ReturningClause(column)
	}
	return converted
}
