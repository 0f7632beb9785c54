package database

// Dialect abstracts the SQL syntax differences between SQLite and
// PostgreSQL so the store code is written once with ? placeholders.
type Dialect interface {
	// DriverName returns the driver name passed to sql.Open().
	DriverName() string

	// Placeholder returns the parameter placeholder for a 1-indexed
	// position. SQLite ignores the position and always returns "?".
	Placeholder(position int) string

	// SupportsLastInsertID reports whether LastInsertId() works.
	// PostgreSQL needs a RETURNING clause instead.
	SupportsLastInsertID() bool

	// ReturningClause returns the RETURNING clause for INSERT statements
	// on dialects that need it, empty otherwise.
	ReturningClause(column string) string

	// InitStatements returns statements run once after connecting:
	// PRAGMAs for SQLite, extension setup for PostgreSQL.
	InitStatements() []string

	// IsDuplicateKeyError reports whether err is a unique constraint
	// violation.
	IsDuplicateKeyError(err error) bool

	// CaseInsensitiveCollation returns the collation appended to text
	// columns compared case-insensitively. PostgreSQL uses the CITEXT
	// type and returns "".
	CaseInsensitiveCollation() string
}

// DialectType identifies the database dialect.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
)

// NewDialect creates a Dialect for the given type, defaulting to SQLite.
func NewDialect(dialectType DialectType) Dialect {
	switch dialectType {
	case DialectPostgres:
		return &PostgresDialect{}
	default:
		return &SQLiteDialect{}
	}
}
