package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ironlantern/charforge/internal/engine"
)

// AuditSink persists engine audit facts to the audit_log table. Record
// cannot return an error, so write failures are logged and dropped; the
// mutation they describe has already committed.
type AuditSink struct {
	db *Database
}

// NewAuditSink builds a sink writing to the given database.
func NewAuditSink(db *Database) *AuditSink {
	return &AuditSink{db: db}
}

// Record writes one fact.
func (s *AuditSink) Record(fact engine.AuditFact) {
	q := s.db.qb.Build(`INSERT INTO audit_log
		(id, at, actor_id, actor_name, actor_role, character_id, action, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.db.Exec(q,
		fact.ID, fact.At, fact.ActorID, fact.ActorName, fact.ActorRole,
		fact.CharacterID, fact.Action, fact.Detail); err != nil {
		slog.Error("audit write failed", "action", fact.Action, "character", fact.CharacterID, "error", err)
	}
}

// RecentFacts returns the newest facts for a character, most recent first.
func (d *Database) RecentFacts(ctx context.Context, characterID string, limit int) ([]engine.AuditFact, error) {
	rows, err := d.db.QueryContext(ctx, d.qb.Build(`SELECT
		id, at, actor_id, actor_name, actor_role, character_id, action, detail
		FROM audit_log WHERE character_id = ? ORDER BY at DESC LIMIT ?`), characterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()
	var out []engine.AuditFact
	for rows.Next() {
		var f engine.AuditFact
		var at time.Time
		if err := rows.Scan(&f.ID, &at, &f.ActorID, &f.ActorName, &f.ActorRole,
			&f.CharacterID, &f.Action, &f.Detail); err != nil {
			return nil, fmt.Errorf("scan audit fact: %w", err)
		}
		f.At = at
		out = append(out, f)
	}
	return out, rows.Err()
}
