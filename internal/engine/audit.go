package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditFact is one immutable record of a successful mutation.
type AuditFact struct {
	ID          string
	At          time.Time
	ActorID     string
	ActorName   string
	ActorRole   string
	CharacterID string
	Action      string
	Detail      string
}

// AuditSink receives audit facts. Record must not fail; sinks that
// persist asynchronously own their own error handling.
type AuditSink interface {
	Record(fact AuditFact)
}

func newFact(actor Actor, characterID, action, detail string) AuditFact {
	return AuditFact{
		ID:          uuid.NewString(),
		At:          time.Now().UTC(),
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		ActorRole:   actor.Role,
		CharacterID: characterID,
		Action:      action,
		Detail:      detail,
	}
}

// MemorySink keeps facts in memory, oldest first. Useful for tests and
// for serving a recent-activity view without a database round trip.
type MemorySink struct {
	mu    sync.Mutex
	facts []AuditFact
}

// Record appends the fact.
func (s *MemorySink) Record(fact AuditFact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts = append(s.facts, fact)
}

// Facts returns a copy of the recorded facts.
func (s *MemorySink) Facts() []AuditFact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditFact, len(s.facts))
	copy(out, s.facts)
	return out
}

type discardSink struct{}

func (discardSink) Record(AuditFact) {}
