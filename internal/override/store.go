package override

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/ironlantern/charforge/internal/formula"
)

// ErrMissingReason is returned when a mutation omits the mandatory reason.
var ErrMissingReason = errors.New("override mutations require a non-empty reason")

// ErrNotFound is returned when clearing an override that does not exist.
var ErrNotFound = errors.New("override not found")

// Record is the persisted form of one override layer entry.
type Record struct {
	Key    string // layer-prefixed serialized key, e.g. "formula:skill:stealth:0"
	Value  string
	Reason string
}

// Delta is one additive adjustment with its own reason.
type Delta struct {
	ID     string
	Amount int
	Reason string
}

// Store holds the override layers for a single character. Not safe for
// concurrent mutation; the engine serializes writes per character.
type Store struct {
	records map[string]Record
}

// NewStore creates an empty override store.
func NewStore() *Store {
	return &Store{records: make(map[string]Record)}
}

// FromRecords rebuilds a store from persisted records.
func FromRecords(records []Record) *Store {
	s := NewStore()
	for _, r := range records {
		s.records[r.Key] = r
	}
	return s
}

// Records returns all entries sorted by key, for persistence.
func (s *Store) Records() []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func formulaKey(k Key) string { return "formula:" + k.String() }
func finalKey(k Key) string   { return "final:" + k.String() }
func deltaPrefix(k Key) string {
	return "delta:" + k.String() + ":"
}

// SetFormula installs or replaces the formula override for a key. The
// formula must parse and the reason must be non-empty.
func (s *Store) SetFormula(k Key, expr, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrMissingReason
	}
	if _, err := formula.Parse(expr); err != nil {
		return err
	}
	s.records[formulaKey(k)] = Record{Key: formulaKey(k), Value: expr, Reason: reason}
	return nil
}

// SetFinal installs or replaces the final-value override for a key.
func (s *Store) SetFinal(k Key, value int, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrMissingReason
	}
	s.records[finalKey(k)] = Record{Key: finalKey(k), Value: strconv.Itoa(value), Reason: reason}
	return nil
}

// AddDelta appends an additive delta for a key and returns its id.
func (s *Store) AddDelta(k Key, amount int, reason string) (string, error) {
	if strings.TrimSpace(reason) == "" {
		return "", ErrMissingReason
	}
	id := uuid.NewString()
	key := deltaPrefix(k) + id
	s.records[key] = Record{Key: key, Value: strconv.Itoa(amount), Reason: reason}
	return id, nil
}

// ClearFormula removes the formula override for a key.
func (s *Store) ClearFormula(k Key) error {
	return s.remove(formulaKey(k))
}

// ClearFinal removes the final-value override for a key.
func (s *Store) ClearFinal(k Key) error {
	return s.remove(finalKey(k))
}

// RemoveDelta removes one delta by id.
func (s *Store) RemoveDelta(k Key, id string) error {
	return s.remove(deltaPrefix(k) + id)
}

// ClearAll removes every layer for a key.
func (s *Store) ClearAll(k Key) {
	delete(s.records, formulaKey(k))
	delete(s.records, finalKey(k))
	prefix := deltaPrefix(k)
	for key := range s.records {
		if strings.HasPrefix(key, prefix) {
			delete(s.records, key)
		}
	}
}

func (s *Store) remove(key string) error {
	if _, ok := s.records[key]; !ok {
		return ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// Formula returns the formula override for a key, if present.
func (s *Store) Formula(k Key) (string, bool) {
	r, ok := s.records[formulaKey(k)]
	return r.Value, ok
}

// Final returns the final-value override for a key, if present.
func (s *Store) Final(k Key) (int, bool) {
	r, ok := s.records[finalKey(k)]
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(r.Value)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Deltas returns all deltas for a key, sorted by id for stable output.
func (s *Store) Deltas(k Key) []Delta {
	prefix := deltaPrefix(k)
	var out []Delta
	for key, r := range s.records {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		amount, err := strconv.Atoi(r.Value)
		if err != nil {
			continue
		}
		out = append(out, Delta{ID: strings.TrimPrefix(key, prefix), Amount: amount, Reason: r.Reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LayersFor assembles the resolvable layers for a key over a system value.
func (s *Store) LayersFor(k Key, system int, systemLabel string) Layers {
	l := Layers{System: system, SystemLabel: systemLabel}
	if expr, ok := s.Formula(k); ok {
		l.Formula = expr
	}
	if v, ok := s.Final(k); ok {
		l.Final = &v
	}
	l.Deltas = s.Deltas(k)
	return l
}
