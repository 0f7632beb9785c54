package override

import (
	"fmt"
	"strings"

	"github.com/ironlantern/charforge/internal/formula"
)

// Layers holds the resolvable layers for one field, in precedence order:
// system value, optional formula, optional final value, additive deltas.
type Layers struct {
	// System is the value computed from base rules.
	System int
	// SystemLabel describes how the system value was computed, for the
	// derivation trail (e.g. "prof + ½ level"). Empty shows the number.
	SystemLabel string
	// Formula, when non-empty, is evaluated against the variable context
	// plus "base" (the system value). A leading + or - makes it an
	// adjustment; otherwise it replaces the system value.
	Formula string
	// Final, when set, replaces the running value outright.
	Final *int
	// Deltas are summed and added after all other layers.
	Deltas []Delta
}

// Result is a resolved value with its human-readable derivation trail.
type Result struct {
	Value      int
	Derivation string
}

// Resolve composes the layers over the variable context. vars may be nil
// when no formula is present.
func Resolve(l Layers, vars map[string]float64) (Result, error) {
	value := l.System

	var trail strings.Builder
	if l.SystemLabel != "" {
		fmt.Fprintf(&trail, "%s = %d", l.SystemLabel, l.System)
	} else {
		fmt.Fprintf(&trail, "%d", l.System)
	}

	if l.Formula != "" {
		ctx := make(map[string]float64, len(vars)+1)
		for k, v := range vars {
			ctx[k] = v
		}
		ctx["base"] = float64(l.System)
		evaluated, err := formula.Eval(l.Formula, ctx)
		if err != nil {
			return Result{}, err
		}
		if isAdjustment(l.Formula) {
			value = l.System + evaluated
			fmt.Fprintf(&trail, ", formula %s → %d", strings.TrimSpace(l.Formula), value)
		} else {
			value = evaluated
			fmt.Fprintf(&trail, ", formula %s = %d", strings.TrimSpace(l.Formula), value)
		}
	}

	if l.Final != nil {
		value = *l.Final
		fmt.Fprintf(&trail, ", final %d", value)
	}

	for _, d := range l.Deltas {
		value += d.Amount
		fmt.Fprintf(&trail, " %+d (%s)", d.Amount, d.Reason)
	}

	return Result{Value: value, Derivation: trail.String()}, nil
}

// isAdjustment reports whether the formula's leading sign marks it as an
// adjustment to the system value rather than a replacement.
func isAdjustment(expr string) bool {
	trimmed := strings.TrimSpace(expr)
	return strings.HasPrefix(trimmed, "+") || strings.HasPrefix(trimmed, "-")
}
