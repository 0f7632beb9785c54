// Package formula evaluates the restricted arithmetic expressions used by
// rule data: spell cap formulas, starting-skill caps, and user overrides.
// Expressions are parsed into a closed node set and walked directly; nothing
// outside that node set can execute.
package formula

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// SyntaxError is returned when an expression contains a construct outside
// the allowed sublanguage. The expression is rejected before evaluation.
type SyntaxError struct {
	Expr   string
	Detail string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid formula %q: %s", e.Expr, e.Detail)
}

// UnknownVariableError is returned when an expression references a name
// absent from the supplied variable map.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown variable: %s", e.Name)
}

// roundUpRe rewrites postfix "round up"/"round down" phrases into function
// calls before parsing. Handles "(expr) round up" and "expr / n round up".
var (
	roundUpRe   = regexp.MustCompile(`(?i)^(.*?)\s*round\s*up\s*$`)
	roundDownRe = regexp.MustCompile(`(?i)^(.*?)\s*round\s*down\s*$`)
)

// normalize rewrites informal authoring shorthand into parseable syntax.
func normalize(expr string) string {
	s := strings.TrimSpace(expr)
	if m := roundUpRe.FindStringSubmatch(s); m != nil {
		s = "ceil(" + strings.TrimSpace(m[1]) + ")"
	} else if m := roundDownRe.FindStringSubmatch(s); m != nil {
		s = "floor(" + strings.TrimSpace(m[1]) + ")"
	}
	return s
}

// Eval parses and evaluates expr against vars, truncating the result to an
// integer. Missing variables and disallowed syntax fail with typed errors.
func Eval(expr string, vars map[string]float64) (int, error) {
	f, err := EvalRaw(expr, vars)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// EvalRaw is Eval without the integer coercion, for callers that need the
// untruncated numeric result.
func EvalRaw(expr string, vars map[string]float64) (float64, error) {
	node, err := Parse(expr)
	if err != nil {
		return 0, err
	}
	return node.eval(vars)
}

// Parse normalizes and parses expr, returning the expression tree. Parsing
// an expression once and evaluating it many times avoids re-lexing hot
// formulas (the derived-stat snapshot evaluates the same cap formulas for
// every spellcasting source).
func Parse(expr string) (Node, error) {
	toks, err := lex(normalize(expr))
	if err != nil {
		return nil, &SyntaxError{Expr: expr, Detail: err.Error()}
	}
	p := &parser{toks: toks}
	node, err := p.parseExpr()
	if err != nil {
		return nil, &SyntaxError{Expr: expr, Detail: err.Error()}
	}
	if p.pos != len(p.toks) {
		return nil, &SyntaxError{Expr: expr, Detail: fmt.Sprintf("unexpected %q", p.toks[p.pos].text)}
	}
	return node, nil
}

// Node is one node of the parsed expression tree. The concrete types form a
// closed set: literal, variable, unary, binary, call. Nothing else parses.
type Node interface {
	eval(vars map[string]float64) (float64, error)
}

type literal struct{ value float64 }

type variable struct{ name string }

type unary struct {
	op    byte // '+' or '-'
	child Node
}

type binary struct {
	op          string // "+", "-", "*", "/", "//", "%", "^"
	left, right Node
}

type call struct {
	fn   string
	args []Node
}

func (n literal) eval(map[string]float64) (float64, error) { return n.value, nil }

func (n variable) eval(vars map[string]float64) (float64, error) {
	v, ok := vars[n.name]
	if !ok {
		return 0, &UnknownVariableError{Name: n.name}
	}
	return v, nil
}

func (n unary) eval(vars map[string]float64) (float64, error) {
	v, err := n.child.eval(vars)
	if err != nil {
		return 0, err
	}
	if n.op == '-' {
		return -v, nil
	}
	return v, nil
}

func (n binary) eval(vars map[string]float64) (float64, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return l / r, nil
	case "//":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return math.Floor(l / r), nil
	case "%":
		if r == 0 {
			return 0, fmt.Errorf("modulo by zero")
		}
		return math.Mod(l, r), nil
	case "^":
		return math.Pow(l, r), nil
	}
	return 0, fmt.Errorf("unknown operator %q", n.op)
}

// funcSynonyms folds authoring variants onto the canonical function names.
var funcSynonyms = map[string]string{
	"round_up":   "ceil",
	"roundup":    "ceil",
	"ceiling":    "ceil",
	"round_down": "floor",
	"rounddown":  "floor",
}

func (n call) eval(vars map[string]float64) (float64, error) {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(vars)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	switch n.fn {
	case "floor":
		return math.Floor(args[0]), nil
	case "ceil":
		return math.Ceil(args[0]), nil
	case "round":
		return math.Round(args[0]), nil
	case "abs":
		return math.Abs(args[0]), nil
	case "int":
		return math.Trunc(args[0]), nil
	case "min":
		m := args[0]
		for _, v := range args[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case "max":
		m := args[0]
		for _, v := range args[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	}
	return 0, fmt.Errorf("unknown function %q", n.fn)
}

// arity maps canonical function names to (min, max) argument counts.
// max = -1 means variadic.
var arity = map[string][2]int{
	"floor": {1, 1},
	"ceil":  {1, 1},
	"round": {1, 1},
	"abs":   {1, 1},
	"int":   {1, 1},
	"min":   {1, -1},
	"max":   {1, -1},
}
