package formula

import (
	"errors"
	"testing"
)

func TestEval(t *testing.T) {
	tests := []struct {
		expr     string
		vars     map[string]float64
		expected int
	}{
		{"1 + 2", nil, 3},
		{"2 * 3 + 4", nil, 10},
		{"2 + 3 * 4", nil, 14},
		{"(2 + 3) * 4", nil, 20},
		{"10 / 4", nil, 2}, // truncated to int
		{"10 // 4", nil, 2},
		{"7 % 3", nil, 1},
		{"-5 + 3", nil, -2},
		{"--4", nil, 4},
		{"a^2", map[string]float64{"a": 3}, 9},
		{"2^3^2", nil, 512}, // right associative
		{"floor(level/2)+1", map[string]float64{"level": 5}, 3},
		{"ceil(x/2)", map[string]float64{"x": 7}, 4},
		{"round(2.5)", nil, 3},
		{"abs(-7)", nil, 7},
		{"int(3.9)", nil, 3},
		{"min(3, 1, 2)", nil, 1},
		{"max(3, 1, 2)", nil, 3},
		{"min(dex_mod, 2)", map[string]float64{"dex_mod": 4}, 2},
		{"3 + int_mod", map[string]float64{"int_mod": 3}, 6},
		// Synonyms for ceil/floor.
		{"round_up(5/2)", nil, 3},
		{"roundup(5/2)", nil, 3},
		{"ceiling(5/2)", nil, 3},
		{"round_down(5/2)", nil, 2},
		{"rounddown(5/2)", nil, 2},
		// Postfix round phrases are rewritten before parsing.
		{"(level / 2) round up", map[string]float64{"level": 5}, 3},
		{"level / 2 round down", map[string]float64{"level": 5}, 2},
		{"5/2 ROUND UP", nil, 3},
		// Variable names are case-folded at lex time.
		{"Level + 1", map[string]float64{"level": 4}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			result, err := Eval(tt.expr, tt.vars)
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.expr, err)
			}
			if result != tt.expected {
				t.Errorf("Eval(%q) = %d, expected %d", tt.expr, result, tt.expected)
			}
		})
	}
}

func TestEvalDeterministic(t *testing.T) {
	vars := map[string]float64{"level": 9, "int_mod": 4}
	first, err := Eval("ceil(level/2) + int_mod", vars)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	for i := 0; i < 100; i++ {
		again, err := Eval("ceil(level/2) + int_mod", vars)
		if err != nil {
			t.Fatalf("Eval error on repeat %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("Eval not deterministic: got %d then %d", first, again)
		}
	}
}

func TestEvalUnknownVariable(t *testing.T) {
	_, err := Eval("unknown_var", map[string]float64{})
	var unknownErr *UnknownVariableError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownVariableError, got %v", err)
	}
	if unknownErr.Name != "unknown_var" {
		t.Errorf("Name = %q, expected %q", unknownErr.Name, "unknown_var")
	}
}

func TestEvalSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"attribute access", "character.level"},
		{"indexing", "scores[0]"},
		{"string literal", `"hello"`},
		{"statement", "x = 1"},
		{"comparison", "a < b"},
		{"disallowed function", "exec(1)"},
		{"disallowed builtin", "len(x)"},
		{"unbalanced paren", "(1 + 2"},
		{"trailing operator", "1 +"},
		{"bad number", "1.2.3"},
		{"wrong arity", "floor(1, 2)"},
		{"no args", "min()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eval(tt.expr, map[string]float64{"a": 1, "b": 2, "x": 3})
			var synErr *SyntaxError
			if !errors.As(err, &synErr) {
				t.Errorf("Eval(%q) expected SyntaxError, got %v", tt.expr, err)
			}
		})
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	for _, expr := range []string{"1/0", "1//0", "1%0"} {
		if _, err := Eval(expr, nil); err == nil {
			t.Errorf("Eval(%q) expected error, got none", expr)
		}
	}
}

func TestEvalRaw(t *testing.T) {
	result, err := EvalRaw("7/2", nil)
	if err != nil {
		t.Fatalf("EvalRaw error: %v", err)
	}
	if result != 3.5 {
		t.Errorf("EvalRaw(7/2) = %v, expected 3.5", result)
	}
}

func TestParseReuse(t *testing.T) {
	node, err := Parse("3 + int_mod")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	for _, tc := range []struct {
		mod      float64
		expected float64
	}{{3, 6}, {0, 3}, {-1, 2}} {
		got, err := node.eval(map[string]float64{"int_mod": tc.mod})
		if err != nil {
			t.Fatalf("eval error: %v", err)
		}
		if got != tc.expected {
			t.Errorf("eval with int_mod=%v = %v, expected %v", tc.mod, got, tc.expected)
		}
	}
}
