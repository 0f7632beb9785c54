package stats

import "testing"

func TestModifier(t *testing.T) {
	// floor((score - 10) / 2); odd scores round toward negative infinity
	tests := []struct {
		score    int
		expected int
	}{
		{1, -5},
		{7, -2},
		{8, -1},
		{9, -1},
		{10, 0},
		{11, 0},
		{12, 1},
		{14, 2},
		{16, 3},
		{18, 4},
		{20, 5},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			result := Modifier(tt.score)
			if result != tt.expected {
				t.Errorf("Modifier(%d) = %d, expected %d", tt.score, result, tt.expected)
			}
		})
	}
}

func TestParseAbility(t *testing.T) {
	tests := []struct {
		input    string
		expected Ability
		wantErr  bool
	}{
		{"strength", Strength, false},
		{"STR", Strength, false},
		{" Dexterity ", Dexterity, false},
		{"int", Intelligence, false},
		{"cha", Charisma, false},
		{"luck", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAbility(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAbility(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAbility(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseAbility(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestScoresGetSet(t *testing.T) {
	scores := DefaultScores()
	scores = scores.Set(Intelligence, 16)

	if scores.Intelligence != 16 {
		t.Errorf("Intelligence = %d, expected 16", scores.Intelligence)
	}
	if scores.Get(Intelligence) != 16 {
		t.Errorf("Get(Intelligence) = %d, expected 16", scores.Get(Intelligence))
	}
	if scores.Mod(Intelligence) != 3 {
		t.Errorf("Mod(Intelligence) = %d, expected 3", scores.Mod(Intelligence))
	}
	// Other scores untouched
	if scores.Strength != 10 {
		t.Errorf("Strength = %d, expected 10", scores.Strength)
	}
}

func TestScoresVariables(t *testing.T) {
	scores := DefaultScores().Set(Dexterity, 14).Set(Intelligence, 16)
	vars := scores.Variables()

	checks := map[string]float64{
		"dexterity":    14,
		"dex_mod":      2,
		"intelligence": 16,
		"int_mod":      3,
		"str_mod":      0,
		"strength_mod": 0,
	}
	for name, expected := range checks {
		if vars[name] != expected {
			t.Errorf("vars[%q] = %v, expected %v", name, vars[name], expected)
		}
	}
}
