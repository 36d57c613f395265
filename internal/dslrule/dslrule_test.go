package dslrule

import "testing"

func TestParse_Simple(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "single comparison", input: `amount > 1000`},
		{name: "and conjunction", input: `amount > 1000 and currency == "USD"`},
		{name: "or disjunction", input: `status == "flagged" or amount > 5000`},
		{name: "mixed and/or", input: `amount > 1000 and currency == "USD" or status == "flagged"`},
		{name: "bool literal", input: `reviewed == false`},
		{name: "bare identifier literal", input: `status == active`},
		{name: "not equal", input: `currency != "EUR"`},
		{name: "missing operator", input: `amount 1000`, wantErr: true},
		{name: "trailing and", input: `amount > 1000 and`, wantErr: true},
		{name: "empty", input: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if tt.wantErr && err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.input)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
		})
	}
}

func TestCompile_Evaluate(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		fields    map[string]any
		want      bool
	}{
		{
			name:      "simple numeric match",
			condition: `amount > 1000`,
			fields:    map[string]any{"amount": 2500.0},
			want:      true,
		},
		{
			name:      "simple numeric miss",
			condition: `amount > 1000`,
			fields:    map[string]any{"amount": 500.0},
			want:      false,
		},
		{
			name:      "and requires both",
			condition: `amount > 1000 and currency == "USD"`,
			fields:    map[string]any{"amount": 2500.0, "currency": "USD"},
			want:      true,
		},
		{
			name:      "and fails on second clause",
			condition: `amount > 1000 and currency == "USD"`,
			fields:    map[string]any{"amount": 2500.0, "currency": "EUR"},
			want:      false,
		},
		{
			name:      "or succeeds on either branch",
			condition: `amount > 1000 and currency == "USD" or status == "flagged"`,
			fields:    map[string]any{"amount": 5.0, "currency": "EUR", "status": "flagged"},
			want:      true,
		},
		{
			name:      "bool literal",
			condition: `reviewed == false`,
			fields:    map[string]any{"reviewed": false},
			want:      true,
		},
		{
			name:      "missing field never matches",
			condition: `amount > 1000`,
			fields:    map[string]any{"currency": "USD"},
			want:      false,
		},
		{
			name:      "bare identifier literal compares as string",
			condition: `status == active`,
			fields:    map[string]any{"status": "active"},
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := Compile(tt.condition)
			if err != nil {
				t.Fatalf("Compile(%q) failed: %v", tt.condition, err)
			}

			fact := &Fact{Type: "order", Fields: tt.fields}
			if got := cond([]any{fact}); got != tt.want {
				t.Errorf("Compile(%q)(%v) = %v, want %v", tt.condition, tt.fields, got, tt.want)
			}
		})
	}
}

func TestCompile_RejectsInvalidSyntax(t *testing.T) {
	if _, err := Compile(`amount 1000`); err == nil {
		t.Fatal("Compile accepted invalid syntax")
	}
}

func TestCompile_NonFactTuple(t *testing.T) {
	cond, err := Compile(`amount > 1000`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if cond([]any{"not-a-fact"}) {
		t.Error("condition matched a non-Fact tuple element")
	}
	if cond(nil) {
		t.Error("condition matched an empty tuple")
	}
}
