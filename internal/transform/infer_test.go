package transform

import "testing"

func TestInfer(t *testing.T) {
	tests := []struct {
		name      string
		original  string
		corrected string
		want      string
	}{
		{"decimal comma to dot", "1234,56", "1234.56", "decimal_comma_to_dot"},
		{"decimal dot to comma", "1234.56", "1234,56", "decimal_dot_to_comma"},
		{"remove spaces", "1 234 567", "1234567", "remove_spaces"},
		{"add spaces", "1234567", "1 234 567", "add_spaces"},
		{"to uppercase", "acme", "ACME", "to_uppercase"},
		{"to lowercase", "ACME", "acme", "to_lowercase"},
		{"to titlecase", "acme corp", "Acme Corp", "to_titlecase"},
		{"date format change", "01/02/2024", "2024-02-01", "date_format_change"},
		{"remove punctuation", "12.345!", "12345", "remove_punctuation"},
		{"remove chars", "abcde", "abd", "remove_chars_c,e"},
		{"single char replace", "O123", "0123", "single_char_replace"},
		{"few chars replace", "OI23", "0123", "few_chars_replace"},
		{"other", "completely", "different!", "other_transformation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Infer(tt.original, tt.corrected); got != tt.want {
				t.Errorf("Infer(%q, %q) = %q, want %q", tt.original, tt.corrected, got, tt.want)
			}
		})
	}
}

// Equal-length decimal swaps must hit the separator rule, not the generic
// replacement rule.
func TestInfer_DecimalPrecedence(t *testing.T) {
	if got := Infer("1,234", "1.234"); got != "decimal_comma_to_dot" {
		t.Errorf(`Infer("1,234", "1.234") = %q, want "decimal_comma_to_dot"`, got)
	}
}

// Case changes must win over the generic replacement rules even when the
// number of differing positions is small.
func TestInfer_CasePrecedence(t *testing.T) {
	if got := Infer("Acme Corp", "ACME CORP"); got != "to_uppercase" {
		t.Errorf(`Infer("Acme Corp", "ACME CORP") = %q, want "to_uppercase"`, got)
	}
}

func TestInfer_EmptyStrings(t *testing.T) {
	// Empty strings must not panic; the space-removal rule trivially
	// matches when both sides are empty.
	if got := Infer("", ""); got != "remove_spaces" {
		t.Errorf(`Infer("", "") = %q, want "remove_spaces"`, got)
	}
	if got := Infer("a b", ""); got == "" {
		t.Error("expected non-empty label for empty corrected value")
	}
}

func TestInfer_MixedCaseFallsThrough(t *testing.T) {
	// Case-insensitively equal but neither upper, lower nor title case:
	// the case rule emits nothing and later rules decide.
	got := Infer("abcd", "aBcD")
	if got != "few_chars_replace" {
		t.Errorf(`Infer("abcd", "aBcD") = %q, want "few_chars_replace"`, got)
	}
}

func TestLabelFor(t *testing.T) {
	if got := LabelFor("1,2", "1.2"); got != "decimal_comma_to_dot" {
		t.Errorf("LabelFor string pair = %q", got)
	}
	if got := LabelFor(12.5, "12.5"); got != "float64_to_string" {
		t.Errorf("LabelFor(12.5, \"12.5\") = %q, want \"float64_to_string\"", got)
	}
	if got := LabelFor(nil, "x"); got != "nil_to_string" {
		t.Errorf("LabelFor(nil, \"x\") = %q, want \"nil_to_string\"", got)
	}
}
