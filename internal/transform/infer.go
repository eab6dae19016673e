// Package transform classifies the edit between an original and a corrected
// string into one of a fixed set of transformation labels.
package transform

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Infer classifies the edit between original and corrected into a single
// transformation label. Rules are evaluated in strict priority order and the
// first match wins: specific rules (decimal separators, case changes) must
// run before the generic removal/replacement rules or equal-length inputs
// like ("1,234", "1.234") would be misread as character replacements.
//
// The decimal-separator rules fire whenever a full substitution reproduces
// the corrected string, which is ambiguous for values mixing thousands and
// decimal separators ("1,234" -> "1.234"). That bias toward the decimal
// label is a known limitation kept for compatibility with existing data.
func Infer(original, corrected string) string {
	if strings.Contains(original, ",") && strings.Contains(corrected, ".") &&
		strings.ReplaceAll(original, ",", ".") == corrected {
		return "decimal_comma_to_dot"
	}

	if strings.Contains(original, ".") && strings.Contains(corrected, ",") &&
		strings.ReplaceAll(original, ".", ",") == corrected {
		return "decimal_dot_to_comma"
	}

	if strings.ReplaceAll(original, " ", "") == corrected {
		return "remove_spaces"
	}

	if strings.ReplaceAll(corrected, " ", "") == original {
		return "add_spaces"
	}

	// Case changes must be checked before the generic replacement rules:
	// ("acme", "ACME") has 4 differing positions but is a case change.
	if strings.ToLower(original) == strings.ToLower(corrected) {
		switch {
		case isUpper(corrected):
			return "to_uppercase"
		case isLower(corrected):
			return "to_lowercase"
		case isTitle(corrected):
			return "to_titlecase"
		}
		// Mixed-case rearrangements fall through to the rules below.
	}

	if strings.ContainsAny(original, "/-") && strings.ContainsAny(corrected, "/-") {
		return "date_format_change"
	}

	if isAlnum(corrected) && !isAlnum(original) {
		return "remove_punctuation"
	}

	origRunes := []rune(original)
	corrRunes := []rune(corrected)

	if len(corrRunes) < len(origRunes) && containsAll(original, corrRunes) {
		return "remove_chars_" + strings.Join(removedChars(origRunes, corrected), ",")
	}

	if len(origRunes) == len(corrRunes) {
		diff := 0
		for i := range origRunes {
			if origRunes[i] != corrRunes[i] {
				diff++
			}
		}
		switch {
		case diff == 1:
			return "single_char_replace"
		case diff <= 3:
			return "few_chars_replace"
		}
	}

	return "other_transformation"
}

// LabelFor returns the transformation label for a heterogeneous value pair.
// When both values are strings it defers to Infer; otherwise it falls back
// to a type-pair label such as "float64_to_string".
func LabelFor(original, corrected any) string {
	origStr, origOK := original.(string)
	corrStr, corrOK := corrected.(string)
	if origOK && corrOK {
		return Infer(origStr, corrStr)
	}
	return typeName(original) + "_to_" + typeName(corrected)
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

// isUpper reports whether s contains at least one cased rune and every cased
// rune is upper case.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// isLower reports whether s contains at least one cased rune and every cased
// rune is lower case.
func isLower(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsUpper(r) {
			return false
		}
		if unicode.IsLower(r) {
			cased = true
		}
	}
	return cased
}

// isTitle reports whether every word in s starts with an upper-case rune
// followed only by lower-case cased runes.
func isTitle(s string) bool {
	cased := false
	prevCased := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			if prevCased {
				return false
			}
			cased = true
			prevCased = true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased = true
		default:
			prevCased = false
		}
	}
	return cased
}

// isAlnum reports whether s is non-empty and every rune is a letter or digit.
func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func containsAll(haystack string, runes []rune) bool {
	for _, r := range runes {
		if !strings.ContainsRune(haystack, r) {
			return false
		}
	}
	return true
}

// removedChars returns the sorted set of runes present in the original but
// absent from the corrected string.
func removedChars(origRunes []rune, corrected string) []string {
	seen := make(map[rune]bool)
	var removed []string
	for _, r := range origRunes {
		if !seen[r] && !strings.ContainsRune(corrected, r) {
			seen[r] = true
			removed = append(removed, string(r))
		}
	}
	sort.Strings(removed)
	return removed
}
