package identification

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// NormalizeName cleans up a handwritten name reading for display: collapsed
// whitespace, title case, and "Last, First" flipped to "First Last".
func NormalizeName(raw string) string {
	name := collapseSpaces(raw)
	if name == "" {
		return ""
	}
	if before, after, found := strings.Cut(name, ","); found {
		first := collapseSpaces(after)
		last := collapseSpaces(before)
		if first != "" && last != "" {
			name = first + " " + last
		}
	}
	return titleCaser.String(strings.ToLower(name))
}

// nameKey is the comparison form used for roster matching. Two names match
// when their keys are equal, so casing, surrounding whitespace, and the
// "Last, First" convention never block a match.
func nameKey(raw string) string {
	return strings.ToLower(NormalizeName(raw))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// codeKey folds a printed student code for exact matching.
func codeKey(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
