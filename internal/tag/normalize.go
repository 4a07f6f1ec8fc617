package tag

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sundayezeilo/pinboard/internal/validation"
)

// NormalizeName returns the canonical form of a tag name: surrounding space
// trimmed, NFC composed and lowercased. Two names are the same tag iff their
// normalized forms are equal.
func NormalizeName(raw string) string {
	// A Caser carries state and must not be shared between goroutines.
	return cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(raw)))
}

// NormalizeNames normalizes every name, drops empties and removes
// duplicates, keeping the first occurrence of each.
func NormalizeNames(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		name := NormalizeName(r)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ValidateName checks an already normalized name.
func ValidateName(field, name string) error {
	switch {
	case name == "":
		return validation.NewError(field, "is required")
	case utf8.RuneCountInString(name) > MaxNameLength:
		return validation.NewError(field, fmt.Sprintf("must not exceed %d characters", MaxNameLength))
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return validation.NewError(field, "must not contain control characters")
	}
	return nil
}
