package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// SanitizeName trims a display name and collapses internal whitespace.
// Control characters are removed.
func SanitizeName(name string) string {
	return strings.Join(strings.Fields(removeControlChars(name)), " ")
}

// ValidateStringLength validates that a string is within the specified length
// constraints, counted in characters.
func ValidateStringLength(field, value string, min, max int) error {
	length := utf8.RuneCountInString(value)

	if min > 0 && length < min {
		return fmt.Errorf("%w: %s must be at least %d characters long", domain.ErrInvalidInput, field, min)
	}

	if max > 0 && length > max {
		return fmt.Errorf("%w: %s must be at most %d characters long", domain.ErrInvalidInput, field, max)
	}

	return nil
}

// removeControlChars removes control characters except newline and tab.
func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
