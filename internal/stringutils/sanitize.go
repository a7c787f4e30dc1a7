package stringutils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeUnicodeString drops NUL, C0/C1 control characters and invalid runes,
// keeping tab, newline and carriage return. Warehouse values pass through it
// before they reach a model or a terminal.
func SanitizeUnicodeString(s string) string {
	if utf8.ValidString(s) && !hasControlChars(s) {
		return s
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r == utf8.RuneError:
			return -1
		case isControl(r):
			return -1
		case unicode.IsPrint(r) || unicode.IsSpace(r):
			return r
		default:
			return -1
		}
	}, s)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return r < 32 || r == 127 || (r >= 128 && r <= 159)
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if isControl(r) {
			return true
		}
	}
	return false
}
