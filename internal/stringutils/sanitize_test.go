package stringutils_test

import (
	"testing"

	"github.com/habiliai/dataagent/internal/stringutils"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeUnicodeString(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "cell value with null byte",
			input:    "acme\u0000corp",
			expected: "acmecorp",
		},
		{
			name:     "cell value with control characters",
			input:    "rev\u0001\u001f\u007fenue",
			expected: "revenue",
		},
		{
			name:     "whitespace is kept",
			input:    "a\tb\nc\rd",
			expected: "a\tb\nc\rd",
		},
		{
			name:     "clean value",
			input:    "north america",
			expected: "north america",
		},
		{
			name:     "C1 control characters",
			input:    "eu\u0080\u009frope",
			expected: "europe",
		},
		{
			name:     "invalid utf-8",
			input:    "ok\xffok",
			expected: "okok",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stringutils.SanitizeUnicodeString(tc.input))
		})
	}
}
