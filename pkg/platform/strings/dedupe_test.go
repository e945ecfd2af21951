package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims and drops empties",
			input:    []string{"  https://img.test/a.jpg ", "", "   ", "https://img.test/b.jpg"},
			expected: []string{"https://img.test/a.jpg", "https://img.test/b.jpg"},
		},
		{
			name:     "first occurrence wins",
			input:    []string{"a", "b", "a", "c", "b"},
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "case-sensitive, so URL paths survive",
			input:    []string{"https://img.test/A.jpg", "https://img.test/a.jpg"},
			expected: []string{"https://img.test/A.jpg", "https://img.test/a.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "collapses provider casing variants",
			input:    []string{"Outdoor Seating", "outdoor seating", "OUTDOOR SEATING"},
			expected: []string{"outdoor seating"},
		},
		{
			name:     "trims then lowercases then dedupes",
			input:    []string{"  WiFi ", "live music", "wifi", "Live Music"},
			expected: []string{"wifi", "live music"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimLower(tt.input))
		})
	}
}
