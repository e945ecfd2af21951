// Package strings holds small helpers for the list-valued fields that
// arrive from several providers at once and need collapsing into one
// clean slice.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every element, drops empties, and removes
// duplicates while keeping first-seen order. Case is preserved, so use
// it for fields where casing matters, like image URLs.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower additionally lowercases each element. Feature and
// tag lists from different providers rarely agree on casing, so this is
// the variant used when merging them.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

func dedupe(values []string, canon func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = canon(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
