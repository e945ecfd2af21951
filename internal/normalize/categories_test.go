package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapCategory(t *testing.T) {
	tests := []struct {
		raw       string
		canonical string
		sub       string
		ok        bool
	}{
		{"pizza", "restaurant", "pizza", true},
		{"Fine Dining", "restaurant", "fine_dining", true},
		{"  Coffee  ", "cafe", "coffee", true},
		{"Coffee Shop / Café", "cafe", "coffee", true},
		{"nightclub", "nightlife", "club", true},
		{"Museum of Modern Art", "activity", "museum", true},
		{"", "", "", false},
		{"interdimensional portal", "", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			mapping, ok := MapCategory(tc.raw)
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				return
			}
			assert.Equal(t, tc.canonical, mapping.Canonical)
			assert.Equal(t, tc.sub, mapping.Subcategory)
		})
	}
}

func TestMoodTags_RuleMatch(t *testing.T) {
	tags, confidence := MoodTags("coffee", nil)
	assert.Equal(t, []string{"cozy"}, tags)
	assert.InDelta(t, 0.9, confidence, 1e-9)
}

func TestMoodTags_FeaturesContribute(t *testing.T) {
	tags, confidence := MoodTags("restaurant", []string{"live music club"})
	assert.Contains(t, tags, "energetic")
	assert.InDelta(t, 0.9, confidence, 1e-9)
}

func TestMoodTags_DefaultWhenNothingMatches(t *testing.T) {
	tags, confidence := MoodTags("warehouse", nil)
	assert.Equal(t, []string{"casual"}, tags)
	assert.InDelta(t, 0.3, confidence, 1e-9)
}

func TestMoodTags_Deduplicates(t *testing.T) {
	tags, _ := MoodTags("club", []string{"nightclub", "lounge"})
	seen := make(map[string]int)
	for _, tag := range tags {
		seen[tag]++
	}
	for tag, count := range seen {
		assert.Equal(t, 1, count, "tag %q repeated", tag)
	}
}
