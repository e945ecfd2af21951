package normalize

import (
	"fmt"
	"strings"
)

// CategoryMapping is one row of the static taxonomy table: a normalized
// provider category mapped to the canonical category, an optional
// subcategory, and the mood tags the heuristic derives.
type CategoryMapping struct {
	Canonical   string
	Subcategory string
	MoodTags    []string
}

// defaultMoodTag is applied when no keyword rule matches. It carries a low
// confidence because it says nothing about the venue.
const (
	defaultMoodTag        = "casual"
	moodConfidenceMatched = 0.9
	moodConfidenceDefault = 0.3
)

// categoryTable maps normalized provider category keywords to canonical
// categories. Lookup is by exact key first, then by substring, so provider
// strings like "Coffee Shop / Café" still land on "coffee".
var categoryTable = map[string]CategoryMapping{
	"restaurant":  {Canonical: "restaurant", MoodTags: []string{defaultMoodTag}},
	"fine dining": {Canonical: "restaurant", Subcategory: "fine_dining", MoodTags: []string{"special"}},
	"pizza":       {Canonical: "restaurant", Subcategory: "pizza", MoodTags: []string{defaultMoodTag}},
	"sushi":       {Canonical: "restaurant", Subcategory: "sushi", MoodTags: []string{"special"}},
	"steakhouse":  {Canonical: "restaurant", Subcategory: "steakhouse", MoodTags: []string{"special"}},
	"coffee":      {Canonical: "cafe", Subcategory: "coffee", MoodTags: []string{"cozy"}},
	"cafe":        {Canonical: "cafe", MoodTags: []string{"cozy"}},
	"café":        {Canonical: "cafe", MoodTags: []string{"cozy"}},
	"bakery":      {Canonical: "cafe", Subcategory: "bakery", MoodTags: []string{"cozy"}},
	"tea":         {Canonical: "cafe", Subcategory: "tea_house", MoodTags: []string{"cozy"}},
	"bar":         {Canonical: "bar", MoodTags: []string{"energetic"}},
	"pub":         {Canonical: "bar", Subcategory: "pub", MoodTags: []string{"energetic"}},
	"club":        {Canonical: "nightlife", Subcategory: "club", MoodTags: []string{"energetic"}},
	"nightclub":   {Canonical: "nightlife", Subcategory: "club", MoodTags: []string{"energetic"}},
	"lounge":      {Canonical: "nightlife", Subcategory: "lounge", MoodTags: []string{"energetic"}},
	"brewery":     {Canonical: "bar", Subcategory: "brewery", MoodTags: []string{"energetic"}},
	"museum":      {Canonical: "activity", Subcategory: "museum", MoodTags: []string{"quiet"}},
	"gallery":     {Canonical: "activity", Subcategory: "gallery", MoodTags: []string{"quiet"}},
	"theater":     {Canonical: "activity", Subcategory: "theater", MoodTags: []string{"special"}},
	"park":        {Canonical: "activity", Subcategory: "park", MoodTags: []string{"quiet"}},
	"bowling":     {Canonical: "activity", Subcategory: "bowling", MoodTags: []string{"energetic"}},
	"arcade":      {Canonical: "activity", Subcategory: "arcade", MoodTags: []string{"energetic"}},
}

// validateCategoryTable fails loudly at startup instead of letting a bad row
// fall through silently at merge time.
func validateCategoryTable() error {
	for key, mapping := range categoryTable {
		if key != strings.ToLower(strings.TrimSpace(key)) {
			return fmt.Errorf("category table key %q is not normalized", key)
		}
		if mapping.Canonical == "" {
			return fmt.Errorf("category table key %q has no canonical category", key)
		}
		if len(mapping.MoodTags) == 0 {
			return fmt.Errorf("category table key %q has no mood tags", key)
		}
	}
	return nil
}

func init() {
	if err := validateCategoryTable(); err != nil {
		panic(err)
	}
}

// MapCategory resolves a provider category string against the taxonomy
// table. The boolean is false when no row matched and the raw value should
// be kept as-is.
func MapCategory(raw string) (CategoryMapping, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return CategoryMapping{}, false
	}
	if mapping, ok := categoryTable[key]; ok {
		return mapping, true
	}
	// Longest matching keyword wins so "coffee shop" resolves to the more
	// specific "coffee" row rather than a shorter incidental match.
	var best string
	for tableKey := range categoryTable {
		if !strings.Contains(key, tableKey) {
			continue
		}
		if len(tableKey) > len(best) || (len(tableKey) == len(best) && tableKey < best) {
			best = tableKey
		}
	}
	if best != "" {
		return categoryTable[best], true
	}
	return CategoryMapping{}, false
}

// MoodTags derives mood tags from category and feature keywords. This is a
// lossy heuristic, not ground truth: the confidence reflects only whether a
// rule matched, and downstream scoring must not treat the tags as load
// bearing.
func MoodTags(category string, features []string) ([]string, float64) {
	seen := make(map[string]struct{})
	var tags []string

	add := func(ts []string) {
		for _, t := range ts {
			if _, dup := seen[t]; !dup {
				seen[t] = struct{}{}
				tags = append(tags, t)
			}
		}
	}

	if mapping, ok := MapCategory(category); ok {
		add(mapping.MoodTags)
	}
	for _, feature := range features {
		if mapping, ok := MapCategory(feature); ok {
			add(mapping.MoodTags)
		}
	}

	if len(tags) == 0 {
		return []string{defaultMoodTag}, moodConfidenceDefault
	}
	return tags, moodConfidenceMatched
}
