// Package venue holds the domain types shared across the aggregation
// pipeline: raw per-provider records, the merged canonical record, and the
// query shapes accepted by the public surface.
package venue

import (
	"time"
)

// Coordinates is a WGS84 point. Present is false when a provider did not
// return geodata for a record.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	// Present survives serialization: records round-trip through the raw
	// cache tier and the flag is load-bearing for merging.
	Present bool `json:"present"`
}

// RawRecord is one provider's view of a venue, exactly as the adapter
// constructed it. Rating and price are already converted to the canonical
// domains (rating in [0,5], price in {1..4}) by the adapter; nothing
// downstream re-scales them. Immutable once built.
type RawRecord struct {
	Source      string            `json:"source"`
	ExternalID  string            `json:"external_id"`
	Name        string            `json:"name"`
	Address     string            `json:"address"`
	Coordinates Coordinates       `json:"coordinates"`
	Category    string            `json:"category"`
	Rating      float64           `json:"rating"`
	ReviewCount int               `json:"review_count"`
	PriceLevel  int               `json:"price_level"`
	Phone       string            `json:"phone"`
	Website     string            `json:"website"`
	Description string            `json:"description"`
	ImageURLs   []string          `json:"image_urls,omitempty"`
	Hours       map[string]string `json:"hours,omitempty"`
	Features    []string          `json:"features,omitempty"`

	// RawPayload survives serialization: records round-trip through the raw
	// cache tier and the canonical audit map is built from this field after
	// the round trip. It never reaches clients; Canonical.SourceRefs is
	// excluded from response bodies.
	RawPayload []byte    `json:"raw_payload,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// StaleAfter bounds how long a raw record is considered fresh. Older records
// are flagged by the quality validator, not discarded.
const StaleAfter = 24 * time.Hour

// Stale reports whether the record's fetch timestamp has aged past the
// freshness window.
func (r RawRecord) Stale(now time.Time) bool {
	return now.Sub(r.FetchedAt) > StaleAfter
}

// SourceInfo describes one provider's contribution to a canonical venue.
type SourceInfo struct {
	Source      string    `json:"source"`
	Confidence  float64   `json:"confidence"`
	LastUpdated time.Time `json:"last_updated"`
	Active      bool      `json:"active"`
}

// SourceRef keeps the external id and original payload a provider returned,
// retained for audit and debugging rather than display.
type SourceRef struct {
	ExternalID string `json:"external_id"`
	RawPayload []byte `json:"raw_payload,omitempty"`
}

// Canonical is the merged venue record exposed to callers. Values are never
// mutated in place; re-aggregation builds a fresh Canonical that replaces the
// cached one.
type Canonical struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Address     string            `json:"address"`
	Coordinates Coordinates       `json:"coordinates"`
	Category    string            `json:"category"`
	Subcategory string            `json:"subcategory,omitempty"`
	Rating      float64           `json:"rating"`
	ReviewCount int               `json:"review_count"`
	PriceLevel  int               `json:"price_level"`
	Phone       string            `json:"phone,omitempty"`
	Website     string            `json:"website,omitempty"`
	Description string            `json:"description,omitempty"`
	ImageURLs   []string          `json:"image_urls,omitempty"`
	Hours       map[string]string `json:"hours,omitempty"`
	Features    []string          `json:"features,omitempty"`

	// MoodTags are derived from a keyword heuristic over category and
	// features. They are advisory: MoodTagConfidence carries how strongly
	// the heuristic matched and they never feed quality scoring.
	MoodTags          []string `json:"mood_tags,omitempty"`
	MoodTagConfidence float64  `json:"mood_tag_confidence"`

	Sources       []SourceInfo         `json:"sources"`
	PrimarySource string               `json:"primary_source"`
	QualityScore  float64              `json:"quality_score"`
	SourceRefs    map[string]SourceRef `json:"-"`
	MergedAt      time.Time            `json:"merged_at"`
}

// SortOrder selects how search results are ordered before pagination.
type SortOrder string

const (
	SortByRelevance SortOrder = "relevance"
	SortByRating    SortOrder = "rating"
	SortByDistance  SortOrder = "distance"
	SortByName      SortOrder = "name"
)

// SearchQuery is the public search contract. Zero values mean "not set";
// Limit defaults are applied by the orchestrator.
type SearchQuery struct {
	Term       string
	Lat        float64
	Lng        float64
	HasLoc     bool
	RadiusM    int
	Categories []string
	Limit      int
	Offset     int
	SortBy     SortOrder
}
