// Package normalize merges N raw per-provider records describing the same
// venue into one canonical record, applying field-level priority and
// transforms. Merging is deterministic: provider priority order decides
// every field, never network arrival order.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"venuehub/internal/platform/metrics"
	"venuehub/internal/venue"
	platformstrings "venuehub/pkg/platform/strings"
)

// ErrUnmergeable is returned when no combination of sources yields the
// critical fields (name, address, coordinates, category).
var ErrUnmergeable = errors.New("records missing critical fields, merge rejected")

// confidence weights: each of the five presence checks contributes equally.
const (
	presenceWeight   = 0.2
	corroborateBonus = 0.05
	corroborateCap   = 0.15
)

// PriorityFunc resolves the merge priority for a source id; higher wins.
type PriorityFunc func(sourceID string) int

// Engine merges raw records into canonical venues.
type Engine struct {
	priority PriorityFunc
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine builds a merge engine. The priority function normally comes
// from the provider registry.
func NewEngine(priority PriorityFunc, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{priority: priority, metrics: m, logger: logger, now: time.Now}
}

// Merge combines the given records into one canonical venue. Inputs may
// arrive in any order; the result depends only on the set. Records whose
// coordinates fail validation contribute their other fields but never their
// geodata.
func (e *Engine) Merge(records []venue.RawRecord) (*venue.Canonical, error) {
	if len(records) == 0 {
		return nil, ErrUnmergeable
	}

	ordered := e.orderByPriority(records)
	primary := ordered[0]

	canonical := &venue.Canonical{
		PrimarySource: primary.Source,
		SourceRefs:    make(map[string]venue.SourceRef, len(ordered)),
		MergedAt:      e.now(),
	}

	e.mergeFields(canonical, ordered)

	if canonical.Name == "" || canonical.Address == "" || !canonical.Coordinates.Present || canonical.Category == "" {
		if e.metrics != nil {
			e.metrics.IncMergeOutcome("rejected")
		}
		e.logger.Debug("merge rejected",
			"primary_source", primary.Source,
			"records", len(records),
		)
		return nil, ErrUnmergeable
	}

	canonical.ID = canonicalID(primary.Source, canonical.Name, canonical.Coordinates)
	canonical.MoodTags, canonical.MoodTagConfidence = MoodTags(canonical.Category, canonical.Features)

	for _, rec := range ordered {
		canonical.Sources = append(canonical.Sources, venue.SourceInfo{
			Source:      rec.Source,
			Confidence:  SourceConfidence(rec),
			LastUpdated: rec.FetchedAt,
			Active:      true,
		})
		canonical.SourceRefs[rec.Source] = venue.SourceRef{
			ExternalID: rec.ExternalID,
			RawPayload: rec.RawPayload,
		}
	}
	canonical.QualityScore = e.score(ordered)

	if e.metrics != nil {
		e.metrics.IncMergeOutcome("merged")
	}
	return canonical, nil
}

// orderByPriority sorts descending by registry priority with source id as a
// deterministic tie break.
func (e *Engine) orderByPriority(records []venue.RawRecord) []venue.RawRecord {
	ordered := append([]venue.RawRecord(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := e.priority(ordered[i].Source), e.priority(ordered[j].Source)
		if pi != pj {
			return pi > pj
		}
		return ordered[i].Source < ordered[j].Source
	})
	return ordered
}

// mergeFields walks each canonical field over the records in priority
// order, taking the first value that transforms and validates.
func (e *Engine) mergeFields(c *venue.Canonical, ordered []venue.RawRecord) {
	for _, rec := range ordered {
		if c.Name == "" {
			if name := CleanName(rec.Name); name != "" {
				c.Name = name
			}
		}
		if c.Address == "" {
			if addr := CleanAddress(rec.Address); addr != "" {
				c.Address = addr
			}
		}
		if !c.Coordinates.Present && ValidCoordinates(rec.Coordinates) {
			c.Coordinates = rec.Coordinates
		}
		if c.Category == "" && rec.Category != "" {
			if mapping, ok := MapCategory(rec.Category); ok {
				c.Category = mapping.Canonical
				c.Subcategory = mapping.Subcategory
			} else {
				c.Category = rec.Category
			}
		}
		if c.Rating == 0 && rec.Rating > 0 {
			c.Rating = ClampRating(rec.Rating)
			c.ReviewCount = rec.ReviewCount
		}
		if c.PriceLevel == 0 && rec.PriceLevel >= 1 && rec.PriceLevel <= 4 {
			c.PriceLevel = rec.PriceLevel
		}
		if c.Phone == "" && rec.Phone != "" {
			if phone, err := NormalizePhone(rec.Phone); err == nil {
				c.Phone = phone
			}
		}
		if c.Website == "" {
			c.Website = rec.Website
		}
		if c.Description == "" {
			c.Description = rec.Description
		}
		if len(c.Hours) == 0 && len(rec.Hours) > 0 {
			c.Hours = rec.Hours
		}
		c.ImageURLs = append(c.ImageURLs, rec.ImageURLs...)
		c.Features = append(c.Features, rec.Features...)
	}

	c.ImageURLs = platformstrings.DedupeAndTrim(c.ImageURLs)
	c.Features = platformstrings.DedupeAndTrimLower(c.Features)
}

// SourceConfidence rewards presence of the fields that make a record
// independently useful.
func SourceConfidence(rec venue.RawRecord) float64 {
	score := 0.0
	if CleanName(rec.Name) != "" {
		score += presenceWeight
	}
	if CleanAddress(rec.Address) != "" {
		score += presenceWeight
	}
	if ValidCoordinates(rec.Coordinates) {
		score += presenceWeight
	}
	if rec.Rating > 0 {
		score += presenceWeight
	}
	if rec.ReviewCount > 0 {
		score += presenceWeight
	}
	return score
}

// score is the merge-time data quality score: mean source confidence plus a
// small capped bonus per corroborating source.
func (e *Engine) score(ordered []venue.RawRecord) float64 {
	var sum float64
	for _, rec := range ordered {
		sum += SourceConfidence(rec)
	}
	score := sum / float64(len(ordered))

	bonus := corroborateBonus * float64(len(ordered)-1)
	if bonus > corroborateCap {
		bonus = corroborateCap
	}
	score += bonus
	if score > 1 {
		score = 1
	}
	return score
}

// canonicalID derives a stable venue id from the primary source, the
// normalized name, and coordinates truncated to four decimals. The same
// venue merges to the same id across runs.
func canonicalID(source, name string, coords venue.Coordinates) string {
	seed := fmt.Sprintf("%s|%s|%.4f,%.4f", source, NameFingerprint(name), coords.Lat, coords.Lng)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:16])
}
