// Package aggregator is the top of the pipeline: it fans queries out to the
// healthy providers, merges and validates what comes back, and serves the
// result through the two-tier cache. This is the only surface the HTTP layer
// calls.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"venuehub/internal/cache"
	"venuehub/internal/normalize"
	"venuehub/internal/platform/metrics"
	"venuehub/internal/provider"
	"venuehub/internal/quality"
	"venuehub/internal/registry"
	"venuehub/internal/venue"
)

const (
	defaultLimit = 20
	maxLimit     = 50
)

// Venue pairs a canonical record with its advisory quality report.
type Venue struct {
	venue.Canonical
	Quality quality.Report `json:"quality"`
}

// Result is what every query operation returns. Venues may be partial when
// some providers failed; ProviderErrors says which and why. Reason is set
// only when the result is empty.
type Result struct {
	TraceID        string            `json:"trace_id"`
	Venues         []Venue           `json:"venues"`
	Total          int               `json:"total"`
	FromCache      bool              `json:"from_cache"`
	Reason         string            `json:"reason,omitempty"`
	ProviderErrors map[string]string `json:"provider_errors,omitempty"`
}

// cacheEnvelope is the cached portion of a Result. Trace and error details
// are per-request and never cached.
type cacheEnvelope struct {
	Venues []Venue `json:"venues"`
	Total  int     `json:"total"`
}

// Orchestrator coordinates the full aggregation pipeline. All dependencies
// are constructed at startup and passed in; it holds no mutable state of its
// own beyond what its collaborators encapsulate.
type Orchestrator struct {
	registry     *registry.Registry
	adapters     []provider.Adapter
	cache        *cache.Manager
	merger       *normalize.Engine
	validator    *quality.Validator
	metrics      *metrics.Metrics
	logger       *slog.Logger
	queryTimeout time.Duration
}

func New(
	reg *registry.Registry,
	adapters []provider.Adapter,
	cacheMgr *cache.Manager,
	merger *normalize.Engine,
	validator *quality.Validator,
	m *metrics.Metrics,
	logger *slog.Logger,
	queryTimeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		registry:     reg,
		adapters:     adapters,
		cache:        cacheMgr,
		merger:       merger,
		validator:    validator,
		metrics:      m,
		logger:       logger,
		queryTimeout: queryTimeout,
	}
}

// SearchVenues runs a free-text search across all available providers.
func (o *Orchestrator) SearchVenues(ctx context.Context, query venue.SearchQuery) (*Result, error) {
	query = normalizeQuery(query)
	key := cache.SearchKey(query)

	return o.run(ctx, "search", key, cache.ClassMerged, query, func(ctx context.Context, a provider.Adapter) ([]venue.RawRecord, error) {
		return a.Search(ctx, query)
	})
}

// VenuesNear finds venues around a point. Radius is in kilometers at the
// public surface and meters internally.
func (o *Orchestrator) VenuesNear(ctx context.Context, lat, lng, radiusKm float64) (*Result, error) {
	radiusM := int(radiusKm * 1000)
	if radiusM <= 0 {
		radiusM = 1000
	}
	key := cache.GeoKey(lat, lng, radiusM)
	query := normalizeQuery(venue.SearchQuery{Lat: lat, Lng: lng, HasLoc: true, RadiusM: radiusM, SortBy: venue.SortByDistance})

	return o.run(ctx, "near", key, cache.ClassGeo, query, func(ctx context.Context, a provider.Adapter) ([]venue.RawRecord, error) {
		return a.ByLocation(ctx, lat, lng, radiusM)
	})
}

// VenueDetails returns one canonical venue by id. Canonical ids exist only
// as products of aggregation, so a details lookup is served from the cache
// populated by earlier queries; a miss is a not-found.
func (o *Orchestrator) VenueDetails(ctx context.Context, id string) (*Venue, error) {
	ctx, cancel := context.WithTimeout(ctx, o.queryTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.ObserveQuery("details", time.Since(start))
		}
	}()

	data, ok := o.cache.Get(ctx, cache.VenueKey(id))
	if !ok {
		return nil, provider.ErrNotFound
	}
	var v Venue
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode cached venue %q: %w", id, err)
	}
	return &v, nil
}

// run is the shared query pipeline: cache, fan-out, group, merge, validate,
// cache fill, sort, paginate.
func (o *Orchestrator) run(
	ctx context.Context,
	operation, key string,
	class cache.Class,
	query venue.SearchQuery,
	call func(ctx context.Context, a provider.Adapter) ([]venue.RawRecord, error),
) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.queryTimeout)
	defer cancel()

	traceID := uuid.NewString()
	logger := o.logger.With("trace_id", traceID, "operation", operation)

	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.ObserveQuery(operation, time.Since(start))
		}
	}()

	if data, ok := o.cache.Get(ctx, key); ok {
		var env cacheEnvelope
		if err := json.Unmarshal(data, &env); err == nil {
			return &Result{TraceID: traceID, Venues: env.Venues, Total: env.Total, FromCache: true}, nil
		}
		logger.Warn("discarding undecodable cache entry", "key", key)
	}

	available := o.availableAdapters()
	if len(available) == 0 {
		logger.Warn("no providers available for fan-out")
		return &Result{
			TraceID: traceID,
			Venues:  []Venue{},
			Reason:  provider.ErrNoHealthyProvider.Error(),
		}, nil
	}

	records, provErrors := o.fanOut(ctx, available, operation, key, call)
	logger.Info("fan-out complete",
		"providers", len(available),
		"records", len(records),
		"failures", len(provErrors),
	)

	venues := o.assemble(ctx, logger, records)
	sortVenues(venues, query)

	total := len(venues)
	page := paginate(venues, query.Limit, query.Offset)

	result := &Result{
		TraceID:        traceID,
		Venues:         page,
		Total:          total,
		ProviderErrors: provErrors,
	}
	if total == 0 {
		if len(provErrors) == len(available) {
			result.Reason = "all providers failed"
		} else {
			result.Reason = "no matching venues"
		}
		return result, nil
	}

	o.cacheResult(ctx, key, class, cacheEnvelope{Venues: page, Total: total}, records)
	return result, nil
}

// assemble groups the raw fan-out output into per-venue clusters, merges
// each, and attaches the advisory quality report. Rejected clusters are
// dropped, never fatal.
func (o *Orchestrator) assemble(ctx context.Context, logger *slog.Logger, records []venue.RawRecord) []Venue {
	groups := groupRecords(records)

	venues := make([]Venue, 0, len(groups))
	for _, group := range groups {
		canonical, err := o.merger.Merge(group)
		if err != nil {
			if !errors.Is(err, normalize.ErrUnmergeable) {
				logger.WarnContext(ctx, "merge failed", "error", err)
			}
			continue
		}
		venues = append(venues, Venue{
			Canonical: *canonical,
			Quality:   o.validator.Validate(canonical, group),
		})
	}
	return venues
}

// cacheResult writes the query result and each contained venue through the
// cache, tagged per contributing provider so a config reload can flush them.
func (o *Orchestrator) cacheResult(ctx context.Context, key string, class cache.Class, env cacheEnvelope, records []venue.RawRecord) {
	tags := providerTags(records)

	if data, err := json.Marshal(env); err == nil {
		if err := o.cache.Set(ctx, key, data, cache.TTLFor(class), tags, cache.PriorityNormal); err != nil {
			o.logger.WarnContext(ctx, "cache set failed", "key", key, "error", err)
		}
	}

	// Each venue is also cached by id so details lookups resolve. A newer
	// aggregation simply overwrites the previous canonical value.
	for _, v := range env.Venues {
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		vtags := make([]string, 0, len(v.Sources))
		for _, s := range v.Sources {
			vtags = append(vtags, cache.ProviderTag(s.Source))
		}
		if err := o.cache.Set(ctx, cache.VenueKey(v.ID), data, cache.TTLFor(cache.ClassMerged), vtags, cache.PriorityNormal); err != nil {
			o.logger.WarnContext(ctx, "venue cache set failed", "venue", v.ID, "error", err)
		}
	}
}

func providerTags(records []venue.RawRecord) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, rec := range records {
		tag := cache.ProviderTag(rec.Source)
		if _, dup := seen[tag]; !dup {
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

func normalizeQuery(q venue.SearchQuery) venue.SearchQuery {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.SortBy == "" {
		q.SortBy = venue.SortByRelevance
	}
	return q
}

func sortVenues(venues []Venue, query venue.SearchQuery) {
	sort.SliceStable(venues, func(i, j int) bool {
		a, b := venues[i], venues[j]
		switch query.SortBy {
		case venue.SortByRating:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		case venue.SortByDistance:
			if query.HasLoc && a.Coordinates.Present && b.Coordinates.Present {
				point := venue.Coordinates{Lat: query.Lat, Lng: query.Lng}
				da := venue.DistanceMeters(point, a.Coordinates)
				db := venue.DistanceMeters(point, b.Coordinates)
				if da != db {
					return da < db
				}
			}
		case venue.SortByName:
			if a.Name != b.Name {
				return strings.ToLower(a.Name) < strings.ToLower(b.Name)
			}
		default: // relevance
			if a.QualityScore != b.QualityScore {
				return a.QualityScore > b.QualityScore
			}
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		}
		return a.Name < b.Name
	})
}

func paginate(venues []Venue, limit, offset int) []Venue {
	if offset >= len(venues) {
		return []Venue{}
	}
	end := offset + limit
	if end > len(venues) {
		end = len(venues)
	}
	return venues[offset:end]
}
