package aggregator

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuehub/internal/cache"
	"venuehub/internal/kvstore"
	"venuehub/internal/normalize"
	"venuehub/internal/provider"
	"venuehub/internal/quality"
	"venuehub/internal/registry"
	"venuehub/internal/venue"
)

const testProvidersYAML = `
providers:
  - id: alpha
    name: Alpha POI
    base_url: https://alpha.example
    auth_style: none
    rate_limits: {per_minute: 100, per_hour: 1000, per_day: 10000}
    enabled: true
    priority: 100
  - id: beta
    name: Beta Reviews
    base_url: https://beta.example
    auth_style: none
    rate_limits: {per_minute: 100, per_hour: 1000, per_day: 10000}
    enabled: true
    priority: 50
  - id: dormant
    name: Dormant Feed
    base_url: https://dormant.example
    auth_style: none
    rate_limits: {per_minute: 100, per_hour: 1000, per_day: 10000}
    enabled: false
    priority: 10
`

type fakeAdapter struct {
	id        string
	records   []venue.RawRecord
	err       error
	available bool
	calls     int
}

func (f *fakeAdapter) ID() string { return f.id }

func (f *fakeAdapter) Search(context.Context, venue.SearchQuery) ([]venue.RawRecord, error) {
	f.calls++
	return f.records, f.err
}

func (f *fakeAdapter) Details(context.Context, string) (*venue.RawRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &f.records[0], nil
}

func (f *fakeAdapter) ByLocation(context.Context, float64, float64, int) ([]venue.RawRecord, error) {
	f.calls++
	return f.records, f.err
}

func (f *fakeAdapter) Available() bool { return f.available }

func (f *fakeAdapter) Health() provider.HealthStatus {
	return provider.HealthStatus{ProviderID: f.id, Healthy: f.available}
}

func record(source, name string, rating float64) venue.RawRecord {
	return venue.RawRecord{
		Source:      source,
		ExternalID:  source + "-" + name,
		Name:        name,
		Address:     "123 Main St, NY",
		Coordinates: venue.Coordinates{Lat: 40.7128, Lng: -74.006, Present: true},
		Category:    "pizza",
		Rating:      rating,
		ReviewCount: 100,
		FetchedAt:   time.Now(),
	}
}

func newTestOrchestrator(t *testing.T, adapters ...provider.Adapter) *Orchestrator {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	reg, err := registry.Parse([]byte(testProvidersYAML), logger)
	require.NoError(t, err)

	cacheMgr := cache.NewManager(kvstore.NewMemory(), 1<<20, nil, logger)
	merger := normalize.NewEngine(reg.Priority, nil, logger)

	return New(reg, adapters, cacheMgr, merger, quality.New(), nil, logger, 5*time.Second)
}

func TestSearchVenues_MergesAcrossProviders(t *testing.T) {
	alpha := &fakeAdapter{id: "alpha", available: true, records: []venue.RawRecord{record("alpha", "Luigi's Pizza", 4.2)}}
	beta := &fakeAdapter{id: "beta", available: true, records: []venue.RawRecord{record("beta", "Luigi's Pizza", 4.6)}}
	o := newTestOrchestrator(t, alpha, beta)

	res, err := o.SearchVenues(context.Background(), venue.SearchQuery{Term: "pizza"})
	require.NoError(t, err)

	require.Len(t, res.Venues, 1, "same venue from two providers merges into one")
	v := res.Venues[0]
	assert.Equal(t, 4.2, v.Rating, "higher priority provider wins the contested field")
	assert.Len(t, v.Sources, 2)
	assert.Equal(t, "alpha", v.PrimarySource)
	assert.False(t, res.FromCache)
	assert.Empty(t, res.ProviderErrors)
	assert.NotEmpty(t, res.TraceID)
	assert.Positive(t, v.Quality.Score)
}

func TestSearchVenues_RawPayloadSurvivesIntoSourceRefs(t *testing.T) {
	rec := record("alpha", "Luigi's Pizza", 4.2)
	rec.RawPayload = []byte(`{"native":"payload"}`)
	alpha := &fakeAdapter{id: "alpha", available: true, records: []venue.RawRecord{rec}}
	o := newTestOrchestrator(t, alpha)

	res, err := o.SearchVenues(context.Background(), venue.SearchQuery{Term: "pizza"})
	require.NoError(t, err)
	require.Len(t, res.Venues, 1)

	// The record passed through the raw cache tier on its way to the merge,
	// so the audit map must be built from what survived serialization.
	ref, ok := res.Venues[0].SourceRefs["alpha"]
	require.True(t, ok, "every contributing provider gets an audit entry")
	assert.Equal(t, "alpha-Luigi's Pizza", ref.ExternalID)
	assert.JSONEq(t, `{"native":"payload"}`, string(ref.RawPayload))
}

func TestSearchVenues_SecondIdenticalQueryServedFromCache(t *testing.T) {
	alpha := &fakeAdapter{id: "alpha", available: true, records: []venue.RawRecord{record("alpha", "Luigi's Pizza", 4.2)}}
	o := newTestOrchestrator(t, alpha)

	query := venue.SearchQuery{Term: "pizza"}
	first, err := o.SearchVenues(context.Background(), query)
	require.NoError(t, err)
	require.False(t, first.FromCache)

	second, err := o.SearchVenues(context.Background(), query)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, alpha.calls, "cached query never reaches the provider")
	assert.Equal(t, first.Venues[0].ID, second.Venues[0].ID)
}

func TestSearchVenues_DisabledProviderNeverCalled(t *testing.T) {
	dormant := &fakeAdapter{id: "dormant", available: true, records: []venue.RawRecord{record("dormant", "Ghost Bar", 3.0)}}
	alpha := &fakeAdapter{id: "alpha", available: true, records: []venue.RawRecord{record("alpha", "Luigi's Pizza", 4.2)}}
	o := newTestOrchestrator(t, alpha, dormant)

	res, err := o.SearchVenues(context.Background(), venue.SearchQuery{Term: "bar"})
	require.NoError(t, err)

	assert.Zero(t, dormant.calls)
	require.Len(t, res.Venues, 1)
	assert.Equal(t, "Luigi's Pizza", res.Venues[0].Name)
}

func TestSearchVenues_PartialResultsWhenProviderFails(t *testing.T) {
	alpha := &fakeAdapter{id: "alpha", available: true, records: []venue.RawRecord{record("alpha", "Luigi's Pizza", 4.2)}}
	beta := &fakeAdapter{
		id: "beta", available: true,
		err: provider.NewError(provider.ErrorServer, "beta", "upstream down", nil),
	}
	o := newTestOrchestrator(t, alpha, beta)

	res, err := o.SearchVenues(context.Background(), venue.SearchQuery{Term: "pizza"})
	require.NoError(t, err, "one failing provider never fails the query")

	require.Len(t, res.Venues, 1)
	assert.Contains(t, res.ProviderErrors, "beta")
	assert.NotContains(t, res.ProviderErrors, "alpha")
}

func TestSearchVenues_NoProvidersGivesReason(t *testing.T) {
	alpha := &fakeAdapter{id: "alpha", available: false}
	o := newTestOrchestrator(t, alpha)

	res, err := o.SearchVenues(context.Background(), venue.SearchQuery{Term: "pizza"})
	require.NoError(t, err)

	assert.Empty(t, res.Venues)
	assert.Equal(t, provider.ErrNoHealthyProvider.Error(), res.Reason)
	assert.Zero(t, alpha.calls)
}

func TestSearchVenues_AllProvidersFailGivesReason(t *testing.T) {
	alpha := &fakeAdapter{
		id: "alpha", available: true,
		err: provider.NewError(provider.ErrorServer, "alpha", "upstream down", nil),
	}
	o := newTestOrchestrator(t, alpha)

	res, err := o.SearchVenues(context.Background(), venue.SearchQuery{Term: "pizza"})
	require.NoError(t, err)

	assert.Empty(t, res.Venues)
	assert.Equal(t, "all providers failed", res.Reason)
}

func TestVenueDetails_ServedFromEarlierAggregation(t *testing.T) {
	alpha := &fakeAdapter{id: "alpha", available: true, records: []venue.RawRecord{record("alpha", "Luigi's Pizza", 4.2)}}
	o := newTestOrchestrator(t, alpha)

	res, err := o.SearchVenues(context.Background(), venue.SearchQuery{Term: "pizza"})
	require.NoError(t, err)
	require.Len(t, res.Venues, 1)

	v, err := o.VenueDetails(context.Background(), res.Venues[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Luigi's Pizza", v.Name)
}

func TestVenueDetails_UnknownIDIsNotFound(t *testing.T) {
	o := newTestOrchestrator(t, &fakeAdapter{id: "alpha", available: true})

	_, err := o.VenueDetails(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestVenuesNear_UsesLocationFanOut(t *testing.T) {
	alpha := &fakeAdapter{id: "alpha", available: true, records: []venue.RawRecord{record("alpha", "Luigi's Pizza", 4.2)}}
	o := newTestOrchestrator(t, alpha)

	res, err := o.VenuesNear(context.Background(), 40.7128, -74.006, 1.5)
	require.NoError(t, err)
	require.Len(t, res.Venues, 1)
	assert.Equal(t, 1, alpha.calls)
}

func TestSearchVenues_SortByRating(t *testing.T) {
	alpha := &fakeAdapter{id: "alpha", available: true, records: []venue.RawRecord{
		record("alpha", "Quiet Corner", 3.5),
		record("alpha", "Star Slice", 4.9),
	}}
	o := newTestOrchestrator(t, alpha)

	res, err := o.SearchVenues(context.Background(), venue.SearchQuery{Term: "pizza", SortBy: venue.SortByRating})
	require.NoError(t, err)
	require.Len(t, res.Venues, 2)
	assert.Equal(t, "Star Slice", res.Venues[0].Name)
}

func TestSearchVenues_Pagination(t *testing.T) {
	alpha := &fakeAdapter{id: "alpha", available: true, records: []venue.RawRecord{
		record("alpha", "Spot One", 4.0),
		record("alpha", "Spot Two", 4.0),
		record("alpha", "Spot Three", 4.0),
	}}
	o := newTestOrchestrator(t, alpha)

	res, err := o.SearchVenues(context.Background(), venue.SearchQuery{
		Term: "spot", Limit: 2, Offset: 2, SortBy: venue.SortByName,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Len(t, res.Venues, 1)
}

func TestGroupRecords(t *testing.T) {
	near := record("alpha", "Luigi's Pizza", 4.2)
	same := record("beta", "LUIGIS PIZZA", 4.6) // fingerprint-equal, ~0m away
	farAway := record("beta", "Luigi's Pizza", 4.0)
	farAway.Coordinates = venue.Coordinates{Lat: 40.8, Lng: -74.006, Present: true}
	other := record("alpha", "Mario's Trattoria", 4.1)

	groups := groupRecords([]venue.RawRecord{near, same, farAway, other})

	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 2, "same name and location cluster together")
}

func TestHealth_ReportsPerProviderAndOverall(t *testing.T) {
	alpha := &fakeAdapter{id: "alpha", available: true}
	beta := &fakeAdapter{id: "beta", available: false}
	o := newTestOrchestrator(t, alpha, beta)

	report := o.Health(context.Background())

	assert.Equal(t, StatusDegraded, report.Overall)
	require.Len(t, report.Providers, 2)
	assert.NotEmpty(t, report.Recommendations)
}
