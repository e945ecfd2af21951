package resilience

import (
	"context"

	"venuehub/internal/provider"
	"venuehub/internal/venue"
)

// GuardedAdapter runs every call of a raw provider source through its guard,
// turning the pair into the full adapter contract the orchestrator consumes.
type GuardedAdapter struct {
	source provider.Source
	guard  *Guard
}

func WrapAdapter(source provider.Source, guard *Guard) *GuardedAdapter {
	return &GuardedAdapter{source: source, guard: guard}
}

func (a *GuardedAdapter) ID() string {
	return a.source.ID()
}

func (a *GuardedAdapter) Search(ctx context.Context, query venue.SearchQuery) ([]venue.RawRecord, error) {
	var out []venue.RawRecord
	err := a.guard.Do(ctx, func(ctx context.Context) error {
		recs, err := a.source.Search(ctx, query)
		if err != nil {
			return err
		}
		out = recs
		return nil
	})
	return out, err
}

func (a *GuardedAdapter) Details(ctx context.Context, externalID string) (*venue.RawRecord, error) {
	var out *venue.RawRecord
	err := a.guard.Do(ctx, func(ctx context.Context) error {
		rec, err := a.source.Details(ctx, externalID)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

func (a *GuardedAdapter) ByLocation(ctx context.Context, lat, lng float64, radiusM int) ([]venue.RawRecord, error) {
	var out []venue.RawRecord
	err := a.guard.Do(ctx, func(ctx context.Context) error {
		recs, err := a.source.ByLocation(ctx, lat, lng, radiusM)
		if err != nil {
			return err
		}
		out = recs
		return nil
	})
	return out, err
}

func (a *GuardedAdapter) Available() bool {
	return a.guard.Allow()
}

func (a *GuardedAdapter) Health() provider.HealthStatus {
	return a.guard.Health()
}

// Guard exposes the underlying guard for health diagnostics.
func (a *GuardedAdapter) Guard() *Guard {
	return a.guard
}
