package provider

import (
	"context"

	"venuehub/internal/venue"
)

// Source is the transport-level contract a concrete provider implements:
// the three fetch operations with no resilience concerns. The resilience
// layer wraps a Source into a full Adapter.
type Source interface {
	ID() string
	Search(ctx context.Context, query venue.SearchQuery) ([]venue.RawRecord, error)
	Details(ctx context.Context, externalID string) (*venue.RawRecord, error)
	ByLocation(ctx context.Context, lat, lng float64, radiusM int) ([]venue.RawRecord, error)
}
