// Package provider defines the uniform adapter contract every external venue
// source implements, plus the shared HTTP plumbing and error taxonomy the
// concrete adapters build on.
package provider

import (
	"context"
	"time"

	"venuehub/internal/venue"
)

// HealthStatus is the rolling per-provider health snapshot maintained by the
// resilience layer and read by the orchestrator when deciding a fan-out set.
type HealthStatus struct {
	ProviderID          string     `json:"provider_id"`
	Healthy             bool       `json:"healthy"`
	ErrorRate           float64    `json:"error_rate"`
	AvgResponseTime     float64    `json:"avg_response_time_ms"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastFailure         *time.Time `json:"last_failure,omitempty"`
}

// Adapter is the capability contract all venue sources implement. Adapters
// translate provider-native rating scales, price encodings, and category
// taxonomies into the canonical field domains at record construction; nothing
// downstream converts again.
type Adapter interface {
	// ID returns the registry source id this adapter serves.
	ID() string

	// Search finds venues matching a free-text query.
	Search(ctx context.Context, query venue.SearchQuery) ([]venue.RawRecord, error)

	// Details fetches one venue by its provider-native id. Returns
	// ErrNotFound when the provider has no such record.
	Details(ctx context.Context, externalID string) (*venue.RawRecord, error)

	// ByLocation finds venues within radiusM meters of a point.
	ByLocation(ctx context.Context, lat, lng float64, radiusM int) ([]venue.RawRecord, error)

	// Available reports whether this adapter may be called right now.
	// False when disabled, misconfigured, or the circuit breaker is open
	// with its retry deadline still in the future; crossing the deadline
	// flips the breaker half-open as a side effect.
	Available() bool

	// Health returns the rolling health snapshot for this provider.
	Health() HealthStatus
}
