package aggregator

import (
	"context"
	"fmt"

	"venuehub/internal/cache"
	"venuehub/internal/provider"
	"venuehub/internal/resilience"
)

// OverallStatus summarizes the whole pipeline.
type OverallStatus string

const (
	StatusHealthy   OverallStatus = "healthy"
	StatusDegraded  OverallStatus = "degraded"
	StatusUnhealthy OverallStatus = "unhealthy"
)

// ProviderStatus is the per-provider slice of the health report.
type ProviderStatus struct {
	provider.HealthStatus
	Enabled        bool                        `json:"enabled"`
	Breaker        *resilience.BreakerSnapshot `json:"breaker,omitempty"`
	RemainingCalls *int                        `json:"remaining_calls,omitempty"`
}

// HealthReport is the orchestrator's answer to a health probe: the overall
// verdict, each provider's rolling status, cache statistics, and operator
// recommendations for anything that needs attention.
type HealthReport struct {
	Overall         OverallStatus    `json:"overall"`
	Providers       []ProviderStatus `json:"providers"`
	Cache           cache.Stats      `json:"cache"`
	Recommendations []string         `json:"recommendations,omitempty"`
}

// diagnosable is implemented by adapters that can expose their resilience
// guard for richer health output.
type diagnosable interface {
	Guard() *resilience.Guard
}

// Health reports the current state of every configured provider plus cache
// statistics.
func (o *Orchestrator) Health(_ context.Context) HealthReport {
	report := HealthReport{Providers: make([]ProviderStatus, 0, len(o.adapters))}

	healthy := 0
	for _, a := range o.adapters {
		cfg, _ := o.registry.Get(a.ID())

		ps := ProviderStatus{
			HealthStatus: a.Health(),
			Enabled:      cfg.Enabled,
		}
		if d, ok := a.(diagnosable); ok {
			snap := d.Guard().Breaker()
			ps.Breaker = &snap
			remaining := d.Guard().RemainingCalls()
			ps.RemainingCalls = &remaining
		}
		report.Providers = append(report.Providers, ps)

		switch {
		case !cfg.Enabled:
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("provider %s is disabled; set its credential to enable it", a.ID()))
		case ps.Breaker != nil && ps.Breaker.State == resilience.StateOpen:
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("provider %s circuit is open until %s; check upstream status", a.ID(), ps.Breaker.NextRetry.Format("15:04:05")))
		case !ps.Healthy:
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("provider %s error rate is %.0f%%; inspect recent failures", a.ID(), ps.ErrorRate*100))
		default:
			healthy++
		}

		if ps.RemainingCalls != nil && cfg.Enabled && *ps.RemainingCalls == 0 {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("provider %s rate limit exhausted; queries are cache-only for it", a.ID()))
		}
	}

	switch {
	case healthy == len(o.adapters) && len(o.adapters) > 0:
		report.Overall = StatusHealthy
	case healthy > 0:
		report.Overall = StatusDegraded
	default:
		report.Overall = StatusUnhealthy
	}

	report.Cache = o.cache.Stats()
	return report
}
