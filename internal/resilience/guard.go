// Package resilience wraps every adapter network call with rate limiting,
// retry with backoff, circuit breaking, and health accounting. It owns all
// per-provider mutable state for those concerns; no other component touches
// the breaker table or rate-limit counters directly.
package resilience

import (
	"context"
	"log/slog"
	"time"

	"venuehub/internal/platform/metrics"
	"venuehub/internal/provider"
	"venuehub/internal/registry"
)

// Alerter receives systemic signals worth surfacing out of band: breaker
// transitions and high-severity classified errors. Implementations must not
// block the calling query.
type Alerter interface {
	ProviderError(ctx context.Context, providerID string, err error)
	BreakerTransition(ctx context.Context, providerID string, state BreakerState)
}

// Guard is the per-provider resilience pipeline: limiter gate, breaker gate,
// retry executor, then health/metrics/alert bookkeeping on the outcome.
type Guard struct {
	cfg     registry.ProviderConfig
	limiter *SlidingLimiter
	breaker *Breaker
	health  *HealthTracker
	metrics *metrics.Metrics
	alerter Alerter
	logger  *slog.Logger
}

// NewGuard builds the guard for one provider.
func NewGuard(cfg registry.ProviderConfig, m *metrics.Metrics, alerter Alerter, logger *slog.Logger) *Guard {
	return &Guard{
		cfg:     cfg,
		limiter: NewSlidingLimiter(cfg.RateLimits),
		breaker: NewBreaker(),
		health:  NewHealthTracker(cfg.ID),
		metrics: m,
		alerter: alerter,
		logger:  logger,
	}
}

// Allow reports whether calls may be issued right now: provider enabled,
// configured, and breaker not blocking. Reading the breaker applies the
// open→half-open transition once the retry deadline has elapsed.
func (g *Guard) Allow() bool {
	if !g.cfg.Enabled || g.cfg.Misconfigured() {
		return false
	}
	return g.breaker.State() != StateOpen
}

// Do runs call through the full pipeline. The local limiter rejects before
// any network activity and its rejections do not count against the
// provider's error budget. Transient failures are retried per the provider
// policy; the final outcome updates breaker, health, metrics, and alerts.
func (g *Guard) Do(ctx context.Context, call func(ctx context.Context) error) error {
	if !g.cfg.Enabled {
		return provider.ErrProviderDisabled
	}
	if !g.breaker.Allow() {
		return provider.NewError(provider.ErrorNetwork, g.cfg.ID, "circuit open", nil)
	}
	if !g.limiter.Allow() {
		if g.metrics != nil {
			g.metrics.IncRateLimited(g.cfg.ID)
		}
		return provider.NewError(provider.ErrorRateLimit, g.cfg.ID, "local rate limit exceeded", nil)
	}

	start := time.Now()
	attempts := 0
	err := Retry(ctx, g.cfg.Retry, func(ctx context.Context) error {
		// Attempt N only runs because attempt N-1 scheduled a retry, so
		// counting here excludes the final failure of an exhausted sequence.
		attempts++
		if attempts > 1 && g.metrics != nil {
			g.metrics.IncRetries(g.cfg.ID)
		}
		return call(ctx)
	})
	elapsed := time.Since(start)

	if err != nil {
		g.recordFailure(ctx, err, elapsed)
		return err
	}
	g.recordSuccess(ctx, elapsed)
	return nil
}

func (g *Guard) recordSuccess(ctx context.Context, elapsed time.Duration) {
	g.health.RecordSuccess(elapsed)
	if g.metrics != nil {
		g.metrics.ObserveProviderCall(g.cfg.ID, "success", elapsed)
	}
	if g.breaker.RecordSuccess() {
		g.logger.InfoContext(ctx, "circuit closed after recovery", "provider", g.cfg.ID)
		if g.metrics != nil {
			g.metrics.IncBreakerTransition(g.cfg.ID, string(StateClosed))
		}
		if g.alerter != nil {
			g.alerter.BreakerTransition(ctx, g.cfg.ID, StateClosed)
		}
	}
}

func (g *Guard) recordFailure(ctx context.Context, err error, elapsed time.Duration) {
	category := provider.CategoryOf(err)

	// A locally rejected call never reached the provider; it must not move
	// the breaker or the health stats.
	if category == provider.ErrorRateLimit {
		return
	}

	g.health.RecordFailure(elapsed)
	if g.metrics != nil {
		g.metrics.ObserveProviderCall(g.cfg.ID, string(category), elapsed)
	}
	if g.breaker.RecordFailure() {
		g.logger.WarnContext(ctx, "circuit opened",
			"provider", g.cfg.ID,
			"category", string(category),
			"error", err,
		)
		if g.metrics != nil {
			g.metrics.IncBreakerTransition(g.cfg.ID, string(StateOpen))
		}
		if g.alerter != nil {
			g.alerter.BreakerTransition(ctx, g.cfg.ID, StateOpen)
		}
	}

	switch provider.SeverityOf(err) {
	case provider.SeverityHigh, provider.SeverityCritical:
		g.logger.ErrorContext(ctx, "high severity provider failure",
			"provider", g.cfg.ID,
			"category", string(category),
			"error", err,
		)
		if g.alerter != nil {
			g.alerter.ProviderError(ctx, g.cfg.ID, err)
		}
	}
}

// Health exposes the rolling health snapshot.
func (g *Guard) Health() provider.HealthStatus {
	return g.health.Status()
}

// Breaker exposes the breaker snapshot for health diagnostics.
func (g *Guard) Breaker() BreakerSnapshot {
	return g.breaker.Snapshot()
}

// RemainingCalls reports the limiter headroom in the tightest window.
func (g *Guard) RemainingCalls() int {
	return g.limiter.Remaining()
}
