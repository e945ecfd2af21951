package resilience

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuehub/internal/platform/metrics"
	"venuehub/internal/provider"
	"venuehub/internal/registry"
	"venuehub/internal/venue"
)

type recordingAlerter struct {
	mu          sync.Mutex
	errors      []string
	transitions []BreakerState
}

func (a *recordingAlerter) ProviderError(_ context.Context, providerID string, _ error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, providerID)
}

func (a *recordingAlerter) BreakerTransition(_ context.Context, _ string, state BreakerState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transitions = append(a.transitions, state)
}

func guardConfig() registry.ProviderConfig {
	return registry.ProviderConfig{
		ID:         "yelp",
		BaseURL:    "https://api.example",
		AuthStyle:  registry.AuthBearer,
		Credential: "token",
		RateLimits: registry.RateLimits{PerMinute: 100, PerHour: 1000, PerDay: 10000},
		Timeout:    5 * time.Second,
		Retry:      registry.RetryPolicy{MaxRetries: 0, BackoffMultiplier: 2.0, MaxBackoff: time.Second},
		Enabled:    true,
	}
}

func newTestGuard(cfg registry.ProviderConfig, alerter Alerter) *Guard {
	return NewGuard(cfg, nil, alerter, slog.New(slog.DiscardHandler))
}

func TestGuard_DisabledProviderNeverCalled(t *testing.T) {
	cfg := guardConfig()
	cfg.Enabled = false
	g := newTestGuard(cfg, nil)

	called := false
	err := g.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, provider.ErrProviderDisabled)
	assert.False(t, called)
	assert.False(t, g.Allow())
}

func TestGuard_MisconfiguredProviderUnavailable(t *testing.T) {
	cfg := guardConfig()
	cfg.Credential = ""
	g := newTestGuard(cfg, nil)

	assert.False(t, g.Allow())
}

func TestGuard_LocalRateLimitRejectsWithoutCalling(t *testing.T) {
	cfg := guardConfig()
	cfg.RateLimits = registry.RateLimits{PerMinute: 2, PerHour: 100, PerDay: 1000}
	g := newTestGuard(cfg, nil)

	calls := 0
	do := func() error {
		return g.Do(context.Background(), func(context.Context) error {
			calls++
			return nil
		})
	}

	require.NoError(t, do())
	require.NoError(t, do())

	err := do()
	require.Error(t, err)
	assert.Equal(t, provider.ErrorRateLimit, provider.CategoryOf(err))
	assert.Equal(t, 2, calls, "rejected call never reached the provider")

	// Local rejections are not provider failures.
	assert.Zero(t, g.Health().ErrorRate)
	assert.Equal(t, StateClosed, g.Breaker().State)
}

func TestGuard_FailuresOpenBreakerAndBlock(t *testing.T) {
	alerter := &recordingAlerter{}
	g := newTestGuard(guardConfig(), alerter)

	calls := 0
	fail := func(context.Context) error {
		calls++
		return provider.NewError(provider.ErrorAuthentication, "yelp", "bad token", nil)
	}

	for i := 0; i < 5; i++ {
		require.Error(t, g.Do(context.Background(), fail))
	}
	assert.Equal(t, 5, calls)
	assert.False(t, g.Allow(), "open breaker blocks further calls")

	err := g.Do(context.Background(), fail)
	require.Error(t, err)
	assert.Equal(t, 5, calls, "call not issued while circuit is open")
	assert.Equal(t, provider.ErrorNetwork, provider.CategoryOf(err))

	assert.Equal(t, []BreakerState{StateOpen}, alerter.transitions)
	assert.Len(t, alerter.errors, 5, "auth failures are high severity and alerted")
}

func TestGuard_RetryCounterCountsOnlyScheduledRetries(t *testing.T) {
	promReg := prometheus.NewRegistry()
	m := metrics.NewWith(promReg)

	cfg := guardConfig()
	cfg.Retry = registry.RetryPolicy{MaxRetries: 2, BackoffMultiplier: 1.0, MaxBackoff: time.Second}
	g := NewGuard(cfg, m, nil, slog.New(slog.DiscardHandler))

	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return provider.NewError(provider.ErrorNetwork, "yelp", "connection reset", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
	retries := counterValue(t, promReg, "venuehub_provider_retries_total")
	assert.Equal(t, 2.0, retries, "the exhausted final attempt never scheduled a retry")
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestGuard_SuccessTracksHealth(t *testing.T) {
	g := newTestGuard(guardConfig(), nil)

	require.NoError(t, g.Do(context.Background(), func(context.Context) error { return nil }))

	status := g.Health()
	assert.True(t, status.Healthy)
	assert.Zero(t, status.ErrorRate)
	assert.NotNil(t, status.LastSuccess)
	assert.Nil(t, status.LastFailure)
}

type stubSource struct {
	id      string
	records []venue.RawRecord
	err     error
	calls   int
}

func (s *stubSource) ID() string { return s.id }

func (s *stubSource) Search(context.Context, venue.SearchQuery) ([]venue.RawRecord, error) {
	s.calls++
	return s.records, s.err
}

func (s *stubSource) Details(context.Context, string) (*venue.RawRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &s.records[0], nil
}

func (s *stubSource) ByLocation(context.Context, float64, float64, int) ([]venue.RawRecord, error) {
	s.calls++
	return s.records, s.err
}

func TestGuardedAdapter_PassesResultsThrough(t *testing.T) {
	src := &stubSource{
		id:      "yelp",
		records: []venue.RawRecord{{Source: "yelp", ExternalID: "a", Name: "Spot"}},
	}
	adapter := WrapAdapter(src, newTestGuard(guardConfig(), nil))

	records, err := adapter.Search(context.Background(), venue.SearchQuery{Term: "spot"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "yelp", adapter.ID())
	assert.True(t, adapter.Available())

	rec, err := adapter.Details(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Spot", rec.Name)
}

func TestGuardedAdapter_DisabledSourceNeverReached(t *testing.T) {
	cfg := guardConfig()
	cfg.Enabled = false
	src := &stubSource{id: "yelp"}
	adapter := WrapAdapter(src, newTestGuard(cfg, nil))

	_, err := adapter.Search(context.Background(), venue.SearchQuery{Term: "spot"})
	assert.ErrorIs(t, err, provider.ErrProviderDisabled)
	assert.Zero(t, src.calls)
	assert.False(t, adapter.Available())
}
