package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuehub/internal/provider"
	"venuehub/internal/registry"
)

var testRetryPolicy = registry.RetryPolicy{
	MaxRetries:        2,
	BackoffMultiplier: 2.0,
	MaxBackoff:        5 * time.Second,
}

func TestRetry_SuccessPassesThrough(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), testRetryPolicy, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	authErr := provider.NewError(provider.ErrorAuthentication, "yelp", "bad token", nil)
	err := Retry(context.Background(), testRetryPolicy, func(context.Context) error {
		calls++
		return authErr
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "authentication failures are never retried")
	assert.Equal(t, provider.ErrorAuthentication, provider.CategoryOf(err))
}

func TestRetry_TransientRetriedUntilSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), testRetryPolicy, func(context.Context) error {
		calls++
		if calls < 2 {
			return provider.NewError(provider.ErrorNetwork, "yelp", "connection reset", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), testRetryPolicy, func(context.Context) error {
		calls++
		return provider.NewError(provider.ErrorServer, "yelp", "upstream down", nil)
	})
	require.Error(t, err)
	assert.Equal(t, testRetryPolicy.MaxRetries+1, calls)
	assert.Equal(t, provider.ErrorServer, provider.CategoryOf(err))
}

func TestRetry_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, testRetryPolicy, func(context.Context) error {
		calls++
		cancel()
		return provider.NewError(provider.ErrorNetwork, "yelp", "connection reset", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "cancellation consumes no further attempts")
}
