package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"venuehub/internal/provider"
	"venuehub/internal/registry"
)

// retryInitialInterval is the first backoff delay; the per-provider policy
// supplies the multiplier and cap.
const retryInitialInterval = 1 * time.Second

// Retry runs call with exponential backoff per the provider's policy. Only
// errors the taxonomy marks transient (network, rate-limit, server) are
// retried; everything else stops immediately. Context cancellation stops the
// loop without consuming further attempts.
func Retry(ctx context.Context, policy registry.RetryPolicy, call func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.Multiplier = policy.BackoffMultiplier
	bo.MaxInterval = policy.MaxBackoff

	operation := func() (struct{}, error) {
		err := call(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !provider.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(policy.MaxRetries)+1),
	)
	return err
}
