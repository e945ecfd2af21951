package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuehub/internal/kvstore"
)

func newTestManager(budget int64) *Manager {
	return NewManager(kvstore.NewMemory(), budget, nil, slog.New(slog.DiscardHandler))
}

func TestManager_SetThenGetWithinTTL(t *testing.T) {
	ctx := context.Background()
	c := newTestManager(1 << 20)

	require.NoError(t, c.Set(ctx, "k", []byte("value"), time.Minute, nil, PriorityNormal))

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)
}

func TestManager_GetAfterTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := newTestManager(1 << 20)

	now := time.Now()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(ctx, "k", []byte("value"), time.Minute, nil, PriorityNormal))

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestManager_RejectsZeroTTL(t *testing.T) {
	c := newTestManager(1 << 20)
	err := c.Set(context.Background(), "k", []byte("v"), 0, nil, PriorityNormal)
	assert.Error(t, err)
}

func TestManager_WriteThroughSurvivesMemoryLoss(t *testing.T) {
	ctx := context.Background()
	cold := kvstore.NewMemory()
	c := NewManager(cold, 1<<20, nil, slog.New(slog.DiscardHandler))

	require.NoError(t, c.Set(ctx, "k", []byte("value"), time.Minute, nil, PriorityNormal))

	// A fresh manager over the same cold store still sees the entry.
	c2 := NewManager(cold, 1<<20, nil, slog.New(slog.DiscardHandler))
	got, ok := c2.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)
}

func TestManager_LRUEvictionUnderBudget(t *testing.T) {
	ctx := context.Background()
	// Budget fits roughly two entries of ~1KB plus overhead.
	c := newTestManager(2500)

	big := make([]byte, 1000)
	require.NoError(t, c.Set(ctx, "a", big, time.Minute, nil, PriorityHigh))
	require.NoError(t, c.Set(ctx, "b", big, time.Minute, nil, PriorityHigh))

	// Touch "a" so "b" becomes least recently used.
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, c.Set(ctx, "c", big, time.Minute, nil, PriorityHigh))

	stats := c.Stats()
	assert.GreaterOrEqual(t, stats.Evictions, uint64(1))
	assert.LessOrEqual(t, stats.MemoryBytes, stats.MemoryBudget)

	// Evicted entries are still served from the cold tier.
	_, ok = c.Get(ctx, "b")
	assert.True(t, ok)
}

func TestManager_InvalidateByTag(t *testing.T) {
	ctx := context.Background()
	c := newTestManager(1 << 20)

	require.NoError(t, c.Set(ctx, "y1", []byte("a"), time.Minute, []string{ProviderTag("yelp")}, PriorityNormal))
	require.NoError(t, c.Set(ctx, "y2", []byte("b"), time.Minute, []string{ProviderTag("yelp")}, PriorityNormal))
	require.NoError(t, c.Set(ctx, "f1", []byte("c"), time.Minute, []string{ProviderTag("foursquare")}, PriorityNormal))

	_, err := c.InvalidateByTag(ctx, ProviderTag("yelp"))
	require.NoError(t, err)

	_, ok := c.Get(ctx, "y1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "y2")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "f1")
	assert.True(t, ok)
}

func TestManager_GetOrFetchCollapsesConcurrentFetches(t *testing.T) {
	ctx := context.Background()
	c := newTestManager(1 << 20)

	var fetches atomic.Int32
	fetch := func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []byte("fetched"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _, err := c.GetOrFetch(ctx, "k", ClassMerged, nil, fetch)
			assert.NoError(t, err)
			assert.Equal(t, []byte("fetched"), got)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
}

func TestManager_GetOrFetchPropagatesFetchError(t *testing.T) {
	ctx := context.Background()
	c := newTestManager(1 << 20)

	wantErr := errors.New("upstream down")
	_, _, err := c.GetOrFetch(ctx, "k", ClassMerged, nil, func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// Failure must not poison the key.
	got, _, err := c.GetOrFetch(ctx, "k", ClassMerged, nil, func(ctx context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
}

func TestManager_StatsHitRate(t *testing.T) {
	ctx := context.Background()
	c := newTestManager(1 << 20)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute, nil, PriorityNormal))
	c.Get(ctx, "k")
	c.Get(ctx, "k")
	c.Get(ctx, "absent")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestManager_ColdPromotionAfterRepeatedReads(t *testing.T) {
	ctx := context.Background()
	cold := kvstore.NewMemory()
	c := NewManager(cold, 1<<20, nil, slog.New(slog.DiscardHandler))

	// Large value: write-through only, memory not populated.
	big := make([]byte, smallObjectBytes+1)
	require.NoError(t, c.Set(ctx, "k", big, time.Minute, nil, PriorityNormal))

	stats := c.Stats()
	require.Equal(t, 0, stats.MemoryEntries)

	// Reads beyond the promotion threshold pull it into memory.
	for i := 0; i <= promoteThreshold+1; i++ {
		_, ok := c.Get(ctx, "k")
		require.True(t, ok)
	}

	stats = c.Stats()
	assert.Equal(t, 1, stats.MemoryEntries)
}
