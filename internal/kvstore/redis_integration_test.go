//go:build integration

package kvstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuehub/internal/kvstore"
	"venuehub/pkg/testutil/containers"
)

func TestRedisStore_RoundTrip(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	store := kvstore.NewRedis(rc.Client)

	require.NoError(t, store.Set(ctx, "venue:abc", []byte(`{"name":"Cafe"}`), time.Minute))

	got, err := store.Get(ctx, "venue:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Cafe"}`, string(got))

	require.NoError(t, store.Delete(ctx, "venue:abc"))
	_, err = store.Get(ctx, "venue:abc")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	store := kvstore.NewRedis(rc.Client)

	require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Second))
	_, err := store.Get(ctx, "short")
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)
	_, err = store.Get(ctx, "short")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestRedisStore_ListKeysByPrefix(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	store := kvstore.NewRedis(rc.Client)

	require.NoError(t, store.Set(ctx, "venue:1", []byte("a"), time.Minute))
	require.NoError(t, store.Set(ctx, "venue:2", []byte("b"), time.Minute))
	require.NoError(t, store.Set(ctx, "geo:1", []byte("c"), time.Minute))

	keys, err := store.ListKeys(ctx, "venue:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"venue:1", "venue:2"}, keys)
}
