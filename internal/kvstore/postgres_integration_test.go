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

func TestPostgresStore_RoundTrip(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	_, err := pc.DB.ExecContext(ctx, kvstore.Schema)
	require.NoError(t, err)

	store := kvstore.NewPostgres(pc.DB)

	require.NoError(t, store.Set(ctx, "venue:abc", []byte(`{"name":"Bar"}`), time.Minute))

	got, err := store.Get(ctx, "venue:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Bar"}`, string(got))

	// Upsert replaces the value.
	require.NoError(t, store.Set(ctx, "venue:abc", []byte(`{"name":"Pub"}`), time.Minute))
	got, err = store.Get(ctx, "venue:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Pub"}`, string(got))

	require.NoError(t, store.Delete(ctx, "venue:abc"))
	_, err = store.Get(ctx, "venue:abc")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestPostgresStore_ExpiredRowsInvisibleAndReaped(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	_, err := pc.DB.ExecContext(ctx, kvstore.Schema)
	require.NoError(t, err)

	store := kvstore.NewPostgres(pc.DB)

	require.NoError(t, store.Set(ctx, "short", []byte("v"), 500*time.Millisecond))
	require.NoError(t, store.Set(ctx, "long", []byte("w"), time.Minute))

	time.Sleep(time.Second)

	_, err = store.Get(ctx, "short")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	keys, err := store.ListKeys(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"long"}, keys)

	reaped, err := store.Reap(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reaped)
}
