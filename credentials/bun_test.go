package credentials_test

import (
	"context"
	"testing"

	"github.com/flexmon/console-auth/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBunStore(t *testing.T) *credentials.BunStore {
	t.Helper()

	db, err := credentials.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	store := credentials.NewBunStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Migrate(context.Background()), "migrate must be repeatable")

	return store
}

func TestBunStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupBunStore(t)

	_, err := store.Get(ctx, credentials.DefaultTokenKey)
	assert.ErrorIs(t, err, credentials.ErrNotFound)

	require.NoError(t, store.Set(ctx, credentials.DefaultTokenKey, "first"))
	got, err := store.Get(ctx, credentials.DefaultTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.NoError(t, store.Set(ctx, credentials.DefaultTokenKey, "second"))
	got, err = store.Get(ctx, credentials.DefaultTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestBunStoreKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := setupBunStore(t)

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))
	require.NoError(t, store.Remove(ctx, "a"))

	_, err := store.Get(ctx, "a")
	assert.True(t, credentials.IsNotFound(err))

	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestBunStoreRemoveMissingKey(t *testing.T) {
	store := setupBunStore(t)
	assert.NoError(t, store.Remove(context.Background(), "missing"))
}

func TestBunStoreRemoveIf(t *testing.T) {
	checkRemoveIf(t, setupBunStore(t))
}
