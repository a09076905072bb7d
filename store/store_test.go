package store_test

import (
	"context"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnvec/hnswdb/shard"
	"github.com/nnvec/hnswdb/store"
)

func testStoreContract(t *testing.T, s shard.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Read(ctx, "missing")
	assert.ErrorIs(t, err, shard.ErrNotFound)

	exists, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Write(ctx, "a", []byte("hello")))
	require.NoError(t, s.Write(ctx, "b", []byte("world")))

	exists, err = s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := s.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	ok, err := s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Read(ctx, "a")
	assert.ErrorIs(t, err, shard.ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, store.NewMemory())
}

func TestLocalStore(t *testing.T) {
	s, err := store.NewLocal(t.TempDir())
	require.NoError(t, err)
	testStoreContract(t, s)
}

func TestLocalStoreOverwritesAtomically(t *testing.T) {
	s, err := store.NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "k", []byte("v1")))
	require.NoError(t, s.Write(ctx, "k", []byte("v2-longer")))

	data, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2-longer"), data)
}

func TestCompressedStoreRoundTrip(t *testing.T) {
	c, err := store.NewCompressed(store.NewMemory(), zstd.SpeedDefault)
	require.NoError(t, err)
	defer c.Close()

	testStoreContract(t, c)
}

func TestRateLimitedStorePassesThrough(t *testing.T) {
	rl := store.NewRateLimited(store.NewMemory(), 1<<20)
	testStoreContract(t, rl)
}
