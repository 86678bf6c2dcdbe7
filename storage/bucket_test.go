package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/c360studio/brandstudio/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBucket runs the same contract against every backend.
func exerciseBucket(t *testing.T, b storage.Bucket) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	keys, err := b.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, b.Put(ctx, "b", []byte("two")))
	require.NoError(t, b.Put(ctx, "a", []byte("one")))
	require.NoError(t, b.Put(ctx, "a", []byte("uno")))

	v, err := b.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "uno", string(v))

	keys, err = b.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, b.Delete(ctx, "a"))
	require.NoError(t, b.Delete(ctx, "a"), "deleting a missing key is fine")

	_, err = b.Get(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemory(t *testing.T) {
	exerciseBucket(t, storage.NewMemory())
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()

	buf := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", buf))
	buf[0] = 'x'

	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestSQLite(t *testing.T) {
	b, err := storage.OpenSQLite(context.Background(), ":memory:", "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	exerciseBucket(t, b)
}

func TestSQLite_BucketsAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/studio.db"

	first, err := storage.OpenSQLite(ctx, path, "one")
	require.NoError(t, err)
	defer first.Close()
	second, err := storage.OpenSQLite(ctx, path, "two")
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Put(ctx, "k", []byte("1")))

	_, err = second.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNewID(t *testing.T) {
	id := storage.NewID(storage.PrefixAIImage)
	assert.True(t, strings.HasPrefix(id, "ai-img-"))
	assert.Len(t, id, len("ai-img-")+9)
	assert.NotEqual(t, id, storage.NewID(storage.PrefixAIImage))

	assert.Len(t, storage.NewRequestID(), 36)
}
