package genai_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/brandstudio/genai"
	"github.com/c360studio/brandstudio/storage"
)

func TestCallStore(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemory()
	store := genai.NewCallStore(bucket)

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Store(ctx, &genai.CallRecord{RequestID: "b", Kind: "image", StartedAt: base.Add(time.Minute)}))
	require.NoError(t, store.Store(ctx, &genai.CallRecord{RequestID: "a", Kind: "video", StartedAt: base}))
	require.NoError(t, bucket.Put(ctx, "garbage", []byte("{")))

	assert.Error(t, store.Store(ctx, &genai.CallRecord{}), "request id required")

	rec, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "video", rec.Kind)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].RequestID)
	assert.Equal(t, "b", records[1].RequestID)
}
