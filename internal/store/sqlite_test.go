package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestKV(t *testing.T, path string) *KV {
	t.Helper()
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewKV(db)
}

func TestKVGetMissing(t *testing.T) {
	kv := openTestKV(t, filepath.Join(t.TempDir(), "state.db"))

	v, ok, err := kv.Get(context.Background(), "replId")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestKVSetOverwriteDelete(t *testing.T) {
	ctx := context.Background()
	kv := openTestKV(t, filepath.Join(t.TempDir(), "state.db"))

	require.NoError(t, kv.Set(ctx, "replId", "7"))
	require.NoError(t, kv.Set(ctx, "replId", "42"))

	v, ok, err := kv.Get(ctx, "replId")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	require.NoError(t, kv.Delete(ctx, "replId"))
	require.NoError(t, kv.Delete(ctx, "replId"))

	_, ok, err = kv.Get(ctx, "replId")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, NewKV(db).Set(ctx, "replId", "7"))
	require.NoError(t, db.Close())

	kv := openTestKV(t, path)
	v, ok, err := kv.Get(ctx, "replId")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", v)
}
