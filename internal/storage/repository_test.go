package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "bilancio.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func TestSQLiteRepositoryPutGet(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	_, ok, err := repo.Get(ctx, KeyTransactions)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Put(ctx,
		Entry{Key: KeyTransactions, Value: []byte(`[]`)},
		Entry{Key: KeyCategories, Value: []byte(`["Food"]`)},
	))

	v, ok, err := repo.Get(ctx, KeyCategories)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `["Food"]`, string(v))

	// Upsert overwrites.
	require.NoError(t, repo.Put(ctx, Entry{Key: KeyCategories, Value: []byte(`["Rent"]`)}))
	v, _, _ = repo.Get(ctx, KeyCategories)
	assert.Equal(t, `["Rent"]`, string(v))
}

func TestSQLiteRepositoryLastModified(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	_, ok, err := repo.LastModified(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Put(ctx, Entry{Key: KeyTransactions, Value: []byte(`[]`)}))
	first, ok, err := repo.LastModified(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, first.Equal(fixed))

	// With the clock frozen every Put still moves the stamp forward.
	require.NoError(t, repo.Put(ctx, Entry{Key: KeyCategories, Value: []byte(`[]`)}))
	second, _, err := repo.LastModified(ctx)
	require.NoError(t, err)
	assert.True(t, second.After(first))
}

func TestSQLiteRepositoryRejectsEmptyKey(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	err := repo.Put(ctx, Entry{Key: "a", Value: []byte("1")}, Entry{Key: ""})
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, ok, _ := repo.Get(ctx, "a")
	assert.False(t, ok)
}

func TestSQLiteRepositoryReopen(t *testing.T) {
	ctx := context.Background()
	repo, path := newTestRepo(t)
	require.NoError(t, repo.Put(ctx, Entry{Key: KeyTransactions, Value: []byte(`[1]`)}))
	require.NoError(t, repo.Close())

	// Migrations are idempotent on an existing database.
	again, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer again.Close()
	require.NoError(t, again.Ping(ctx))

	v, ok, err := again.Get(ctx, KeyTransactions)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[1]`, string(v))
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	_, path := newTestRepo(t)

	version, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}
