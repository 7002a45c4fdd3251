package seen

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/munnme/orangecarrier2-bot/db"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	cfg := db.DefaultConfig()
	cfg.DSN = path
	gdb, err := db.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	store, err := NewStore(gdb, nil)
	require.NoError(t, err)
	return store
}

func TestStoreMarkAndHas(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "seen.sqlite"))
	ctx := context.Background()

	require.False(t, store.Has(ctx, "call-1"))
	require.NoError(t, store.Mark(ctx, "call-1"))
	require.True(t, store.Has(ctx, "call-1"))
	require.False(t, store.Has(ctx, "call-2"))
}

func TestStoreMarkIsIdempotent(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "seen.sqlite"))
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "call-1"))
	require.NoError(t, store.Mark(ctx, "call-1"))
	require.True(t, store.Has(ctx, "call-1"))
}

func TestStoreHasFailsOpenOnReadError(t *testing.T) {
	cfg := db.DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "seen.sqlite")
	gdb, err := db.Open(cfg)
	require.NoError(t, err)
	store, err := NewStore(gdb, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "call-1"))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	// A broken ledger must not block delivery.
	require.False(t, store.Has(ctx, "call-1"))
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.sqlite")
	ctx := context.Background()

	store := openTestStore(t, path)
	require.NoError(t, store.Mark(ctx, "call-1"))

	reopened := openTestStore(t, path)
	require.True(t, reopened.Has(ctx, "call-1"))
}
