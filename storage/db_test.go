package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	level, err := NewLevelDB(filepath.Join(t.TempDir(), "level"))
	require.NoError(t, err)
	bolt, err := NewBoltDB(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		level.Close()
		bolt.Close()
	})
	return map[string]Database{
		"mem":   NewMemDB(),
		"level": level,
		"bolt":  bolt,
	}
}

func TestDatabaseGetMissingReturnsErrNotFound(t *testing.T) {
	for name, db := range backends(t) {
		_, err := db.Get([]byte("missing"))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", name, err)
		}
		ok, err := db.Has([]byte("missing"))
		require.NoError(t, err, name)
		require.False(t, ok, name)
	}
}

func TestBatchAppliesAllWrites(t *testing.T) {
	for name, db := range backends(t) {
		require.NoError(t, db.Put([]byte("gone"), []byte("x")), name)

		batch := db.NewBatch()
		batch.Put([]byte("a"), []byte("1"))
		batch.Put([]byte("b"), []byte("2"))
		batch.Delete([]byte("gone"))
		require.Equal(t, 3, batch.Len(), name)

		// Nothing is visible before Write.
		_, err := db.Get([]byte("a"))
		require.ErrorIs(t, err, ErrNotFound, name)

		require.NoError(t, batch.Write(), name)
		got, err := db.Get([]byte("b"))
		require.NoError(t, err, name)
		require.Equal(t, []byte("2"), got, name)
		_, err = db.Get([]byte("gone"))
		require.ErrorIs(t, err, ErrNotFound, name)

		batch.Reset()
		require.Zero(t, batch.Len(), name)
	}
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	db, err := NewLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("key"), []byte("value")))
	db.Close()

	reopened, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}
