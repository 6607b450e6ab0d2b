package adapters

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorageAdapter_RoundTrip(t *testing.T) {
	store, err := NewSQLiteStorageAdapter(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get("tidal:queue")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set("tidal:queue", []byte("[]")))
	require.NoError(t, store.Set("tidal:queue", []byte(`[{"type":"track"}]`)))

	got, err := store.Get("tidal:queue")
	require.NoError(t, err)
	assert.Equal(t, `[{"type":"track"}]`, string(got))

	require.NoError(t, store.Delete("tidal:queue"))
	_, err = store.Get("tidal:queue")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestSQLiteStorageAdapter_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tidal.db")

	store1, err := NewSQLiteStorageAdapter(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Set("tidal:anonymous_id", []byte("anon-1")))
	require.NoError(t, store1.Close())

	store2, err := NewSQLiteStorageAdapter(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	got, err := store2.Get("tidal:anonymous_id")
	require.NoError(t, err)
	assert.Equal(t, "anon-1", string(got))
}

func TestSQLiteStorageAdapter_InvalidPath(t *testing.T) {
	_, err := NewSQLiteStorageAdapter("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStorageAdapter_Closed(t *testing.T) {
	store, err := NewSQLiteStorageAdapter(":memory:")
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
	assert.ErrorIs(t, store.Set("k", []byte("v")), ErrStorageClosed)
	_, err = store.Get("k")
	assert.ErrorIs(t, err, ErrStorageClosed)
	assert.ErrorIs(t, store.Delete("k"), ErrStorageClosed)
}

func TestSQLiteStorageAdapter_Concurrent(t *testing.T) {
	store, err := NewSQLiteStorageAdapter(":memory:")
	require.NoError(t, err)
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "key-" + string(rune('a'+id%5))
			for j := 0; j < 10; j++ {
				_ = store.Set(key, []byte("v"))
				_, _ = store.Get(key)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Get("key-a")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}
