package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiayu-tsai/uber-receipts-sync/internal/entity"
)

func TestSQLiteStore_SaveGetClear(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStore(dir, nil)
	require.NoError(t, err)
	defer store.Close()

	state, err := store.Get("Uber")
	require.NoError(t, err)
	assert.Equal(t, entity.CheckpointState{}, state)

	require.NoError(t, store.Save("Uber", entity.CheckpointState{Offset: 80}))
	state, err = store.Get("Uber")
	require.NoError(t, err)
	assert.Equal(t, 80, state.Offset)
	assert.False(t, state.Completed)

	// Overwrite in place.
	require.NoError(t, store.Save("Uber", entity.CheckpointState{Offset: 0, Completed: true}))
	state, err = store.Get("Uber")
	require.NoError(t, err)
	assert.Equal(t, 0, state.Offset)
	assert.True(t, state.Completed)

	require.NoError(t, store.Clear("Uber"))
	state, err = store.Get("Uber")
	require.NoError(t, err)
	assert.Equal(t, entity.CheckpointState{}, state)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewSQLiteStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save("Uber/台灣", entity.CheckpointState{Offset: 7}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	state, err := reopened.Get("Uber/台灣")
	require.NoError(t, err)
	assert.Equal(t, 7, state.Offset)
}

func TestSQLiteStore_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := NewSQLiteStore(dir, nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Join(dir, "checkpoints.db"))
	assert.NoError(t, err)
}
