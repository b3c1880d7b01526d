package chunkmeta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetadataAllUnset(t *testing.T) {
	m := New(10)
	assert.Equal(t, 10, m.ChunkCount())
	assert.Equal(t, 0, m.ChunksDone())
	assert.Equal(t, 10, m.ChunksRemaining())
	assert.Equal(t, 0, m.Percent())
	for i := 0; i < 10; i++ {
		assert.False(t, m.IsSet(i))
	}
}

func TestMarkUpdatesCountersAndBitmap(t *testing.T) {
	m := New(4)
	m.Mark(0)
	m.Mark(2)

	assert.True(t, m.IsSet(0))
	assert.False(t, m.IsSet(1))
	assert.True(t, m.IsSet(2))
	assert.False(t, m.IsSet(3))
	assert.Equal(t, 2, m.ChunksDone())
	assert.Equal(t, 2, m.ChunksRemaining())
	assert.Equal(t, 50, m.Percent())
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")

	m := New(10)
	for _, i := range []int{0, 1, 2, 5} {
		m.Mark(i)
	}
	m.Persist(dest)

	loaded := LoadOrNew(dest, 10, nil)
	assert.Equal(t, 4, loaded.ChunksDone())
	for _, i := range []int{0, 1, 2, 5} {
		assert.True(t, loaded.IsSet(i))
	}
	for _, i := range []int{3, 4, 6, 7, 8, 9} {
		assert.False(t, loaded.IsSet(i))
	}
}

func TestLoadOrNewChunkCountMismatchStartsFresh(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")

	m := New(10)
	m.Mark(0)
	m.Persist(dest)

	loaded := LoadOrNew(dest, 20, nil)
	assert.Equal(t, 20, loaded.ChunkCount())
	assert.Equal(t, 0, loaded.ChunksDone())
}

func TestLoadOrNewMissingSideCarStartsFresh(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "does-not-exist.bin")

	loaded := LoadOrNew(dest, 5, nil)
	assert.Equal(t, 5, loaded.ChunkCount())
	assert.Equal(t, 0, loaded.ChunksDone())
}

func TestLoadOrNewCorruptSideCarStartsFresh(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")

	require.NoError(t, os.WriteFile(dest+TempSuffix, []byte("not a valid side-car"), 0o600))

	loaded := LoadOrNew(dest, 5, nil)
	assert.Equal(t, 5, loaded.ChunkCount())
	assert.Equal(t, 0, loaded.ChunksDone())
}

func TestSnapshotBitmapIsIndependentOfLaterWrites(t *testing.T) {
	m := New(4)
	m.Mark(0)
	snap := m.SnapshotBitmap()

	m.Mark(1)

	assert.True(t, snap.Contains(0))
	assert.False(t, snap.Contains(1))
}

func TestRemoveRequiresExistingSideCar(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")

	m := New(1)
	m.Mark(0)
	m.Persist(dest)

	require.NoError(t, Remove(dest))
	assert.Error(t, Remove(dest))
}
