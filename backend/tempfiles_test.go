package backend

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaLifecycle(t *testing.T) {
	root := t.TempDir()
	m := NewTempManager(root, nil)

	arena, err := m.NewArena(42)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(arena.ID(), "42-"))
	assert.Equal(t, filepath.Join(root, arena.ID()), arena.Dir())

	path := arena.Path("video.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	arena.Track(path)
	assert.Equal(t, []string{path}, arena.Tracked())

	arena.Cleanup()
	_, err = os.Stat(arena.Dir())
	assert.True(t, os.IsNotExist(err))

	// Second call is a no-op.
	arena.Cleanup()
}

func TestArenaPathStaysInside(t *testing.T) {
	arena, err := NewTempManager(t.TempDir(), nil).NewArena(1)
	require.NoError(t, err)
	defer arena.Cleanup()

	assert.Equal(t, filepath.Join(arena.Dir(), "passwd"), arena.Path("../../etc/passwd"))
}

func TestArenaRelease(t *testing.T) {
	arena, err := NewTempManager(t.TempDir(), nil).NewArena(1)
	require.NoError(t, err)
	defer arena.Cleanup()

	path := arena.Path("raw.webm")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	arena.Track(path)

	arena.Release(path)
	assert.False(t, fileExists(path))
	assert.Empty(t, arena.Tracked())

	// Releasing a missing file is not an error.
	arena.Release(path)
}

func TestArenasAreDistinct(t *testing.T) {
	m := NewTempManager(t.TempDir(), nil)
	a, err := m.NewArena(7)
	require.NoError(t, err)
	b, err := m.NewArena(7)
	require.NoError(t, err)
	assert.NotEqual(t, a.Dir(), b.Dir())
	a.Cleanup()
	b.Cleanup()
}

func TestSweep(t *testing.T) {
	root := t.TempDir()
	m := NewTempManager(root, nil)

	stale, err := m.NewArena(1)
	require.NoError(t, err)
	fresh, err := m.NewArena(2)
	require.NoError(t, err)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale.Dir(), old, old))

	assert.Equal(t, 1, m.Sweep(time.Hour))
	assert.NoDirExists(t, stale.Dir())
	assert.DirExists(t, fresh.Dir())
}

func TestSweepMissingRoot(t *testing.T) {
	m := NewTempManager(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Equal(t, 0, m.Sweep(time.Hour))
}
