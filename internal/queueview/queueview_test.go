package queueview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanSkipsDotfilesAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"banana.txt", "apple.txt", ".hidden.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	snap := Scan(dir)
	assert.Equal(t, []string{"apple.txt", "banana.txt"}, snap.Names())
}

func TestScanMissingDirYieldsEmpty(t *testing.T) {
	snap := Scan(filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, snap.Entries)
}

func TestEmptyAndOldest(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, Empty(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "z.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	assert.False(t, Empty(dir))
	entry, ok := Scan(dir).Oldest()
	require.True(t, ok)
	assert.Equal(t, "a.txt", entry.Name)
}
