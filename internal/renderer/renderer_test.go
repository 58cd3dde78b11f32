package renderer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) (*Adapter, string) {
	t.Helper()
	root := t.TempDir()
	paths := Paths{
		LandingZone:    filepath.Join(root, "landing"),
		StagingPrompts: filepath.Join(root, "prompts"),
		StagingArea:    filepath.Join(root, "input"),
		FlagsDir:       filepath.Join(root, "flags"),
	}
	for _, d := range []string{paths.LandingZone, paths.StagingPrompts, paths.StagingArea, paths.FlagsDir} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	a := New(paths, Config{Command: "true"}, zerolog.Nop())
	return a, root
}

func TestConsumeFlagsClassifiesAndDeletes(t *testing.T) {
	a, _ := newTestAdapter(t)

	require.NoError(t, os.WriteFile(filepath.Join(a.Paths.FlagsDir, "NOHOTBAR.txt"), []byte("x"), 0o644))
	assert.Equal(t, flagRetryRefresh, a.consumeFlags())
	_, err := os.Stat(filepath.Join(a.Paths.FlagsDir, "NOHOTBAR.txt"))
	assert.True(t, os.IsNotExist(err), "flag file should be deleted after being consumed")

	require.NoError(t, os.WriteFile(filepath.Join(a.Paths.FlagsDir, "SENSITIVE.txt"), []byte("x"), 0o644))
	assert.Equal(t, flagRetrySensitive, a.consumeFlags())

	require.NoError(t, os.WriteFile(filepath.Join(a.Paths.FlagsDir, "issue.txt"), []byte("x"), 0o644))
	assert.Equal(t, flagConditionalRetry, a.consumeFlags())

	assert.Equal(t, flagNone, a.consumeFlags())
}

func TestHasMatchingOutput(t *testing.T) {
	a, _ := newTestAdapter(t)
	assert.False(t, a.hasMatchingOutput(".png"))

	require.NoError(t, os.WriteFile(filepath.Join(a.Paths.LandingZone, "out.png"), []byte("x"), 0o644))
	assert.True(t, a.hasMatchingOutput(".png"))
	assert.False(t, a.hasMatchingOutput(".mp4"))
}

func TestCollectOutputsRenamesAndMoves(t *testing.T) {
	a, root := newTestAdapter(t)
	outputDir := filepath.Join(root, "out")

	require.NoError(t, os.WriteFile(filepath.Join(a.Paths.LandingZone, "raw1.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(a.Paths.LandingZone, "raw2.png"), []byte("x"), 0o644))

	ok := a.collectOutputs(outputDir, "myjob", ".png", 4)
	require.True(t, ok)

	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Contains(t, e.Name(), "myjob_take")
	}
}

func TestCollectOutputsFailsWithNoCandidates(t *testing.T) {
	a, root := newTestAdapter(t)
	ok := a.collectOutputs(filepath.Join(root, "out"), "myjob", ".png", 4)
	assert.False(t, ok)
}

func TestCollectOutputsRespectsMaxOutputs(t *testing.T) {
	a, root := newTestAdapter(t)
	outputDir := filepath.Join(root, "out")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(a.Paths.LandingZone, string(rune('a'+i))+".png"), []byte("x"), 0o644))
	}

	ok := a.collectOutputs(outputDir, "myjob", ".png", 2)
	require.True(t, ok)

	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
