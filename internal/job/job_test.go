package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
)

func TestFromPathClassifiesByShape(t *testing.T) {
	dir := t.TempDir()

	imgPath := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(imgPath, []byte("a dog\n"), 0o644))
	j, ok := FromPath(imgPath)
	require.True(t, ok)
	assert.Equal(t, KindImage, j.Kind())

	vidPath := filepath.Join(dir, "storyboard")
	require.NoError(t, os.Mkdir(vidPath, 0o755))
	j, ok = FromPath(vidPath)
	require.True(t, ok)
	assert.Equal(t, KindVideo, j.Kind())

	_, ok = FromPath(filepath.Join(dir, "does-not-exist.txt"))
	assert.False(t, ok)

	otherPath := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(otherPath, []byte("x"), 0o644))
	_, ok = FromPath(otherPath)
	assert.False(t, ok)
}

func TestIsVIP(t *testing.T) {
	cases := map[string]bool{
		"vip_client_batch.txt":    true,
		"URGENT-reshoot.txt":      true,
		"ordinary_batch.txt":      false,
		"service_vip_queue.txt":   true,
		"not_a_match.txt":         false,
	}
	for name, want := range cases {
		assert.Equal(t, want, IsVIP(name), name)
	}
}

func TestClassifyBucketPicksHighestWeightOnTie(t *testing.T) {
	weights := map[string]int{"default": 1, "background": 5, "default_background": 9}
	keys := []string{"background", "default_background"}

	got := ClassifyBucket("default_background_render.txt", keys, weights)
	assert.Equal(t, "default_background", got)
}

func TestClassifyBucketFallsBackToDefault(t *testing.T) {
	weights := map[string]int{"default": 1, "special": 5}
	got := ClassifyBucket("plain_job.txt", []string{"special"}, weights)
	assert.Equal(t, "default", got)
}

func TestRecoveryQueueByKind(t *testing.T) {
	paths, err := fleetpath.New(t.TempDir())
	require.NoError(t, err)

	imgJob := Job{path: "x.txt", kind: KindImage}
	vidJob := Job{path: "x", kind: KindVideo}

	assert.Equal(t, paths.ImageQueue(), imgJob.RecoveryQueue(paths))
	assert.Equal(t, paths.VideoQueue(), vidJob.RecoveryQueue(paths))
}
