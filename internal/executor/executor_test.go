package executor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
	"github.com/PhiSkr/RenderFleet/internal/heartbeatio"
	"github.com/PhiSkr/RenderFleet/internal/renderer"
	"github.com/PhiSkr/RenderFleet/pkg/models"
)

func newTestExecutor(t *testing.T) (*Executor, fleetpath.Paths) {
	t.Helper()
	root := t.TempDir()
	paths, err := fleetpath.New(root)
	require.NoError(t, err)

	hb := heartbeatio.NewEmitter(paths, "w1")
	rend := renderer.New(renderer.Paths{
		LandingZone:    filepath.Join(root, "landing"),
		StagingPrompts: filepath.Join(root, "prompts"),
		StagingArea:    filepath.Join(root, "staging"),
		FlagsDir:       filepath.Join(root, "flags"),
	}, renderer.Config{Command: "true"}, zerolog.Nop())

	ex := New(paths, "w1", func() models.Role { return models.RoleImageWorker }, hb, rend, filepath.Join(root, "vid_staging"), zerolog.Nop())
	return ex, paths
}

func TestTickReturnsFalseOnEmptyInbox(t *testing.T) {
	ex, _ := newTestExecutor(t)
	assert.False(t, ex.Tick(context.Background()))
}

func TestProgressSkipsAlreadyCompletedSubItems(t *testing.T) {
	dir := t.TempDir()
	progressPath := filepath.Join(dir, "progress.json")

	p := models.Progress{CompletedFiles: []string{"job_p1"}, Status: models.ProgressInProgress}
	data, err := json.MarshalIndent(p, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(progressPath, data, 0o644))

	loaded := loadProgress(progressPath)
	assert.True(t, loaded.HasCompleted("job_p1"))
	assert.False(t, loaded.HasCompleted("job_p2"))
}

func TestSaveProgressRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")

	want := models.Progress{CompletedFiles: []string{"a", "b"}, Status: models.ProgressInProgress}
	require.NoError(t, saveProgress(path, want))

	got := loadProgress(path)
	assert.Equal(t, want.CompletedFiles, got.CompletedFiles)
	assert.Equal(t, want.Status, got.Status)
}

func TestListImagesFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame1.png", "frame2.jpg", "notes.txt", "frame1.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	images := listImages(dir)
	assert.ElementsMatch(t, []string{"frame1.png", "frame2.jpg"}, images)
}
