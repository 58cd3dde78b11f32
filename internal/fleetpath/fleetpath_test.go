package fleetpath

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessorsResolveUnderRoot(t *testing.T) {
	root := t.TempDir()
	p, err := New(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(p.Root, "01_job_factory", "img_queue"), p.ImageQueue())
	assert.Equal(t, filepath.Join(p.Root, "01_job_factory", "vid_queue"), p.VideoQueue())
	assert.Equal(t, filepath.Join(p.Root, "02_active_floor", "w1", "inbox"), p.Inbox("w1"))
	assert.Equal(t, filepath.Join(p.Root, "_system", "heartbeats", "w1.json"), p.HeartbeatFile("w1"))
	assert.Equal(t, filepath.Join(p.Root, "_system", "commands", "w1.cmd"), p.CommandFile("w1"))
}

func TestQueueForKind(t *testing.T) {
	p, err := New(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, p.ImageQueue(), p.QueueForKind("img"))
	assert.Equal(t, p.VideoQueue(), p.QueueForKind("vid"))
	assert.Equal(t, p.ImageQueue(), p.QueueForKind("unknown"))
}

func TestJoinPassesThroughAbsolutePaths(t *testing.T) {
	p, err := New(t.TempDir())
	require.NoError(t, err)

	abs := filepath.Join(t.TempDir(), "elsewhere")
	assert.Equal(t, abs, p.Join(abs))
}
