package recovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
	"github.com/PhiSkr/RenderFleet/pkg/models"
)

func newPaths(t *testing.T) fleetpath.Paths {
	t.Helper()
	p, err := fleetpath.New(t.TempDir())
	require.NoError(t, err)
	return p
}

func writeDeadHeartbeat(t *testing.T, paths fleetpath.Paths, workerID string) {
	t.Helper()
	hb := models.Heartbeat{WorkerID: workerID, Timestamp: time.Now().Unix() - 300, Status: models.StatusBusy, Role: models.RoleImageWorker}
	data, err := json.Marshal(hb)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(paths.Heartbeats(), 0o755))
	require.NoError(t, os.WriteFile(paths.HeartbeatFile(workerID), data, 0o644))
}

func TestRecoverDeadWorkersMovesStrandedJobs(t *testing.T) {
	paths := newPaths(t)
	writeDeadHeartbeat(t, paths, "dead-1")

	inbox := paths.Inbox("dead-1")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "strand.txt"), []byte("x"), 0o644))

	e := New(paths, zerolog.Nop())
	e.RecoverDeadWorkers()

	_, err := os.Stat(filepath.Join(paths.ImageQueue(), "strand.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(inbox, "strand.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRecoverDeadWorkersIsIdempotent(t *testing.T) {
	paths := newPaths(t)
	writeDeadHeartbeat(t, paths, "dead-1")

	inbox := paths.Inbox("dead-1")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "strand.txt"), []byte("x"), 0o644))

	e := New(paths, zerolog.Nop())
	e.RecoverDeadWorkers()
	e.RecoverDeadWorkers() // second run over an already-recovered inbox must be a no-op

	entries, err := os.ReadDir(inbox)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecoverDeadWorkersSkipsAliveWorkers(t *testing.T) {
	paths := newPaths(t)
	hb := models.Heartbeat{WorkerID: "alive-1", Timestamp: time.Now().Unix(), Status: models.StatusBusy, Role: models.RoleImageWorker}
	data, err := json.Marshal(hb)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(paths.Heartbeats(), 0o755))
	require.NoError(t, os.WriteFile(paths.HeartbeatFile("alive-1"), data, 0o644))

	inbox := paths.Inbox("alive-1")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "keep.txt"), []byte("x"), 0o644))

	e := New(paths, zerolog.Nop())
	e.RecoverDeadWorkers()

	_, err = os.Stat(filepath.Join(inbox, "keep.txt"))
	assert.NoError(t, err)
}
