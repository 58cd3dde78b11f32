// Package recovery implements spec §4.3: returning jobs stranded in a dead
// worker's inbox back to the appropriate source queue.
package recovery

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
	"github.com/PhiSkr/RenderFleet/internal/heartbeatio"
	"github.com/PhiSkr/RenderFleet/internal/job"
	"github.com/PhiSkr/RenderFleet/internal/queueview"
	"github.com/PhiSkr/RenderFleet/internal/rfsync"
)

// Engine returns stranded inbox contents from dead (heartbeat more than
// 180s stale, last-BUSY) workers back to their source queues.
type Engine struct {
	Paths fleetpath.Paths
	Log   zerolog.Logger
}

// New returns a recovery Engine.
func New(paths fleetpath.Paths, log zerolog.Logger) *Engine {
	return &Engine{Paths: paths, Log: log}
}

// RecoverDeadWorkers runs one recovery tick: every dead-busy worker's
// inbox is drained, each item moved back to its kind's queue. Idempotent —
// running it twice over an already-recovered inbox is a no-op, since an
// empty inbox has nothing left to move.
func (e *Engine) RecoverDeadWorkers() {
	for _, workerID := range heartbeatio.DeadBusyWorkers(e.Paths) {
		e.recoverInbox(workerID)
	}
}

func (e *Engine) recoverInbox(workerID string) {
	inbox := e.Paths.Inbox(workerID)
	snap := queueview.Scan(inbox)
	for _, entry := range snap.Entries {
		j, ok := job.FromPath(entry.Path)
		if !ok {
			continue
		}
		dest := j.RecoveryQueue(e.Paths)
		if err := rfsync.Move(j.Path(), filepath.Join(dest, j.Name())); err != nil {
			if err == rfsync.ErrVanished {
				continue
			}
			e.Log.Warn().Err(err).Str("job", j.Name()).Str("worker_id", workerID).Msg("recovery move failed")
			continue
		}
		e.Log.Info().Str("job", j.Name()).Str("worker_id", workerID).Msg("recovered job from dead worker")
	}
}
