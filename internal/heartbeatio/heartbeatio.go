// Package heartbeatio emits and reads the liveness beacons described in
// spec §3/§4.1/§4.8. It replaces the teacher's HTTP-POST heartbeat.Service
// with a full-file local JSON rewrite, since there is no orchestrator to
// POST to — the shared filesystem tree is the only transport.
package heartbeatio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
	"github.com/PhiSkr/RenderFleet/pkg/models"
)

// idleWindow is how stale a heartbeat may be and still count as alive for
// idleness purposes (spec §4.1).
const idleWindow = 90 * time.Second

// deadWindow is how stale a heartbeat must be before its worker is
// considered dead (spec §4.1, used by the recovery engine).
const deadWindow = 180 * time.Second

// Emitter owns the single heartbeat file for one worker and is its sole
// writer.
type Emitter struct {
	paths    fleetpath.Paths
	workerID string
}

// NewEmitter returns an Emitter for workerID.
func NewEmitter(paths fleetpath.Paths, workerID string) *Emitter {
	return &Emitter{paths: paths, workerID: workerID}
}

// Send writes a full heartbeat replacing whatever was there before.
func (e *Emitter) Send(status models.Status, role models.Role, currentJob string) error {
	hb := models.Heartbeat{
		WorkerID:   e.workerID,
		Timestamp:  time.Now().Unix(),
		Status:     status,
		Role:       role,
		CurrentJob: currentJob,
	}
	data, err := json.MarshalIndent(hb, "", "  ")
	if err != nil {
		return err
	}
	path := e.paths.HeartbeatFile(e.workerID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Read loads every heartbeat file from paths.Heartbeats(), silently
// skipping malformed records and returning an empty slice if the directory
// is absent (spec §4.1 failure semantics).
func Read(paths fleetpath.Paths) []models.Heartbeat {
	dir := paths.Heartbeats()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []models.Heartbeat
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var hb models.Heartbeat
		if err := json.Unmarshal(data, &hb); err != nil {
			continue
		}
		if hb.WorkerID == "" || hb.Timestamp == 0 {
			continue
		}
		out = append(out, hb)
	}
	return out
}

// IdleWorkers returns the IDs of workers whose latest heartbeat is within
// idleWindow and whose status is IDLE. When mediaType is "img" or "vid" it
// restricts to the matching worker/lead roles. selfID, if non-empty and
// eligible, is placed first (head-of-line preference for the calling lead).
func IdleWorkers(paths fleetpath.Paths, mediaType, selfID string) []string {
	now := time.Now().Unix()
	var allowed map[models.Role]bool
	switch mediaType {
	case "img":
		allowed = map[models.Role]bool{models.RoleImageWorker: true, models.RoleImageLead: true}
	case "vid":
		allowed = map[models.Role]bool{models.RoleVideoWorker: true, models.RoleVideoLead: true}
	}

	var idle []string
	var selfIncluded bool
	for _, hb := range Read(paths) {
		if now-hb.Timestamp > int64(idleWindow.Seconds()) || hb.Status != models.StatusIdle {
			continue
		}
		if allowed != nil && !allowed[hb.Role] {
			continue
		}
		if hb.WorkerID == selfID {
			selfIncluded = true
			continue
		}
		idle = append(idle, hb.WorkerID)
	}

	if selfID != "" && selfIncluded {
		return append([]string{selfID}, idle...)
	}
	return idle
}

// DeadBusyWorkers returns the IDs of workers whose latest heartbeat is
// older than deadWindow and whose last reported status was BUSY.
func DeadBusyWorkers(paths fleetpath.Paths) []string {
	now := time.Now().Unix()
	var dead []string
	for _, hb := range Read(paths) {
		if now-hb.Timestamp > int64(deadWindow.Seconds()) && hb.Status == models.StatusBusy {
			dead = append(dead, hb.WorkerID)
		}
	}
	return dead
}
