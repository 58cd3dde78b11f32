// Package dispatch implements the lead-only job selector and handoff of
// spec §4.2: VIP short-circuit, then weighted DRR, then walking idle
// workers for the first with an empty inbox.
package dispatch

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/PhiSkr/RenderFleet/internal/drr"
	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
	"github.com/PhiSkr/RenderFleet/internal/heartbeatio"
	"github.com/PhiSkr/RenderFleet/internal/job"
	"github.com/PhiSkr/RenderFleet/internal/queueview"
	"github.com/PhiSkr/RenderFleet/internal/rfsync"
	"github.com/PhiSkr/RenderFleet/pkg/models"
)

// Dispatcher runs on lead workers only, one per process, holding the two
// per-queue DRR schedulers for its lifetime.
type Dispatcher struct {
	Paths  fleetpath.Paths
	SelfID string
	Log    zerolog.Logger

	imgSched *drr.Scheduler
	vidSched *drr.Scheduler
}

// New returns a Dispatcher with fresh per-queue DRR state.
func New(paths fleetpath.Paths, selfID string, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Paths:    paths,
		SelfID:   selfID,
		Log:      log,
		imgSched: drr.NewScheduler(),
		vidSched: drr.NewScheduler(),
	}
}

func (d *Dispatcher) schedulerFor(queuePath string) *drr.Scheduler {
	if queuePath == d.Paths.VideoQueue() {
		return d.vidSched
	}
	return d.imgSched
}

// GetNextJob implements spec §4.2's get_next_job: VIP short-circuit (oldest
// VIP by mtime, for determinism — see DESIGN.md Open Question 1), else
// weighted DRR over the non-VIP entries.
func (d *Dispatcher) GetNextJob(queuePath string, weights map[string]int) (job.Job, bool) {
	snap := queueview.Scan(queuePath)
	if len(snap.Entries) == 0 {
		return job.Job{}, false
	}

	var vips []queueview.Entry
	for _, e := range snap.Entries {
		if job.IsVIP(e.Name) {
			vips = append(vips, e)
		}
	}
	if len(vips) > 0 {
		sort.Slice(vips, func(i, j int) bool {
			ti, _ := os.Stat(vips[i].Path)
			tj, _ := os.Stat(vips[j].Path)
			if ti == nil || tj == nil {
				return vips[i].Name < vips[j].Name
			}
			return ti.ModTime().Before(tj.ModTime())
		})
		return job.FromPath(vips[0].Path)
	}

	keys := nonDefaultKeys(weights)
	buckets := map[string][]queueview.Entry{}
	for _, e := range snap.Entries {
		b := job.ClassifyBucket(e.Name, keys, weights)
		buckets[b] = append(buckets[b], e)
	}
	counts := map[string]int{}
	for b, entries := range buckets {
		counts[b] = len(entries)
	}

	sched := d.schedulerFor(queuePath)
	bucket, ok := sched.Next(counts, weights)
	if !ok {
		return job.Job{}, false
	}
	entries := buckets[bucket]
	if len(entries) == 0 {
		return job.Job{}, false
	}
	return job.FromPath(entries[0].Path)
}

func nonDefaultKeys(weights map[string]int) []string {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		if k != "default" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// DispatchSmart runs one tick of spec §4.2's dispatch_smart pipeline for a
// lead of the given role.
func (d *Dispatcher) DispatchSmart(role models.Role, weights map[string]int) {
	mediaType := role.MediaType()
	if mediaType == "" || !role.IsLead() {
		return
	}

	queuePath := d.Paths.QueueForKind(mediaType)
	idle := heartbeatio.IdleWorkers(d.Paths, mediaType, d.SelfID)
	if len(idle) == 0 {
		return
	}

	j, ok := d.GetNextJob(queuePath, weights)
	if !ok {
		return
	}

	for _, workerID := range idle {
		inbox := d.Paths.Inbox(workerID)
		if !queueview.Empty(inbox) {
			continue
		}
		dst := filepath.Join(inbox, j.Name())
		if err := os.MkdirAll(inbox, 0o755); err != nil {
			d.Log.Warn().Err(err).Str("worker_id", workerID).Msg("failed to prepare inbox")
			continue
		}
		if err := rfsync.Move(j.Path(), dst); err != nil {
			if err == rfsync.ErrVanished {
				d.Log.Info().Str("job", j.Name()).Msg("lost dispatch race, another peer claimed the job")
				return
			}
			d.Log.Warn().Err(err).Str("job", j.Name()).Str("worker_id", workerID).Msg("dispatch move failed")
			return
		}
		d.Log.Info().Str("job", j.Name()).Str("worker_id", workerID).Msg("dispatched job")
		return
	}
}
