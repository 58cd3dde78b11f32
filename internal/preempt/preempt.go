// Package preempt implements spec §4.4: detecting starved VIP work and
// emitting a yield command against a non-VIP busy worker when no idle
// worker exists to take the VIP job on the dispatcher's next tick.
package preempt

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/PhiSkr/RenderFleet/internal/commandio"
	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
	"github.com/PhiSkr/RenderFleet/internal/heartbeatio"
	"github.com/PhiSkr/RenderFleet/internal/job"
	"github.com/PhiSkr/RenderFleet/internal/queueview"
	"github.com/PhiSkr/RenderFleet/pkg/models"
)

// Controller watches one queue for VIP starvation.
type Controller struct {
	Paths fleetpath.Paths
	Log   zerolog.Logger
}

// New returns a preemption Controller.
func New(paths fleetpath.Paths, log zerolog.Logger) *Controller {
	return &Controller{Paths: paths, Log: log}
}

// EnforceVIPPreemption implements spec §4.4. It is only meaningful to call
// when queuePath may contain a VIP entry; it is a no-op otherwise.
func (c *Controller) EnforceVIPPreemption(queuePath string) {
	snap := queueview.Scan(queuePath)
	hasVIP := false
	for _, e := range snap.Entries {
		if job.IsVIP(e.Name) {
			hasVIP = true
			break
		}
	}
	if !hasVIP {
		return
	}

	var victim string
	for _, hb := range heartbeatio.Read(c.Paths) {
		if hb.Status == models.StatusIdle {
			// An idle worker exists; the dispatcher will place the VIP
			// there on its next tick. Nothing to preempt.
			return
		}
		if hb.Status == models.StatusBusy && !strings.Contains(strings.ToLower(hb.CurrentJob), "vip") {
			// Last non-VIP busy worker seen wins — an arbitrary but
			// spec-sanctioned choice (see DESIGN.md Open Question 3).
			victim = hb.WorkerID
		}
	}

	if victim == "" {
		return
	}

	cmd := models.Command{Action: models.ActionYield, Reason: "vip_waiting"}
	if err := commandio.Write(c.Paths, victim, cmd); err != nil {
		c.Log.Warn().Err(err).Str("worker_id", victim).Msg("failed to write yield command")
		return
	}
	c.Log.Info().Str("worker_id", victim).Msg("VIP waiting; commanded worker to yield")
}
