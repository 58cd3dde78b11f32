// Package worker wires one process's pieces together: the executor loop,
// the command-channel listener, and — for lead roles — the dispatcher and
// recovery loops, all sharing one mutable role/pause state the way the
// original implementation's worker.py module-level globals did, replaced
// here with a mutex-guarded State per spec §9's "shared-state globals"
// redesign note.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/PhiSkr/RenderFleet/internal/commandio"
	"github.com/PhiSkr/RenderFleet/internal/config"
	"github.com/PhiSkr/RenderFleet/internal/dispatch"
	"github.com/PhiSkr/RenderFleet/internal/executor"
	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
	"github.com/PhiSkr/RenderFleet/internal/heartbeatio"
	"github.com/PhiSkr/RenderFleet/internal/preempt"
	"github.com/PhiSkr/RenderFleet/internal/recovery"
	"github.com/PhiSkr/RenderFleet/internal/renderer"
	"github.com/PhiSkr/RenderFleet/internal/settings"
	"github.com/PhiSkr/RenderFleet/pkg/models"
)

// State holds the one piece of state a running command can mutate: the
// worker's role and whether it is locally paused. All access goes through
// the mutex; nothing here is read or written outside State's own methods.
type State struct {
	mu     sync.RWMutex
	role   models.Role
	paused bool
}

// NewState returns a State seeded with the given initial role.
func NewState(role models.Role) *State {
	return &State{role: role}
}

// Role returns the current role.
func (s *State) Role() models.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// SetRole replaces the current role.
func (s *State) SetRole(r models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = r
}

// Paused reports whether this worker is locally paused.
func (s *State) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// SetPaused sets the local pause switch.
func (s *State) SetPaused(p bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = p
}

// Worker bundles one process's collaborators.
type Worker struct {
	Paths  fleetpath.Paths
	Config *config.Config
	Log    zerolog.Logger
	State  *State

	Heartbeats *heartbeatio.Emitter
	Executor   *executor.Executor
	Dispatcher *dispatch.Dispatcher
	Preempt    *preempt.Controller
	Recovery   *recovery.Engine

	cancel context.CancelFunc
}

// New assembles a Worker from configuration, grounding every collaborator's
// wiring in the dependencies it was built against (heartbeatio.Emitter,
// renderer.Adapter, executor.Executor, dispatch.Dispatcher).
func New(paths fleetpath.Paths, cfg *config.Config, log zerolog.Logger) *Worker {
	initialRole := models.Role(cfg.InitialRole)
	state := NewState(initialRole)

	hb := heartbeatio.NewEmitter(paths, cfg.WorkerID)

	rendererPaths := renderer.Paths{
		LandingZone:    paths.Join("_staging/landing_zone"),
		StagingPrompts: paths.Join("_staging/prompts"),
		StagingArea:    paths.Join("_staging/input"),
		FlagsDir:       paths.Flags(),
	}
	rendererCfg := renderer.Config{
		Command: cfg.RendererCmd,
		ScriptPath: map[string]string{
			"img_gen": cfg.Scripts.ImageGen,
			"vid_gen": cfg.Scripts.VideoGen,
		},
		RefreshScript: cfg.Scripts.Refresh,
	}
	rend := renderer.New(rendererPaths, rendererCfg, log.With().Str("component", "renderer").Logger())

	exec := executor.New(paths, cfg.WorkerID, state.Role, hb, rend, rendererPaths.StagingArea, log.With().Str("component", "executor").Logger())

	return &Worker{
		Paths:      paths,
		Config:     cfg,
		Log:        log,
		State:      state,
		Heartbeats: hb,
		Executor:   exec,
		Dispatcher: dispatch.New(paths, cfg.WorkerID, log.With().Str("component", "dispatch").Logger()),
		Preempt:    preempt.New(paths, log.With().Str("component", "preempt").Logger()),
		Recovery:   recovery.New(paths, log.With().Str("component", "recovery").Logger()),
	}
}

// Run starts every goroutine this worker's current role needs and blocks
// until ctx is canceled or one of them fails, mirroring the teacher's
// single context.WithCancel lifecycle but replacing its bare select{} with
// an errgroup so a goroutine failure actually unwinds the others.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.cancel = cancel

	_ = w.Heartbeats.Send(models.StatusStarting, w.State.Role(), "")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return w.runExecutorLoop(ctx) })
	g.Go(func() error { return w.runCommandChannel(ctx) })
	g.Go(func() error { return w.runLeadLoop(ctx) })

	return g.Wait()
}

func (w *Worker) runExecutorLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if w.State.Paused() || settings.Load(w.Paths).Paused {
			_ = w.Heartbeats.Send(models.StatusPaused, w.State.Role(), "")
			if !sleepCtx(ctx, 2*time.Second) {
				return nil
			}
			continue
		}

		if !w.Executor.Tick(ctx) {
			_ = w.Heartbeats.Send(models.StatusIdle, w.State.Role(), "")
			if !sleepCtx(ctx, 5*time.Second) {
				return nil
			}
		}
	}
}

func (w *Worker) runCommandChannel(ctx context.Context) error {
	return commandio.Watch(ctx, w.Paths, w.Config.WorkerID, func(cmd models.Command) {
		w.applyCommand(cmd)
	})
}

// applyCommand handles every action except yield, which commandio.Watch
// leaves for the executor to observe and act on at a sub-item boundary.
func (w *Worker) applyCommand(cmd models.Command) {
	switch cmd.Action {
	case models.ActionSetRole:
		role := cmd.Role
		if role == "" {
			role = cmd.Value
		}
		w.State.SetRole(models.Role(role))
		_ = commandio.Consume(w.Paths, w.Config.WorkerID)
	case models.ActionPause:
		w.State.SetPaused(true)
		_ = commandio.Consume(w.Paths, w.Config.WorkerID)
	case models.ActionUnpause, models.ActionStart:
		w.State.SetPaused(false)
		_ = commandio.Consume(w.Paths, w.Config.WorkerID)
	case models.ActionStop:
		_ = w.Heartbeats.Send(models.StatusOffline, w.State.Role(), "")
		_ = commandio.Consume(w.Paths, w.Config.WorkerID)
		if w.cancel != nil {
			w.cancel()
		}
	case models.ActionYield:
		// Left pending; the executor consumes it between sub-items.
	}
}

func (w *Worker) runLeadLoop(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !w.State.Role().IsLead() {
				continue
			}
			s := settings.Load(w.Paths)
			if s.Paused {
				continue
			}
			w.Recovery.RecoverDeadWorkers()
			w.Dispatcher.DispatchSmart(w.State.Role(), s.Weights)
			w.Preempt.EnforceVIPPreemption(w.Paths.QueueForKind(w.State.Role().MediaType()))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
