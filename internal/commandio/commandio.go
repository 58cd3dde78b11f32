// Package commandio implements the per-worker control channel of spec §4.5:
// a command file at _system/commands/<worker_id>.cmd, watched with fsnotify
// (the Go analogue of the original implementation's watchdog.Observer) and
// additionally re-read by the watch loop after every 2 seconds without an
// event, since the shared-folder sync layer may deliver filesystem events
// late or not at all.
package commandio

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
	"github.com/PhiSkr/RenderFleet/pkg/models"
)

// Read loads and returns the pending command for workerID, if any. A
// missing file is not an error; a malformed one is reported so the caller
// can delete it to prevent retry loops (spec §7).
func Read(paths fleetpath.Paths, workerID string) (*models.Command, error) {
	path := paths.CommandFile(workerID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cmd models.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// Consume deletes workerID's command file. Safe to call when the file is
// already gone.
func Consume(paths fleetpath.Paths, workerID string) error {
	err := os.Remove(paths.CommandFile(workerID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Write persists cmd for workerID, overwriting any pending command
// (last-writer-wins, per spec §3).
func Write(paths fleetpath.Paths, workerID string, cmd models.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(paths.Commands(), 0o755); err != nil {
		return err
	}
	return os.WriteFile(paths.CommandFile(workerID), data, 0o644)
}

// PeekYield reports whether workerID currently has a pending yield command,
// without consuming it. The executor uses this at sub-item boundaries
// (spec §4.6); unlike other actions, yield is peeked by the executor and
// only consumed once it acts on it.
func PeekYield(paths fleetpath.Paths, workerID string) bool {
	cmd, err := Read(paths, workerID)
	if err != nil || cmd == nil {
		return false
	}
	return cmd.Action == models.ActionYield
}

// Handler is invoked once per observed command file event, after the
// channel has confirmed the file is the given worker's own command file.
// Implementations apply the action and are responsible for consuming
// (deleting) the file except for ActionYield, which is left for the
// executor to consume at its next safe point.
type Handler func(cmd models.Command)

// Watch starts an fsnotify watch on the commands directory and invokes fn
// for every create/write event targeting workerID's command file, until ctx
// is canceled. It also does an immediate poll on start, matching the
// original implementation's "check startup command file before watching"
// behavior.
func Watch(ctx context.Context, paths fleetpath.Paths, workerID string, fn Handler) error {
	if err := os.MkdirAll(paths.Commands(), 0o755); err != nil {
		return err
	}

	if cmd, err := Read(paths, workerID); err == nil && cmd != nil {
		fn(*cmd)
	} else if err != nil {
		_ = Consume(paths, workerID)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(paths.Commands()); err != nil {
		return err
	}

	target := paths.CommandFile(workerID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != target {
				continue
			}
			if !(ev.Op&(fsnotify.Create|fsnotify.Write) != 0) {
				continue
			}
			handleEvent(paths, workerID, fn)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				continue
			}
		case <-time.After(2 * time.Second):
			// Belt-and-braces poll: the sync layer may not surface a
			// filesystem event for a file it wrote itself.
			handleEvent(paths, workerID, fn)
		}
	}
}

func handleEvent(paths fleetpath.Paths, workerID string, fn Handler) {
	cmd, err := Read(paths, workerID)
	if err != nil {
		_ = Consume(paths, workerID)
		return
	}
	if cmd == nil {
		return
	}
	fn(*cmd)
}
