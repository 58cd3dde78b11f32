// Package fleetpath resolves the fixed directory tree described in the
// RenderFleet layout (01_job_factory, 02_active_floor, 03_review_room,
// 04_archive, _system/...) against one configured root, the way the
// original implementation's get_sys_path helper joined every relative
// path against syncthing_root.
package fleetpath

import (
	"os"
	"path/filepath"
)

// Paths resolves every well-known subtree under one shared root.
type Paths struct {
	Root string
}

// New expands ~ and relative segments in root and returns a resolved Paths.
func New(root string) (Paths, error) {
	expanded, err := expandHome(root)
	if err != nil {
		return Paths{}, err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return Paths{}, err
	}
	return Paths{Root: abs}, nil
}

func expandHome(p string) (string, error) {
	if p == "" || p[0] != '~' {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if p == "~" {
		return home, nil
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == os.PathSeparator) {
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}

// Join resolves subpath against the root, expanding ~ and leaving already
// absolute paths untouched (mirrors get_sys_path's absolute-path passthrough).
func (p Paths) Join(subpath string) string {
	expanded, err := expandHome(subpath)
	if err != nil {
		expanded = subpath
	}
	if filepath.IsAbs(expanded) {
		return expanded
	}
	return filepath.Join(p.Root, expanded)
}

// ImageQueue is 01_job_factory/img_queue.
func (p Paths) ImageQueue() string { return p.Join(filepath.Join("01_job_factory", "img_queue")) }

// VideoQueue is 01_job_factory/vid_queue.
func (p Paths) VideoQueue() string { return p.Join(filepath.Join("01_job_factory", "vid_queue")) }

// ActiveFloor is 02_active_floor.
func (p Paths) ActiveFloor() string { return p.Join("02_active_floor") }

// Inbox is 02_active_floor/<workerID>/inbox.
func (p Paths) Inbox(workerID string) string {
	return p.Join(filepath.Join("02_active_floor", workerID, "inbox"))
}

// ReviewRoom is 03_review_room.
func (p Paths) ReviewRoom() string { return p.Join("03_review_room") }

// ReviewRoomReady is 03_review_room/_ready.
func (p Paths) ReviewRoomReady() string { return p.Join(filepath.Join("03_review_room", "_ready")) }

// Archive is 04_archive.
func (p Paths) Archive() string { return p.Join("04_archive") }

// Heartbeats is _system/heartbeats.
func (p Paths) Heartbeats() string { return p.Join(filepath.Join("_system", "heartbeats")) }

// HeartbeatFile is _system/heartbeats/<workerID>.json.
func (p Paths) HeartbeatFile(workerID string) string {
	return filepath.Join(p.Heartbeats(), workerID+".json")
}

// Commands is _system/commands.
func (p Paths) Commands() string { return p.Join(filepath.Join("_system", "commands")) }

// CommandFile is _system/commands/<workerID>.cmd.
func (p Paths) CommandFile(workerID string) string {
	return filepath.Join(p.Commands(), workerID+".cmd")
}

// SettingsFile is _system/settings.json.
func (p Paths) SettingsFile() string { return p.Join(filepath.Join("_system", "settings.json")) }

// Flags is _system/flags.
func (p Paths) Flags() string { return p.Join(filepath.Join("_system", "flags")) }

// QueueForKind returns the img or vid queue path for the given media kind
// ("img" or "vid"); any other value yields the img queue.
func (p Paths) QueueForKind(kind string) string {
	if kind == "vid" {
		return p.VideoQueue()
	}
	return p.ImageQueue()
}
