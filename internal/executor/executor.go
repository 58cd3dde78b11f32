// Package executor implements spec §4.6: draining the local inbox oldest
// job first, branching on image vs video shape, journaling progress after
// each sub-item, and honoring mid-job yield commands at sub-item
// boundaries.
package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PhiSkr/RenderFleet/internal/commandio"
	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
	"github.com/PhiSkr/RenderFleet/internal/heartbeatio"
	"github.com/PhiSkr/RenderFleet/internal/job"
	"github.com/PhiSkr/RenderFleet/internal/queueview"
	"github.com/PhiSkr/RenderFleet/internal/renderer"
	"github.com/PhiSkr/RenderFleet/internal/rfsync"
	"github.com/PhiSkr/RenderFleet/pkg/models"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Executor drains one worker's own inbox.
type Executor struct {
	Paths      fleetpath.Paths
	WorkerID   string
	RoleFunc   func() models.Role
	Heartbeats *heartbeatio.Emitter
	Renderer   *renderer.Adapter
	StagingDir string // staging area the current video frame is copied into; the worker wires it to the renderer's StagingArea
	Log        zerolog.Logger
}

// New returns an Executor. roleFunc is consulted on every tick since a
// worker's role can change at runtime via a set_role command.
func New(paths fleetpath.Paths, workerID string, roleFunc func() models.Role, hb *heartbeatio.Emitter, r *renderer.Adapter, stagingDir string, log zerolog.Logger) *Executor {
	return &Executor{Paths: paths, WorkerID: workerID, RoleFunc: roleFunc, Heartbeats: hb, Renderer: r, StagingDir: stagingDir, Log: log}
}

// Tick processes at most one job from the inbox, oldest name first, and
// reports whether it found any work to do.
func (ex *Executor) Tick(ctx context.Context) bool {
	inbox := ex.Paths.Inbox(ex.WorkerID)
	snap := queueview.Scan(inbox)
	entry, ok := snap.Oldest()
	if !ok {
		return false
	}

	j, ok := job.FromPath(entry.Path)
	if !ok {
		return false
	}

	role := ex.RoleFunc()
	_ = ex.Heartbeats.Send(models.StatusBusy, role, j.Name())
	hbCallback := func() { _ = ex.Heartbeats.Send(models.StatusBusy, role, j.Name()) }

	switch j.Kind() {
	case job.KindImage:
		ex.processImage(ctx, j, hbCallback)
	case job.KindVideo:
		ex.processVideo(ctx, j, hbCallback)
	}
	return true
}

func loadProgress(path string) models.Progress {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Progress{Status: models.ProgressInProgress}
	}
	var p models.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Progress{Status: models.ProgressInProgress}
	}
	return p
}

func saveProgress(path string, p models.Progress) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return rfsync.WriteFileAtomic(path, data, 0o644)
}

// checkYield peeks and, if present, consumes the worker's yield command.
func (ex *Executor) checkYield() bool {
	if !commandio.PeekYield(ex.Paths, ex.WorkerID) {
		return false
	}
	_ = commandio.Consume(ex.Paths, ex.WorkerID)
	return true
}

func (ex *Executor) processImage(ctx context.Context, j job.Job, hbCallback func()) {
	filename := j.Name()
	jobName := strings.TrimSuffix(filename, filepath.Ext(filename))
	targetDir := filepath.Join(ex.Paths.ReviewRoom(), jobName)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		ex.Log.Error().Err(err).Str("job", filename).Msg("failed to create review room directory")
		return
	}

	progressPath := filepath.Join(targetDir, "progress.json")
	progress := loadProgress(progressPath)

	lines := readLines(j.Path())

	promptIndex := 0
	for _, raw := range lines {
		prompt := strings.TrimSpace(raw)
		if prompt == "" {
			continue
		}
		promptIndex++
		subID := fmt.Sprintf("%s_p%d", jobName, promptIndex)
		if progress.HasCompleted(subID) {
			continue
		}

		ok := ex.Renderer.Run(ctx, renderer.Request{
			ScriptKey:      "img_gen",
			Prompt:         prompt,
			OutputDir:      targetDir,
			JobName:        subID,
			ExpectedExt:    ".png",
			IsImage:        true,
			GlobalTimeout:  renderer.DefaultImageTimeout,
			HeartbeatEvery: hbCallback,
		})
		if ok {
			progress.CompletedFiles = append(progress.CompletedFiles, subID)
			progress.Status = models.ProgressInProgress
			if err := saveProgress(progressPath, progress); err != nil {
				ex.Log.Error().Err(err).Str("sub_id", subID).Msg("failed to save progress")
			}
		} else {
			ex.Log.Warn().Str("sub_id", subID).Msg("image generation failed, will retry on redispatch")
		}

		if ex.checkYield() {
			ex.yieldJob(j)
			return
		}
	}

	if _, err := os.Stat(j.Path()); err != nil {
		ex.Log.Warn().Str("job", filename).Msg("job vanished before completion move, assuming raced by dispatcher/recovery")
		return
	}

	dst := filepath.Join(targetDir, filename)
	if err := rfsync.Move(j.Path(), dst); err != nil {
		if err == rfsync.ErrVanished {
			ex.Log.Warn().Str("job", filename).Msg("job vanished before completion move")
			return
		}
		ex.Log.Error().Err(err).Str("job", filename).Msg("failed to move finished job")
		return
	}
	progress.Status = models.ProgressDone
	_ = saveProgress(progressPath, progress)
	ex.Log.Info().Str("job", filename).Msg("image job finished")
}

func (ex *Executor) yieldJob(j job.Job) {
	dest := j.RecoveryQueue(ex.Paths)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		ex.Log.Error().Err(err).Msg("failed to prepare yield destination queue")
		return
	}
	if err := rfsync.Move(j.Path(), filepath.Join(dest, j.Name())); err != nil && err != rfsync.ErrVanished {
		ex.Log.Error().Err(err).Str("job", j.Name()).Msg("failed to return yielded job to queue")
		return
	}
	ex.Log.Info().Str("job", j.Name()).Msg("yielded job back to queue")
}

func (ex *Executor) processVideo(ctx context.Context, j job.Job, hbCallback func()) {
	jobDir := j.Path()
	filename := j.Name()

	progressPath := filepath.Join(jobDir, "progress.json")
	progress := loadProgress(progressPath)

	images := listImages(jobDir)

	for _, imageName := range images {
		if progress.HasCompleted(imageName) {
			continue
		}
		imagePath := filepath.Join(jobDir, imageName)
		promptPath := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".txt"
		promptText := ""
		if data, err := os.ReadFile(promptPath); err == nil {
			promptText = string(data)
		}

		if err := rfsync.ClearFiles(ex.StagingDir); err != nil {
			ex.Log.Warn().Err(err).Msg("failed to clear staging area")
		}
		if err := copyFile(imagePath, filepath.Join(ex.StagingDir, imageName)); err != nil {
			ex.Log.Warn().Err(err).Str("image", imageName).Msg("failed to stage image for video generation")
			continue
		}

		ok := ex.Renderer.Run(ctx, renderer.Request{
			ScriptKey:      "vid_gen",
			Prompt:         promptText,
			OutputDir:      jobDir,
			JobName:        imageName + "_vid",
			ExpectedExt:    ".mp4",
			MaxOutputs:     2,
			GlobalTimeout:  renderer.DefaultVideoTimeout,
			HeartbeatEvery: hbCallback,
		})
		if ok {
			progress.CompletedFiles = append(progress.CompletedFiles, imageName)
			progress.Status = models.ProgressInProgress
			if err := saveProgress(progressPath, progress); err != nil {
				ex.Log.Error().Err(err).Str("image", imageName).Msg("failed to save progress")
			}
		} else {
			ex.Log.Warn().Str("image", imageName).Msg("video generation failed, will retry on redispatch")
		}

		if ex.checkYield() {
			ex.yieldJob(j)
			return
		}
	}

	if _, err := os.Stat(jobDir); err != nil {
		ex.Log.Warn().Str("job", filename).Msg("job vanished before completion move, assuming raced by dispatcher/recovery")
		return
	}

	dst := filepath.Join(ex.Paths.Archive(), filename)
	if err := rfsync.Move(jobDir, dst); err != nil {
		if err == rfsync.ErrVanished {
			ex.Log.Warn().Str("job", filename).Msg("job vanished before completion move")
			return
		}
		ex.Log.Error().Err(err).Str("job", filename).Msg("failed to archive finished video job")
		return
	}
	progress.Status = models.ProgressDone
	_ = saveProgress(filepath.Join(dst, "progress.json"), progress)
	ex.Log.Info().Str("job", filename).Msg("video job finished")
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func listImages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	return names
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
