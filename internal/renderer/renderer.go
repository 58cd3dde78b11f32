// Package renderer implements the renderer adapter contract of spec §4.7:
// stage a prompt, spawn the configured renderer subprocess, watch a
// landing zone for new outputs with an inter-output and a global timeout,
// consult well-known flag files for transient-failure classification, and
// collect outputs into the job's destination directory.
//
// This is the Go-native descendant of the teacher's internal/transcoder
// package: where the teacher spawns ffmpeg and parses its stderr for
// progress, the renderer adapter spawns an external "actexec"-style
// subprocess and watches the landing zone directory for new files by name
// instead, following original_source/main.py's ActionaRunner.
package renderer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/PhiSkr/RenderFleet/internal/rfsync"
)

const (
	// DefaultImageTimeout is the global hard deadline for an image
	// generation attempt (spec §4.7).
	DefaultImageTimeout = 30 * time.Minute
	// DefaultVideoTimeout is the global hard deadline for a video
	// generation attempt.
	DefaultVideoTimeout = 45 * time.Minute
	// InterOutputTimeout is how long the watchdog waits, after at least
	// one output has appeared, before declaring partial success.
	InterOutputTimeout = 5 * time.Minute

	maxAttempts = 2
)

// Paths collects the directories the renderer adapter reads and writes,
// independent of fleetpath.Paths since they are configuration-driven
// staging locations, not part of the fixed job tree.
type Paths struct {
	LandingZone    string
	StagingPrompts string
	StagingArea    string
	FlagsDir       string
}

// Config is the static, per-worker renderer configuration.
type Config struct {
	Command       string // e.g. "actexec"
	ScriptPath    map[string]string
	RefreshScript string
}

// Request describes one renderer invocation (spec §4.7 Inputs).
type Request struct {
	ScriptKey      string
	Prompt         string
	OutputDir      string
	JobName        string
	ExpectedExt    string // including leading dot, e.g. ".png"
	MaxOutputs     int
	IsImage        bool
	GlobalTimeout  time.Duration
	HeartbeatEvery func()
}

// Adapter runs renderer invocations against one set of staging paths.
type Adapter struct {
	Paths  Paths
	Config Config
	Log    zerolog.Logger
}

// New returns an Adapter.
func New(paths Paths, cfg Config, log zerolog.Logger) *Adapter {
	return &Adapter{Paths: paths, Config: cfg, Log: log}
}

// Run executes req, retrying up to two total attempts per spec §4.7.
// Success requires at least one collected output file.
func (a *Adapter) Run(ctx context.Context, req Request) bool {
	scriptPath, ok := a.Config.ScriptPath[req.ScriptKey]
	if !ok || scriptPath == "" {
		a.Log.Error().Str("script_key", req.ScriptKey).Msg("renderer script not configured")
		return false
	}
	if _, err := os.Stat(scriptPath); err != nil {
		a.Log.Error().Str("script_path", scriptPath).Msg("renderer script not found")
		return false
	}

	ext := req.ExpectedExt
	if ext == "" {
		ext = ".png"
	}
	watchImages := req.IsImage || isImageExt(ext)
	timeout := req.GlobalTimeout
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	maxOutputs := req.MaxOutputs
	if maxOutputs <= 0 {
		maxOutputs = 4
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_ = rfsync.ClearFiles(a.Paths.FlagsDir)
		_ = rfsync.ClearFiles(a.Paths.LandingZone)

		if err := a.writePrompt(req.Prompt); err != nil {
			a.Log.Warn().Err(err).Msg("failed to stage prompt")
		}

		result := a.executeWithWatchdog(ctx, scriptPath, watchImages, timeout, req.HeartbeatEvery)

		if result.startFailed {
			return false
		}
		if result.retryReason == "global_timeout" {
			a.runRefresh(ctx)
			if attempt < maxAttempts {
				continue
			}
			return false
		}

		if !result.partialSuccess {
			switch a.consumeFlags() {
			case flagRetryRefresh:
				a.runRefresh(ctx)
				if attempt < maxAttempts {
					continue
				}
				return false
			case flagRetrySensitive:
				if attempt < maxAttempts {
					continue
				}
				return false
			case flagConditionalRetry:
				if !a.hasMatchingOutput(ext) {
					if attempt < maxAttempts {
						continue
					}
					return false
				}
				a.Log.Warn().Msg("flag detected but output exists; accepting partial success")
			}
		}

		if !result.partialSuccess && result.exitErr != nil {
			a.Log.Warn().Err(result.exitErr).Msg("renderer subprocess failed")
			if attempt < maxAttempts {
				continue
			}
			return false
		}

		return a.collectOutputs(req.OutputDir, req.JobName, ext, maxOutputs)
	}
	return false
}

func (a *Adapter) writePrompt(prompt string) error {
	if err := os.MkdirAll(a.Paths.StagingPrompts, 0o755); err != nil {
		return err
	}
	path := filepath.Join(a.Paths.StagingPrompts, "current_prompt.txt")
	return os.WriteFile(path, []byte(prompt), 0o644)
}

func (a *Adapter) runRefresh(ctx context.Context) {
	if a.Config.RefreshScript == "" {
		return
	}
	cmd := exec.CommandContext(ctx, a.Config.Command, a.Config.RefreshScript)
	if err := cmd.Run(); err != nil {
		a.Log.Warn().Err(err).Msg("refresh script failed")
	}
}

type watchdogResult struct {
	startFailed    bool
	partialSuccess bool
	retryReason    string
	exitErr        error
}

func (a *Adapter) executeWithWatchdog(ctx context.Context, scriptPath string, watchImages bool, timeout time.Duration, heartbeat func()) watchdogResult {
	cmd := exec.CommandContext(ctx, a.Config.Command, scriptPath)
	if err := cmd.Start(); err != nil {
		return watchdogResult{startFailed: true}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	start := time.Now()
	var firstOutput, lastOutput time.Time
	seen := map[string]bool{}
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return watchdogResult{exitErr: err}
		case <-ticker.C:
			if heartbeat != nil {
				heartbeat()
			}
			now := time.Now()
			if watchImages {
				for _, name := range listImageFiles(a.Paths.LandingZone) {
					if !seen[name] {
						seen[name] = true
						if firstOutput.IsZero() {
							firstOutput = now
						}
						lastOutput = now
					}
				}
				if !firstOutput.IsZero() && now.Sub(lastOutput) > InterOutputTimeout {
					terminate(cmd)
					<-done
					return watchdogResult{partialSuccess: true}
				}
			}
			if now.Sub(start) > timeout {
				terminate(cmd)
				<-done
				return watchdogResult{retryReason: "global_timeout"}
			}
		}
	}
}

func terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

type flagAction int

const (
	flagNone flagAction = iota
	flagRetryRefresh
	flagRetrySensitive
	flagConditionalRetry
)

// consumeFlags checks and deletes the well-known flag files, regardless of
// outcome, matching spec §4.7 step 5.
func (a *Adapter) consumeFlags() flagAction {
	names := []string{"ImageOpenFail.txt", "NOHOTBAR.txt", "SENSITIVE.txt", "issue.txt", "PromptViolation.txt"}
	present := map[string]bool{}
	for _, n := range names {
		path := filepath.Join(a.Paths.FlagsDir, n)
		if _, err := os.Stat(path); err == nil {
			present[n] = true
			_ = os.Remove(path)
		}
	}

	switch {
	case present["ImageOpenFail.txt"] || present["NOHOTBAR.txt"]:
		return flagRetryRefresh
	case present["SENSITIVE.txt"]:
		return flagRetrySensitive
	case present["issue.txt"] || present["PromptViolation.txt"]:
		return flagConditionalRetry
	default:
		return flagNone
	}
}

func (a *Adapter) hasMatchingOutput(ext string) bool {
	entries, err := os.ReadDir(a.Paths.LandingZone)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext == "" || strings.EqualFold(filepath.Ext(e.Name()), ext) {
			return true
		}
	}
	return false
}

// collectOutputs renames matching landing-zone outputs, oldest modification
// time first, to "<job_name>_take<NNN><ext>" and moves them into outputDir, up
// to maxOutputs files. Success requires at least one collected output
// (spec §4.7 step 6).
func (a *Adapter) collectOutputs(outputDir, jobName, ext string, maxOutputs int) bool {
	type candidate struct {
		path    string
		name    string
		modTime time.Time
	}
	entries, err := os.ReadDir(a.Paths.LandingZone)
	if err != nil {
		return false
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(a.Paths.LandingZone, e.Name()),
			name:    e.Name(),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime.Before(candidates[j].modTime) })

	if len(candidates) > maxOutputs {
		candidates = candidates[:maxOutputs]
	}
	if len(candidates) == 0 {
		return false
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		a.Log.Error().Err(err).Msg("failed to create output directory")
		return false
	}

	collected := 0
	for idx, c := range candidates {
		newName := fmt.Sprintf("%s_take%03d%s", jobName, idx+1, ext)
		dst := filepath.Join(outputDir, newName)
		if err := rfsync.Move(c.path, dst); err != nil {
			a.Log.Warn().Err(err).Str("file", c.name).Msg("failed to collect output")
			continue
		}
		collected++
	}
	return collected > 0
}

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

func isImageExt(ext string) bool {
	return imageExts[strings.ToLower(ext)]
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			out = append(out, e.Name())
		}
	}
	return out
}
