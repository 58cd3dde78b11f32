// Package job models a queue entry as the tagged variant spec.md §9 calls
// for: an ImageJob (a single .txt prompt file) or a VideoJob (a directory
// of images with sibling prompt files), behind one Job type so the
// dispatcher, recovery engine, and executor share one classification.
package job

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
)

// Kind distinguishes the two job shapes.
type Kind int

const (
	// KindImage is a single prompt-per-line text file.
	KindImage Kind = iota
	// KindVideo is a directory of images with sibling prompt files.
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "vid"
	}
	return "img"
}

// Job is one entry sitting in a queue, an inbox, or in transit between
// them.
type Job struct {
	path string
	kind Kind
}

// FromPath classifies a filesystem entry as an image or video job by its
// shape (file vs directory) — the same rule the executor and dispatcher
// both apply.
func FromPath(path string) (Job, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return Job{}, false
	}
	if info.IsDir() {
		return Job{path: path, kind: KindVideo}, true
	}
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return Job{path: path, kind: KindImage}, true
	}
	return Job{}, false
}

// Path returns the job's current filesystem location.
func (j Job) Path() string { return j.path }

// Name returns the job's basename, its identity across moves.
func (j Job) Name() string { return filepath.Base(j.path) }

// Kind reports whether this is an image or video job.
func (j Job) Kind() Kind { return j.kind }

// RecoveryQueue returns the source queue this job's kind is returned to
// when recovered from a dead worker's inbox or yielded mid-execution.
func (j Job) RecoveryQueue(paths fleetpath.Paths) string {
	if j.kind == KindVideo {
		return paths.VideoQueue()
	}
	return paths.ImageQueue()
}

// vipPattern matches the VIP/urgent marker anywhere in a basename,
// case-insensitively (spec §3, §6).
var vipPattern = regexp.MustCompile(`(?i)(vip|urgent)`)

// IsVIP reports whether name carries the VIP/urgent marker.
func IsVIP(name string) bool {
	return vipPattern.MatchString(name)
}

// ClassifyBucket returns the weight-map key a job's basename falls into:
// the highest-weight matching key (ties broken by first-seen order in
// keys), or "default" if nothing matches. keys must not include "default"
// itself. Matching is case-insensitive substring containment (spec §3,
// preserved verbatim from the keyword-matching Open Question in §9: a name
// may match more than one key, e.g. "default_background_render" matching
// both "background" and "default_background" — highest weight wins).
// Because "default" is never among keys, a name that also contains
// "default" is still classified by the other keys it matches.
func ClassifyBucket(name string, keys []string, weights map[string]int) string {
	lower := strings.ToLower(name)
	bestKey := "default"
	bestWeight := -1
	found := false
	for _, k := range keys {
		if strings.Contains(lower, strings.ToLower(k)) {
			w := weights[k]
			if !found || w > bestWeight {
				bestKey = k
				bestWeight = w
				found = true
			}
		}
	}
	return bestKey
}
