// Package queueview gives the dispatcher and executor one shared way to
// enumerate a directory's contents as typed job entries, rather than each
// reimplementing the hidden-file skip and file-vs-directory branch
// independently (spec §9's "encapsulate recursive listings" note).
package queueview

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is one non-hidden item found in a queue or inbox directory.
type Entry struct {
	Path string
	Name string
	// IsDir is true for video jobs (directories), false for image jobs
	// (single .txt files) or any other file.
	IsDir bool
}

// Snapshot is one listing of a directory: every non-hidden entry, each
// flagged by shape through Entry.IsDir, matching spec §4.2's "list
// non-hidden entries" step. Entries are not checked for being valid jobs.
type Snapshot struct {
	Entries []Entry
}

// Scan lists dir, sorted lexicographically by name, skipping dotfiles.
// A missing or unreadable directory yields an empty Snapshot, not an error
// — transient listing failures are not fatal (spec §7).
func Scan(dir string) Snapshot {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Snapshot{}
	}
	var out []Entry
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, Entry{
			Path:  filepath.Join(dir, e.Name()),
			Name:  e.Name(),
			IsDir: e.IsDir(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return Snapshot{Entries: out}
}

// Empty reports whether the directory contains no non-hidden entries —
// the dispatcher's "idle inbox" gate (spec §4.2 step 4).
func Empty(dir string) bool {
	return len(Scan(dir).Entries) == 0
}

// Oldest returns the first entry in lexicographic name order, or ok=false
// if the snapshot is empty (the executor drains its inbox oldest-name
// first, spec §4.6).
func (s Snapshot) Oldest() (Entry, bool) {
	if len(s.Entries) == 0 {
		return Entry{}, false
	}
	return s.Entries[0], true
}

// Names returns just the basenames, in the same order.
func (s Snapshot) Names() []string {
	names := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		names[i] = e.Name
	}
	return names
}
