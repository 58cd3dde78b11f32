// Package rfsync provides the one atomic-rename helper every mover in the
// fleet (dispatcher, recovery engine, executor) shares, so the "atomic
// rename, pre-clean any stale destination" invariant lives in exactly one
// place instead of being reimplemented at each call site.
package rfsync

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrVanished indicates the source path no longer existed at move time —
// the expected shape of a lost race (another peer claimed the job first,
// or the executor moved it out from under a recovery/dispatch attempt).
var ErrVanished = errors.New("rfsync: source vanished before move")

// Move renames src to dst, first removing any stale entry already at dst.
// A missing src is reported as ErrVanished rather than the raw os error, so
// callers can treat "lost the race" uniformly.
func Move(src, dst string) error {
	if _, err := os.Lstat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrVanished
		}
		return err
	}

	if _, err := os.Lstat(dst); err == nil {
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	if err := os.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			return ErrVanished
		}
		return err
	}
	return nil
}

// WriteFileAtomic writes data to a temp file beside path and renames it
// into place, so readers never observe a partially written file — used for
// settings and progress journals.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// ClearFiles removes every regular file directly inside dir (not
// subdirectories), creating dir first if absent. Used to pre-clean staging
// areas and flag directories before each renderer invocation.
func ClearFiles(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		_ = os.Remove(filepath.Join(dir, e.Name()))
	}
	return nil
}
