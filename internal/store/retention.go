// FILE: internal/store/retention.go
// Package store – Session retention and the `latest` pointer (spec §4.7).
//
// After a run writes its artifacts, the CLI updates `<root>/<session>/latest`
// to point at the run it just finished and deletes all but the newest
// `keep` runs under that session, ranked lexicographically (run ids embed a
// sortable timestamp) with an mtime tiebreak. `latest` itself is never a
// deletion candidate.
package store

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/tradecore/backsignal/internal/model"
)

// UpdateLatest points "<sessionDir>/latest" at runID. It first tries a
// symlink (relinked atomically via a temp name + rename) and falls back to
// a recursive copy when the filesystem does not support symlinks.
func UpdateLatest(sessionDir, runID string) error {
	target := runID
	link := filepath.Join(sessionDir, "latest")
	tmp := filepath.Join(sessionDir, ".latest.tmp")

	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err == nil {
		if err := os.Rename(tmp, link); err != nil {
			return &model.StoreError{Op: "fs.rename latest symlink", Err: err, Retryable: false}
		}
		return nil
	}

	dst := filepath.Join(sessionDir, "latest")
	if err := os.RemoveAll(dst); err != nil {
		return &model.StoreError{Op: "fs.remove latest", Err: err, Retryable: false}
	}
	return copyDir(filepath.Join(sessionDir, runID), dst)
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, b, 0o644)
	})
}

// EnforceRetention deletes every run directory under sessionDir except the
// newest `keep` (by lexicographic name, mtime tiebreak), and never touches
// "latest".
func EnforceRetention(sessionDir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		return &model.StoreError{Op: "fs.readdir retention", Err: err, Retryable: false}
	}

	type runDir struct {
		name  string
		mtime int64
	}
	var runs []runDir
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "latest" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		runs = append(runs, runDir{name: e.Name(), mtime: info.ModTime().UnixNano()})
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].name != runs[j].name {
			return runs[i].name > runs[j].name
		}
		return runs[i].mtime > runs[j].mtime
	})

	if len(runs) <= keep {
		return nil
	}
	for _, r := range runs[keep:] {
		if err := os.RemoveAll(filepath.Join(sessionDir, r.name)); err != nil {
			return &model.StoreError{Op: "fs.remove old run " + r.name, Err: err, Retryable: false}
		}
	}
	return nil
}
