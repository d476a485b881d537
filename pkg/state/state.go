// Package state owns the runtime directory layout next to the database
// file: <db dir>/state/{crash,abort}. Crash dumps and operator abort
// requests land there so one volume carries everything the service writes.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths is the resolved runtime layout.
type Paths struct {
	Root  string
	Crash string
	Abort string
}

// PathsVar is set by EnsureStateDirs and read by the crash dump writer.
var PathsVar Paths

// Root resolves the state root for the given database file. The
// RESULTDB_STATE_ROOT env var relocates it, for deployments where the
// database volume must stay read-mostly.
func Root(dbURL string) string {
	if v := strings.TrimSpace(os.Getenv("RESULTDB_STATE_ROOT")); v != "" {
		if abs, err := filepath.Abs(v); err == nil {
			return abs
		}
		return v
	}
	return filepath.Join(filepath.Dir(dbURL), "state")
}

// EnsureStateDirs creates the layout under the resolved root and records it
// in PathsVar. Existing entries must be real directories without group or
// other write bits; symlinks are rejected.
func EnsureStateDirs(dbURL string) error {
	root := Root(dbURL)
	p := Paths{
		Root:  root,
		Crash: filepath.Join(root, "crash"),
		Abort: filepath.Join(root, "abort"),
	}

	for _, dir := range []string{p.Root, p.Crash, p.Abort} {
		if err := ensureDir(dir); err != nil {
			return err
		}
	}
	PathsVar = p
	return nil
}

func ensureDir(dir string) error {
	if fi, err := os.Lstat(dir); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("state path is a symlink: %s", dir)
		}
		if !fi.IsDir() {
			return fmt.Errorf("state path exists and is not a directory: %s", dir)
		}
		if fi.Mode().Perm()&0o022 != 0 {
			return fmt.Errorf("state path has group/other write bits: %s", dir)
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state path %s: %w", dir, err)
	}

	// writability probe
	tmp, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("state path not writable: %s: %w", dir, err)
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())
	return nil
}
