package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureStateDirs(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "resultdb.db")

	if err := EnsureStateDirs(db); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	want := filepath.Join(dir, "state")
	if PathsVar.Root != want {
		t.Fatalf("root = %q, want %q", PathsVar.Root, want)
	}
	for _, p := range []string{PathsVar.Root, PathsVar.Crash, PathsVar.Abort} {
		fi, err := os.Stat(p)
		if err != nil || !fi.IsDir() {
			t.Fatalf("missing dir %s: %v", p, err)
		}
		if fi.Mode().Perm()&0o022 != 0 {
			t.Fatalf("dir %s has loose permissions %v", p, fi.Mode().Perm())
		}
	}

	// Idempotent on an existing layout.
	if err := EnsureStateDirs(db); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}

func TestEnsureStateDirsEnvOverride(t *testing.T) {
	override := filepath.Join(t.TempDir(), "elsewhere")
	t.Setenv("RESULTDB_STATE_ROOT", override)

	if err := EnsureStateDirs("/data/resultdb.db"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if PathsVar.Root != override {
		t.Fatalf("root = %q, want %q", PathsVar.Root, override)
	}
}

func TestEnsureStateDirsRejectsFile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "resultdb.db")
	if err := os.WriteFile(filepath.Join(dir, "state"), []byte("x"), 0o600); err != nil {
		t.Fatalf("plant file: %v", err)
	}
	if err := EnsureStateDirs(db); err == nil {
		t.Fatalf("plain file accepted as state root")
	}
}
