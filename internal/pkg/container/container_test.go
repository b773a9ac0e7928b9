package container

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewCreatesRootDirOnly(t *testing.T) {
	root := t.TempDir()

	h, err := New(root, false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if h.ID == "" {
		t.Errorf("expected a non-empty container id")
	}

	if _, err := os.Stat(h.RootPath()); err != nil {
		t.Errorf("expected root/ to exist: %v", err)
	}
	if _, err := os.Stat(h.OverlayUpper()); !os.IsNotExist(err) {
		t.Errorf("expected no overlay dirs without withOverlay, got err = %v", err)
	}

	expectedWorkDir := filepath.Join(root, "containers", h.ID)
	if h.WorkDir != expectedWorkDir {
		t.Errorf("WorkDir = %q, want %q", h.WorkDir, expectedWorkDir)
	}
}

func TestNewCreatesOverlayDirs(t *testing.T) {
	root := t.TempDir()

	h, err := New(root, true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, dir := range []string{h.OverlayLowerParent(), h.OverlayUpper(), h.OverlayWorkdir()} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("expected overlay dir %s to exist: %v", dir, err)
		}
	}
}

func TestLockUnlockRoundtrip(t *testing.T) {
	root := t.TempDir()
	h, err := New(root, false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := h.Lock(); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if err := h.Lock(); err == nil {
		t.Errorf("expected second Lock() to fail while already locked")
	}
	if err := h.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if err := h.Unlock(); err == nil {
		t.Errorf("expected second Unlock() to fail once already unlocked")
	}
}

func TestPidFileRoundtrip(t *testing.T) {
	root := t.TempDir()
	h, err := New(root, false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := h.WritePidFile(4242); err != nil {
		t.Fatalf("WritePidFile() error = %v", err)
	}
	data, err := os.ReadFile(h.PidFilePath(4242))
	if err != nil {
		t.Fatalf("reading pid file: %v", err)
	}
	if string(data) != "4242" {
		t.Errorf("pid file contents = %q, want 4242", string(data))
	}
}

func TestRemoveDeletesWorkDir(t *testing.T) {
	root := t.TempDir()
	h, err := New(root, true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := h.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(h.WorkDir); !os.IsNotExist(err) {
		t.Errorf("expected workdir to be gone, stat err = %v", err)
	}
}
