// Package container is C7: the per-run workdir and its bookkeeping
// (uuid, overlay dirs, root/, pid file). Grounded on
// vzokay-apptainer/internal/pkg/runtime/launcher/oci/oci_linux.go's
// stateDir/lockBundle/releaseBundle shape, repurposed from an OCI bundle
// directory to the launcher's own per-container workdir.
package container

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	"github.com/appbox/launcher/internal/pkg/filelock"
)

const (
	overlayDirName    = ".overlayfs"
	overlayLowerName  = "lower_parent"
	overlayUpperName  = "upper"
	overlayWorkName   = "workdir"
	rootDirName       = "root"
	envFileName       = "env"
	pidFileSuffix     = ".pid"
	containersSubpath = "containers"
)

// Handle is one container's on-disk state: its id, workdir, and the
// derived paths §4.7/§6 name (root/, .overlayfs/{...}, env, <pid>.pid).
type Handle struct {
	ID      string
	WorkDir string
}

// New assigns a uuid and creates <linglongRoot>/containers/<uuid>, its
// root/ subdir, and — when withOverlay is true — the three overlay dirs,
// matching §4.7's "create ... and subdirs .overlayfs/{...} when overlay
// is used, and a root/ directory".
func New(linglongRoot string, withOverlay bool) (*Handle, error) {
	id := uuid.NewString()

	containersRoot := filepath.Join(linglongRoot, containersSubpath)
	workDir, err := securejoin.SecureJoin(containersRoot, id)
	if err != nil {
		return nil, fmt.Errorf("resolving container workdir: %w", err)
	}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating container workdir: %w", err)
	}

	h := &Handle{ID: id, WorkDir: workDir}

	if err := os.MkdirAll(h.RootPath(), 0o755); err != nil {
		return nil, fmt.Errorf("creating root dir: %w", err)
	}

	if withOverlay {
		for _, dir := range []string{h.OverlayLowerParent(), h.OverlayUpper(), h.OverlayWorkdir()} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating overlay dir %s: %w", dir, err)
			}
		}
	}

	return h, nil
}

// RootPath is <workdir>/root, the mount target for the composed rootfs.
func (h *Handle) RootPath() string {
	return filepath.Join(h.WorkDir, rootDirName)
}

// OverlayLowerParent is <workdir>/.overlayfs/lower_parent.
func (h *Handle) OverlayLowerParent() string {
	return filepath.Join(h.WorkDir, overlayDirName, overlayLowerName)
}

// OverlayUpper is <workdir>/.overlayfs/upper.
func (h *Handle) OverlayUpper() string {
	return filepath.Join(h.WorkDir, overlayDirName, overlayUpperName)
}

// OverlayWorkdir is <workdir>/.overlayfs/workdir.
func (h *Handle) OverlayWorkdir() string {
	return filepath.Join(h.WorkDir, overlayDirName, overlayWorkName)
}

// EnvFilePath is <workdir>/env, written by the orchestrator's env-file
// step after fixMount.
func (h *Handle) EnvFilePath() string {
	return filepath.Join(h.WorkDir, envFileName)
}

// PidFilePath is <workdir>/<pid>.pid, written once the helper's pid is
// known.
func (h *Handle) PidFilePath(pid int) string {
	return filepath.Join(h.WorkDir, strconv.Itoa(pid)+pidFileSuffix)
}

// WritePidFile records the helper's pid, creating the file if absent.
func (h *Handle) WritePidFile(pid int) error {
	return os.WriteFile(h.PidFilePath(pid), []byte(strconv.Itoa(pid)), 0o644)
}

// Lock acquires an exclusive lock on the container's workdir, refusing a
// second concurrent owner (§4.7 grounding: lockBundle/releaseBundle).
func (h *Handle) Lock() error {
	return filelock.Acquire(h.WorkDir)
}

// Unlock releases the lock taken by Lock.
func (h *Handle) Unlock() error {
	return filelock.Release(h.WorkDir)
}

// Remove tears down the container's entire workdir. Callers must have
// released the lock (or never taken one) before calling this.
func (h *Handle) Remove() error {
	return os.RemoveAll(h.WorkDir)
}
