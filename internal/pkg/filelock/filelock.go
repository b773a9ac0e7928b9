// Package filelock provides an exclusive directory lock, grounded on
// vzokay-apptainer's internal/pkg/runtime/launcher/oci/oci_linux.go
// lockBundle/releaseBundle pattern: a marker file guards against a second
// caller while flock on the directory itself serializes the create/remove.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const lockFileName = ".appbox.lock"

// Acquire creates a marker lock file under dir, failing if one is already
// present. It mirrors lockBundle: stat the marker first so a locked
// directory fails fast, then take an flock on the directory itself to
// serialize concurrent create attempts.
func Acquire(dir string) error {
	marker := filepath.Join(dir, lockFileName)

	if _, err := os.Stat(marker); err == nil {
		return fmt.Errorf("%s is locked by another process", dir)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat-ing lock file: %w", err)
	}

	fd, err := exclusive(dir)
	if err != nil {
		return fmt.Errorf("acquiring directory lock: %w", err)
	}
	defer release(fd)

	f, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating lock file: %w", err)
	}
	return f.Close()
}

// Release removes the marker lock file, failing if dir was not locked.
func Release(dir string) error {
	marker := filepath.Join(dir, lockFileName)

	if _, err := os.Stat(marker); os.IsNotExist(err) {
		return fmt.Errorf("%s is not locked", dir)
	} else if err != nil {
		return fmt.Errorf("stat-ing lock file: %w", err)
	}

	fd, err := exclusive(dir)
	if err != nil {
		return fmt.Errorf("acquiring directory lock: %w", err)
	}
	defer release(fd)

	if err := os.Remove(marker); err != nil {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

func exclusive(dir string) (int, error) {
	fd, err := unix.Open(dir, unix.O_RDONLY, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func release(fd int) {
	unix.Flock(fd, unix.LOCK_UN)
	unix.Close(fd)
}
