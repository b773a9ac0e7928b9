// Package fixture is an in-memory repo.Adapter for tests, grounded on
// overthinkos-overthink/ov/layers.go's directory-scan-and-index pattern:
// it builds its index once from a root directory of "<appId>/<version>/<arch>"
// subtrees rather than hitting a real package store.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/appbox/launcher/internal/pkg/launcherrors"
	"github.com/appbox/launcher/internal/pkg/repo"
	"github.com/appbox/launcher/pkg/ref"
)

type entry struct {
	r    ref.Ref
	root string
}

// Adapter is a directory-backed repo.Adapter used in tests and local
// experimentation: scanning `<root>/<appId>/<version>/<arch>/` directories.
type Adapter struct {
	entries []entry
}

var _ repo.Adapter = (*Adapter)(nil)

// Scan walks root and indexes every <appId>/<version>/<arch> directory it
// finds as a candidate layer.
func Scan(root string) (*Adapter, error) {
	a := &Adapter{}

	appDirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	for _, appDir := range appDirs {
		if !appDir.IsDir() {
			continue
		}
		appID := appDir.Name()
		versionDirs, err := os.ReadDir(filepath.Join(root, appID))
		if err != nil {
			continue
		}
		for _, versionDir := range versionDirs {
			if !versionDir.IsDir() {
				continue
			}
			version := versionDir.Name()
			archDirs, err := os.ReadDir(filepath.Join(root, appID, version))
			if err != nil {
				continue
			}
			for _, archDir := range archDirs {
				if !archDir.IsDir() {
					continue
				}
				layerRoot := filepath.Join(root, appID, version, archDir.Name())
				a.entries = append(a.entries, entry{
					r:    ref.Ref{AppID: appID, Version: version, Arch: ref.ParseArch(archDir.Name())},
					root: layerRoot,
				})
			}
		}
	}
	return a, nil
}

// RootOfLayer implements repo.Adapter.
func (a *Adapter) RootOfLayer(r ref.Ref) (string, error) {
	for _, e := range a.entries {
		if e.r.AppID == r.AppID && e.r.Version == r.Version && e.r.Arch == r.Arch {
			return e.root, nil
		}
	}
	return "", fmt.Errorf("%w for %s", launcherrors.ErrLayerNotFound, r.String())
}

// LatestOfRef implements repo.Adapter.
func (a *Adapter) LatestOfRef(appID, version string) (ref.Ref, error) {
	var best *ref.Ref
	for i := range a.entries {
		e := a.entries[i]
		if e.r.AppID != appID {
			continue
		}
		if version != "" && !strings.HasPrefix(e.r.Version, version) {
			continue
		}
		if best == nil || ref.Less(*best, e.r) {
			r := e.r
			best = &r
		}
	}
	if best == nil {
		return ref.Ref{}, fmt.Errorf("no ref found for %s/%s", appID, version)
	}
	return *best, nil
}
