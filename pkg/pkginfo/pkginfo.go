// Package pkginfo loads and represents the on-disk package descriptor
// (info.json) found at the root of a resolved layer.
package pkginfo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/buger/jsonparser"

	"github.com/appbox/launcher/internal/pkg/launcherrors"
	"github.com/appbox/launcher/pkg/ref"
)

// InfoFileName is the descriptor file name relative to a layer root.
const InfoFileName = "info.json"

// Mount is a single overlay or static mount entry as declared in info.json,
// prior to variable expansion.
type Mount struct {
	Type        string `json:"type,omitempty"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Options     string `json:"options,omitempty"`
}

// Overlayfs carries the declared info.json overlay mount list consulted by
// stageRootfs's decision table.
type Overlayfs struct {
	Mounts []Mount `json:"mounts,omitempty"`
}

// Permissions is the descriptor's permission block: per-XDG-user-dir access
// level, plus an arbitrary list of static mounts.
type Permissions struct {
	Filesystem struct {
		User map[string]string `json:"user,omitempty"`
	} `json:"filesystem"`
	Mounts []Mount `json:"mounts,omitempty"`
}

// PackageInfo is the fully decoded info.json document.
type PackageInfo struct {
	Ref         ref.Ref      `json:"-"`
	RawRef      string       `json:"ref"`
	RuntimeRef  string       `json:"runtimeRef"`
	Overlayfs   *Overlayfs   `json:"overlayfs,omitempty"`
	Permissions *Permissions `json:"permissions,omitempty"`
}

// HasOverlayMounts reports whether the descriptor declares any overlay
// mounts without requiring a full decode of the whole document. The
// composer does not call it: stageRootfs's "specialCase" decision reads
// the decoded PackageInfo.Overlayfs instead.
func HasOverlayMounts(layerRoot string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(layerRoot, InfoFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	count := 0
	_, err = jsonparser.ArrayEach(data, func(_ []byte, _ jsonparser.ValueType, _ int, _ error) {
		count++
	}, "overlayfs", "mounts")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return false, nil
	}
	return count > 0, nil
}

// Load reads and decodes <layerRoot>/info.json. A missing file is reported
// via the returned bool rather than an error so callers can apply the
// Flatpak-skips-this-check rule from C1 without string-matching os errors.
func Load(layerRoot string) (*PackageInfo, bool, error) {
	path := filepath.Join(layerRoot, InfoFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}

	var info PackageInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, true, fmt.Errorf("decoding %s: %w", path, err)
	}

	if info.RawRef != "" {
		r, err := ref.Parse(info.RawRef)
		if err != nil {
			return nil, true, fmt.Errorf("decoding %s: ref: %w", path, err)
		}
		info.Ref = r
	}

	return &info, true, nil
}

// RequireLoad wraps Load, turning a missing descriptor into
// launcherrors.ErrDescriptorMissing unless skipMissing is set (the
// Flatpak-backed-app carve-out from C1).
func RequireLoad(layerRoot string, skipMissing bool) (*PackageInfo, error) {
	info, found, err := Load(layerRoot)
	if err != nil {
		return nil, err
	}
	if !found {
		if skipMissing {
			return &PackageInfo{}, nil
		}
		return nil, fmt.Errorf("%s: %w", filepath.Join(layerRoot, InfoFileName), launcherrors.ErrDescriptorMissing)
	}
	return info, nil
}
