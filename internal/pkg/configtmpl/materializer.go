// Package configtmpl renders the embedded per-app YAML template, appends
// the resolved permission mount fragment, and writes the result atomically
// to $HOME/.linglong/<appId>/app.yaml.
//
// Unlike the original source this is based on, a malformed template or
// permission fragment is never swallowed by a catch-all: every failure
// surfaces as launcherrors.ErrTemplateParseFailure (§9 design note).
package configtmpl

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/appbox/launcher/internal/pkg/launcherrors"
	"github.com/appbox/launcher/pkg/pkginfo"
)

//go:embed templates/app.yaml.tmpl
var appYAMLTemplate string

// DefaultRuntimeRef is the fallback runtime ref used when a descriptor
// omits one, restored from original_source/app.cpp per SPEC_FULL.md §3.1.
func DefaultRuntimeRef(arch string) string {
	if arch == "arm64" {
		return "org.deepin.Runtime/20/arm64"
	}
	return "org.deepin.Runtime/20/x86_64"
}

// xdgUserDirs is the recognized set of XDG user-dir names honored by
// Permissions.Filesystem.User (§3 "only entries whose key is a recognized
// XDG user-dir name are honored").
var xdgUserDirs = map[string]string{
	"Desktop":   "XDG_DESKTOP_DIR",
	"Documents": "XDG_DOCUMENTS_DIR",
	"Downloads": "XDG_DOWNLOAD_DIR",
	"Music":     "XDG_MUSIC_DIR",
	"Pictures":  "XDG_PICTURES_DIR",
	"Videos":    "XDG_VIDEOS_DIR",
	"Templates": "XDG_TEMPLATES_DIR",
	"Public":    "XDG_PUBLICSHARE_DIR",
}

type permMount struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
	Options     string `yaml:"options,omitempty"`
}

type permissionsFragment struct {
	Permissions struct {
		Mounts []permMount `yaml:"mounts"`
	} `yaml:"permissions"`
}

// OutputPath returns $HOME/.linglong/<appId>/app.yaml.
func OutputPath(home, appID string) string {
	return filepath.Join(home, ".linglong", appID, "app.yaml")
}

// Render substitutes @APP_REF@/@RUNTIME_REF@ into the embedded template,
// defaults an empty runtime ref, appends the permission-mounts fragment,
// and returns the full document bytes (caller writes them).
func Render(home string, info *pkginfo.PackageInfo, fallbackArch string) ([]byte, error) {
	runtimeRef := info.RuntimeRef
	if runtimeRef == "" {
		runtimeRef = DefaultRuntimeRef(fallbackArch)
	}

	replacer := strings.NewReplacer(
		"@APP_REF@", info.RawRef,
		"@RUNTIME_REF@", runtimeRef,
	)
	doc := replacer.Replace(appYAMLTemplate)

	// Round-trip through yaml.v3 to validate the substituted template is
	// still well-formed before appending the generated fragment.
	var probe map[string]interface{}
	if err := yaml.Unmarshal([]byte(doc), &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", launcherrors.ErrTemplateParseFailure, err)
	}

	frag := buildPermissionsFragment(home, info)
	fragBytes, err := yaml.Marshal(frag)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling permissions fragment: %v", launcherrors.ErrTemplateParseFailure, err)
	}

	var out strings.Builder
	out.WriteString(doc)
	if !strings.HasSuffix(doc, "\n") {
		out.WriteByte('\n')
	}
	out.Write(fragBytes)

	return []byte(out.String()), nil
}

func buildPermissionsFragment(home string, info *pkginfo.PackageInfo) permissionsFragment {
	var frag permissionsFragment
	if info.Permissions == nil {
		return frag
	}

	for dirName, level := range info.Permissions.Filesystem.User {
		envName, ok := xdgUserDirs[dirName]
		if !ok {
			continue
		}
		hostPath := filepath.Join(home, dirName)
		m := permMount{Source: hostPath, Destination: hostPath}
		if level == "rw" {
			m.Options = "rw,rbind"
		}
		_ = envName // name retained for documentation; XDG env population happens in stageUser
		frag.Permissions.Mounts = append(frag.Permissions.Mounts, m)
	}

	return frag
}

// Write atomically writes data to OutputPath(home, appID): a temp file in
// the same directory, then a rename, matching (and strengthening) the
// "truncate + write" contract of §4.4 step 4.
func Write(home, appID string, data []byte) error {
	path := OutputPath(home, appID)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", launcherrors.ErrConfigWriteFailure, err)
	}

	tmp, err := os.CreateTemp(dir, ".app.yaml.*")
	if err != nil {
		return fmt.Errorf("%w: %v", launcherrors.ErrConfigWriteFailure, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", launcherrors.ErrConfigWriteFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", launcherrors.ErrConfigWriteFailure, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %v", launcherrors.ErrConfigWriteFailure, err)
	}
	return nil
}
