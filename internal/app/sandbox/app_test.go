package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/appbox/launcher/internal/pkg/launcherrors"
	"github.com/appbox/launcher/internal/pkg/repo/fixture"
	"github.com/appbox/launcher/internal/pkg/sandboxspec"
	"github.com/appbox/launcher/pkg/ref"
)

const testInfoJSON = `{
	"ref": "org.example.App/1.0.0/x86_64",
	"runtimeRef": "org.deepin.Runtime/20/x86_64",
	"permissions": {
		"mounts": [
			{"source": "/host/extra", "destination": "/extra", "options": "rw,rbind"}
		]
	}
}`

const testDesktopEntry = `[Desktop Entry]
Type=Application
Name=Example
Exec=ll-cli run org.example.App --exec /opt/apps/org.example.App/files/bin/example %U
`

func setupLayer(t *testing.T) (layerRoot, repoRoot string) {
	t.Helper()
	repoRoot = t.TempDir()
	layerRoot = filepath.Join(repoRoot, "org.example.App", "1.0.0", "x86_64")
	if err := os.MkdirAll(filepath.Join(layerRoot, "entries", "applications"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(layerRoot, "info.json"), []byte(testInfoJSON), 0o644); err != nil {
		t.Fatalf("write info.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(layerRoot, "entries", "applications", "org.example.App.desktop"), []byte(testDesktopEntry), 0o644); err != nil {
		t.Fatalf("write desktop entry: %v", err)
	}
	return layerRoot, repoRoot
}

func TestLoadComposesRuntimeSpec(t *testing.T) {
	layerRoot, repoRoot := setupLayer(t)
	_ = layerRoot

	adapter, err := fixture.Scan(repoRoot)
	if err != nil {
		t.Fatalf("fixture.Scan() error = %v", err)
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("APPBOX_WAIT_MODE", "detached")
	t.Setenv("LINGLONG_ROOT", t.TempDir())

	linglongRoot := t.TempDir()

	app, err := Load(Params{
		Repo:         adapter,
		Ref:          ref.Ref{AppID: "org.example.App", Version: "1.0.0", Arch: ref.ArchX86_64},
		LinglongRoot: linglongRoot,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer app.Close()

	if app.ContainerID() == "" {
		t.Errorf("expected a non-empty container id")
	}

	rt := app.Runtime()
	if rt.Annotations.RootfsMode == "" {
		t.Errorf("expected a decided RootfsMode")
	}

	if len(rt.Process.Args) == 0 {
		t.Fatalf("expected desktop Exec to populate process.args")
	}
	if rt.Process.Args[0] != "/opt/apps/org.example.App/files/bin/example" {
		t.Errorf("process.args[0] = %q, want the resolved Exec binary", rt.Process.Args[0])
	}

	var found bool
	for _, m := range rt.Mounts {
		if m.Destination == "/extra" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected stageMount to have appended the permissions.mounts entry, got %+v", rt.Mounts)
	}

	if rt.Annotations.DBusProxyInfo == nil {
		t.Errorf("expected dbusProxyInfo to be populated")
	}

	if _, err := os.Stat(app.container.EnvFilePath()); err != nil {
		t.Errorf("expected env file to be written: %v", err)
	}

	var envMount *sandboxspec.Mount
	for i, m := range rt.Mounts {
		if m.Destination == "/run/app/env" {
			envMount = &rt.Mounts[i]
		}
	}
	if envMount == nil {
		t.Fatalf("expected a mount binding the env file to /run/app/env, got %+v", rt.Mounts)
	}
	if envMount.Source != app.container.EnvFilePath() {
		t.Errorf("env mount source = %q, want %q", envMount.Source, app.container.EnvFilePath())
	}
}

func TestLoadFailsWhenDesktopExecEmpty(t *testing.T) {
	repoRoot := t.TempDir()
	layerRoot := filepath.Join(repoRoot, "org.example.App", "1.0.0", "x86_64")
	if err := os.MkdirAll(filepath.Join(layerRoot, "entries", "applications"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(layerRoot, "info.json"), []byte(testInfoJSON), 0o644); err != nil {
		t.Fatalf("write info.json: %v", err)
	}
	const emptyExecDesktopEntry = "[Desktop Entry]\nType=Application\nName=Example\nExec=\n"
	if err := os.WriteFile(filepath.Join(layerRoot, "entries", "applications", "org.example.App.desktop"), []byte(emptyExecDesktopEntry), 0o644); err != nil {
		t.Fatalf("write desktop entry: %v", err)
	}

	adapter, err := fixture.Scan(repoRoot)
	if err != nil {
		t.Fatalf("fixture.Scan() error = %v", err)
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("APPBOX_WAIT_MODE", "detached")
	t.Setenv("LINGLONG_ROOT", t.TempDir())

	_, err = Load(Params{
		Repo:         adapter,
		Ref:          ref.Ref{AppID: "org.example.App", Version: "1.0.0", Arch: ref.ArchX86_64},
		LinglongRoot: t.TempDir(),
	})
	if !errors.Is(err, launcherrors.ErrNoDesktopEntry) {
		t.Errorf("Load() error = %v, want launcherrors.ErrNoDesktopEntry", err)
	}
}

func TestLoadFailsForUnknownRef(t *testing.T) {
	_, repoRoot := setupLayer(t)
	adapter, err := fixture.Scan(repoRoot)
	if err != nil {
		t.Fatalf("fixture.Scan() error = %v", err)
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err = Load(Params{
		Repo:         adapter,
		Ref:          ref.Ref{AppID: "org.example.Missing", Version: "1.0.0", Arch: ref.ArchX86_64},
		LinglongRoot: t.TempDir(),
	})
	if err == nil {
		t.Errorf("expected Load() to fail for an unresolvable ref")
	}
}
