package sandboxspec

import (
	"strings"
	"testing"

	"github.com/appbox/launcher/internal/pkg/pathvar"
	"github.com/appbox/launcher/pkg/pkginfo"
	"github.com/appbox/launcher/pkg/ref"
)

func baseCtx(arch ref.Arch) *ComposeCtx {
	return &ComposeCtx{
		Ref:      ref.Ref{AppID: "org.example.App", Version: "1.0.0", Arch: arch},
		Info:     &pkginfo.PackageInfo{},
		Resolver: pathvar.New("/opt/apps/org.example.App", "/opt/apps/org.example.App/runtime"),
		AppRoot:  "/opt/apps/org.example.App",
		UID:      1000,
		GID:      1000,
		Home:     "/home/user",
		WorkDir:  "/var/lib/linglong/containers/test-uuid",
	}
}

func TestStageRootfsX86Thin(t *testing.T) {
	rt := NewRuntime("/containers/test-uuid/root")
	ctx := baseCtx(ref.ArchX86_64)

	if err := StageRootfs(rt, ctx, "/opt/apps/org.deepin.Runtime/20/x86_64/files"); err != nil {
		t.Fatalf("StageRootfs() error = %v", err)
	}

	if rt.Annotations.RootfsMode != RootfsNative {
		t.Errorf("RootfsMode = %q, want %q", rt.Annotations.RootfsMode, RootfsNative)
	}
	if rt.Annotations.Native == nil || rt.Annotations.Overlayfs != nil {
		t.Errorf("expected exactly native annotations populated")
	}

	ldPath, ok := rt.EnvValue("LD_LIBRARY_PATH")
	if !ok || !strings.HasSuffix(ldPath, "/runtime/lib/i386-linux-gnu") {
		t.Errorf("LD_LIBRARY_PATH = %q, want suffix /runtime/lib/i386-linux-gnu", ldPath)
	}

	var appMount *Mount
	for i := range rt.Mounts {
		if rt.Mounts[i].Destination == "/opt/apps/org.example.App" {
			appMount = &rt.Mounts[i]
		}
	}
	if appMount == nil {
		t.Fatalf("expected app-data mount to /opt/apps/org.example.App")
	}
	if appMount.Options[0] != "rw" {
		t.Errorf("app-data mount options = %v, want rw first", appMount.Options)
	}
}

func TestStageRootfsArm64Thin(t *testing.T) {
	rt := NewRuntime("/containers/test-uuid/root")
	ctx := baseCtx(ref.ArchArm64)

	if err := StageRootfs(rt, ctx, "/opt/apps/org.deepin.Runtime/20/arm64/files"); err != nil {
		t.Fatalf("StageRootfs() error = %v", err)
	}

	qt, ok := rt.EnvValue("QT_PLUGIN_PATH")
	if !ok || !strings.Contains(qt, "/runtime/lib/aarch64-linux-gnu/qt5/plugins") {
		t.Errorf("QT_PLUGIN_PATH = %q, want to contain aarch64 plugin path", qt)
	}
}

func TestStageRootfsWineOverlay(t *testing.T) {
	rt := NewRuntime("/containers/test-uuid/root")
	ctx := baseCtx(ref.ArchX86_64)

	runtimePath := "/opt/apps/org.deepin.Wine/files"
	if err := StageRootfs(rt, ctx, runtimePath); err != nil {
		t.Fatalf("StageRootfs() error = %v", err)
	}

	if rt.Annotations.RootfsMode != RootfsOverlayfs {
		t.Fatalf("RootfsMode = %q, want overlayfs", rt.Annotations.RootfsMode)
	}
	if rt.Annotations.Overlayfs.LowerParent == "" || rt.Annotations.Overlayfs.Upper == "" || rt.Annotations.Overlayfs.Workdir == "" {
		t.Errorf("overlay dirs not populated: %+v", rt.Annotations.Overlayfs)
	}

	mounts := rt.Annotations.Overlayfs.Mounts
	hostUsrIdx, runtimeUsrIdx, deepinwineIdx := -1, -1, -1
	for i, m := range mounts {
		if m.Destination == "/usr" && m.Source == "/usr" {
			hostUsrIdx = i
		}
		if m.Destination == "/usr" && m.Source == runtimePath+"/usr" {
			runtimeUsrIdx = i
		}
		if m.Destination == "/opt/deepinwine" {
			deepinwineIdx = i
		}
	}
	if hostUsrIdx == -1 || runtimeUsrIdx == -1 {
		t.Fatalf("expected both host and runtime /usr mounts, got %+v", mounts)
	}
	if runtimeUsrIdx <= hostUsrIdx {
		t.Errorf("runtime /usr mount (idx %d) must come after host /usr mount (idx %d)", runtimeUsrIdx, hostUsrIdx)
	}
	if deepinwineIdx == -1 {
		t.Errorf("expected /opt/deepinwine rbind present")
	}
}

func TestStageRootfsUnsupportedArch(t *testing.T) {
	rt := NewRuntime("/containers/test-uuid/root")
	ctx := baseCtx(ref.ArchUnknown)

	if err := StageRootfs(rt, ctx, "/runtime"); err == nil {
		t.Errorf("StageRootfs() expected UnsupportedArch error")
	}
}

func TestStageRootfsFlatpak(t *testing.T) {
	rt := NewRuntime("/containers/test-uuid/root")
	ctx := baseCtx(ref.ArchX86_64)
	ctx.IsFlatpak = true

	if err := StageRootfs(rt, ctx, "/var/lib/flatpak/runtime/org.freedesktop.Platform"); err != nil {
		t.Fatalf("StageRootfs() error = %v", err)
	}

	var usrMount, appMount *Mount
	for i := range rt.Mounts {
		switch rt.Mounts[i].Destination {
		case "/usr":
			usrMount = &rt.Mounts[i]
		case "/app":
			appMount = &rt.Mounts[i]
		}
	}
	if usrMount == nil {
		t.Errorf("expected single /usr mount for full/Flatpak runtime")
	}
	if appMount == nil {
		t.Errorf("expected app-data mount destination /app for Flatpak")
	}
}
