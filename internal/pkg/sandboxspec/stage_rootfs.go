package sandboxspec

import (
	"strings"

	"github.com/appbox/launcher/internal/pkg/launcherrors"
	"github.com/appbox/launcher/pkg/ref"
)

// rootfsDecision is stageRootfs's decision table (§4.6).
type rootfsDecision struct {
	useThinRuntime bool
	fuseMount      bool
	specialCase    bool
}

func decideRootfs(ctx *ComposeCtx, runtimePath string) rootfsDecision {
	switch {
	case ctx.Info != nil && ctx.Info.Overlayfs != nil && len(ctx.Info.Overlayfs.Mounts) > 0:
		return rootfsDecision{useThinRuntime: true, fuseMount: true, specialCase: true}
	case ctx.IsFlatpak:
		return rootfsDecision{useThinRuntime: false, fuseMount: false, specialCase: false}
	case strings.Contains(runtimePath, WineRuntimeMarker):
		return rootfsDecision{useThinRuntime: true, fuseMount: true, specialCase: false}
	default:
		return rootfsDecision{useThinRuntime: true, fuseMount: false, specialCase: false}
	}
}

// StageRootfs is C6's stageRootfs: it decides native vs overlay mode,
// emits the runtime/app-data mount set, and sets the architecture-
// dependent library/plugin-path env vars that no later stage may
// override.
func StageRootfs(rt *Runtime, ctx *ComposeCtx, runtimePath string) error {
	decision := decideRootfs(ctx, runtimePath)

	if decision.fuseMount {
		rt.Annotations.RootfsMode = RootfsOverlayfs
		rt.Annotations.Overlayfs = &OverlayfsAnnotations{
			LowerParent: ctx.WorkDir + "/.overlayfs/lower_parent",
			Upper:       ctx.WorkDir + "/.overlayfs/upper",
			Workdir:     ctx.WorkDir + "/.overlayfs/workdir",
		}
	} else {
		rt.Annotations.RootfsMode = RootfsNative
		rt.Annotations.Native = &NativeAnnotations{}
	}

	if decision.useThinRuntime {
		rt.AppendMount(bindMount(MountBind, "/usr", "/usr", ro()))
		rt.AppendMount(bindMount(MountBind, "/etc", "/etc", ro()))
		rt.AppendMount(bindMount(MountBind, runtimePath, "/runtime", ro()))
		rt.AppendMount(bindMount(MountBind, "/usr/share/locale", "/usr/share/locale", ro()))

		if decision.fuseMount && strings.Contains(runtimePath, WineRuntimeMarker) {
			rt.AppendMount(bindMount(MountBind, runtimePath+"/usr", "/usr", ro()))
			rt.AppendMount(bindMount(MountBind, runtimePath+"/opt/deepinwine", "/opt/deepinwine", ro()))
			rt.AppendMount(bindMount(MountBind, runtimePath+"/opt/deepin-wine6-stable", "/opt/deepin-wine6-stable", ro()))
		}

		if decision.specialCase && ctx.Info != nil && ctx.Info.Overlayfs != nil {
			for _, m := range ctx.Info.Overlayfs.Mounts {
				typ := MountType(m.Type)
				if typ == "" {
					typ = MountBind
				}
				rt.AppendMount(bindMount(typ, ctx.Resolver.Expand(m.Source), ctx.Resolver.Expand(m.Destination), parseOptions(m.Options)))
			}
		}
	} else {
		rt.AppendMount(bindMount(MountBind, runtimePath, "/usr", ro()))
	}

	rt.AppendMount(bindMount(MountBind, ctx.AppRoot, ctx.appDataDest(), rw()))

	return setArchEnv(rt, ctx.Ref.Arch, ctx.Ref.AppID)
}

func setArchEnv(rt *Runtime, arch ref.Arch, appID string) error {
	appLib := "/opt/apps/" + appID + "/files/lib"

	switch arch {
	case ref.ArchArm64:
		rt.SetEnv("LD_LIBRARY_PATH", strings.Join([]string{
			appLib,
			appLib + "/aarch64-linux-gnu",
			"/runtime/lib",
			"/runtime/lib/aarch64-linux-gnu",
		}, ":"))
		rt.SetEnv("QT_PLUGIN_PATH", "/runtime/lib/aarch64-linux-gnu/qt5/plugins")
		rt.SetEnv("QT_QPA_PLATFORM_PLUGIN_PATH", "/runtime/lib/aarch64-linux-gnu/qt5/plugins/platforms")
		return nil
	case ref.ArchX86_64:
		rt.SetEnv("LD_LIBRARY_PATH", strings.Join([]string{
			appLib,
			appLib + "/x86_64-linux-gnu",
			appLib + "/i386-linux-gnu",
			"/runtime/lib",
			"/runtime/lib/x86_64-linux-gnu",
			"/runtime/lib/i386-linux-gnu",
		}, ":"))
		rt.SetEnv("QT_PLUGIN_PATH", "/runtime/lib/x86_64-linux-gnu/qt5/plugins")
		rt.SetEnv("QT_QPA_PLATFORM_PLUGIN_PATH", "/runtime/lib/x86_64-linux-gnu/qt5/plugins/platforms")
		return nil
	default:
		return launcherrors.ErrUnsupportedArch
	}
}
