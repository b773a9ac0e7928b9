package sandboxspec

import (
	"path/filepath"
)

// browser360AppID is the one app-specific quirk carried over from
// original_source/app.cpp's fixMount.
const browser360AppID = "com.360.browser-stable"

var standardUserDirs = []string{
	"Desktop", "Documents", "Downloads", "Music", "Pictures", "Videos",
	".Public", ".Templates",
}

// FixMount is C6's fixMount: late patches that must run after every
// generic mount so they're guaranteed visible (§4.10 ordering rationale).
func FixMount(rt *Runtime, ctx *ComposeCtx, runtimePath string) error {
	if ctx.Ref.AppID == browser360AppID {
		dir, err := hostDir(ctx.Home, ctx.Ref.AppID, "share", "appdata")
		if err != nil {
			return err
		}
		rt.AppendMount(bindMount(MountBind, dir, "/apps-data/private/"+browser360AppID, rw()))
	}

	for _, name := range standardUserDirs {
		dir := filepath.Join(ctx.Home, name)
		if !exists(dir) {
			continue
		}
		rt.AppendMount(bindMount(MountBind, dir, dir, rw()))
	}

	for _, tool := range []string{"xdg-open", "xdg-email"} {
		src := filepath.Join(runtimePath, "bin", tool)
		if exists(src) {
			rt.AppendMount(bindMount(MountBind, src, "/usr/bin/"+tool, ro()))
		}
	}

	schemas := filepath.Join(ctx.Resolver.AppRootSharePath(), "glib-2.0", "schemas", "gschemas.compiled")
	if exists(schemas) {
		rt.AppendMount(bindMount(MountBind, schemas, schemas, ro()))
	}

	return nil
}
