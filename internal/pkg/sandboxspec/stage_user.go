package sandboxspec

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/appbox/launcher/internal/pkg/rootless"
)

// envAllowList is the admit-list applied to user-supplied env in stageUser
// step 5 ("From user-supplied env, admit only keys in an allow-list").
var envAllowList = map[string]bool{
	"LANG":          true,
	"LANGUAGE":      true,
	"LC_ALL":        true,
	"TZ":            true,
	"GDK_SCALE":     true,
	"QT_SCALE_FACTOR": true,
	"DESKTOP_SESSION": true,
}

// hostDir ensures a per-app host directory exists and returns it; dirs
// under ~/.linglong/<id> are created on demand, matching stageUser step 3.
func hostDir(home, appID string, parts ...string) (string, error) {
	elems := append([]string{home, ".linglong", appID}, parts...)
	dir := filepath.Join(elems...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// StageUser is C6's stageUser: the per-user runtime tmpfs, audio/input
// device binds, per-app home directories, the full env composition, cwd,
// and the minimum required id-maps.
func StageUser(rt *Runtime, ctx *ComposeCtx, userEnv map[string]string, callerPATH, callerXDGDataDirs string) error {
	uid, gid := ctx.UID, ctx.GID
	home := ctx.Home
	appID := ctx.Ref.AppID

	// 1. tmpfs at /run/user/<uid>
	runUser := fmt.Sprintf("/run/user/%d", uid)
	rt.AppendMount(bindMount(MountTmpfs, "tmpfs", runUser, []string{"nodev", "nosuid", "mode=700"}))

	// 2. rw rbinds
	pulseDir := filepath.Join(runUser, "pulse")
	if exists(pulseDir) {
		rt.AppendMount(bindMount(MountBind, pulseDir, pulseDir, rw()))
	}
	if exists("/run/udev") {
		rt.AppendMount(bindMount(MountBind, "/run/udev", "/run/udev", rw()))
	}
	videoDevices, _ := filepath.Glob("/dev/video*")
	for _, dev := range videoDevices {
		rt.AppendMount(bindMount(MountBind, dev, dev, rw()))
	}

	// 3. per-app host dirs
	appHome, err := hostDir(home, appID, "home")
	if err != nil {
		return err
	}
	rt.AppendMount(bindMount(MountBind, appHome, home, rw()))

	appRoot, err := hostDir(home, appID)
	if err != nil {
		return err
	}
	rt.AppendMount(bindMount(MountBind, appRoot, appRoot, rw()))

	appConfig, err := hostDir(home, appID, "config")
	if err != nil {
		return err
	}
	rt.AppendMount(bindMount(MountBind, appConfig, filepath.Join(home, ".config"), rw()))

	appCache, err := hostDir(home, appID, "cache")
	if err != nil {
		return err
	}
	rt.AppendMount(bindMount(MountBind, appCache, filepath.Join(home, ".cache"), rw()))

	deepinWine := filepath.Join(home, ".deepinwine")
	if err := os.MkdirAll(deepinWine, 0o755); err == nil {
		rt.AppendMount(bindMount(MountBind, deepinWine, deepinWine, rw()))
	}

	dconfRuntime := filepath.Join(runUser, "dconf")
	rt.AppendMount(bindMount(MountBind, dconfRuntime, dconfRuntime, rw()))

	userDirsFile := filepath.Join(home, ".config", "user-dirs.dirs")
	if exists(userDirsFile) {
		rt.AppendMount(bindMount(MountBind, userDirsFile, userDirsFile, rw()))
	}

	// 4. ro rbinds
	localFonts := filepath.Join(home, ".local", "share", "fonts")
	if exists(localFonts) {
		rt.AppendMount(bindMount(MountBind, localFonts, localFonts, ro()))
		rt.AppendMount(bindMount(MountBind, localFonts, "/run/host/appearance/user-fonts", ro()))
	}
	fontconfigConfig := filepath.Join(home, ".config", "fontconfig")
	if exists(fontconfigConfig) {
		rt.AppendMount(bindMount(MountBind, fontconfigConfig, fontconfigConfig, ro()))
	}
	fontconfigCache := filepath.Join(home, ".cache", "fontconfig")
	if exists(fontconfigCache) {
		rt.AppendMount(bindMount(MountBind, fontconfigCache, "/run/host/appearance/user-fonts-cache", ro()))
	}
	ddeAPI := filepath.Join(home, ".cache", "deepin", "dde-api")
	if exists(ddeAPI) {
		rt.AppendMount(bindMount(MountBind, ddeAPI, ddeAPI, ro()))
	}
	dconfConfig := filepath.Join(home, ".config", "dconf")
	if exists(dconfConfig) {
		rt.AppendMount(bindMount(MountBind, dconfConfig, filepath.Join(home, ".linglong", appID, "config", "dconf"), ro()))
	}
	if xauth := os.Getenv("XAUTHORITY"); xauth != "" && exists(xauth) {
		rt.AppendMount(bindMount(MountBind, xauth, xauth, ro()))
	}

	// 5. env composition
	for k, v := range userEnv {
		if envAllowList[k] {
			rt.SetEnv(k, v)
		}
	}

	appBin := "/opt/apps/" + appID + "/files/bin"
	path := appBin + ":/runtime/bin"
	if callerPATH != "" {
		path += ":" + callerPATH
	}
	rt.SetEnv("PATH", path)

	if _, ok := rt.EnvValue("HOME"); !ok {
		envHome := home
		if envHome == "" {
			if u, err := rootless.LookupByUID(uid); err == nil {
				envHome = u.Home
			}
		}
		rt.SetEnv("HOME", envHome)
	}

	rt.SetEnv("XDG_RUNTIME_DIR", runUser)
	rt.SetEnv("DBUS_SESSION_BUS_ADDRESS", "unix:path="+filepath.Join(runUser, "bus"))

	appShare := "/opt/apps/" + appID + "/files/share"
	dataDirs := appShare + ":/runtime/share"
	if callerXDGDataDirs != "" {
		dataDirs += ":" + callerXDGDataDirs
	} else {
		dataDirs += ":/usr/local/share:/usr/share"
	}
	rt.SetEnv("XDG_DATA_DIRS", dataDirs)

	linglongAppDir := filepath.Join(home, ".linglong", appID)
	rt.SetEnv("XDG_CONFIG_HOME", filepath.Join(linglongAppDir, "config"))
	rt.SetEnv("XDG_CACHE_HOME", filepath.Join(linglongAppDir, "cache"))
	rt.SetEnv("XDG_DATA_HOME", filepath.Join(linglongAppDir, "share"))

	// 6. cwd
	rt.Process.Cwd = home

	// 7. id-maps
	rt.Linux.UIDMappings = append(rt.Linux.UIDMappings, IdMap{HostID: uint32(uid), ContainerID: 0, Size: 1})
	rt.Linux.GIDMappings = append(rt.Linux.GIDMappings, IdMap{HostID: uint32(gid), ContainerID: 0, Size: 1})

	return nil
}
