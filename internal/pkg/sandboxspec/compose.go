package sandboxspec

import (
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/appbox/launcher/internal/pkg/pathvar"
	"github.com/appbox/launcher/pkg/pkginfo"
	"github.com/appbox/launcher/pkg/ref"
)

// WineRuntimeMarker is the literal substring that identifies a Wine-style
// runtime layer, restored from original_source/app.cpp per SPEC_FULL.md
// §3.1 rather than left as an inline literal, since both stageRootfs and
// the §8 Wine-mount-ordering property need the same constant.
const WineRuntimeMarker = "org.deepin.Wine"

// ComposeCtx carries every external input the C6 stages read. The
// orchestrator (internal/app/sandbox) builds one of these per run and
// drives the stages over it in the fixed §4.10 order.
type ComposeCtx struct {
	Ref       ref.Ref
	Info      *pkginfo.PackageInfo
	Resolver  pathvar.Resolver
	AppRoot   string
	IsFlatpak bool

	UID int
	GID int
	Home string

	// DesktopExecOverride, if non-empty, is used in place of the parsed
	// .desktop Exec value (§4.6 "Env file & desktop exec").
	DesktopExecOverride string

	// DBusProxyRequested is the run-parameter toggle consulted by
	// stageDBusProxy; DBusProxyBinary is "" when ll-dbus-proxy could not
	// be found (degrading automatically to no-proxy mode per §7).
	DBusProxyRequested bool
	DBusProxyBinary    string
	DBusProxyDir       string
	DBusFilters        DBusFilters

	// WorkDir is the per-container workdir (<linglong-root>/containers/<uuid>).
	WorkDir string
}

// DBusFilters is the run-parameter filter map consulted by stageDBusProxy.
type DBusFilters struct {
	Name      []string
	Path      []string
	Interface []string
}

// appDataDest returns /opt/apps/<id> (native) or /app (Flatpak) — the
// destination of the app-data mount in stageRootfs.
func (c *ComposeCtx) appDataDest() string {
	if c.IsFlatpak {
		return "/app"
	}
	return "/opt/apps/" + c.Ref.AppID
}

func ro(opts ...string) []string { return append([]string{"ro", "rbind"}, opts...) }
func rw(opts ...string) []string { return append([]string{"rw", "rbind"}, opts...) }

func bindMount(typ MountType, source, dest string, options []string) Mount {
	return Mount{Type: typ, Source: source, Destination: dest, Options: options}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// mountKey is the (source, destination, options) tuple used to detect
// duplicate mounts — the §8 idempotence property's dedup key.
func mountKey(m Mount) string {
	return m.Source + "\x00" + m.Destination + "\x00" + strings.Join(m.Options, ",")
}

// DedupMounts removes exact (source, destination, options) duplicates while
// preserving order of first occurrence — used to make re-running
// stageMount with the same permissions idempotent (§8).
func DedupMounts(mounts []Mount) []Mount {
	return lo.UniqBy(mounts, mountKey)
}

func parseOptions(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
