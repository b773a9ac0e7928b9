package sandboxspec

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/gosimple/slug"
	"github.com/samber/lo"

	"github.com/appbox/launcher/internal/pkg/sylog"
)

// StageDBusProxy is C6's stageDBusProxy: either routes the sandbox's bus
// socket through a freshly allocated proxy socket path, or identity-binds
// the user's real bus, and always populates annotations.dbusProxyInfo.
func StageDBusProxy(rt *Runtime, ctx *ComposeCtx) error {
	uid := ctx.UID
	runUser := fmt.Sprintf("/run/user/%d", uid)
	realBus := filepath.Join(runUser, "bus")

	enable := ctx.DBusProxyRequested && ctx.DBusProxyBinary != ""
	if ctx.DBusProxyRequested && ctx.DBusProxyBinary == "" {
		sylog.Warningf("ll-dbus-proxy not found, degrading to no-proxy mode")
	}
	if enable && !sessionBusReachable() {
		sylog.Warningf("no session bus reachable, degrading to no-proxy mode")
		enable = false
	}

	info := &DBusProxyInfo{
		Enable:  enable,
		AppID:   ctx.Ref.AppID,
		BusType: "session",
	}

	if enable {
		proxyPath, err := allocateProxySocketPath(ctx.DBusProxyDir, ctx.Ref.AppID)
		if err != nil {
			return fmt.Errorf("allocating dbus proxy socket: %w", err)
		}
		info.ProxyPath = proxyPath
		rt.AppendMount(bindMount(MountBind, proxyPath, filepath.Join("/run/user", fmt.Sprint(uid), "bus"), rw()))
	} else {
		rt.AppendMount(bindMount(MountBind, realBus, realBus, rw()))
	}

	// The system bus socket is always bound, proxy or not.
	const systemBusSocket = "/run/dbus/system_bus_socket"
	if exists(systemBusSocket) {
		rt.AppendMount(bindMount(MountBind, systemBusSocket, systemBusSocket, rw()))
	}

	info.Name = appendUnique(info.Name, ctx.DBusFilters.Name...)
	info.Path = appendUnique(info.Path, ctx.DBusFilters.Path...)
	info.Interface = appendUnique(info.Interface, ctx.DBusFilters.Interface...)

	rt.Annotations.DBusProxyInfo = info
	return nil
}

func appendUnique(dst []string, values ...string) []string {
	combined := append(append([]string{}, dst...), lo.Filter(values, func(v string, _ int) bool { return v != "" })...)
	return lo.Uniq(combined)
}

// allocateProxySocketPath creates a unique, not-yet-bound path under dir
// ("mkstemp-style") and immediately removes any node so the helper can
// bind a fresh socket there.
func allocateProxySocketPath(dir, appID string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := slug.Make(appID) + "-" + fmt.Sprintf("%d", time.Now().UnixNano())
	f, err := os.CreateTemp(dir, name+".*.sock")
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	return path, nil
}

// sessionBusReachable is indirected through a package var so tests can
// stub out the real bus probe (StageDBusProxy's call site) without
// requiring an actual session bus in the test environment.
var sessionBusReachable = SessionBusReachable

// SessionBusReachable probes whether a session bus is reachable at all,
// using a short-lived private connection (closed immediately after the
// handshake) rather than a connection the launcher itself holds open. It
// never blocks the sandboxed process's own bus traffic. StageDBusProxy
// degrades to no-proxy mode when it returns false, mirroring the
// missing-ll-dbus-proxy-binary fallback above.
func SessionBusReachable() bool {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return false
	}
	defer conn.Close()
	if err := conn.Auth(nil); err != nil {
		return false
	}
	if err := conn.Hello(); err != nil {
		return false
	}
	return true
}
