package sandboxspec

import "path/filepath"

// StageHost is C6's stageHost: read-only identity/rename rbinds of host
// resolv.conf, fonts, themes, locale data, plus nvidia device nodes and the
// X11 socket.
func StageHost(rt *Runtime, ctx *ComposeCtx) error {
	type hostBind struct {
		src, dst string
	}

	binds := []hostBind{
		{"/etc/resolv.conf", "/run/host/network/etc/resolv.conf"},
		{"/run/resolvconf", "/run/resolvconf"},
		{"/usr/share/fonts", "/run/host/appearance/fonts"},
		{"/usr/lib/locale", "/usr/lib/locale"},
		{"/usr/share/themes", "/usr/share/themes"},
		{"/usr/share/icons", "/usr/share/icons"},
		{"/usr/share/zoneinfo", "/usr/share/zoneinfo"},
		{"/etc/localtime", "/run/host/etc/localtime"},
		{"/etc/machine-id", "/run/host/etc/machine-id"},
		{"/etc/machine-id", "/etc/machine-id"},
		{"/var", "/var"},
		{"/var/cache/fontconfig", "/run/host/appearance/fonts-cache"},
	}
	for _, b := range binds {
		if !exists(b.src) {
			continue
		}
		rt.AppendMount(bindMount(MountBind, b.src, b.dst, ro()))
	}

	nvidiaDevices, _ := filepath.Glob("/dev/nvidia*")
	for _, dev := range nvidiaDevices {
		rt.AppendMount(bindMount(MountBind, dev, dev, ro()))
	}

	rt.AppendMount(bindMount(MountBind, "/tmp/.X11-unix", "/tmp/.X11-unix", rw()))

	return nil
}
