package sandboxspec

import (
	"testing"

	"github.com/appbox/launcher/pkg/ref"
)

func TestStageDBusProxyDisabledWhenBinaryMissing(t *testing.T) {
	rt := NewRuntime("/c")
	rt.Annotations.RootfsMode = RootfsNative
	rt.Annotations.Native = &NativeAnnotations{}

	ctx := baseCtx(ref.ArchX86_64)
	ctx.DBusProxyRequested = true
	ctx.DBusProxyBinary = ""

	if err := StageDBusProxy(rt, ctx); err != nil {
		t.Fatalf("StageDBusProxy() error = %v", err)
	}
	if rt.Annotations.DBusProxyInfo == nil || rt.Annotations.DBusProxyInfo.Enable {
		t.Errorf("dbusProxyInfo.enable should be false regardless of request when binary is missing: %+v", rt.Annotations.DBusProxyInfo)
	}
}

func TestStageDBusProxyEnabledAllocatesSocket(t *testing.T) {
	orig := sessionBusReachable
	sessionBusReachable = func() bool { return true }
	defer func() { sessionBusReachable = orig }()

	rt := NewRuntime("/c")
	rt.Annotations.RootfsMode = RootfsNative
	rt.Annotations.Native = &NativeAnnotations{}

	ctx := baseCtx(ref.ArchX86_64)
	ctx.DBusProxyRequested = true
	ctx.DBusProxyBinary = "/usr/bin/ll-dbus-proxy"
	ctx.DBusProxyDir = t.TempDir()
	ctx.DBusFilters.Name = []string{"org.freedesktop.Notifications", "org.freedesktop.Notifications"}

	if err := StageDBusProxy(rt, ctx); err != nil {
		t.Fatalf("StageDBusProxy() error = %v", err)
	}
	info := rt.Annotations.DBusProxyInfo
	if !info.Enable {
		t.Errorf("expected Enable = true")
	}
	if info.ProxyPath == "" {
		t.Errorf("expected a non-empty ProxyPath")
	}
	if len(info.Name) != 1 {
		t.Errorf("filters should be deduplicated, got %v", info.Name)
	}
}

func TestStageDBusProxyDisabledWhenSessionBusUnreachable(t *testing.T) {
	orig := sessionBusReachable
	sessionBusReachable = func() bool { return false }
	defer func() { sessionBusReachable = orig }()

	rt := NewRuntime("/c")
	rt.Annotations.RootfsMode = RootfsNative
	rt.Annotations.Native = &NativeAnnotations{}

	ctx := baseCtx(ref.ArchX86_64)
	ctx.DBusProxyRequested = true
	ctx.DBusProxyBinary = "/usr/bin/ll-dbus-proxy"
	ctx.DBusProxyDir = t.TempDir()

	if err := StageDBusProxy(rt, ctx); err != nil {
		t.Fatalf("StageDBusProxy() error = %v", err)
	}
	if rt.Annotations.DBusProxyInfo.Enable {
		t.Errorf("dbusProxyInfo.enable should be false when no session bus is reachable, even with binary present and requested")
	}
}
