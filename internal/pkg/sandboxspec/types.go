// Package sandboxspec holds the Runtime spec tree (§3 "Runtime (spec
// root)") and the composer stages (§4.6) that populate it. It is the core
// of the launcher: everything else in this module exists to feed it inputs
// or ship its output to the helper process.
package sandboxspec

import (
	"github.com/opencontainers/runtime-spec/specs-go"
)

// MountType is the tagged variant for a Mount's type field (§9 design
// note: "explicit tagged variants for rootfsMode and Mount.type").
type MountType string

const (
	MountBind  MountType = "bind"
	MountTmpfs MountType = "tmpfs"
)

// Mount is one spec-tree mount entry.
type Mount struct {
	Type        MountType `json:"type,omitempty"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Options     []string  `json:"options,omitempty"`
}

// IdMap reuses the canonical OCI runtime-spec LinuxIDMapping type, since
// the {hostId, containerId, size} tuple in §3 is structurally identical
// (see SPEC_FULL.md DOMAIN STACK).
type IdMap = specs.LinuxIDMapping

// Process is the composed process record: args, env list, and cwd.
type Process struct {
	Args []string `json:"args"`
	Env  []string `json:"env,omitempty"`
	Cwd  string   `json:"cwd,omitempty"`
}

// RootfsMode is the tagged variant for Annotations.RootfsMode.
type RootfsMode string

const (
	RootfsNative    RootfsMode = "native"
	RootfsOverlayfs RootfsMode = "overlayfs"
)

// NativeAnnotations carries the native-mode mount list.
type NativeAnnotations struct {
	Mounts []Mount `json:"mounts,omitempty"`
}

// OverlayfsAnnotations carries the fuse-overlay mount list and the three
// overlay directories used by the helper to construct it.
type OverlayfsAnnotations struct {
	LowerParent string  `json:"lowerParent"`
	Upper       string  `json:"upper"`
	Workdir     string  `json:"workdir"`
	Mounts      []Mount `json:"mounts,omitempty"`
}

// DBusProxyInfo is the annotation populated by stageDBusProxy.
type DBusProxyInfo struct {
	Enable    bool     `json:"enable"`
	AppID     string   `json:"appId,omitempty"`
	BusType   string   `json:"busType,omitempty"`
	ProxyPath string   `json:"proxyPath,omitempty"`
	Name      []string `json:"name,omitempty"`
	Path      []string `json:"path,omitempty"`
	Interface []string `json:"interface,omitempty"`
}

// Annotations is the rootfs-mode-tagged side channel §3 describes.
// Exactly one of Native/Overlayfs is populated, matching RootfsMode.
type Annotations struct {
	ContainerRootPath string                `json:"containerRootPath,omitempty"`
	RootfsMode        RootfsMode            `json:"rootfsMode"`
	Native            *NativeAnnotations    `json:"native,omitempty"`
	Overlayfs         *OverlayfsAnnotations `json:"overlayfs,omitempty"`
	DBusProxyInfo     *DBusProxyInfo        `json:"dbusProxyInfo,omitempty"`
}

// Linux carries the id-map pair every spec must end up with.
type Linux struct {
	UIDMappings []IdMap `json:"uidMappings,omitempty"`
	GIDMappings []IdMap `json:"gidMappings,omitempty"`
}

// Root is the spec's rootfs path, matching the teacher's minimalSpec()
// shape (specs.Root{Path: "rootfs"}).
type Root struct {
	Path string `json:"path"`
}

// Runtime is the spec root (§3): the full wire document handed to the
// helper over the socket.
type Runtime struct {
	Root        Root        `json:"root"`
	Process     Process     `json:"process"`
	Mounts      []Mount     `json:"mounts,omitempty"`
	Linux       Linux       `json:"linux"`
	Annotations Annotations `json:"annotations"`
}

// NewRuntime returns a Runtime seeded the way the teacher's minimalSpec()
// seeds an OCI spec: an empty mount list and a process with a safe
// fallback shell, generally overwritten once desktop-exec resolution runs.
func NewRuntime(containerRootPath string) *Runtime {
	return &Runtime{
		Root:    Root{Path: "rootfs"},
		Process: Process{Args: []string{"sh"}, Cwd: "/"},
		Mounts:  []Mount{},
		Annotations: Annotations{
			ContainerRootPath: containerRootPath,
		},
	}
}

// activeMountsPtr returns whichever mount slice the current RootfsMode
// targets, matching §4.6's "each appends to either runtime.mounts (native)
// or annotations.overlayfs.mounts (fuse)".
func (rt *Runtime) activeMountsPtr() *[]Mount {
	if rt.Annotations.RootfsMode == RootfsOverlayfs && rt.Annotations.Overlayfs != nil {
		return &rt.Annotations.Overlayfs.Mounts
	}
	return &rt.Mounts
}

// AppendMount appends m to whichever mount list is currently active.
// Per §4.6, a later entry with the same destination as an earlier one is
// intentionally allowed to shadow it — no dedup happens here.
func (rt *Runtime) AppendMount(m Mount) {
	p := rt.activeMountsPtr()
	*p = append(*p, m)
}

// SetEnv sets (or replaces) a single K=V entry in rt.Process.Env,
// preserving "last-wins" / "at most one entry per name" (§3 invariant).
func (rt *Runtime) SetEnv(key, value string) {
	entry := key + "=" + value
	for i, e := range rt.Process.Env {
		if envKey(e) == key {
			rt.Process.Env[i] = entry
			return
		}
	}
	rt.Process.Env = append(rt.Process.Env, entry)
}

func envKey(kv string) string {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i]
		}
	}
	return kv
}

// EnvValue returns the current value bound to key, and whether it is set.
func (rt *Runtime) EnvValue(key string) (string, bool) {
	for _, e := range rt.Process.Env {
		if envKey(e) == key {
			return e[len(key)+1:], true
		}
	}
	return "", false
}
