// Package sandbox is C10, the orchestrator: it owns the composed Runtime
// spec tree, the container workdir, and the helper transport session, and
// drives the fixed §4.10 stage order between Load and Start.
package sandbox

import (
	"context"
	"fmt"
	"os"

	"github.com/appbox/launcher/internal/pkg/boxtransport"
	"github.com/appbox/launcher/internal/pkg/configtmpl"
	"github.com/appbox/launcher/internal/pkg/container"
	"github.com/appbox/launcher/internal/pkg/desktopentry"
	"github.com/appbox/launcher/internal/pkg/launchconfig"
	"github.com/appbox/launcher/internal/pkg/launcherrors"
	"github.com/appbox/launcher/internal/pkg/pathvar"
	"github.com/appbox/launcher/internal/pkg/repo"
	"github.com/appbox/launcher/internal/pkg/rootless"
	"github.com/appbox/launcher/internal/pkg/sandboxspec"
	"github.com/appbox/launcher/pkg/pkginfo"
	"github.com/appbox/launcher/pkg/ref"
)

// Params is everything a caller supplies for one run: the app reference,
// run-time toggles, and the collaborators §6 lists as "consumed (external
// collaborators)".
type Params struct {
	Repo                repo.Adapter
	Ref                 ref.Ref
	IsFlatpak           bool
	FlatpakAppPath      string
	FlatpakRuntimePath  string
	DesktopExecOverride string
	DBusProxyRequested  bool
	DBusProxyBinary     string
	DBusFilters         sandboxspec.DBusFilters
	LinglongRoot        string
}

// App owns the spec tree, the container handle, and the boxtransport
// session for one run, matching §4.10's Go-native shape.
type App struct {
	rt        *sandboxspec.Runtime
	container *container.Handle
	session   *boxtransport.Session
	waitMode  launchconfig.WaitMode
}

// Load resolves p.Ref against the repo, loads its package descriptor,
// materializes the per-app YAML config, assigns a container handle, and
// composes the full Runtime spec by driving the fixed stage order. It
// does not start the helper — call Start for that.
func Load(p Params) (*App, error) {
	cfg, err := launchconfig.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolving launch config: %w", err)
	}

	layerRoot, err := p.Repo.RootOfLayer(p.Ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", launcherrors.ErrLayerNotFound, err)
	}

	info, err := pkginfo.RequireLoad(layerRoot, p.IsFlatpak)
	if err != nil {
		return nil, err
	}

	uid, err := rootless.Getuid()
	if err != nil {
		return nil, fmt.Errorf("resolving uid: %w", err)
	}
	gid, err := rootless.Getgid()
	if err != nil {
		return nil, fmt.Errorf("resolving gid: %w", err)
	}

	home := os.Getenv("HOME")
	if home == "" {
		if u, lookupErr := rootless.LookupByUID(uid); lookupErr == nil {
			home = u.Home
		}
	}

	rendered, err := configtmpl.Render(home, info, string(p.Ref.Arch))
	if err != nil {
		return nil, err
	}
	if err := configtmpl.Write(home, p.Ref.AppID, rendered); err != nil {
		return nil, err
	}

	appRoot := layerRoot
	runtimePath := p.FlatpakRuntimePath
	if p.IsFlatpak {
		appRoot = p.FlatpakAppPath
	}

	needsOverlay := info.Overlayfs != nil && len(info.Overlayfs.Mounts) > 0
	c, err := container.New(p.LinglongRoot, needsOverlay)
	if err != nil {
		return nil, fmt.Errorf("allocating container: %w", err)
	}

	// Held for the lifetime of the App (released in Close) so no second
	// process can compose into or tear down this workdir concurrently.
	if err := c.Lock(); err != nil {
		return nil, fmt.Errorf("locking container workdir: %w", err)
	}
	loaded := false
	defer func() {
		if !loaded {
			c.Unlock()
		}
	}()

	resolver := pathvar.New(appRoot, runtimePath)
	ctx := &sandboxspec.ComposeCtx{
		Ref:                 p.Ref,
		Info:                info,
		Resolver:            resolver,
		AppRoot:             appRoot,
		IsFlatpak:           p.IsFlatpak,
		UID:                 uid,
		GID:                 gid,
		Home:                home,
		DesktopExecOverride: p.DesktopExecOverride,
		DBusProxyRequested:  p.DBusProxyRequested,
		DBusProxyBinary:     p.DBusProxyBinary,
		DBusProxyDir:        c.WorkDir,
		DBusFilters:         p.DBusFilters,
		WorkDir:             c.WorkDir,
	}

	rt := sandboxspec.NewRuntime(c.RootPath())

	if err := sandboxspec.StageRootfs(rt, ctx, runtimePath); err != nil {
		return nil, err
	}
	if err := sandboxspec.StageSystem(rt, ctx); err != nil {
		return nil, err
	}
	if err := sandboxspec.StageHost(rt, ctx); err != nil {
		return nil, err
	}
	if err := sandboxspec.StageUser(rt, ctx, userEnvMap(), os.Getenv("PATH"), os.Getenv("XDG_DATA_DIRS")); err != nil {
		return nil, err
	}
	if err := sandboxspec.StageMount(rt, info); err != nil {
		return nil, err
	}
	if err := sandboxspec.FixMount(rt, ctx, runtimePath); err != nil {
		return nil, err
	}
	rt.Mounts = sandboxspec.DedupMounts(rt.Mounts)
	if rt.Annotations.Overlayfs != nil {
		rt.Annotations.Overlayfs.Mounts = sandboxspec.DedupMounts(rt.Annotations.Overlayfs.Mounts)
	}

	if err := os.WriteFile(c.EnvFilePath(), []byte(envFileContents(rt)), 0o644); err != nil {
		return nil, fmt.Errorf("writing env file: %w", err)
	}
	rt.AppendMount(sandboxspec.Mount{
		Type:        sandboxspec.MountBind,
		Source:      c.EnvFilePath(),
		Destination: "/run/app/env",
		Options:     []string{"ro", "rbind"},
	})

	if err := resolveDesktopExec(rt, ctx, layerRoot); err != nil {
		return nil, err
	}

	if err := sandboxspec.StageDBusProxy(rt, ctx); err != nil {
		return nil, err
	}

	loaded = true
	return &App{rt: rt, container: c, waitMode: cfg.WaitMode}, nil
}

// userEnvMap snapshots the launcher's own environment so StageUser can
// apply its admit-list filter (§4.6 step 5).
func userEnvMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}

func envFileContents(rt *sandboxspec.Runtime) string {
	var out string
	for _, kv := range rt.Process.Env {
		out += kv + "\n"
	}
	return out
}

// resolveDesktopExec is §4.6's "Env file & desktop exec" step: locate the
// app's .desktop file, resolve process.args from its Exec= line (or the
// override), strip a trailing field code, and apply a leading env prefix.
func resolveDesktopExec(rt *sandboxspec.Runtime, ctx *sandboxspec.ComposeCtx, layerRoot string) error {
	rawExec := ctx.DesktopExecOverride
	if rawExec == "" {
		path, err := desktopentry.FindDesktopFile(ctx.AppRoot)
		if err != nil {
			return fmt.Errorf("locating desktop entry: %w", err)
		}
		if path == "" {
			return launcherrors.ErrNoDesktopEntry
		}
		rawExec, err = desktopentry.ReadExec(path)
		if err != nil {
			return fmt.Errorf("reading desktop entry: %w", err)
		}
	}
	if rawExec == "" {
		return launcherrors.ErrNoDesktopEntry
	}

	parsed, err := desktopentry.ParseExec(rawExec)
	if err != nil {
		return fmt.Errorf("parsing desktop Exec: %w", err)
	}

	args := parsed.Args
	if !desktopentry.HasLegacyLayout(layerRoot) {
		args = desktopentry.StripLauncherWrapper(args)
	}

	rt.Process.Args = args
	if parsed.EnvKey != "" {
		rt.SetEnv(parsed.EnvKey, parsed.EnvVal)
	}
	return nil
}

// Start forks the helper and ships the composed spec over a fresh
// boxtransport.Session. In sync WaitMode it blocks until the helper
// exits; in detached mode it returns as soon as the spec frame is
// written, leaving Exec available until Close.
func (a *App) Start(helperPath string) error {
	a.session = boxtransport.New(helperPath)
	pid, err := a.session.Start(a.rt)
	if err != nil {
		return err
	}
	if err := a.container.WritePidFile(pid); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}

	if a.waitMode == launchconfig.WaitModeSync {
		if _, err := a.session.Wait(); err != nil {
			return err
		}
		return a.session.Close()
	}

	// Detached: a background goroutine owns the wait and closes the
	// session once the helper exits.
	session := a.session
	go func() {
		_, _ = session.Wait()
		_ = session.Close()
	}()
	return nil
}

// Exec injects a follow-up command into the running sandbox. Valid only
// in detached WaitMode, after Start has returned.
func (a *App) Exec(ctx context.Context, cmd, envCSV, cwd string) error {
	if a.waitMode == launchconfig.WaitModeSync {
		return fmt.Errorf("exec: %w: session runs in sync wait mode and has already been waited on", launcherrors.ErrSessionClosed)
	}
	return a.session.ExecCommand(ctx, cmd, envCSV, cwd)
}

// Close releases the helper session, unlocks the container workdir taken
// by Load, and removes it.
func (a *App) Close() error {
	var sessionErr error
	if a.session != nil {
		sessionErr = a.session.Close()
	}
	if err := a.container.Unlock(); err != nil && sessionErr == nil {
		sessionErr = fmt.Errorf("unlocking container workdir: %w", err)
	}
	if err := a.container.Remove(); err != nil && sessionErr == nil {
		return err
	}
	return sessionErr
}

// Runtime exposes the composed spec tree, mainly for tests.
func (a *App) Runtime() *sandboxspec.Runtime { return a.rt }

// ContainerID returns the assigned container uuid.
func (a *App) ContainerID() string { return a.container.ID }
