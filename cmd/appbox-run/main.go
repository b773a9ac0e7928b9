// Command appbox-run is the ambient CLI entrypoint (§6.1): a thin cobra
// wrapper around internal/app/sandbox.App. It contains no business logic
// of its own — flags feed sandbox.Params, the rest is the orchestrator's.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/appbox/launcher/internal/app/sandbox"
	"github.com/appbox/launcher/internal/pkg/boxtransport"
	"github.com/appbox/launcher/internal/pkg/cmdline"
	"github.com/appbox/launcher/internal/pkg/launcherrors"
	"github.com/appbox/launcher/internal/pkg/repo/fixture"
	"github.com/appbox/launcher/internal/pkg/sandboxspec"
	"github.com/appbox/launcher/internal/pkg/sylog"
	"github.com/appbox/launcher/pkg/ref"
)

var (
	flagManager = cmdline.NewManager()

	flagRepoRoot     string
	flagFlatpak      bool
	flagDesktopExec  string
	flagDBusProxy    bool
	flagHelperPath   string
	flagLinglongRoot string
	flagLogLevel     string
	flagDBusNames    []string
)

func registerFlags(cmd *cobra.Command) {
	must(flagManager.RegisterFlagForCmd(&cmdline.Flag{
		ID: "repoRoot", Value: &flagRepoRoot, DefaultValue: "",
		Name: "repo-root", Usage: "directory scanned by the fixture repo adapter",
		EnvKeys: []string{"REPO_ROOT"},
	}, cmd))
	must(flagManager.RegisterFlagForCmd(&cmdline.Flag{
		ID: "flatpak", Value: &flagFlatpak, DefaultValue: false,
		Name: "flatpak", Usage: "treat the ref as a Flatpak-backed app",
		EnvKeys: []string{"FLATPAK"},
	}, cmd))
	must(flagManager.RegisterFlagForCmd(&cmdline.Flag{
		ID: "desktopExec", Value: &flagDesktopExec, DefaultValue: "",
		Name: "desktop-exec", Usage: "override the .desktop Exec= value",
		EnvKeys: []string{"DESKTOP_EXEC"},
	}, cmd))
	must(flagManager.RegisterFlagForCmd(&cmdline.Flag{
		ID: "dbusProxy", Value: &flagDBusProxy, DefaultValue: false,
		Name: "dbus-proxy", Usage: "route the session bus through ll-dbus-proxy",
		EnvKeys: []string{"DBUS_PROXY"},
	}, cmd))
	must(flagManager.RegisterFlagForCmd(&cmdline.Flag{
		ID: "dbusNames", Value: &flagDBusNames, DefaultValue: []string{},
		Name: "dbus-name", Usage: "dbus name filter, may be repeated",
	}, cmd))
	must(flagManager.RegisterFlagForCmd(&cmdline.Flag{
		ID: "helperPath", Value: &flagHelperPath, DefaultValue: boxtransport.DefaultHelperPath,
		Name: "helper-path", Usage: "path to the ll-box-equivalent sandbox helper",
		EnvKeys: []string{"HELPER_PATH"},
	}, cmd))
	must(flagManager.RegisterFlagForCmd(&cmdline.Flag{
		ID: "linglongRoot", Value: &flagLinglongRoot, DefaultValue: "",
		Name: "linglong-root", Usage: "override $LINGLONG_ROOT for this run",
		EnvKeys: []string{"LINGLONG_ROOT"},
	}, cmd))
	must(flagManager.RegisterFlagForCmd(&cmdline.Flag{
		ID: "logLevel", Value: &flagLogLevel, DefaultValue: "info",
		Name: "log-level", Usage: "one of debug, info, warn, error",
		EnvKeys: []string{"LOG_LEVEL"},
	}, cmd))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "appbox-run",
		Short: "Compose and launch an application sandbox",
	}

	runCmd := &cobra.Command{
		Use:   "run <appId/version/arch>",
		Short: "Resolve, compose, and start a sandbox for one app ref",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	execCmd := &cobra.Command{
		Use:   "exec <container-id> <cmd...>",
		Short: "Not supported standalone: always fails; use App.Exec in the process that ran the sandbox",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runExec,
	}

	registerFlags(runCmd)
	registerFlags(execCmd)
	root.AddCommand(runCmd, execCmd)
	return root
}

func applyLogLevel() {
	switch flagLogLevel {
	case "debug":
		sylog.SetLevel(sylog.DebugLevel)
	case "warn":
		sylog.SetLevel(sylog.WarnLevel)
	case "error":
		sylog.SetLevel(sylog.ErrorLevel)
	default:
		sylog.SetLevel(sylog.InfoLevel)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := flagManager.UpdateCmdFlagFromEnv(cmd); err != nil {
		return err
	}
	applyLogLevel()

	r, err := ref.Parse(args[0])
	if err != nil {
		return fmt.Errorf("parsing ref: %w", err)
	}

	if flagRepoRoot == "" {
		return fmt.Errorf("--repo-root is required")
	}
	adapter, err := fixture.Scan(flagRepoRoot)
	if err != nil {
		return fmt.Errorf("scanning repo root: %w", err)
	}

	dbusFilters := sandboxspec.DBusFilters{Name: flagDBusNames}

	app, err := sandbox.Load(sandbox.Params{
		Repo:                adapter,
		Ref:                 r,
		IsFlatpak:           flagFlatpak,
		DesktopExecOverride: flagDesktopExec,
		DBusProxyRequested:  flagDBusProxy,
		DBusProxyBinary:     resolveDBusProxyBinary(),
		DBusFilters:         dbusFilters,
		LinglongRoot:        flagLinglongRoot,
	})
	if err != nil {
		sylog.Errorf("load failed (%s): %v", launcherrors.Kind(err), err)
		return err
	}

	sylog.Infof("starting container %s", app.ContainerID())
	if err := app.Start(flagHelperPath); err != nil {
		sylog.Errorf("start failed (%s): %v", launcherrors.Kind(err), err)
		_ = app.Close()
		return err
	}

	return nil
}

func runExec(cmd *cobra.Command, args []string) error {
	if err := flagManager.UpdateCmdFlagFromEnv(cmd); err != nil {
		return err
	}
	applyLogLevel()

	containerID := args[0]
	sylog.Warningf("exec against a live App requires the process that called run; %s is a placeholder for out-of-process wiring", containerID)
	return fmt.Errorf("exec: not supported as a standalone command in this CLI; use the App.Exec API from the owning process")
}

func resolveDBusProxyBinary() string {
	const path = "/usr/bin/ll-dbus-proxy"
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
