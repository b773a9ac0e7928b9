// Package launchconfig resolves the launcher's own ambient configuration —
// currently just the WaitMode decided by §9's Open Question — through an
// env-var > config-file > default chain, grounded on
// overthinkos-overthink/ov/runtime_config.go's ResolveRuntime pattern, and
// encoded as TOML via github.com/pelletier/go-toml/v2 (a direct teacher
// dependency).
package launchconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// WaitMode selects between the two mutually-exclusive helper-lifecycle
// strategies identified in SPEC_FULL.md §9.
type WaitMode string

const (
	// WaitModeSync blocks in waitpid for the whole run; Exec after Start
	// returns is an error.
	WaitModeSync WaitMode = "sync"
	// WaitModeDetached forks and returns immediately, leaving the socket
	// open for Exec until the helper exits or Close is called.
	WaitModeDetached WaitMode = "detached"
)

const envWaitMode = "APPBOX_WAIT_MODE"

// Config is the on-disk/env-resolved launcher configuration.
type Config struct {
	WaitMode WaitMode `toml:"wait_mode"`
}

func defaultConfig() Config {
	return Config{WaitMode: WaitModeSync}
}

// ConfigPath returns the TOML config file path under the user's
// .config directory, mirroring overthinkos-overthink/ov's
// os.UserConfigDir()-based layout.
func ConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "appbox", "launch.toml"), nil
}

// Resolve applies the env > config-file > default chain and validates the
// resulting WaitMode.
func Resolve() (Config, error) {
	cfg := defaultConfig()

	path, err := ConfigPath()
	if err == nil {
		if data, readErr := os.ReadFile(path); readErr == nil {
			var fileCfg Config
			if decodeErr := toml.Unmarshal(data, &fileCfg); decodeErr != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", path, decodeErr)
			}
			if fileCfg.WaitMode != "" {
				cfg.WaitMode = fileCfg.WaitMode
			}
		}
	}

	if v := os.Getenv(envWaitMode); v != "" {
		cfg.WaitMode = WaitMode(v)
	}

	switch cfg.WaitMode {
	case WaitModeSync, WaitModeDetached:
	default:
		return Config{}, fmt.Errorf("invalid %s: %q (want %q or %q)", envWaitMode, cfg.WaitMode, WaitModeSync, WaitModeDetached)
	}

	return cfg, nil
}

// Save writes cfg to ConfigPath(), creating parent directories as needed.
// Used by tests and by a future `appbox-run config` subcommand.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
