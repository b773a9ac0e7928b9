package launchconfig

import (
	"os"
	"testing"
)

func withTempConfigHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, hadOld := os.LookupEnv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", dir)
	t.Cleanup(func() {
		if hadOld {
			os.Setenv("XDG_CONFIG_HOME", old)
		} else {
			os.Unsetenv("XDG_CONFIG_HOME")
		}
	})
	return dir
}

func TestResolveDefaultsToSync(t *testing.T) {
	withTempConfigHome(t)
	os.Unsetenv(envWaitMode)

	cfg, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.WaitMode != WaitModeSync {
		t.Errorf("WaitMode = %q, want %q", cfg.WaitMode, WaitModeSync)
	}
}

func TestResolveEnvOverridesFile(t *testing.T) {
	withTempConfigHome(t)
	if err := Save(Config{WaitMode: WaitModeDetached}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cfg, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.WaitMode != WaitModeDetached {
		t.Errorf("WaitMode from file = %q, want %q", cfg.WaitMode, WaitModeDetached)
	}

	os.Setenv(envWaitMode, string(WaitModeSync))
	defer os.Unsetenv(envWaitMode)

	cfg, err = Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.WaitMode != WaitModeSync {
		t.Errorf("env-overridden WaitMode = %q, want %q", cfg.WaitMode, WaitModeSync)
	}
}

func TestResolveInvalidWaitMode(t *testing.T) {
	withTempConfigHome(t)
	os.Setenv(envWaitMode, "sideways")
	defer os.Unsetenv(envWaitMode)

	if _, err := Resolve(); err == nil {
		t.Errorf("Resolve() expected error for invalid wait mode")
	}
}
