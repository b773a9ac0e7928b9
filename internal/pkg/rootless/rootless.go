// Package rootless resolves the invoking user's uid/gid/home/name, adapted
// from the teacher's internal/pkg/util/rootless package: its env-var
// override pattern is kept, but the fakeroot re-exec machinery
// (ExecWithFakeroot, RunInMountNS, InNS) is dropped since this launcher
// execs the sandbox helper directly (C8) rather than re-executing itself
// through an external "starter" binary — see DESIGN.md's "Deleted teacher
// source trees" section.
package rootless

import (
	"fmt"
	"os"
	"strconv"

	"github.com/astromechza/etcpwdparse"
)

// Getuid returns the real uid to use inside the sandbox, honoring the same
// _CONTAINERS_ROOTLESS_UID override the teacher's rootless.Getuid supports
// (useful for tests and for nested-launcher scenarios).
func Getuid() (int, error) {
	if s, ok := os.LookupEnv("_CONTAINERS_ROOTLESS_UID"); ok {
		return strconv.Atoi(s)
	}
	return os.Getuid(), nil
}

// Getgid returns the real gid to use inside the sandbox, mirroring Getuid.
func Getgid() (int, error) {
	if s, ok := os.LookupEnv("_CONTAINERS_ROOTLESS_GID"); ok {
		return strconv.Atoi(s)
	}
	return os.Getgid(), nil
}

// User describes the subset of /etc/passwd fields stageUser needs when the
// environment doesn't already supply $HOME or a username.
type User struct {
	Name string
	Home string
	UID  int
	GID  int
}

// LookupByUID resolves uid against /etc/passwd, used as a fallback when
// $HOME is unset in the launcher's own environment — the same situation
// hakurei's hst.ContainerConfig handles by carrying Home/Username/Shell as
// independently resolvable fields instead of assuming a complete
// environment.
func LookupByUID(uid int) (User, error) {
	cache, err := etcpwdparse.NewLoadedEtcPwdCache()
	if err != nil {
		return User{}, fmt.Errorf("loading /etc/passwd: %w", err)
	}
	entry, ok := cache.LookupUserByUid(uid)
	if !ok {
		return User{}, fmt.Errorf("no /etc/passwd entry for uid %d", uid)
	}
	return User{
		Name: entry.Username(),
		Home: entry.Homedir(),
		UID:  uid,
		GID:  entry.Gid(),
	}, nil
}
