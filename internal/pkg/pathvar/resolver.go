// Package pathvar expands the launcher's small set of path variables
// ($APP_ROOT_PATH, $RUNTIME_ROOT_PATH, $APP_ROOT_SHARE_PATH, $LINGLONG_ROOT)
// inside mount source/destination strings loaded from info.json.
package pathvar

import (
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
)

const defaultLinglongRoot = "/persistent/linglong"

// Resolver carries the bound values for one app run and expands variable
// references against them.
type Resolver struct {
	AppRootPath     string
	RuntimeRootPath string
	LinglongRoot    string
}

// New builds a Resolver for one (appRoot, runtimeRoot) pair, reading
// $LINGLONG_ROOT from the environment (defaulting to defaultLinglongRoot)
// exactly as §4.5 specifies.
func New(appRootPath, runtimeRootPath string) Resolver {
	root := os.Getenv("LINGLONG_ROOT")
	if root == "" {
		root = defaultLinglongRoot
	}
	return Resolver{
		AppRootPath:     appRootPath,
		RuntimeRootPath: runtimeRootPath,
		LinglongRoot:    root,
	}
}

// AppRootSharePath is $APP_ROOT_SHARE_PATH = <linglong-root>/entries/share.
func (r Resolver) AppRootSharePath() string {
	return filepath.Join(r.LinglongRoot, "entries", "share")
}

// Expand substitutes every recognized $VAR reference in s. Unknown
// variables are left untouched by os.Expand's mapping function returning
// the original token back out (with its sigil stripped by os.Expand,
// mirroring shell semantics for the variables we don't know about would
// require a raw pass, so instead we explicitly whitelist the four names).
func (r Resolver) Expand(s string) string {
	return os.Expand(s, func(name string) string {
		switch name {
		case "APP_ROOT_PATH":
			return r.AppRootPath
		case "RUNTIME_ROOT_PATH":
			return r.RuntimeRootPath
		case "APP_ROOT_SHARE_PATH":
			return r.AppRootSharePath()
		case "LINGLONG_ROOT":
			return r.LinglongRoot
		default:
			return "$" + name
		}
	})
}

// SecureJoinUnder joins elem onto base using filepath-securejoin, so a
// resolved mount source under an untrusted layer root or per-app home can
// never escape via "..".
func SecureJoinUnder(base string, elem ...string) (string, error) {
	rel := filepath.Join(elem...)
	return securejoin.SecureJoin(base, rel)
}
