// Package ref parses and canonicalizes application package references of
// the form "appId/version/arch[/channel[/module]]".
package ref

import (
	"fmt"
	"strings"

	"github.com/blang/semver/v4"
)

// Arch is the target CPU architecture of a Ref.
type Arch string

const (
	ArchArm64   Arch = "arm64"
	ArchX86_64  Arch = "x86_64"
	ArchUnknown Arch = "unknown"
)

// ParseArch maps a raw string onto one of the known Arch values, defaulting
// to ArchUnknown rather than failing — callers that care abort later with
// launcherrors.ErrUnsupportedArch once they know an unknown arch matters.
func ParseArch(s string) Arch {
	switch s {
	case string(ArchArm64):
		return ArchArm64
	case string(ArchX86_64):
		return ArchX86_64
	default:
		return ArchUnknown
	}
}

const (
	defaultChannel = "linglong"
	defaultModule  = "runtime"
)

// Ref identifies a specific build of a package: the app id, its version,
// the target architecture, and the (usually default) channel/module pair.
type Ref struct {
	AppID   string
	Version string
	Arch    Arch
	Channel string
	Module  string
}

// Parse splits a canonical "appId/version/arch[/channel[/module]]" string
// into a Ref. Channel and module default when omitted.
func Parse(s string) (Ref, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 3 {
		return Ref{}, fmt.Errorf("ref %q: need at least appId/version/arch", s)
	}

	r := Ref{
		AppID:   parts[0],
		Version: parts[1],
		Arch:    ParseArch(parts[2]),
		Channel: defaultChannel,
		Module:  defaultModule,
	}
	if r.AppID == "" || r.Version == "" {
		return Ref{}, fmt.Errorf("ref %q: appId and version must be non-empty", s)
	}
	if len(parts) > 3 && parts[3] != "" {
		r.Channel = parts[3]
	}
	if len(parts) > 4 && parts[4] != "" {
		r.Module = parts[4]
	}

	// Validate the version is well-formed enough to order, without
	// rejecting the many packages that ship a non-strict-semver version
	// string (e.g. "1.0.0.1"); parsing failure here is informational only.
	if _, err := semver.ParseTolerant(r.Version); err != nil {
		// Not fatal: the version field is still carried verbatim.
		_ = err
	}

	return r, nil
}

// String renders the canonical five-part local-ref form. Channel/module
// are always included, so a three-part s comes back from String(Parse(s))
// with the defaults appended, and Parse(r.String()).String() equals
// r.String().
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", r.AppID, r.Version, r.Arch, r.Channel, r.Module)
}

// Less orders two Refs of the same AppID by semver-tolerant version
// comparison, falling back to a lexical compare when either version fails
// to parse. Used by Repo adapters implementing latestOfRef.
func Less(a, b Ref) bool {
	av, aerr := semver.ParseTolerant(a.Version)
	bv, berr := semver.ParseTolerant(b.Version)
	if aerr == nil && berr == nil {
		return av.LT(bv)
	}
	return a.Version < b.Version
}
