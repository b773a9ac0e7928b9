package sandboxspec

import "github.com/appbox/launcher/pkg/pkginfo"

// StageMount is C6's stageMount: append one mount per permissions.mounts
// entry with a non-empty source and destination. Malformed entries are
// skipped silently (§7 policy: "non-fatal"). Running this twice on the
// same spec with the same permissions is idempotent once DedupMounts is
// applied by the caller (§8).
func StageMount(rt *Runtime, info *pkginfo.PackageInfo) error {
	if info == nil || info.Permissions == nil {
		return nil
	}

	for _, m := range info.Permissions.Mounts {
		if m.Source == "" || m.Destination == "" {
			continue
		}
		typ := MountType(m.Type)
		if typ == "" {
			typ = MountBind
		}
		options := parseOptions(m.Options)
		if options == nil {
			options = ro()
		}
		rt.AppendMount(bindMount(typ, m.Source, m.Destination, options))
	}

	return nil
}
