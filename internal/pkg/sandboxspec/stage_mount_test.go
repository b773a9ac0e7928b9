package sandboxspec

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/appbox/launcher/pkg/pkginfo"
)

func TestStageMountHonorsOptionsAndSkipsMalformed(t *testing.T) {
	rt := NewRuntime("/c")
	rt.Annotations.RootfsMode = RootfsNative
	rt.Annotations.Native = &NativeAnnotations{}

	info := &pkginfo.PackageInfo{
		Permissions: &pkginfo.Permissions{
			Mounts: []pkginfo.Mount{
				{Source: "/host/a", Destination: "/a", Options: "rw,rbind"},
				{Source: "/host/b", Destination: "/b"},
				{Source: "", Destination: "/c"},
				{Source: "/host/d", Destination: ""},
			},
		},
	}

	if err := StageMount(rt, info); err != nil {
		t.Fatalf("StageMount() error = %v", err)
	}

	if len(rt.Mounts) != 2 {
		t.Fatalf("StageMount() produced %d mounts, want 2: %+v", len(rt.Mounts), rt.Mounts)
	}
	assert.DeepEqual(t, rt.Mounts[0].Options, []string{"rw", "rbind"})
	assert.DeepEqual(t, rt.Mounts[1].Options, []string{"ro", "rbind"})
}

func TestStageMountIdempotentAfterDedup(t *testing.T) {
	info := &pkginfo.PackageInfo{
		Permissions: &pkginfo.Permissions{
			Mounts: []pkginfo.Mount{
				{Source: "/host/a", Destination: "/a"},
			},
		},
	}

	rt := NewRuntime("/c")
	rt.Annotations.RootfsMode = RootfsNative
	rt.Annotations.Native = &NativeAnnotations{}

	if err := StageMount(rt, info); err != nil {
		t.Fatal(err)
	}
	if err := StageMount(rt, info); err != nil {
		t.Fatal(err)
	}

	if len(rt.Mounts) != 2 {
		t.Fatalf("expected 2 raw mounts before dedup, got %d", len(rt.Mounts))
	}

	deduped := DedupMounts(rt.Mounts)
	if len(deduped) != 1 {
		t.Errorf("DedupMounts() = %d entries, want 1: %+v", len(deduped), deduped)
	}
}
