package ref

import (
	"reflect"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Ref
	}{
		{
			name: "minimal",
			in:   "org.example.App/1.0.0/x86_64",
			want: Ref{AppID: "org.example.App", Version: "1.0.0", Arch: ArchX86_64, Channel: defaultChannel, Module: defaultModule},
		},
		{
			name: "arm64",
			in:   "org.example.App/1.0.0/arm64",
			want: Ref{AppID: "org.example.App", Version: "1.0.0", Arch: ArchArm64, Channel: defaultChannel, Module: defaultModule},
		},
		{
			name: "explicit channel and module",
			in:   "org.example.App/1.0.0/x86_64/stable/devel",
			want: Ref{AppID: "org.example.App", Version: "1.0.0", Arch: ArchX86_64, Channel: "stable", Module: "devel"},
		},
		{
			name: "unknown arch",
			in:   "org.example.App/1.0.0/mips",
			want: Ref{AppID: "org.example.App", Version: "1.0.0", Arch: ArchUnknown, Channel: defaultChannel, Module: defaultModule},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}

			reparsed, err := Parse(got.String())
			if err != nil {
				t.Fatalf("Parse(String()) error = %v", err)
			}
			if reparsed.String() != got.String() {
				t.Errorf("round-trip mismatch: %q != %q", reparsed.String(), got.String())
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{"", "onlyapp", "appid/1.0", "/1.0.0/x86_64"}
	for _, in := range tests {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", in)
		}
	}
}

func TestLess(t *testing.T) {
	a := Ref{AppID: "a", Version: "1.0.0"}
	b := Ref{AppID: "a", Version: "1.2.0"}
	if !Less(a, b) {
		t.Errorf("Less(1.0.0, 1.2.0) = false, want true")
	}
	if Less(b, a) {
		t.Errorf("Less(1.2.0, 1.0.0) = true, want false")
	}
}
