package boxtransport

import "testing"

func TestSplitEnvCSV(t *testing.T) {
	got := splitEnvCSV("A=1,,B=2")
	want := []string{"A=1", "B=2"}
	if len(got) != len(want) {
		t.Fatalf("splitEnvCSV() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitEnvCSVEmpty(t *testing.T) {
	if got := splitEnvCSV(""); got != nil {
		t.Errorf("splitEnvCSV(\"\") = %v, want nil", got)
	}
}

func TestAllocatePTYRoundtrip(t *testing.T) {
	ptmx, tty, err := AllocatePTY()
	if err != nil {
		t.Skipf("no pty support in this environment: %v", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	if ptmx.Name() == "" || tty.Name() == "" {
		t.Errorf("expected non-empty pty/tty device names")
	}
}
