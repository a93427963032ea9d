package version

import (
	"strings"
	"testing"
)

// setBuildInfo swaps the package build variables and restores them when
// the test ends.
func setBuildInfo(t *testing.T, version, commit, buildTime string) {
	t.Helper()
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	t.Cleanup(func() {
		Version = origVersion
		Commit = origCommit
		BuildTime = origBuildTime
	})
	Version = version
	Commit = commit
	BuildTime = buildTime
}

func TestString_Release(t *testing.T) {
	setBuildInfo(t, "0.4.1", "9f2ce81", "2026-08-30T08:15:00Z")

	want := "0.4.1 (9f2ce81) built 2026-08-30T08:15:00Z"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestString_DevBuild(t *testing.T) {
	setBuildInfo(t, "dev", "unknown", "unknown")

	got := String()
	for _, part := range []string{"dev", "unknown", "built", "(", ")"} {
		if !strings.Contains(got, part) {
			t.Errorf("String() = %q, missing %q", got, part)
		}
	}
}

func TestBuildVariablesNonEmpty(t *testing.T) {
	// ldflags may override these, but they must never be blank
	if Version == "" {
		t.Error("Version is empty")
	}
	if Commit == "" {
		t.Error("Commit is empty")
	}
	if BuildTime == "" {
		t.Error("BuildTime is empty")
	}
}
