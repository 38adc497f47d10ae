// ABOUTME: Tests for attune version in both output formats
// ABOUTME: Release stamps come from SetVersion; runtime fields are checked for presence

package commands

import (
	"bytes"
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/harper/attune/internal/storage/sqlite"
)

func runVersion(t *testing.T, format string) string {
	t.Helper()
	origInfo, origFormat := versionInfo, outputFormat
	t.Cleanup(func() { versionInfo, outputFormat = origInfo, origFormat })

	SetVersion("0.4.0", "f00dcafe", "2026-09-30")
	outputFormat = format

	cmd := NewVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	return out.String()
}

func TestVersionTable(t *testing.T) {
	out := runVersion(t, "table")
	for _, want := range []string{
		"attune  0.4.0",
		"commit  f00dcafe",
		"built   2026-09-30",
		runtime.Version(),
		"schema  v",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionJSON(t *testing.T) {
	var info VersionInfo
	if err := json.Unmarshal([]byte(runVersion(t, "json")), &info); err != nil {
		t.Fatalf("decoding version JSON: %v", err)
	}
	if info.Version != "0.4.0" || info.Commit != "f00dcafe" || info.Date != "2026-09-30" {
		t.Errorf("release stamps = %+v", info)
	}
	if info.SchemaVersion != sqlite.SchemaVersion {
		t.Errorf("schema_version = %d, want %d", info.SchemaVersion, sqlite.SchemaVersion)
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("platform = %q", info.Platform)
	}
}

func TestBuildInfoKeepsReleaseCommit(t *testing.T) {
	orig := versionInfo
	defer func() { versionInfo = orig }()

	SetVersion("1.0.0", "deadbeef", "2026-01-01")
	if got := buildInfo().Commit; got != "deadbeef" {
		t.Errorf("Commit = %q, want the release stamp", got)
	}

	SetVersion("dev", "none", "unknown")
	if got := buildInfo().Commit; got == "" {
		t.Error("Commit should never be empty")
	}
}
