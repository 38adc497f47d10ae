// ABOUTME: Tests for the install-skill command
// ABOUTME: Verifies skill installation, confirmation handling, and file content

package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runInstallSkill(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	cmd := NewInstallSkillCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Command execution failed: %v", err)
	}
	return output.String()
}

func TestNewInstallSkillCmd(t *testing.T) {
	cmd := NewInstallSkillCmd()

	if cmd.Use != "install-skill" {
		t.Errorf("Use = %q, want %q", cmd.Use, "install-skill")
	}
	yesFlag := cmd.Flags().Lookup("yes")
	if yesFlag == nil {
		t.Fatal("--yes flag should exist")
	}
	if yesFlag.Shorthand != "y" {
		t.Errorf("--yes shorthand = %q, want %q", yesFlag.Shorthand, "y")
	}
}

func TestInstallSkill_WritesEmbeddedFile(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	out := runInstallSkill(t, "", "--yes")
	if !strings.Contains(out, "Installed attune skill successfully") {
		t.Errorf("Output should contain success message, got: %s", out)
	}

	content, err := os.ReadFile(filepath.Join(tmpHome, ".claude", "skills", "attune", "SKILL.md"))
	if err != nil {
		t.Fatalf("Failed to read installed SKILL.md: %v", err)
	}
	for _, expected := range []string{
		"name: attune",
		"mcp__attune__record_event",
		"mcp__attune__predict_tasks",
		"mcp__attune__resolve_reference",
		"mcp__attune__detect_mood",
	} {
		if !strings.Contains(string(content), expected) {
			t.Errorf("SKILL.md should contain %q", expected)
		}
	}
}

func TestInstallSkill_Overwrites(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	skillDir := filepath.Join(tmpHome, ".claude", "skills", "attune")
	if err := os.MkdirAll(skillDir, 0755); err != nil {
		t.Fatal(err)
	}
	skillPath := filepath.Join(skillDir, "SKILL.md")
	if err := os.WriteFile(skillPath, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	out := runInstallSkill(t, "", "--yes")
	if !strings.Contains(out, "already exists") {
		t.Errorf("Output should warn about overwrite, got: %s", out)
	}
	content, _ := os.ReadFile(skillPath)
	if string(content) == "old" {
		t.Error("SKILL.md was not overwritten")
	}
}

func TestInstallSkill_Declined(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	out := runInstallSkill(t, "n\n")
	if !strings.Contains(out, "Installation cancelled") {
		t.Errorf("Output should report cancellation, got: %s", out)
	}
	if _, err := os.Stat(filepath.Join(tmpHome, ".claude")); !os.IsNotExist(err) {
		t.Error(".claude directory should not be created when declined")
	}
}

func TestInstallSkill_ConfirmedInteractively(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	runInstallSkill(t, "yes\n")
	if _, err := os.Stat(filepath.Join(tmpHome, ".claude", "skills", "attune", "SKILL.md")); err != nil {
		t.Errorf("SKILL.md should be installed after confirmation: %v", err)
	}
}
