// ABOUTME: Tests for sync command structure
// ABOUTME: Charm connectivity is not exercised here

package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewSyncCmd(t *testing.T) {
	cmd := NewSyncCmd()

	if cmd.Use != "sync" {
		t.Errorf("Use = %q, want %q", cmd.Use, "sync")
	}
	if !strings.Contains(cmd.Long, "ATTUNE_STORAGE=charm") {
		t.Error("Long description should explain how to enable charm storage")
	}
}

func TestSyncCmd_Subcommands(t *testing.T) {
	cmd := NewSyncCmd()

	for _, name := range []string{"status", "now", "wipe", "keys", "unlink"} {
		t.Run(name, func(t *testing.T) {
			found := false
			for _, sub := range cmd.Commands() {
				if sub.Use == name || strings.HasPrefix(sub.Use, name+" ") {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Subcommand %q not found", name)
			}
		})
	}
}

func TestSyncWipe_RequiresConfirm(t *testing.T) {
	cmd := NewSyncCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs([]string{"wipe"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("wipe without --confirm should not fail: %v", err)
	}
	if !strings.Contains(output.String(), "--confirm") {
		t.Errorf("Output should ask for --confirm, got: %s", output.String())
	}
}
