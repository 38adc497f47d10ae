// ABOUTME: Tests for attune-server startup configuration
// ABOUTME: Invalid settings are reported on the boot logger instead of crashing

package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetupRejectsInvalidConfig(t *testing.T) {
	t.Setenv("ATTUNE_CONFIG", "")
	t.Setenv("ATTUNE_STORAGE", "floppy")

	var out bytes.Buffer
	cfg, _, err := setup(&out)
	if err == nil {
		t.Fatal("setup should fail for an unknown storage backend")
	}
	if cfg != nil {
		t.Errorf("cfg = %+v, want nil", cfg)
	}
	if !strings.Contains(out.String(), "invalid configuration") {
		t.Errorf("boot log missing the error:\n%s", out.String())
	}
}

func TestSetupUsesConfiguredLogger(t *testing.T) {
	t.Setenv("ATTUNE_CONFIG", "")
	t.Setenv("ATTUNE_STORAGE", "sqlite")
	t.Setenv("ATTUNE_LOCK", "local")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")

	var out bytes.Buffer
	cfg, log, err := setup(&out)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if cfg.StorageBackend != "sqlite" {
		t.Errorf("StorageBackend = %q", cfg.StorageBackend)
	}

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	if strings.Contains(out.String(), "hidden") || !strings.Contains(out.String(), `"message":"shown"`) {
		t.Errorf("logger ignored LOG_LEVEL/LOG_FORMAT:\n%s", out.String())
	}
}
