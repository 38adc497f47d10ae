// ABOUTME: Tests for logger construction
// ABOUTME: Covers level parsing and the json and console formats

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", FormatJSON)
	log.Debug().Str("user_id", "alice").Msg("learned")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if line["message"] != "learned" {
		t.Errorf("message = %v, want learned", line["message"])
	}
	if line["app"] != "attune" {
		t.Errorf("app = %v, want attune", line["app"])
	}
	if line["user_id"] != "alice" {
		t.Errorf("user_id = %v, want alice", line["user_id"])
	}
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", FormatJSON)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "chatty", FormatJSON)
	log.Debug().Msg("debug")
	log.Info().Msg("info")

	out := buf.String()
	if strings.Contains(out, `"debug"`) && strings.Contains(out, `"message":"debug"`) {
		t.Errorf("debug should be filtered: %s", out)
	}
	if !strings.Contains(out, `"message":"info"`) {
		t.Errorf("info line missing: %s", out)
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", FormatConsole)
	log.Info().Str("component", "sweeper").Msg("sweep complete")

	out := buf.String()
	if !strings.Contains(out, "sweep complete") || !strings.Contains(out, "component=sweeper") {
		t.Errorf("unexpected console output: %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console output should not be json: %q", out)
	}
}
