// ABOUTME: End-to-end tests running CLI commands against a temporary database
// ABOUTME: Each test drives the root command the way a user would

package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type cli struct {
	t  *testing.T
	db string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ATTUNE_CONFIG", "")
	t.Setenv("ATTUNE_STORAGE", "sqlite")
	t.Setenv("ATTUNE_LOCK", "local")
	t.Setenv("LOG_LEVEL", "error")
	return &cli{t: t, db: filepath.Join(t.TempDir(), "attune.db")}
}

func (c *cli) exec(args ...string) (string, error) {
	c.t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--db", c.db, "--format", "json", "--quiet"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// run executes args and decodes the JSON output into v
func (c *cli) run(v interface{}, args ...string) {
	c.t.Helper()
	out, err := c.exec(args...)
	if err != nil {
		c.t.Fatalf("attune %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	if v == nil {
		return
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		c.t.Fatalf("attune %s: output is not json: %v\n%s", strings.Join(args, " "), err, out)
	}
}

func TestCLI_ProfileRoundTrip(t *testing.T) {
	c := newCLI(t)

	var saved map[string]interface{}
	c.run(&saved, "profile", "set", "alice", "--name", "Alice", "--timezone", "UTC", "--language", "en")
	if saved["display_name"] != "Alice" {
		t.Errorf("display_name = %v, want Alice", saved["display_name"])
	}

	var shown map[string]interface{}
	c.run(&shown, "profile", "alice")
	if shown["user_id"] != "alice" || shown["timezone"] != "UTC" {
		t.Errorf("unexpected profile: %v", shown)
	}

	var all []map[string]interface{}
	c.run(&all, "profile", "list")
	if len(all) != 1 {
		t.Errorf("profile list returned %d profiles, want 1", len(all))
	}
}

func TestCLI_ProfileMissing(t *testing.T) {
	c := newCLI(t)

	if _, err := c.exec("profile", "nobody"); err == nil {
		t.Error("showing an unknown profile should fail")
	}
}

func TestCLI_EventsAndLearn(t *testing.T) {
	c := newCLI(t)
	c.run(nil, "profile", "set", "alice", "--timezone", "UTC")

	monday := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for week := 0; week < 3; week++ {
		at := monday.AddDate(0, 0, 7*week).Format(time.RFC3339)
		c.run(nil, "event", "add", "alice", "--kind", "task_created", "--payload", "title=buy groceries", "--at", at)
	}

	var events []map[string]interface{}
	c.run(&events, "event", "list", "alice")
	if len(events) != 3 {
		t.Fatalf("event list returned %d events, want 3", len(events))
	}

	var res struct {
		EventsScanned int  `json:"events_scanned"`
		Complete      bool `json:"complete"`
	}
	c.run(&res, "learn", "alice")
	if res.EventsScanned != 3 || !res.Complete {
		t.Errorf("learn = %+v, want 3 events scanned and complete", res)
	}

	var habits []map[string]interface{}
	c.run(&habits, "habits", "alice", "--type", "recurring_task")
	if len(habits) == 0 {
		t.Fatal("habits --type recurring_task returned nothing")
	}
	for _, h := range habits {
		if h["habit_type"] != "recurring_task" {
			t.Errorf("habit type filter leaked %v", h["habit_type"])
		}
	}

	var ins struct {
		TotalHabits int `json:"total_habits"`
	}
	c.run(&ins, "insights", "alice")
	if ins.TotalHabits == 0 {
		t.Error("insights should report learned habits")
	}
}

func TestCLI_EventValidation(t *testing.T) {
	c := newCLI(t)

	tests := [][]string{
		{"event", "add", "alice", "--kind", "task_created"},
		{"event", "add", "alice", "--kind", "dance"},
		{"event", "add", "alice", "--kind", "message", "--payload", "oops"},
		{"event", "add", "alice", "--kind", "message", "--at", "yesterday"},
	}
	for _, args := range tests {
		if _, err := c.exec(args...); err == nil {
			t.Errorf("attune %s should fail", strings.Join(args, " "))
		}
	}
}

func TestCLI_PredictionsForNewUser(t *testing.T) {
	c := newCLI(t)
	c.run(nil, "profile", "set", "bob")

	var preds []interface{}
	c.run(&preds, "predict", "bob")
	if len(preds) != 0 {
		t.Errorf("new user should have no predictions, got %d", len(preds))
	}

	var acc struct {
		Total    int     `json:"total"`
		Accuracy float64 `json:"accuracy"`
	}
	c.run(&acc, "accuracy", "bob")
	if acc.Total != 0 || acc.Accuracy != 0 {
		t.Errorf("accuracy = %+v, want zero", acc)
	}

	if _, err := c.exec("feedback", "bob", "pred_missing"); err == nil {
		t.Error("feedback on an unknown prediction should fail")
	}
}

func TestCLI_ContextResolve(t *testing.T) {
	c := newCLI(t)

	var entry struct {
		SessionWindowID string `json:"session_window_id"`
	}
	c.run(&entry, "context", "save", "alice", "Create a task to call the dentist",
		"--intent", "create_task", "--entity", "task=call the dentist")
	if entry.SessionWindowID == "" {
		t.Fatal("saved entry should carry a session window id")
	}

	var res struct {
		ContextUsed     bool   `json:"context_used"`
		ResolvedMessage string `json:"resolved_message"`
	}
	c.run(&res, "context", "resolve", "alice", "Set a reminder for it")
	if !res.ContextUsed {
		t.Fatal("context should be used")
	}
	if res.ResolvedMessage != "Set a reminder for call the dentist" {
		t.Errorf("resolved = %q", res.ResolvedMessage)
	}

	var window []map[string]interface{}
	c.run(&window, "context", "window", "alice")
	if len(window) != 1 {
		t.Errorf("window has %d entries, want 1", len(window))
	}

	var sum struct {
		TotalExchanges int `json:"total_exchanges"`
		Sessions       int `json:"sessions"`
	}
	c.run(&sum, "context", "summary", "alice", "--days", "1")
	if sum.TotalExchanges != 1 || sum.Sessions != 1 {
		t.Errorf("summary = %+v, want 1 exchange in 1 session", sum)
	}

	var pruned map[string]int
	c.run(&pruned, "context", "prune", "alice", "--older-than", "1h")
	if pruned["deleted"] != 0 {
		t.Errorf("prune deleted %d fresh entries", pruned["deleted"])
	}
}

func TestCLI_Mood(t *testing.T) {
	c := newCLI(t)

	var res struct {
		MoodLabel      string `json:"mood_label"`
		Recommendation string `json:"recommendation"`
	}
	c.run(&res, "mood", "detect", "alice", "I am so happy today")
	if res.MoodLabel != "happy" {
		t.Errorf("mood = %q, want happy", res.MoodLabel)
	}
	if res.Recommendation == "" {
		t.Error("recommendation should not be empty")
	}

	var history []map[string]interface{}
	c.run(&history, "mood", "history", "alice")
	if len(history) != 1 {
		t.Errorf("history has %d samples, want 1", len(history))
	}

	if _, err := c.exec("mood", "detect", "alice"); err == nil {
		t.Error("detect without text or voice should fail")
	}
}

func TestCLI_Voice(t *testing.T) {
	c := newCLI(t)

	var vp struct {
		ProfileID string `json:"profile_id"`
		IsPrimary bool   `json:"is_primary"`
	}
	c.run(&vp, "voice", "enroll", "alice", "--name", "desk mic")
	if !strings.HasPrefix(vp.ProfileID, "vp_") {
		t.Errorf("profile id = %q, want vp_ prefix", vp.ProfileID)
	}
	if !vp.IsPrimary {
		t.Error("first voiceprint should be primary")
	}

	var list []map[string]interface{}
	c.run(&list, "voice", "list", "alice")
	if len(list) != 1 {
		t.Fatalf("voice list has %d entries, want 1", len(list))
	}

	if _, err := c.exec("voice", "train", vp.ProfileID, filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("training from a missing file should fail")
	}

	c.run(nil, "voice", "delete", vp.ProfileID, "--user", "alice")
	c.run(&list, "voice", "list", "alice")
	if len(list) != 0 {
		t.Errorf("voice list has %d entries after delete, want 0", len(list))
	}
}

func TestCLI_SuggestAndSweep(t *testing.T) {
	c := newCLI(t)
	c.run(nil, "profile", "set", "alice")
	c.run(nil, "profile", "set", "bob")
	c.run(nil, "mood", "detect", "alice", "so tired and exhausted")

	var suggestions []struct {
		Type string `json:"type"`
	}
	c.run(&suggestions, "suggest", "alice")
	foundMood := false
	for _, s := range suggestions {
		if s.Type == "mood" {
			foundMood = true
		}
	}
	if !foundMood {
		t.Errorf("suggestions should include mood advice: %+v", suggestions)
	}

	var report struct {
		Users     int `json:"users"`
		Succeeded int `json:"succeeded"`
	}
	c.run(&report, "sweep", "--concurrency", "2")
	if report.Users != 2 || report.Succeeded != 2 {
		t.Errorf("sweep = %+v, want 2 users learned", report)
	}
}
