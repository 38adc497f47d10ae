// ABOUTME: ContextManager keeps a rolling conversation window per user
// ABOUTME: Resolves pronouns and ellipsis against entities from recent exchanges
package core

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/models"
)

// ContextManager stores exchanges and answers reference questions
type ContextManager struct {
	*deps
	events *EventLog
	log    zerolog.Logger
}

// Reference records one substitution made while resolving a message
type Reference struct {
	Marker     string `json:"marker"`
	EntityType string `json:"entity_type"`
	Value      string `json:"value"`
}

// Resolution is always returned, even when no context exists
type Resolution struct {
	ContextUsed      bool              `json:"context_used"`
	OriginalMessage  string            `json:"original_message"`
	ResolvedMessage  string            `json:"resolved_message"`
	ResolvedEntities map[string]string `json:"resolved_entities"`
	References       []Reference       `json:"references"`
	PriorIntent      string            `json:"prior_intent,omitempty"`
	ContextualIntent string            `json:"contextual_intent,omitempty"`
	SuggestedActions []string          `json:"suggested_actions"`
	SessionWindowID  string            `json:"session_window_id,omitempty"`
	WindowSize       int               `json:"window_size"`
}

// ContextSummary aggregates conversation activity over a number of days
type ContextSummary struct {
	UserID           string         `json:"user_id"`
	Days             int            `json:"days"`
	TotalExchanges   int            `json:"total_exchanges"`
	Sessions         int            `json:"sessions"`
	ByLanguage       map[string]int `json:"languages"`
	ByChannel        map[string]int `json:"channels"`
	ByIntent         map[string]int `json:"intents"`
	AveragePerDay    float64        `json:"average_per_day"`
	MostCommonIntent string         `json:"most_common_intent,omitempty"`
}

// entityPriority orders entity types when a marker could refer to several
var entityPriority = []string{"task", "title", "reminder", "event", "file", "contact", "person", "item"}

var (
	markerPattern   = regexp.MustCompile(`(?i)\b(the same|it|this|that|these|those|them|they|its)\b`)
	ellipsisPattern = regexp.MustCompile(`(\.\.\.|…)\s*$`)
)

var confirmations = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "ok": true, "okay": true,
	"sure": true, "done": true, "haan": true, "ji": true, "theek hai": true,
}

// suggestedActions are follow-ups offered after each kind of request
var suggestedActions = map[string][]string{
	"create_task": {
		"Set a reminder for this task",
		"Add more details to the task",
		"Mark the task as high priority",
	},
	"list_tasks": {
		"Show only high priority tasks",
		"Filter tasks by due date",
		"Mark a task as completed",
	},
	"set_reminder": {
		"Snooze the reminder",
		"Change the reminder time",
		"Create a related task",
	},
	"send_message": {
		"Send a follow-up message",
		"Schedule the message for later",
		"Save the contact",
	},
	"search_files": {
		"Open the most recent file",
		"Narrow the search by type",
	},
	"run_command": {
		"Run the command again",
		"Schedule this command",
	},
}

// Save appends an exchange. It reuses the latest session id when the previous
// exchange is within the context timeout. Backdated exchanges open a new session.
func (m *ContextManager) Save(ctx context.Context, entry *models.ContextEntry) (*models.ContextEntry, error) {
	if entry == nil {
		return nil, models.Invalid("entry", "is required")
	}
	if err := requireUser(entry.UserID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(entry.UserMessage) == "" {
		return nil, models.Invalid("user_message", "is required")
	}
	if _, err := m.events.ensureProfile(ctx, entry.UserID); err != nil {
		return nil, err
	}

	out := *entry
	out.EntryID = models.NewEntryID()
	m.classify(ctx, &out)
	if out.Timestamp.IsZero() {
		out.Timestamp = m.now()
	}
	out.Timestamp = out.Timestamp.UTC()

	err := m.withUser(ctx, entry.UserID, func() error {
		latest, err := m.store.ListContextEntries(ctx, entry.UserID, time.Time{}, 1)
		if err != nil {
			return err
		}
		out.SessionWindowID = models.NewSessionWindowID()
		if len(latest) > 0 {
			if gap := out.Timestamp.Sub(latest[0].Timestamp); gap >= 0 && gap <= m.cfg.ContextTimeout {
				out.SessionWindowID = latest[0].SessionWindowID
			}
		}
		return m.store.AppendContextEntry(ctx, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// classify asks the configured parser about exchanges that arrive without an
// intent. Parser failures leave the entry as given.
func (m *ContextManager) classify(ctx context.Context, e *models.ContextEntry) {
	if m.parser == nil || e.Intent != "" {
		return
	}
	u, err := m.parser.Classify(ctx, e.UserMessage)
	if err != nil {
		m.log.Warn().Err(err).Str("user_id", e.UserID).Msg("intent classification failed")
		return
	}
	e.Intent = u.Intent
	if e.Language == "" {
		e.Language = u.Language
	}
	if len(u.Entities) > 0 {
		merged := make(map[string]string, len(u.Entities)+len(e.Entities))
		for k, v := range u.Entities {
			merged[k] = v
		}
		for k, v := range e.Entities {
			merged[k] = v
		}
		e.Entities = merged
	}
}

// Window returns the live exchanges, most recent first. Entries older than
// the context timeout are left out even though they remain stored.
func (m *ContextManager) Window(ctx context.Context, userID string, limit int) ([]*models.ContextEntry, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = m.cfg.ContextWindow
	}
	since := m.now().Add(-m.cfg.ContextTimeout)
	entries, err := m.store.ListContextEntries(ctx, userID, since, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.ContextEntry{}
	}
	return entries, nil
}

// ResolveReference substitutes anaphora in message with the most recent
// matching entity from the window. A missing window is not an error.
func (m *ContextManager) ResolveReference(ctx context.Context, userID, message string) (*Resolution, error) {
	if strings.TrimSpace(message) == "" {
		return nil, models.Invalid("message", "is required")
	}
	window, err := m.Window(ctx, userID, m.cfg.ContextWindow)
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		OriginalMessage:  message,
		ResolvedMessage:  message,
		ResolvedEntities: map[string]string{},
		References:       []Reference{},
		SuggestedActions: []string{},
		WindowSize:       len(window),
	}
	if len(window) == 0 {
		return res, nil
	}
	res.SessionWindowID = window[0].SessionWindowID

	// newest value wins per entity type
	entities := map[string]string{}
	for _, e := range window {
		if res.PriorIntent == "" && e.Intent != "" {
			res.PriorIntent = e.Intent
		}
		for k, v := range e.Entities {
			if _, seen := entities[k]; !seen && v != "" {
				entities[k] = v
			}
		}
	}
	if actions, ok := suggestedActions[res.PriorIntent]; ok {
		res.SuggestedActions = append(res.SuggestedActions, actions...)
	}

	markers := markerPattern.FindAllString(message, -1)
	ellipsis := ellipsisPattern.MatchString(message)

	switch {
	case confirmations[normalizeText(message)] && res.PriorIntent != "":
		res.ContextualIntent = "follow_up_" + res.PriorIntent
		res.ContextUsed = true
	case len(markers) > 0 || ellipsis:
		res.ContextualIntent = "contextual_reference"
	}

	entityType, value := pickEntity(entities)
	if value == "" || (len(markers) == 0 && !ellipsis) {
		return res, nil
	}
	// only the entity actually substituted is reported
	res.ContextUsed = true
	res.ResolvedEntities[entityType] = value
	for _, marker := range markers {
		res.References = append(res.References, Reference{
			Marker:     strings.ToLower(marker),
			EntityType: entityType,
			Value:      value,
		})
	}
	if len(markers) > 0 {
		res.ResolvedMessage = markerPattern.ReplaceAllLiteralString(message, value)
	}
	if ellipsis {
		res.References = append(res.References, Reference{Marker: "...", EntityType: entityType, Value: value})
		res.ResolvedMessage = strings.TrimSpace(ellipsisPattern.ReplaceAllString(res.ResolvedMessage, "")) + " " + value
	}
	return res, nil
}

// pickEntity chooses the entity a reference most likely points at
func pickEntity(entities map[string]string) (string, string) {
	for _, t := range entityPriority {
		if v, ok := entities[t]; ok {
			return t, v
		}
	}
	keys := make([]string, 0, len(entities))
	for k := range entities {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "", ""
	}
	sort.Strings(keys)
	return keys[0], entities[keys[0]]
}

// Summary counts exchanges per language, channel, and intent over the last
// days (default 7). It never mutates state.
func (m *ContextManager) Summary(ctx context.Context, userID string, days int) (*ContextSummary, error) {
	if _, err := m.events.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}
	since := m.now().Add(-time.Duration(days) * 24 * time.Hour)
	entries, err := m.store.ListContextEntries(ctx, userID, since, 0)
	if err != nil {
		return nil, err
	}

	sum := &ContextSummary{
		UserID:         userID,
		Days:           days,
		TotalExchanges: len(entries),
		ByLanguage:     map[string]int{},
		ByChannel:      map[string]int{},
		ByIntent:       map[string]int{},
	}
	sessions := map[string]bool{}
	for _, e := range entries {
		sessions[e.SessionWindowID] = true
		if e.Language != "" {
			sum.ByLanguage[e.Language]++
		}
		if e.Channel != "" {
			sum.ByChannel[e.Channel]++
		}
		if e.Intent != "" {
			sum.ByIntent[e.Intent]++
		}
	}
	sum.Sessions = len(sessions)
	sum.AveragePerDay = float64(len(entries)) / float64(days)

	best := 0
	for intent, n := range sum.ByIntent {
		if n > best || (n == best && intent < sum.MostCommonIntent) {
			sum.MostCommonIntent, best = intent, n
		}
	}
	return sum, nil
}

// Prune deletes stored exchanges older than olderThan and reports how many
func (m *ContextManager) Prune(ctx context.Context, userID string, olderThan time.Duration) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	if olderThan <= 0 {
		return 0, models.Invalid("older_than", "must be positive")
	}
	var n int
	err := m.withUser(ctx, userID, func() error {
		var derr error
		n, derr = m.store.DeleteContextEntries(ctx, userID, m.now().Add(-olderThan))
		return derr
	})
	if err == nil && n > 0 {
		m.log.Info().Str("user_id", userID).Int("deleted", n).Msg("pruned context")
	}
	return n, err
}
