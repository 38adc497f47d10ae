// ABOUTME: MCP tool definitions and registration for the attune server
// ABOUTME: One tool per engine contract, each with a JSON schema for its arguments
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/core"
)

func str(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func num(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": desc}
}

func obj(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "object", "description": desc}
}

var userID = str("User identifier")

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, engine *core.Engine, log zerolog.Logger) *Handlers {
	h := NewHandlers(engine, log)
	for _, t := range h.Tools() {
		server.AddTool(t.Tool, t.Handler)
	}
	return h
}

// Tools returns every tool definition paired with its handler
func (h *Handlers) Tools() []mcpserver.ServerTool {
	return []mcpserver.ServerTool{
		{Tool: mcp.Tool{
			Name:        "register_profile",
			Description: "Create or update a user profile. Only provided fields change on update.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id":            userID,
					"display_name":       str("Name shown for the user"),
					"timezone":           str("IANA timezone, e.g. Asia/Karachi (default UTC)"),
					"preferred_language": str("Preferred reply language code"),
				},
				Required: []string{"user_id"},
			},
		}, Handler: h.RegisterProfile},

		{Tool: mcp.Tool{
			Name:        "get_profile",
			Description: "Get a user profile.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]interface{}{"user_id": userID},
				Required:   []string{"user_id"},
			},
		}, Handler: h.GetProfile},

		{Tool: mcp.Tool{
			Name:        "record_event",
			Description: "Append an interaction to the user's event log. Task events need a title, command events a command.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id":   userID,
					"kind":      str("task_created, command_run, message, or voice_capture"),
					"title":     str("Task title for task_created events"),
					"command":   str("Command name for command_run events"),
					"timestamp": str("RFC3339 time of the event (default now)"),
					"language":  str("Language code of the interaction"),
					"channel":   str("Channel the interaction came from"),
					"payload":   obj("Additional payload fields"),
				},
				Required: []string{"user_id", "kind"},
			},
		}, Handler: h.RecordEvent},

		{Tool: mcp.Tool{
			Name:        "learn_habits",
			Description: "Scan the user's event history and create or refresh habits.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]interface{}{"user_id": userID},
				Required:   []string{"user_id"},
			},
		}, Handler: h.LearnHabits},

		{Tool: mcp.Tool{
			Name:        "get_habits",
			Description: "List learned habits, highest confidence first.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id":    userID,
					"habit_type": str("Optional filter: recurring_task, command_usage, time_based, language_preference, channel_preference"),
				},
				Required: []string{"user_id"},
			},
		}, Handler: h.GetHabits},

		{Tool: mcp.Tool{
			Name:        "get_insights",
			Description: "Summarize the user's habits: counts by type, top habits, and time-of-day preferences.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id": userID,
					"top_k":   num("Number of top habits (default: 5)"),
				},
				Required: []string{"user_id"},
			},
		}, Handler: h.GetInsights},

		{Tool: mcp.Tool{
			Name:        "predict_tasks",
			Description: "Predict tasks the user is likely to create now.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id": userID,
					"limit":   num("Maximum predictions (default: configured limit)"),
				},
				Required: []string{"user_id"},
			},
		}, Handler: h.PredictTasks},

		{Tool: mcp.Tool{
			Name:        "prediction_feedback",
			Description: "Accept or dismiss a pending prediction.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id":       userID,
					"prediction_id": str("Prediction to resolve"),
					"accepted":      map[string]interface{}{"type": "boolean", "description": "True when the user acted on the prediction"},
				},
				Required: []string{"user_id", "prediction_id", "accepted"},
			},
		}, Handler: h.PredictionFeedback},

		{Tool: mcp.Tool{
			Name:        "prediction_accuracy",
			Description: "Report accepted, dismissed, and expired prediction counts.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]interface{}{"user_id": userID},
				Required:   []string{"user_id"},
			},
		}, Handler: h.PredictionAccuracy},

		{Tool: mcp.Tool{
			Name:        "save_context",
			Description: "Store one conversational exchange for later reference resolution.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id":            userID,
					"user_message":       str("What the user said"),
					"assistant_response": str("What the assistant replied"),
					"intent":             str("Parsed intent of the message"),
					"entities":           obj("Parsed entities as string values"),
					"language":           str("Language code"),
					"channel":            str("Channel"),
				},
				Required: []string{"user_id", "user_message"},
			},
		}, Handler: h.SaveContext},

		{Tool: mcp.Tool{
			Name:        "get_context_window",
			Description: "Get the live conversation window, most recent first.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id": userID,
					"limit":   num("Maximum exchanges (default: configured window)"),
				},
				Required: []string{"user_id"},
			},
		}, Handler: h.GetContextWindow},

		{Tool: mcp.Tool{
			Name:        "resolve_reference",
			Description: "Resolve pronouns and ellipsis in a message against recent conversation.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id": userID,
					"message": str("Message to resolve"),
				},
				Required: []string{"user_id", "message"},
			},
		}, Handler: h.ResolveReference},

		{Tool: mcp.Tool{
			Name:        "context_summary",
			Description: "Count recent exchanges by language, channel, and intent.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id": userID,
					"days":    num("Days to look back (default: 7)"),
				},
				Required: []string{"user_id"},
			},
		}, Handler: h.ContextSummary},

		{Tool: mcp.Tool{
			Name:        "detect_mood",
			Description: "Detect mood from text, voice features, or both. At least one is required.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id":       userID,
					"text":          str("Utterance text"),
					"pitch":         num("Mean pitch in Hz"),
					"energy":        num("Normalized energy 0-1"),
					"speaking_rate": num("Words per minute"),
				},
				Required: []string{"user_id"},
			},
		}, Handler: h.DetectMood},

		{Tool: mcp.Tool{
			Name:        "mood_trend",
			Description: "Analyze how the user's mood moved over recent days.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id": userID,
					"days":    num("Days to look back (default: 7)"),
				},
				Required: []string{"user_id"},
			},
		}, Handler: h.MoodTrend},

		{Tool: mcp.Tool{
			Name:        "enroll_voice",
			Description: "Create an empty voiceprint for a user. The first one becomes primary.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id":      userID,
					"profile_name": str("Name of the voiceprint, e.g. home"),
					"description":  str("Optional description"),
				},
				Required: []string{"user_id", "profile_name"},
			},
		}, Handler: h.EnrollVoice},

		{Tool: mcp.Tool{
			Name:        "train_voice",
			Description: "Add audio samples to a voiceprint. Samples are objects with base64 wav, or base64 pcm plus sample_rate, or features.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"profile_id": str("Voiceprint to train"),
					"samples": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "object"},
						"description": "Audio samples",
					},
				},
				Required: []string{"profile_id", "samples"},
			},
		}, Handler: h.TrainVoice},

		{Tool: mcp.Tool{
			Name:        "recognize_voice",
			Description: "Identify the speaker of an audio sample among trained voiceprints.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"sample": obj("Audio sample: base64 wav, or base64 pcm plus sample_rate, or features"),
					"candidate_user_ids": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Restrict matching to these users (default: all)",
					},
				},
				Required: []string{"sample"},
			},
		}, Handler: h.RecognizeVoice},

		{Tool: mcp.Tool{
			Name:        "delete_voice",
			Description: "Delete one of the user's voiceprints.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id":    userID,
					"profile_id": str("Voiceprint to delete"),
				},
				Required: []string{"user_id", "profile_id"},
			},
		}, Handler: h.DeleteVoice},

		{Tool: mcp.Tool{
			Name:        "get_suggestions",
			Description: "Get ranked suggestions from predictions, command habits, morning routines, conversation, and mood.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"user_id": userID,
					"message": str("Optional current message"),
				},
				Required: []string{"user_id"},
			},
		}, Handler: h.GetSuggestions},
	}
}
