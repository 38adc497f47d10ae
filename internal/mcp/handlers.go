// ABOUTME: MCP tool handler implementations for the attune server
// ABOUTME: Each handler decodes arguments, calls one engine contract, and returns JSON text
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/core"
	"github.com/harper/attune/internal/models"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	engine *core.Engine
	log    zerolog.Logger
}

// NewHandlers creates handlers over an engine
func NewHandlers(engine *core.Engine, log zerolog.Logger) *Handlers {
	return &Handlers{engine: engine, log: log.With().Str("component", "mcp").Logger()}
}

// errorBody is the structured error every failing tool returns
type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// fail converts err into a tool error, logging failures the caller cannot fix
func (h *Handlers) fail(err error) (*mcp.CallToolResult, error) {
	switch kind := models.ErrorKind(err); kind {
	case models.KindStorage, models.KindInternal:
		h.log.Error().Err(err).Str("kind", kind).Msg("tool call failed")
	}
	return errorResult(err)
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	var body errorBody
	body.Error.Kind = models.ErrorKind(err)
	body.Error.Message = err.Error()
	data, _ := json.Marshal(body)
	return mcp.NewToolResultError(string(data)), nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func required(request mcp.CallToolRequest, name string) (string, error) {
	v, err := request.RequireString(name)
	if err != nil || v == "" {
		return "", models.Invalid(name, "argument is required and must be a string")
	}
	return v, nil
}

// decodeArg re-decodes one raw argument into a typed value. Absent arguments
// leave out untouched.
func decodeArg(request mcp.CallToolRequest, name string, out interface{}) error {
	raw, ok := request.GetArguments()[name]
	if !ok || raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return models.Invalid(name, "is malformed")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return models.Invalid(name, fmt.Sprintf("has the wrong shape: %v", err))
	}
	return nil
}

// RegisterProfile handles the register_profile tool
func (h *Handlers) RegisterProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	p, err := h.engine.Events.RegisterProfile(ctx, &models.Profile{
		UserID:            userID,
		DisplayName:       request.GetString("display_name", ""),
		Timezone:          request.GetString("timezone", ""),
		PreferredLanguage: request.GetString("preferred_language", ""),
	})
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(map[string]interface{}{"profile": p})
}

// GetProfile handles the get_profile tool
func (h *Handlers) GetProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	p, err := h.engine.Events.GetProfile(ctx, userID)
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(map[string]interface{}{"profile": p})
}

// RecordEvent handles the record_event tool
func (h *Handlers) RecordEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	kind, err := required(request, "kind")
	if err != nil {
		return h.fail(err)
	}

	payload := map[string]interface{}{}
	if err := decodeArg(request, "payload", &payload); err != nil {
		return h.fail(err)
	}
	if title := request.GetString("title", ""); title != "" {
		payload["title"] = title
	}
	if command := request.GetString("command", ""); command != "" {
		payload["command"] = command
	}

	var ts time.Time
	if raw := request.GetString("timestamp", ""); raw != "" {
		ts, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return h.fail(models.Invalid("timestamp", "must be RFC3339"))
		}
	}

	e, err := h.engine.Events.Append(ctx, &models.Event{
		UserID:    userID,
		Kind:      models.EventKind(kind),
		Timestamp: ts,
		Payload:   payload,
		Language:  request.GetString("language", ""),
		Channel:   request.GetString("channel", ""),
	})
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(map[string]interface{}{"event": e})
}

// LearnHabits handles the learn_habits tool
func (h *Handlers) LearnHabits(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	res, err := h.engine.Habits.Learn(ctx, userID)
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(res)
}

// GetHabits handles the get_habits tool
func (h *Handlers) GetHabits(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	habits, err := h.engine.Habits.Habits(ctx, userID, models.HabitType(request.GetString("habit_type", "")))
	if err != nil {
		return h.fail(err)
	}
	if habits == nil {
		habits = []*models.Habit{}
	}
	return jsonResult(map[string]interface{}{"habits": habits})
}

// GetInsights handles the get_insights tool
func (h *Handlers) GetInsights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	ins, err := h.engine.Habits.Insights(ctx, userID, request.GetInt("top_k", 5))
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(ins)
}

// PredictTasks handles the predict_tasks tool
func (h *Handlers) PredictTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	preds, err := h.engine.Predictor.Predict(ctx, userID, request.GetInt("limit", 0))
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(map[string]interface{}{"predictions": preds})
}

// PredictionFeedback handles the prediction_feedback tool
func (h *Handlers) PredictionFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	predictionID, err := required(request, "prediction_id")
	if err != nil {
		return h.fail(err)
	}
	accepted, err := request.RequireBool("accepted")
	if err != nil {
		return h.fail(models.Invalid("accepted", "argument is required and must be a boolean"))
	}
	p, err := h.engine.Predictor.Feedback(ctx, userID, predictionID, accepted)
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(map[string]interface{}{"prediction": p})
}

// PredictionAccuracy handles the prediction_accuracy tool
func (h *Handlers) PredictionAccuracy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	acc, err := h.engine.Predictor.Accuracy(ctx, userID)
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(acc)
}

// SaveContext handles the save_context tool
func (h *Handlers) SaveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	message, err := required(request, "user_message")
	if err != nil {
		return h.fail(err)
	}
	var entities map[string]string
	if err := decodeArg(request, "entities", &entities); err != nil {
		return h.fail(err)
	}

	entry, err := h.engine.Context.Save(ctx, &models.ContextEntry{
		UserID:            userID,
		UserMessage:       message,
		AssistantResponse: request.GetString("assistant_response", ""),
		Intent:            request.GetString("intent", ""),
		Entities:          entities,
		Language:          request.GetString("language", ""),
		Channel:           request.GetString("channel", ""),
	})
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(map[string]interface{}{"entry": entry})
}

// GetContextWindow handles the get_context_window tool
func (h *Handlers) GetContextWindow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	window, err := h.engine.Context.Window(ctx, userID, request.GetInt("limit", 0))
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(map[string]interface{}{"entries": window, "count": len(window)})
}

// ResolveReference handles the resolve_reference tool
func (h *Handlers) ResolveReference(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	message, err := required(request, "message")
	if err != nil {
		return h.fail(err)
	}
	res, err := h.engine.Context.ResolveReference(ctx, userID, message)
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(res)
}

// ContextSummary handles the context_summary tool
func (h *Handlers) ContextSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	sum, err := h.engine.Context.Summary(ctx, userID, request.GetInt("days", 7))
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(sum)
}

// DetectMood handles the detect_mood tool
func (h *Handlers) DetectMood(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	var voice *core.VoiceFeatures
	args := request.GetArguments()
	for _, k := range []string{"pitch", "energy", "speaking_rate"} {
		if _, ok := args[k]; ok {
			voice = &core.VoiceFeatures{
				Pitch:        request.GetFloat("pitch", 0),
				Energy:       request.GetFloat("energy", 0),
				SpeakingRate: request.GetFloat("speaking_rate", 0),
			}
			break
		}
	}

	res, err := h.engine.Mood.Detect(ctx, userID, request.GetString("text", ""), voice)
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(res)
}

// MoodTrend handles the mood_trend tool
func (h *Handlers) MoodTrend(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	trend, err := h.engine.Mood.AnalyzeTrend(ctx, userID, request.GetInt("days", 7))
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(trend)
}

// EnrollVoice handles the enroll_voice tool
func (h *Handlers) EnrollVoice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	name, err := required(request, "profile_name")
	if err != nil {
		return h.fail(err)
	}
	vp, err := h.engine.Voice.Enroll(ctx, userID, name, request.GetString("description", ""))
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(map[string]interface{}{"voiceprint": vp})
}

// TrainVoice handles the train_voice tool. Too few samples is reported with
// the updated voiceprint rather than as a failure.
func (h *Handlers) TrainVoice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profileID, err := required(request, "profile_id")
	if err != nil {
		return h.fail(err)
	}
	var samples []core.AudioSample
	if err := decodeArg(request, "samples", &samples); err != nil {
		return h.fail(err)
	}

	vp, err := h.engine.Voice.Train(ctx, profileID, samples)
	switch {
	case err == nil:
		return jsonResult(map[string]interface{}{"voiceprint": vp, "trained": true})
	case errors.Is(err, models.ErrInsufficientData) && vp != nil:
		return jsonResult(map[string]interface{}{
			"voiceprint": vp,
			"trained":    vp.Trained(),
			"message":    err.Error(),
		})
	default:
		return h.fail(err)
	}
}

// RecognizeVoice handles the recognize_voice tool
func (h *Handlers) RecognizeVoice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sample core.AudioSample
	if err := decodeArg(request, "sample", &sample); err != nil {
		return h.fail(err)
	}
	rec, err := h.engine.Voice.Recognize(ctx, sample, request.GetStringSlice("candidate_user_ids", nil))
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(rec)
}

// DeleteVoice handles the delete_voice tool
func (h *Handlers) DeleteVoice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	profileID, err := required(request, "profile_id")
	if err != nil {
		return h.fail(err)
	}
	if err := h.engine.Voice.Delete(ctx, userID, profileID); err != nil {
		return h.fail(err)
	}
	return jsonResult(map[string]interface{}{"success": true, "profile_id": profileID})
}

// GetSuggestions handles the get_suggestions tool
func (h *Handlers) GetSuggestions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := required(request, "user_id")
	if err != nil {
		return h.fail(err)
	}
	list, err := h.engine.Suggestions.Suggest(ctx, userID, request.GetString("message", ""))
	if err != nil {
		return h.fail(err)
	}
	return jsonResult(map[string]interface{}{"suggestions": list})
}
