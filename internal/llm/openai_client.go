// ABOUTME: OpenAI client that classifies user messages into intent, entities, and language
// ABOUTME: Uses gpt-4o-mini by default with rate limiting and retry with backoff
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/harper/attune/internal/models"
	"github.com/harper/attune/internal/util"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// IntentUnknown is reported when the model's intent is not recognized
	IntentUnknown = "unknown"
)

// Intents lists the intents the classifier may report
var Intents = []string{
	"create_task",
	"list_tasks",
	"set_reminder",
	"send_message",
	"search_files",
	"run_command",
	"smalltalk",
	IntentUnknown,
}

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey            string
	BaseURL           string
	ChatModel         string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:            apiKey,
		ChatModel:         DefaultChatModel,
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		RetryDelay:        2 * time.Second,
		RequestsPerSecond: 2,
	}
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	client     *openai.Client
	chatModel  string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
}

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	oc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oc.BaseURL = config.BaseURL
	}
	model := config.ChatModel
	if model == "" {
		model = DefaultChatModel
	}
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(oc),
		chatModel:  model,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

const classifyPrompt = `You are an intent parser for a personal assistant. Users write in English, Urdu, or romanized Urdu.
Given one user message, return ONLY a JSON object with:
1. intent: one of %s
2. entities: object of string values. Use keys such as task, reminder, contact, file, command, date, time
3. language: ISO 639-1 code of the message (en, ur, ...)

No additional text.`

// Classify reads the intent, entities, and language of one message
func (c *OpenAIClient) Classify(ctx context.Context, text string) (*models.Utterance, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.Invalid("text", "is required")
	}
	system := fmt.Sprintf(classifyPrompt, strings.Join(Intents, ", "))

	var out *models.Utterance
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
			Temperature: 0.1,
		})
		if err != nil {
			if permanentStatus(err) {
				return util.Permanent(err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no completion choices returned")
		}

		u, err := ParseUtterance(resp.Choices[0].Message.Content)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to classify message after %d attempts: %w", c.maxRetries+1, err)
	}
	return out, nil
}

// permanentStatus reports API errors that retrying cannot fix
func permanentStatus(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.HTTPStatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// ParseUtterance decodes a model reply. Code fences are tolerated, unknown
// intents become "unknown", and empty entity values are dropped.
func ParseUtterance(content string) (*models.Utterance, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw struct {
		Intent   string                 `json:"intent"`
		Entities map[string]interface{} `json:"entities"`
		Language string                 `json:"language"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	u := &models.Utterance{
		Intent:   IntentUnknown,
		Entities: map[string]string{},
		Language: strings.ToLower(strings.TrimSpace(raw.Language)),
	}
	intent := strings.ToLower(strings.TrimSpace(raw.Intent))
	for _, known := range Intents {
		if intent == known {
			u.Intent = intent
			break
		}
	}
	for k, v := range raw.Entities {
		var s string
		switch val := v.(type) {
		case string:
			s = strings.TrimSpace(val)
		case float64, bool:
			s = fmt.Sprint(val)
		}
		if s != "" {
			u.Entities[strings.ToLower(k)] = s
		}
	}
	return u, nil
}
