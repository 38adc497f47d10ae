// ABOUTME: Centralized configuration for the attune learning engine
// ABOUTME: Loads from environment variables with validation, defaults, and an optional YAML overlay
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for attune
type Config struct {
	// Storage settings
	StorageBackend string
	DBPath         string

	// Charm settings
	CharmHost   string
	CharmDBName string
	AutoSync    bool

	// Locking
	LockBackend string
	RedisURL    string
	LockTTL     time.Duration

	// Background sweep
	SweepSchedule    string
	SweepConcurrency int
	MetricsAddr      string

	// Logging
	LogLevel  string
	LogFormat string

	// OpenAI settings
	OpenAIKey         string
	ChatModel         string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64

	Learning LearningConfig
}

// Load reads configuration from environment variables. When ATTUNE_CONFIG
// names a YAML file, its learning section overrides the environment.
func Load() (*Config, error) {
	cfg := &Config{
		StorageBackend:    getEnv("ATTUNE_STORAGE", "sqlite"),
		DBPath:            getEnv("ATTUNE_DB_PATH", DefaultDBPath()),
		CharmHost:         getEnv("CHARM_HOST", "cloud.charm.sh"),
		CharmDBName:       getEnv("CHARM_DB", "attune"),
		AutoSync:          getEnvBool("CHARM_AUTO_SYNC", true),
		LockBackend:       getEnv("ATTUNE_LOCK", "local"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		LockTTL:           getEnvDuration("ATTUNE_LOCK_TTL", 30*time.Second),
		SweepSchedule:     getEnv("ATTUNE_SWEEP_SCHEDULE", "@every 6h"),
		SweepConcurrency:  getEnvInt("ATTUNE_SWEEP_CONCURRENCY", 4),
		MetricsAddr:       os.Getenv("ATTUNE_METRICS_ADDR"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		ChatModel:         getEnv("ATTUNE_OPENAI_MODEL", "gpt-4o-mini"),
		Timeout:           getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		MaxRetries:        getEnvInt("OPENAI_MAX_RETRIES", 3),
		RetryDelay:        getEnvDuration("OPENAI_RETRY_DELAY", 2*time.Second),
		RequestsPerSecond: getEnvFloat("OPENAI_REQUESTS_PER_SECOND", 2),
		Learning:          LearningFromEnv(),
	}

	if path := os.Getenv("ATTUNE_CONFIG"); path != "" {
		if err := cfg.Learning.OverlayFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "sqlite", "charm":
	default:
		return fmt.Errorf("ATTUNE_STORAGE must be sqlite or charm, got %q", c.StorageBackend)
	}
	switch c.LockBackend {
	case "local", "redis":
	default:
		return fmt.Errorf("ATTUNE_LOCK must be local or redis, got %q", c.LockBackend)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.SweepConcurrency <= 0 {
		return fmt.Errorf("ATTUNE_SWEEP_CONCURRENCY must be positive, got %d", c.SweepConcurrency)
	}
	return c.Learning.Validate()
}

// DefaultDataDir returns the attune data directory following the XDG spec.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = xdg.DataHome
	}
	return filepath.Join(dataHome, "attune")
}

// DefaultDBPath returns the default database file path
func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), "attune.db")
}

// LearningConfig carries every tunable of the learning components. It is
// passed explicitly to each component and never read from process state.
type LearningConfig struct {
	MinPatternOccurrences     int           `yaml:"min_pattern_occurrences"`
	ConfidenceThreshold       float64       `yaml:"confidence_threshold"`
	FrequencySaturation       int           `yaml:"frequency_saturation"`
	FrequencyWeight           float64       `yaml:"frequency_weight"`
	RecencyWeight             float64       `yaml:"recency_weight"`
	RegularityWeight          float64       `yaml:"regularity_weight"`
	RecencyHalfLife           time.Duration `yaml:"recency_half_life"`
	LearnBatchSize            int           `yaml:"learn_batch_size"`
	ContextWindow             int           `yaml:"context_window"`
	ContextTimeout            time.Duration `yaml:"context_timeout"`
	PredictionLimit           int           `yaml:"prediction_limit"`
	PredictionExpiry          time.Duration `yaml:"prediction_expiry"`
	DecayHalfLife             time.Duration `yaml:"decay_half_life"`
	ActiveFloor               float64       `yaml:"active_floor"`
	FeedbackStep              float64       `yaml:"feedback_step"`
	MatchWindowHours          int           `yaml:"match_window_hours"`
	TextMoodWeight            float64       `yaml:"text_mood_weight"`
	VoiceMoodWeight           float64       `yaml:"voice_mood_weight"`
	VoiceRecognitionThreshold float64       `yaml:"voice_recognition_threshold"`
	MinVoiceSamples           int           `yaml:"min_voice_samples"`
	AutoCreateProfiles        bool          `yaml:"auto_create_profiles"`
}

// DefaultLearning returns the stock tuning.
func DefaultLearning() LearningConfig {
	return LearningConfig{
		MinPatternOccurrences:     3,
		ConfidenceThreshold:       0.6,
		FrequencySaturation:       5,
		FrequencyWeight:           0.4,
		RecencyWeight:             0.3,
		RegularityWeight:          0.3,
		RecencyHalfLife:           14 * 24 * time.Hour,
		LearnBatchSize:            500,
		ContextWindow:             10,
		ContextTimeout:            30 * time.Minute,
		PredictionLimit:           5,
		PredictionExpiry:          24 * time.Hour,
		DecayHalfLife:             30 * 24 * time.Hour,
		ActiveFloor:               0.3,
		FeedbackStep:              0.05,
		MatchWindowHours:          2,
		TextMoodWeight:            0.5,
		VoiceMoodWeight:           0.5,
		VoiceRecognitionThreshold: 0.75,
		MinVoiceSamples:           3,
		AutoCreateProfiles:        true,
	}
}

// LearningFromEnv starts from DefaultLearning and applies ATTUNE_* overrides.
func LearningFromEnv() LearningConfig {
	d := DefaultLearning()
	return LearningConfig{
		MinPatternOccurrences:     getEnvInt("ATTUNE_MIN_PATTERN_OCCURRENCES", d.MinPatternOccurrences),
		ConfidenceThreshold:       getEnvFloat("ATTUNE_CONFIDENCE_THRESHOLD", d.ConfidenceThreshold),
		FrequencySaturation:       getEnvInt("ATTUNE_FREQUENCY_SATURATION", d.FrequencySaturation),
		FrequencyWeight:           getEnvFloat("ATTUNE_WEIGHT_FREQUENCY", d.FrequencyWeight),
		RecencyWeight:             getEnvFloat("ATTUNE_WEIGHT_RECENCY", d.RecencyWeight),
		RegularityWeight:          getEnvFloat("ATTUNE_WEIGHT_REGULARITY", d.RegularityWeight),
		RecencyHalfLife:           getEnvDuration("ATTUNE_RECENCY_HALF_LIFE", d.RecencyHalfLife),
		LearnBatchSize:            getEnvInt("ATTUNE_LEARN_BATCH_SIZE", d.LearnBatchSize),
		ContextWindow:             getEnvInt("ATTUNE_CONTEXT_WINDOW", d.ContextWindow),
		ContextTimeout:            time.Duration(getEnvInt("ATTUNE_CONTEXT_TIMEOUT_MINUTES", int(d.ContextTimeout/time.Minute))) * time.Minute,
		PredictionLimit:           getEnvInt("ATTUNE_PREDICTION_LIMIT", d.PredictionLimit),
		PredictionExpiry:          getEnvDuration("ATTUNE_PREDICTION_EXPIRY", d.PredictionExpiry),
		DecayHalfLife:             getEnvDuration("ATTUNE_DECAY_HALF_LIFE", d.DecayHalfLife),
		ActiveFloor:               getEnvFloat("ATTUNE_ACTIVE_FLOOR", d.ActiveFloor),
		FeedbackStep:              getEnvFloat("ATTUNE_FEEDBACK_STEP", d.FeedbackStep),
		MatchWindowHours:          getEnvInt("ATTUNE_MATCH_WINDOW_HOURS", d.MatchWindowHours),
		TextMoodWeight:            getEnvFloat("ATTUNE_TEXT_MOOD_WEIGHT", d.TextMoodWeight),
		VoiceMoodWeight:           getEnvFloat("ATTUNE_VOICE_MOOD_WEIGHT", d.VoiceMoodWeight),
		VoiceRecognitionThreshold: getEnvFloat("ATTUNE_VOICE_RECOGNITION_THRESHOLD", d.VoiceRecognitionThreshold),
		MinVoiceSamples:           getEnvInt("ATTUNE_MIN_VOICE_SAMPLES", d.MinVoiceSamples),
		AutoCreateProfiles:        getEnvBool("ATTUNE_AUTO_CREATE_PROFILES", d.AutoCreateProfiles),
	}
}

// OverlayFile merges the learning section of a YAML file into c. Keys absent
// from the file keep their current values.
func (c *LearningConfig) OverlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	return c.Overlay(data)
}

// Overlay merges YAML bytes shaped as {learning: {...}} into c.
func (c *LearningConfig) Overlay(data []byte) error {
	doc := struct {
		Learning *LearningConfig `yaml:"learning"`
	}{Learning: c}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c LearningConfig) Validate() error {
	for name, v := range map[string]float64{
		"confidence_threshold":        c.ConfidenceThreshold,
		"voice_recognition_threshold": c.VoiceRecognitionThreshold,
		"active_floor":                c.ActiveFloor,
		"feedback_step":               c.FeedbackStep,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be 0-1, got %f", name, v)
		}
	}
	if c.MinPatternOccurrences < 1 {
		return fmt.Errorf("min_pattern_occurrences must be positive, got %d", c.MinPatternOccurrences)
	}
	if c.ContextWindow < 1 || c.PredictionLimit < 1 || c.LearnBatchSize < 1 || c.MinVoiceSamples < 1 {
		return fmt.Errorf("window, limit, batch and sample sizes must be positive")
	}
	if c.FrequencySaturation < 1 {
		return fmt.Errorf("frequency_saturation must be positive, got %d", c.FrequencySaturation)
	}
	if c.FrequencyWeight < 0 || c.RecencyWeight < 0 || c.RegularityWeight < 0 ||
		c.FrequencyWeight+c.RecencyWeight+c.RegularityWeight == 0 {
		return fmt.Errorf("confidence weights must be non-negative and not all zero")
	}
	if c.TextMoodWeight < 0 || c.VoiceMoodWeight < 0 || c.TextMoodWeight+c.VoiceMoodWeight == 0 {
		return fmt.Errorf("mood weights must be non-negative and not both zero")
	}
	if c.ContextTimeout <= 0 || c.RecencyHalfLife <= 0 || c.DecayHalfLife <= 0 {
		return fmt.Errorf("timeouts and half-lives must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
