// ABOUTME: Engine wires the learning components over one store and one configuration
// ABOUTME: Options inject the clock, logger, metrics, locks, lexicon, and intent classifier
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/config"
	"github.com/harper/attune/internal/lock"
	"github.com/harper/attune/internal/metrics"
	"github.com/harper/attune/internal/models"
	"github.com/harper/attune/internal/storage"
)

// deps is shared by every component of one engine
type deps struct {
	store   storage.Store
	cfg     config.LearningConfig
	locks   lock.Locker
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics
	lexicon *Lexicon
	parser  Classifier

	// voiceCacheTTL <= 0 disables the trained voiceprint cache
	voiceCacheTTL time.Duration
}

// Classifier reads intent, entities, and language from a message
type Classifier interface {
	Classify(ctx context.Context, text string) (*models.Utterance, error)
}

// Option customizes an Engine
type Option func(*deps)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// WithLogger sets the parent logger; components add a component field
func WithLogger(log zerolog.Logger) Option {
	return func(d *deps) { d.log = log }
}

// WithMetrics sets the collectors updated by the engine
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *deps) { d.metrics = m }
}

// WithLocker replaces the in-process per-user lock
func WithLocker(l lock.Locker) Option {
	return func(d *deps) { d.locks = l }
}

// WithVoiceCache sets how long trained voiceprint lists are cached. Zero
// disables caching, which is required when other processes share the store.
func WithVoiceCache(ttl time.Duration) Option {
	return func(d *deps) { d.voiceCacheTTL = ttl }
}

// WithLexicon replaces the embedded mood lexicon
func WithLexicon(lx *Lexicon) Option {
	return func(d *deps) { d.lexicon = lx }
}

// WithClassifier fills in intent and entities for exchanges saved without them
func WithClassifier(c Classifier) Option {
	return func(d *deps) { d.parser = c }
}

// Engine exposes the learning contracts
type Engine struct {
	Events      *EventLog
	Habits      *HabitLearner
	Predictor   *TaskPredictor
	Context     *ContextManager
	Mood        *MoodDetector
	Voice       *VoiceMatcher
	Suggestions *SuggestionEngine

	d *deps
}

// New builds an Engine. The store stays owned by the caller.
func New(store storage.Store, cfg config.LearningConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid learning config: %w", err)
	}

	d := &deps{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		log:   zerolog.Nop(),

		voiceCacheTTL: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.locks == nil {
		d.locks = lock.NewLocal()
	}
	if d.metrics == nil {
		d.metrics = metrics.New(nil)
	}
	if d.lexicon == nil {
		lx, err := DefaultLexicon()
		if err != nil {
			return nil, err
		}
		d.lexicon = lx
	}

	e := &Engine{d: d}
	e.Events = &EventLog{deps: d, log: d.log.With().Str("component", "events").Logger()}
	e.Habits = &HabitLearner{deps: d, events: e.Events, log: d.log.With().Str("component", "learner").Logger()}
	e.Predictor = &TaskPredictor{deps: d, events: e.Events, log: d.log.With().Str("component", "predictor").Logger()}
	e.Context = &ContextManager{deps: d, events: e.Events, log: d.log.With().Str("component", "context").Logger()}
	e.Mood = &MoodDetector{deps: d, events: e.Events, log: d.log.With().Str("component", "mood").Logger()}
	e.Voice = newVoiceMatcher(d, e.Events)
	e.Suggestions = &SuggestionEngine{
		deps:      d,
		predictor: e.Predictor,
		context:   e.Context,
		mood:      e.Mood,
	}
	return e, nil
}

// Config returns the learning configuration in effect
func (e *Engine) Config() config.LearningConfig {
	return e.d.cfg
}

// Metrics returns the engine collectors
func (e *Engine) Metrics() *metrics.Metrics {
	return e.d.metrics
}

// withUser runs fn while holding the per-user lock
func (d *deps) withUser(ctx context.Context, userID string, fn func() error) error {
	unlock, err := d.locks.Lock(ctx, "user:"+userID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func requireUser(userID string) error {
	if userID == "" {
		return models.Invalid("user_id", "is required")
	}
	return nil
}
