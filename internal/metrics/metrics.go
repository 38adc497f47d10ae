// ABOUTME: Prometheus collectors for the learning engine
// ABOUTME: Collectors register against an injected registerer so tests stay isolated
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "attune"

// Metrics holds every collector the engine updates
type Metrics struct {
	LearnRuns          *prometheus.CounterVec
	LearnDuration      prometheus.Histogram
	EventsScanned      prometheus.Counter
	HabitsCreated      prometheus.Counter
	HabitsUpdated      prometheus.Counter
	PredictionsEmitted prometheus.Counter
	Feedback           *prometheus.CounterVec
	MoodDetections     *prometheus.CounterVec
	Recognitions       *prometheus.CounterVec
	SweepRuns          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg gets a
// private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		LearnRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learn_runs_total",
			Help:      "Learn passes by result (ok, cancelled, error)",
		}, []string{"result"}),
		LearnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "learn_duration_seconds",
			Help:      "Duration of a learn pass",
			Buckets:   prometheus.DefBuckets,
		}),
		EventsScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learn_events_scanned_total",
			Help:      "Events read by learn passes",
		}),
		HabitsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "habits_created_total",
			Help:      "Habits created by learning",
		}),
		HabitsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "habits_updated_total",
			Help:      "Existing habits recomputed by learning",
		}),
		PredictionsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_emitted_total",
			Help:      "Predictions returned to callers",
		}),
		Feedback: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_feedback_total",
			Help:      "Prediction feedback by outcome",
		}, []string{"outcome"}),
		MoodDetections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mood_detections_total",
			Help:      "Mood detections by label",
		}, []string{"label"}),
		Recognitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_recognitions_total",
			Help:      "Voice recognitions by outcome (recognized, unrecognized)",
		}, []string{"outcome"}),
		SweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_users_total",
			Help:      "Per-user learn runs performed by the background sweep",
		}, []string{"result"}),
	}
}
