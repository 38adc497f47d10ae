// ABOUTME: Sweeper periodically re-learns habits for every profile on a cron schedule
// ABOUTME: Users are processed in parallel up to a bound, each behind its per-user lock
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SweepReport summarizes one sweep
type SweepReport struct {
	Users         int           `json:"users"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	EventsScanned int           `json:"events_scanned"`
	HabitsCreated int           `json:"habits_created"`
	Duration      time.Duration `json:"duration"`
}

// Sweeper runs learn for all users
type Sweeper struct {
	engine      *Engine
	schedule    string
	concurrency int
	cron        *cron.Cron
	log         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSweeper creates a sweeper for the given cron schedule (for example
// "@every 6h") with at most concurrency users learned at once.
func (e *Engine) NewSweeper(schedule string, concurrency int) *Sweeper {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		engine:      e,
		schedule:    schedule,
		concurrency: concurrency,
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:         e.d.log.With().Str("component", "sweeper").Logger(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start registers the sweep and starts the scheduler
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(s.ctx); err != nil {
			s.log.Error().Err(err).Msg("sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Int("concurrency", s.concurrency).Msg("sweeper started")
	return nil
}

// Stop cancels an in-flight sweep and waits for it to return
func (s *Sweeper) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunOnce learns every profile. A failure for one user is logged and counted
// without stopping the others; only listing profiles or cancellation fails
// the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepReport, error) {
	start := time.Now()
	profiles, err := s.engine.Events.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Users: len(profiles)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, p := range profiles {
		userID := p.UserID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.engine.Habits.Learn(gctx, userID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				report.Failed++
				s.engine.d.metrics.SweepRuns.WithLabelValues("error").Inc()
				s.log.Error().Err(err).Str("user_id", userID).Msg("sweep learn failed")
				return nil
			}
			report.Succeeded++
			report.EventsScanned += res.EventsScanned
			report.HabitsCreated += res.Created
			s.engine.d.metrics.SweepRuns.WithLabelValues("ok").Inc()
			return nil
		})
	}
	err = g.Wait()
	report.Duration = time.Since(start)

	s.log.Info().
		Int("users", report.Users).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("sweep finished")
	return report, err
}
