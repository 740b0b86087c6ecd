package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"advisorgate/internal/metrics"
	"advisorgate/internal/usage"
)

// Scheduler periodically resyncs the ledger rows of recently active users.
type Scheduler struct {
	ledger   *Ledger
	schedule string
	metrics  *metrics.Metrics
	log      zerolog.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler for the given cron expression. An empty
// schedule disables it.
func NewScheduler(l *Ledger, schedule string, m *metrics.Metrics, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		ledger:   l,
		schedule: schedule,
		metrics:  m,
		log:      log.With().Str("component", "ledger.scheduler").Logger(),
		cron:     cron.New(),
	}
}

// Start registers the sweep and starts the cron runner. It stops when ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.log.Info().Msg("resync schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("invalid resync schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.running = true
	s.log.Info().Str("schedule", s.schedule).Msg("resync scheduler started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops the runner and waits for an in-flight sweep.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info().Msg("resync scheduler stopped")
}

// RunOnce resyncs every user with history in the last 24h. It keeps going
// past individual failures and returns how many rows were resynced.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	users, err := s.ledger.Recent(ctx, s.ledger.Now().Add(-usage.Window))
	if err != nil {
		return 0, fmt.Errorf("list active users: %w", err)
	}

	done := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		_, err := s.ledger.Resync(ctx, userID)
		s.metrics.Resync(err)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("resync failed")
			continue
		}
		done++
	}
	return done, nil
}

func (s *Scheduler) run(ctx context.Context) {
	n, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error().Err(err).Int("resynced", n).Msg("resync sweep failed")
		return
	}
	s.log.Debug().Int("resynced", n).Msg("resync sweep completed")
}
