// Package scheduler runs periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// Auditor checks stored offers for accounting violations.
// Implemented by service.AuditService.
type Auditor interface {
	Audit(ctx context.Context) (int, error)
}

// Scheduler owns the gocron scheduler and its jobs.
type Scheduler struct {
	s gocron.Scheduler
}

// New creates a stopped Scheduler.
func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{s: s}, nil
}

// AddAudit runs auditor every interval, starting immediately. Runs never overlap;
// each is bounded by timeout.
func (s *Scheduler) AddAudit(auditor Auditor, interval, timeout time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("audit interval must be positive, got %s", interval)
	}

	_, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			n, err := auditor.Audit(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("offer accounting audit failed")
				return
			}
			log.Info().Int("violations", n).Msg("offer accounting audit completed")
		}),
		gocron.WithName("offer-accounting-audit"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule audit job: %w", err)
	}
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.s.Start()
	log.Info().Int("jobs", len(s.s.Jobs())).Msg("scheduler started")
}

// Shutdown stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Shutdown() error {
	if err := s.s.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}
