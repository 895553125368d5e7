package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/allstarteams/sectional-reports/internal/db"
	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// TimedOutMessage is recorded on sections of a job the sweeper gives up on.
const TimedOutMessage = "generation timed out"

// SweepStore is the part of the report store the sweeper needs.
type SweepStore interface {
	StaleJobs(ctx context.Context, startedBefore time.Time) ([]types.Job, error)
	AbandonJob(ctx context.Context, jobID uuid.UUID, generation int, message string) (types.OverallStatus, int64, error)
}

// Sweeper settles jobs whose worker died. A job still running after staleAfter
// gets its unfinished sections failed, a terminal status and a new generation,
// so a worker that was only slow stops at its next write.
type Sweeper struct {
	store      SweepStore
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
	cron       *cron.Cron
}

// NewSweeper creates a Sweeper.
func NewSweeper(store SweepStore, staleAfter time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:      store,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Start runs Sweep on the cron schedule (e.g. "@every 1m").
func (s *Sweeper) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("stale job sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("Sweeper started", "schedule", schedule, "stale_after", s.staleAfter)
	return nil
}

// Stop stops the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep settles every stale job and returns how many it settled.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	jobs, err := s.store.StaleJobs(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, job := range jobs {
		status, n, err := s.store.AbandonJob(ctx, job.ID, job.Generation, TimedOutMessage)
		if errors.Is(err, db.ErrSuperseded) {
			continue
		}
		if err != nil {
			return settled, err
		}
		settled++
		s.logger.Warn("stale report job settled",
			"report_id", job.ID, "user_id", job.UserID, "report_type", job.ReportType,
			"sections_failed", n, "status", status)
	}
	return settled, nil
}
