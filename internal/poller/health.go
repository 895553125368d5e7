package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/allstarteams/sectional-reports/internal/types"
)

// HealthInterval is how often, in units, the health endpoint is polled while the
// pipeline is unavailable.
const HealthInterval = 30

// HealthChecker reads the service health. *client.Client implements it.
type HealthChecker interface {
	Health(ctx context.Context) (*types.HealthStatus, error)
}

// HealthWatcher waits for an unavailable report pipeline to come back.
type HealthWatcher struct {
	checker   HealthChecker
	interval  time.Duration
	onRecover func()
	logger    *slog.Logger
}

// NewHealthWatcher creates a watcher polling every HealthInterval units.
func NewHealthWatcher(checker HealthChecker, unit time.Duration, onRecover func(), logger *slog.Logger) *HealthWatcher {
	if unit <= 0 {
		unit = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthWatcher{
		checker:   checker,
		interval:  HealthInterval * unit,
		onRecover: onRecover,
		logger:    logger,
	}
}

// Watch is called once the pipeline is seen unavailable. It checks the health
// endpoint every interval, calls onRecover when the pipeline is available again and
// returns. Failed checks count as still unavailable. It returns ctx.Err() when ctx ends first.
func (h *HealthWatcher) Watch(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := h.checker.Health(ctx)
		if err != nil {
			h.logger.Warn("health check failed", "error", err)
			continue
		}
		if status.ReportPipeline != types.PipelineUnavailable {
			h.logger.Info("report pipeline available again")
			if h.onRecover != nil {
				h.onRecover()
			}
			return nil
		}
	}
}
