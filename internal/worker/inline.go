package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/allstarteams/sectional-reports/internal/types"
)

// ErrShuttingDown is returned by Dispatch once Shutdown has been called.
var ErrShuttingDown = errors.New("dispatcher is shutting down")

// Runner executes a dispatched job. *reports.Generator implements it.
type Runner interface {
	Run(ctx context.Context, ref types.JobRef) error
}

// InlineDispatcher runs every job on its own goroutine inside the server process.
// Jobs outlive the request that started them and are cancelled only by Shutdown.
type InlineDispatcher struct {
	runner Runner
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewInlineDispatcher creates an InlineDispatcher.
func NewInlineDispatcher(runner Runner, logger *slog.Logger) *InlineDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InlineDispatcher{runner: runner, logger: logger, ctx: ctx, cancel: cancel}
}

// Dispatch starts the job and returns immediately.
func (d *InlineDispatcher) Dispatch(_ context.Context, ref types.JobRef) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrShuttingDown
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.runner.Run(d.ctx, ref); err != nil {
			d.logger.Error("report generation failed",
				"report_id", ref.ReportID, "generation", ref.Generation, "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting jobs and waits for running ones. When ctx expires first
// the running jobs are cancelled and ctx.Err() is returned.
func (d *InlineDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
