package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/allstarteams/sectional-reports/internal/client"
	"github.com/allstarteams/sectional-reports/internal/config"
	"github.com/allstarteams/sectional-reports/internal/observability"
	"github.com/allstarteams/sectional-reports/internal/poller"
	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/spf13/cobra"
)

var (
	watchFlags   clientFlags
	watchOptions watchOpts
)

type watchOpts struct {
	Trigger    bool
	Regenerate bool
	Sections   []int
	Open       bool
	Unit       time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the progress of a report",
	Long: `Poll the progress of a report and print it until the generation finishes.

With --trigger the generation is started first. While the report pipeline is switched off
the command waits for it to come back. With --open the final report URL is printed once
the report is complete.`,
	RunE: runWatch,
}

func init() {
	watchFlags.register(watchCmd)
	watchCmd.Flags().BoolVar(&watchOptions.Trigger, "trigger", false, "Start generation before watching")
	watchCmd.Flags().BoolVar(&watchOptions.Regenerate, "regenerate", false, "Rebuild an existing report (with --trigger)")
	watchCmd.Flags().IntSliceVar(&watchOptions.Sections, "sections", nil, "Regenerate only these section ids")
	watchCmd.Flags().BoolVar(&watchOptions.Open, "open", false, "Print the final report URL once complete")
	watchCmd.Flags().DurationVar(&watchOptions.Unit, "unit", time.Second, "Length of one polling time unit")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := watchFlags.resolve()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchReport(ctx, cmd.OutOrStdout(), cfg, watchOptions)
}

// watchReport follows one report until its poller stops and returns the final snapshot's outcome.
func watchReport(ctx context.Context, out io.Writer, cfg config.ClientConfig, opts watchOpts) error {
	if opts.Unit <= 0 {
		opts.Unit = time.Second
	}
	c, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	// progress is printed from the poll goroutine
	out = &lockedWriter{w: out}
	printer := observability.NewPrinter(out)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if health, err := c.Health(ctx); err == nil && health.ReportPipeline == types.PipelineUnavailable {
		printer.PrintMessage("MAINTENANCE", "Report generation is paused, waiting for it to resume")
		recovered := func() { printer.PrintMessage("MAINTENANCE", "Report generation is available again") }
		if err := poller.NewHealthWatcher(c, opts.Unit, recovered, logger).Watch(ctx); err != nil {
			return err
		}
	}

	var p *poller.Poller
	p = poller.New(c, poller.Config{
		UserID:     cfg.UserID,
		ReportType: types.ReportType(cfg.ReportType),
		Unit:       opts.Unit,
		Logger:     logger,
		OnUpdate: func(rp types.ReportProgress) {
			cd := p.Countdown()
			printer.PrintProgress(rp, cd.Phase(), cd.Remaining())
		},
	})
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	if opts.Trigger {
		if _, err := p.Trigger(ctx, opts.Regenerate, opts.Sections...); err != nil {
			printer.PrintMessage("ERROR", p.Message())
			return err
		}
	}

	ticker := time.NewTicker(opts.Unit)
	defer ticker.Stop()
	for p.State() != poller.StateStopped {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	final := p.Snapshot()
	switch final.OverallStatus {
	case types.StatusCompleted:
		if opts.Open {
			return p.OpenFinalReport(poller.WriterOpener{W: out}, cfg.Format)
		}
		return nil
	case types.StatusFailed, types.StatusPartialFailure:
		printer.PrintMessage("GENERATION FAILED", "Some sections failed. Retry with --trigger --regenerate")
		return fmt.Errorf("report generation finished with status %s", final.OverallStatus)
	default:
		if err := p.Err(); err != nil {
			printer.PrintMessage("ERROR", client.UserMessage(err))
			return err
		}
		printer.PrintMessage("NO REPORT", "No generation is running for this report. Start one with --trigger")
		return nil
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}
