package main

import (
	"fmt"

	"github.com/allstarteams/sectional-reports/internal/worker"
	"github.com/spf13/cobra"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the queue worker that generates report sections",
	Long:  `Consume report:generate tasks from Redis (DISPATCH_MODE=queue) and sweep stale jobs. Blocks until SIGINT/SIGTERM.`,
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "Concurrent jobs (overrides WORKER_CONCURRENCY)")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServiceConfig()
	if err != nil {
		return err
	}
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required to run the worker")
	}
	if workerConcurrency > 0 {
		cfg.WorkerConcurrency = workerConcurrency
	}
	logger := newLogger(cfg)

	p, err := newPipeline(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	sweeper := worker.NewSweeper(p.store, cfg.StaleJobAfter, logger)
	if err := sweeper.Start(cfg.SweepSchedule); err != nil {
		return err
	}
	defer sweeper.Stop()

	srv, mux, err := worker.NewQueueServer(worker.QueueServerConfig{
		RedisURL:    cfg.RedisURL,
		Concurrency: cfg.WorkerConcurrency,
	}, p.generator, logger)
	if err != nil {
		return err
	}
	// Run handles its own signal interception
	return srv.Run(mux)
}
