package main

import (
	"context"
	"fmt"

	"github.com/allstarteams/sectional-reports/internal/config"
	"github.com/allstarteams/sectional-reports/internal/reports"
	"github.com/allstarteams/sectional-reports/internal/server"
	"github.com/allstarteams/sectional-reports/internal/server/ratelimit"
	"github.com/allstarteams/sectional-reports/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	servePort           string
	serveEmbeddedWorker bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the sectional report endpoints.

With DISPATCH_MODE=inline generation runs in this process. With DISPATCH_MODE=queue jobs are
enqueued to Redis and run by "report_agent worker", or by this process with --embedded-worker.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveEmbeddedWorker, "embedded-worker", false, "Also consume the job queue in this process (queue mode)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServiceConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Port = servePort
	}
	logger := newLogger(cfg)
	ctx := cmd.Context()

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to load JWT config: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = server.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			// the flag still works per instance
			logger.Warn("Redis unavailable, pipeline flag is local to this instance", "error", err)
		} else {
			defer rdb.Close()
		}
	}

	var (
		dispatcher reports.Dispatcher
		shutdown   []func(context.Context)
	)
	switch cfg.DispatchMode {
	case config.DispatchQueue:
		qd, err := worker.NewQueueDispatcher(cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		defer qd.Close()
		dispatcher = qd

		if serveEmbeddedWorker {
			srv, mux, err := worker.NewQueueServer(worker.QueueServerConfig{
				RedisURL:    cfg.RedisURL,
				Concurrency: cfg.WorkerConcurrency,
			}, p.generator, logger)
			if err != nil {
				return err
			}
			if err := srv.Start(mux); err != nil {
				return fmt.Errorf("failed to start worker: %w", err)
			}
			shutdown = append(shutdown, func(context.Context) { srv.Shutdown() })
		}
	default:
		inline := worker.NewInlineDispatcher(p.generator, logger)
		dispatcher = inline
		shutdown = append(shutdown, func(ctx context.Context) {
			if err := inline.Shutdown(ctx); err != nil {
				logger.Warn("generation jobs cancelled at shutdown", "error", err)
			}
		})
	}

	// the queue worker sweeps in queue mode
	if cfg.DispatchMode == config.DispatchInline || serveEmbeddedWorker {
		sweeper := worker.NewSweeper(p.store, cfg.StaleJobAfter, logger)
		if err := sweeper.Start(cfg.SweepSchedule); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	srv := server.New(server.Config{Addr: cfg.Addr()}, server.Deps{
		Service: reports.NewService(p.store, dispatcher, p.generator, logger),
		Flags:   server.NewFeatureFlags(cfg.ReportsUnavailable, rdb),
		Tokens:  server.NewJWTService(jwtCfg).AsTokenValidator(),
		Limiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
	})
	for _, fn := range shutdown {
		srv.OnShutdown(fn)
	}
	return srv.Start(ctx)
}
