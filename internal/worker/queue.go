package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/hibiken/asynq"
)

// TaskGenerateReport is the asynq task type of a report generation job.
const TaskGenerateReport = "report:generate"

// TaskID names the task of one job generation. A second enqueue of the same
// generation is rejected by asynq.
func TaskID(ref types.JobRef) string {
	return fmt.Sprintf("report:%d:%s:%d", ref.UserID, ref.ReportType, ref.Generation)
}

// NewGenerateTask builds the asynq task for a job.
func NewGenerateTask(ref types.JobRef) (*asynq.Task, error) {
	payload, err := json.Marshal(ref)
	if err != nil {
		return nil, err
	}
	// a failed run is not retried; sections keep their own attempt counters
	return asynq.NewTask(
		TaskGenerateReport,
		payload,
		asynq.TaskID(TaskID(ref)),
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// QueueDispatcher enqueues jobs for the worker process.
type QueueDispatcher struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewQueueDispatcher connects to the Redis instance behind redisURL.
func NewQueueDispatcher(redisURL string, logger *slog.Logger) (*QueueDispatcher, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueDispatcher{client: asynq.NewClient(opt), logger: logger}, nil
}

// Dispatch enqueues the job. A job generation that is already queued is not an error.
func (d *QueueDispatcher) Dispatch(ctx context.Context, ref types.JobRef) error {
	task, err := NewGenerateTask(ref)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		d.logger.Info("report task already queued", "task_id", TaskID(ref))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue report task: %w", err)
	}
	d.logger.Info("report task enqueued", "task_id", info.ID, "queue", info.Queue)
	return nil
}

// Close closes the Redis connection.
func (d *QueueDispatcher) Close() error {
	return d.client.Close()
}

// QueueServerConfig configures the queue consumer.
type QueueServerConfig struct {
	RedisURL        string
	Concurrency     int
	ShutdownTimeout time.Duration
}

// NewQueueServer creates the asynq server and mux that run report tasks.
func NewQueueServer(cfg QueueServerConfig, runner Runner, logger *slog.Logger) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Concurrency,
		ShutdownTimeout: cfg.ShutdownTimeout,
		ErrorHandler:    asynq.ErrorHandlerFunc(errorHandler(logger)),
		Logger:          &asynqLogger{logger: logger},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskGenerateReport, HandleGenerate(runner, logger))

	logger.Info("Worker starting", "concurrency", cfg.Concurrency)
	return srv, mux, nil
}

// HandleGenerate processes report:generate tasks.
func HandleGenerate(runner Runner, logger *slog.Logger) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var ref types.JobRef
		if err := json.Unmarshal(task.Payload(), &ref); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}
		if _, err := types.ParseReportType(string(ref.ReportType)); err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		logger.Info("Processing report:generate task",
			"report_id", ref.ReportID, "user_id", ref.UserID, "generation", ref.Generation)
		return runner.Run(ctx, ref)
	}
}

func errorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		logger.Error("Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)
	}
}
