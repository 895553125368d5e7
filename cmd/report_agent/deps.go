package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allstarteams/sectional-reports/internal/config"
	"github.com/allstarteams/sectional-reports/internal/db"
	"github.com/allstarteams/sectional-reports/internal/llm"
	"github.com/allstarteams/sectional-reports/internal/reports"
	"github.com/allstarteams/sectional-reports/internal/worker"
)

// loadServiceConfig reads and validates the environment of serve and worker.
func loadServiceConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger := worker.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return logger
}

// llmConfig selects the provider configuration and its API key.
func llmConfig(cfg *config.Config) (*llm.Config, string, error) {
	provider, err := llm.ParseProvider(cfg.LLMProvider)
	if err != nil {
		return nil, "", err
	}
	c := llm.ConfigFor(provider)
	if provider == llm.ProviderOpenAI {
		if cfg.OpenAIModel != "" {
			c = c.WithModel(llm.TierStandard, cfg.OpenAIModel)
		}
		c.BaseURL = cfg.OpenAIBaseURL
	}
	return c, cfg.LLMAPIKey(), nil
}

// openStore connects to Postgres and applies pending migrations when AUTO_MIGRATE is on.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.DB, error) {
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.MigrateUp(); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("database migrations applied")
	}
	return database, nil
}

// pipeline is the generation stack shared by serve and worker.
type pipeline struct {
	store     *db.DB
	content   llm.Client
	generator *reports.Generator
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	llmCfg, apiKey, err := llmConfig(cfg)
	if err != nil {
		return nil, err
	}
	database, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	content, err := llm.NewClient(ctx, llmCfg, apiKey)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create content generator: %w", err)
	}
	logger.Info("content generator ready", "provider", llmCfg.Provider, "model", content.GetModel(llm.TierStandard))

	return &pipeline{
		store:     database,
		content:   content,
		generator: reports.NewGenerator(database, content, logger, reports.WithSectionDelay(cfg.SectionDelay)),
	}, nil
}

func (p *pipeline) Close() {
	_ = p.content.Close()
	p.store.Close()
}
