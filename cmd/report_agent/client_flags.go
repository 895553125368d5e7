package main

import (
	"fmt"
	"os"

	"github.com/allstarteams/sectional-reports/internal/client"
	"github.com/allstarteams/sectional-reports/internal/config"
	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/spf13/cobra"
)

// clientFlags are shared by the commands that call the API.
type clientFlags struct {
	configPath string
	cfg        config.ClientConfig
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to a client config JSON file (flags override its values)")
	cmd.Flags().StringVar(&f.cfg.BaseURL, "base-url", "", "API base URL (defaults to REPORTS_BASE_URL or http://localhost:8080)")
	cmd.Flags().StringVar(&f.cfg.Token, "token", "", "Bearer token (defaults to REPORTS_TOKEN)")
	cmd.Flags().Int64VarP(&f.cfg.UserID, "user", "u", 0, "Participant id")
	cmd.Flags().StringVarP(&f.cfg.ReportType, "type", "t", "", "Report type: ast_personal or ast_professional (default ast_personal)")
	cmd.Flags().StringVar(&f.cfg.Format, "format", "", "Final report format: html, json, text or pdf (default html)")
}

// resolve merges flags over the config file over the environment defaults.
func (f *clientFlags) resolve() (config.ClientConfig, error) {
	cfg := f.cfg
	if f.configPath != "" {
		fileCfg, err := config.LoadClientConfig(f.configPath)
		if err != nil {
			return config.ClientConfig{}, err
		}
		cfg = cfg.MergeWithDefaults(*fileCfg)
	}
	cfg = cfg.MergeWithDefaults(config.ClientConfig{
		BaseURL:    envOr("REPORTS_BASE_URL", "http://localhost:8080"),
		Token:      os.Getenv("REPORTS_TOKEN"),
		ReportType: string(types.ReportTypePersonal),
		Format:     "html",
	})
	if err := cfg.Validate(); err != nil {
		return config.ClientConfig{}, err
	}
	if _, err := types.ParseReportType(cfg.ReportType); err != nil {
		return config.ClientConfig{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

func newAPIClient(cfg config.ClientConfig) (*client.Client, error) {
	return client.New(cfg.BaseURL, client.WithToken(cfg.Token))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
