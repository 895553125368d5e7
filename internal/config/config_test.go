package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DATABASE_URL", "PORT", "REDIS_URL", "LLM_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY",
	"OPENAI_MODEL", "OPENAI_BASE_URL", "DISPATCH_MODE", "WORKER_CONCURRENCY", "SECTION_DELAY",
	"STALE_JOB_AFTER", "SWEEP_SCHEDULE", "REPORTS_UNAVAILABLE", "AUTO_MIGRATE", "PUBLIC_BASE_URL",
	"LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, DispatchInline, cfg.DispatchMode)
	assert.Equal(t, 2*time.Second, cfg.SectionDelay)
	assert.Equal(t, 15*time.Minute, cfg.StaleJobAfter)
	assert.Equal(t, "@every 1m", cfg.SweepSchedule)
	assert.True(t, cfg.AutoMigrate)
	assert.False(t, cfg.ReportsUnavailable)
	assert.Equal(t, 5, cfg.WorkerConcurrency)

	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/reports")
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "gm-test")
	t.Setenv("DISPATCH_MODE", "queue")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SECTION_DELAY", "500ms")
	t.Setenv("REPORTS_UNAVAILABLE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "sk-test", cfg.LLMAPIKey())
	assert.Equal(t, 500*time.Millisecond, cfg.SectionDelay)
	assert.True(t, cfg.ReportsUnavailable)
}

func TestLoad_MalformedValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SECTION_DELAY", "two seconds"},
		{"REPORTS_UNAVAILABLE", "maybe"},
		{"WORKER_CONCURRENCY", "many"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			assert.Nil(t, cfg)
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:       "postgres://localhost/reports",
			LLMProvider:       "gemini",
			DispatchMode:      DispatchInline,
			WorkerConcurrency: 1,
			StaleJobAfter:     time.Minute,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.LLMProvider = "claude" }, "LLM_PROVIDER"},
		{"queue without redis", func(c *Config) { c.DispatchMode = DispatchQueue }, "REDIS_URL"},
		{"unknown dispatch", func(c *Config) { c.DispatchMode = "cron" }, "DISPATCH_MODE"},
		{"negative delay", func(c *Config) { c.SectionDelay = -time.Second }, "SECTION_DELAY"},
		{"zero stale window", func(c *Config) { c.StaleJobAfter = 0 }, "STALE_JOB_AFTER"},
		{"no workers", func(c *Config) { c.WorkerConcurrency = 0 }, "WORKER_CONCURRENCY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadClientConfig(t *testing.T) {
	content := `{
		"base_url": "https://reports.example.com",
		"user_id": 42,
		"report_type": "ast_professional"
	}`
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://reports.example.com", cfg.BaseURL)
	assert.Equal(t, int64(42), cfg.UserID)
	require.NoError(t, cfg.Validate())

	merged := cfg.MergeWithDefaults(ClientConfig{Token: "abc", ReportType: "ast_personal", Format: "pdf"})
	assert.Equal(t, "abc", merged.Token)
	assert.Equal(t, "ast_professional", merged.ReportType)
	assert.Equal(t, "pdf", merged.Format)
}

func TestLoadClientConfig_Errors(t *testing.T) {
	_, err := LoadClientConfig("")
	assert.ErrorContains(t, err, "config path is empty")

	_, err = LoadClientConfig("/nonexistent/path/client.json")
	assert.ErrorContains(t, err, "failed to read config file")

	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(`{ invalid json }`), 0644))
	_, err = LoadClientConfig(path)
	assert.ErrorContains(t, err, "failed to parse config JSON")

	assert.ErrorContains(t, ClientConfig{BaseURL: "http://x"}.Validate(), "user_id")
}
