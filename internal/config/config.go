// Package config provides configuration loading and validation for the service,
// the worker and the command line client.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Dispatch modes select where generation jobs run.
const (
	DispatchInline = "inline"
	DispatchQueue  = "queue"
)

// Config is the service configuration read from the environment.
type Config struct {
	DatabaseURL string
	Port        string
	RedisURL    string

	LLMProvider   string
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	DispatchMode      string
	WorkerConcurrency int
	SectionDelay      time.Duration
	StaleJobAfter     time.Duration
	SweepSchedule     string

	ReportsUnavailable bool
	AutoMigrate        bool
	PublicBaseURL      string

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from environment variables. Malformed numbers,
// booleans and durations are errors; missing values take defaults.
func Load() (*Config, error) {
	e := &envReader{}
	cfg := &Config{
		DatabaseURL: e.string("DATABASE_URL", ""),
		Port:        e.string("PORT", "8080"),
		RedisURL:    e.string("REDIS_URL", ""),

		LLMProvider:   strings.ToLower(e.string("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:  e.string("GEMINI_API_KEY", ""),
		OpenAIAPIKey:  e.string("OPENAI_API_KEY", ""),
		OpenAIModel:   e.string("OPENAI_MODEL", ""),
		OpenAIBaseURL: e.string("OPENAI_BASE_URL", ""),

		DispatchMode:      strings.ToLower(e.string("DISPATCH_MODE", DispatchInline)),
		WorkerConcurrency: e.int("WORKER_CONCURRENCY", 5),
		SectionDelay:      e.duration("SECTION_DELAY", 2*time.Second),
		StaleJobAfter:     e.duration("STALE_JOB_AFTER", 15*time.Minute),
		SweepSchedule:     e.string("SWEEP_SCHEDULE", "@every 1m"),

		ReportsUnavailable: e.bool("REPORTS_UNAVAILABLE", false),
		AutoMigrate:        e.bool("AUTO_MIGRATE", true),
		PublicBaseURL:      e.string("PUBLIC_BASE_URL", ""),

		LogLevel:  e.string("LOG_LEVEL", "info"),
		LogFormat: e.string("LOG_FORMAT", "text"),
	}
	if e.err != nil {
		return nil, e.err
	}
	return cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config error: DATABASE_URL is required")
	}
	switch c.LLMProvider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("config error: LLM_PROVIDER must be 'gemini' or 'openai', got %q", c.LLMProvider)
	}
	switch c.DispatchMode {
	case DispatchInline:
	case DispatchQueue:
		if c.RedisURL == "" {
			return fmt.Errorf("config error: DISPATCH_MODE=queue requires REDIS_URL")
		}
	default:
		return fmt.Errorf("config error: DISPATCH_MODE must be 'inline' or 'queue', got %q", c.DispatchMode)
	}
	if c.SectionDelay < 0 {
		return fmt.Errorf("config error: SECTION_DELAY must be non-negative")
	}
	if c.StaleJobAfter <= 0 {
		return fmt.Errorf("config error: STALE_JOB_AFTER must be positive")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("config error: WORKER_CONCURRENCY must be at least 1")
	}
	return nil
}

// LLMAPIKey returns the API key of the configured provider.
func (c *Config) LLMAPIKey() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// envReader reads typed environment values and keeps the first parse error.
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (e *envReader) string(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}
