package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Exact path, or a prefix when it ends in "/"
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig reads RATE_LIMIT_* variables. Malformed values keep their defaults.
func LoadConfig() *Config {
	if !envValue("RATE_LIMIT_ENABLED", true, strconv.ParseBool) {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    envValue("RATE_LIMIT_DEFAULT_LIMIT", 1000, strconv.Atoi),
		DefaultWindow:   envValue("RATE_LIMIT_DEFAULT_WINDOW", time.Minute, time.ParseDuration),
		CleanupInterval: envValue("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute, time.ParseDuration),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: ReportEndpoints(envValue("RATE_LIMIT_GENERATE_PER_HOUR", 0, strconv.Atoi)),
	}
}

// ReportEndpoints returns the limits of the report routes. Triggers and section
// regenerations call the content generator, so they are limited per hour;
// generatePerHour > 0 replaces the trigger limit.
func ReportEndpoints(generatePerHour int) []EndpointConfig {
	if generatePerHour <= 0 {
		generatePerHour = 20
	}
	return []EndpointConfig{
		{Path: "/generate/", Method: "POST", Limit: generatePerHour, Window: time.Hour, Burst: 5},
		{Path: "/sections/", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},

		{Path: "/sections/", Method: "PUT", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/reports/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/admin/report-pipeline", Method: "PUT", Limit: 30, Window: time.Minute, Burst: 5},
	}
}

func envValue[T any](key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

// parseIPList parses a comma-separated list of client IPs.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
