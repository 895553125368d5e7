package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ClientConfig configures the command line client. It can be loaded from a JSON
// file; CLI flags fill or override it.
type ClientConfig struct {
	BaseURL    string `json:"base_url,omitempty"`    // API base URL
	Token      string `json:"token,omitempty"`       // Bearer token
	UserID     int64  `json:"user_id,omitempty"`     // Participant id
	ReportType string `json:"report_type,omitempty"` // ast_personal or ast_professional
	Format     string `json:"format,omitempty"`      // Final report format
}

// LoadClientConfig loads client configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadClientConfig(path string) (*ClientConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg ClientConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// MergeWithDefaults returns a new ClientConfig with empty fields filled from defaults.
func (c ClientConfig) MergeWithDefaults(defaults ClientConfig) ClientConfig {
	result := c
	if result.BaseURL == "" {
		result.BaseURL = defaults.BaseURL
	}
	if result.Token == "" {
		result.Token = defaults.Token
	}
	if result.UserID == 0 {
		result.UserID = defaults.UserID
	}
	if result.ReportType == "" {
		result.ReportType = defaults.ReportType
	}
	if result.Format == "" {
		result.Format = defaults.Format
	}
	return result
}

// Validate checks the fields every client command needs.
func (c ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config error: 'base_url' is required")
	}
	if c.UserID <= 0 {
		return fmt.Errorf("config error: 'user_id' must be positive")
	}
	return nil
}
