package config

import (
	"fmt"
	"time"
)

// JWTConfig holds the settings for verifying and issuing API bearer tokens.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	Issuer          string
}

// NewJWTConfig reads JWT_SECRET (required), JWT_EXPIRATION_HOURS (default 24)
// and JWT_ISSUER (default sectional-reports).
func NewJWTConfig() (*JWTConfig, error) {
	e := &envReader{}
	cfg := &JWTConfig{
		Secret:          e.string("JWT_SECRET", ""),
		ExpirationHours: e.int("JWT_EXPIRATION_HOURS", 24),
		Issuer:          e.string("JWT_ISSUER", "sectional-reports"),
	}
	if e.err != nil {
		return nil, e.err
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("config error: JWT_SECRET is required")
	}
	if cfg.ExpirationHours < 1 {
		return nil, fmt.Errorf("config error: JWT_EXPIRATION_HOURS must be at least 1, got %d", cfg.ExpirationHours)
	}
	return cfg, nil
}

// Expiration is the lifetime of an issued token.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}
