package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.LLM.APIKey == "" {
		errs = append(errs, "LLM_API_KEY is required")
	}
	if c.Store.APIKey == "" {
		errs = append(errs, "STORE_API_KEY is required")
	}

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}
	if c.Store.Port < 1 || c.Store.Port > 65535 {
		errs = append(errs, fmt.Sprintf("STORE_PORT must be 1-65535, got %d", c.Store.Port))
	}

	// Token window overrides: either both zero (use the model profile) or a
	// sane pair. The manager re-validates the derived budget at startup.
	if c.LLM.MaxContextTokens < 0 || c.LLM.MaxOutputTokens < 0 {
		errs = append(errs, "LLM token limits must not be negative")
	}
	if c.LLM.MaxOutputTokens > 0 && c.LLM.MaxContextTokens > 0 && c.LLM.MaxOutputTokens >= c.LLM.MaxContextTokens {
		errs = append(errs, "LLM_MAX_OUTPUT_TOKENS must be smaller than LLM_MAX_CONTEXT_TOKENS")
	}

	if c.RateLimit.Requests < 1 || c.RateLimit.AuthRequests < 1 || c.RateLimit.WindowSec < 1 {
		errs = append(errs, "rate limit requests and window must be positive")
	}

	if c.Prices.APIKey == "" {
		slog.Warn("PRICES_API_KEY is empty, CoinGecko calls run against the public tier")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
