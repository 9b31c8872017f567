package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// runtimeConfig holds the environment-driven settings named in §6, besides
// --state-dir (which goes through the flag's own env-sourced default so it
// stays overridable on the command line).
type runtimeConfig struct {
	MaxConcurrency int           `validate:"min=1"`
	LockTimeout    time.Duration `validate:"min=0"`
	ApplyRetries   int           `validate:"min=0"`
}

var configValidator = validator.New()

// loadRuntimeConfig reads MAX_CONCURRENCY, LOCK_TIMEOUT_MS, and
// APPLY_RETRIES, falling back to their documented defaults when unset.
func loadRuntimeConfig() (runtimeConfig, error) {
	cfg := runtimeConfig{
		MaxConcurrency: envInt("MAX_CONCURRENCY", 1),
		LockTimeout:    time.Duration(envInt("LOCK_TIMEOUT_MS", 30000)) * time.Millisecond,
		ApplyRetries:   envInt("APPLY_RETRIES", 3),
	}
	if err := configValidator.Struct(cfg); err != nil {
		return runtimeConfig{}, fmt.Errorf("invalid runtime configuration: %w", err)
	}
	return cfg, nil
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
