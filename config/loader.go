package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the DSLLINK_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Unset or
// unparsable variables leave the current value alone.  Call it before
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("DSLLINK_BIND"); v != "" {
		cfg.Host = v
	}
	if v, ok := envInt("DSLLINK_PORT"); ok {
		cfg.Port = v
	}
	if v, ok := envInt("DSLLINK_TIMEOUT"); ok {
		cfg.IdleTimeout = secondsDuration(v)
	}
	if v, ok := envInt("DSLLINK_MAX_LINE"); ok {
		cfg.MaxLineLength = v
	}
	if v, ok := envInt("DSLLINK_MAX_SUBNEG"); ok {
		cfg.MaxSubnegotiation = v
	}
	if v, ok := envInt("DSLLINK_MAX_SESSIONS"); ok {
		cfg.MaxSessions = v
	}

	// Board backend
	if v := os.Getenv("DSLLINK_REDIS"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("DSLLINK_REDIS_KEY"); v != "" {
		cfg.RedisKey = v
	}
	if v, ok := envInt("DSLLINK_REDIS_DB"); ok {
		cfg.RedisDB = v
	}

	// Output
	if v, ok := envInt("DSLLINK_VERBOSE"); ok {
		cfg.Verbose = v
	}
	if envBool("DSLLINK_DRY_RUN") {
		cfg.DryRun = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
