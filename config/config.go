// Package config defines the runtime configuration for dsllink: where
// to listen, per-session limits and the board backend.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	dlerrors "dsllink/internal/errors"
	"dsllink/util"
)

// Config holds every tuneable for one server process.
type Config struct {
	// ── Listener ─────────────────────────────────────────────────────
	Host        string
	Port        int
	IdleTimeout time.Duration // 0 disables
	MaxSessions int           // 0 means unlimited
	GracePeriod time.Duration

	// ── Protocol limits ──────────────────────────────────────────────
	MaxLineLength     int
	MaxSubnegotiation int

	// ── Board backend ────────────────────────────────────────────────
	RedisAddr string // empty keeps the board in memory
	RedisKey  string
	RedisDB   int

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	DryRun  bool
}

// Default returns a Config populated with the package defaults.
func Default() *Config {
	return &Config{
		Host:              DefaultBindAddress,
		Port:              DefaultPort,
		IdleTimeout:       DefaultIdleTimeout,
		GracePeriod:       DefaultGracePeriod,
		MaxLineLength:     DefaultMaxLineLength,
		MaxSubnegotiation: DefaultMaxSubnegotiation,
		RedisKey:          DefaultRedisKey,
		Verbose:           DefaultVerbosity,
	}
}

// Address returns host:port for the listener.
func (c *Config) Address() string {
	return util.FormatAddr(c.Host, c.Port)
}

// RedisEnabled reports whether the board lives in Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// ParsePort accepts a decimal port number in 1–65535.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is usable.  Every failure is a
// *dlerrors.ConfigError naming the offending flag.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return &dlerrors.ConfigError{
			Field:   "bind",
			Message: "bind address is required",
			Hint:    "use 0.0.0.0 to listen on every interface",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &dlerrors.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "port out of range 1-65535",
			Hint:    "ports below 1024 usually need elevated privileges; try -p 2323",
		}
	}
	if c.IdleTimeout < 0 {
		return &dlerrors.ConfigError{
			Field:   "timeout",
			Value:   c.IdleTimeout,
			Message: "idle timeout cannot be negative",
			Hint:    "use 0 to disable the idle timeout",
		}
	}
	if c.MaxLineLength <= 0 {
		return &dlerrors.ConfigError{
			Field:   "max-line",
			Value:   c.MaxLineLength,
			Message: "line limit must be positive",
		}
	}
	if c.MaxSubnegotiation <= 0 {
		return &dlerrors.ConfigError{
			Field:   "max-subneg",
			Value:   c.MaxSubnegotiation,
			Message: "subnegotiation limit must be positive",
		}
	}
	if c.MaxSessions < 0 {
		return &dlerrors.ConfigError{
			Field:   "max-sessions",
			Value:   c.MaxSessions,
			Message: "session limit cannot be negative",
			Hint:    "use 0 for no limit",
		}
	}
	if c.RedisEnabled() {
		if strings.TrimSpace(c.RedisKey) == "" {
			return &dlerrors.ConfigError{
				Field:   "redis-key",
				Message: "a Redis key is required when --redis is set",
			}
		}
		if c.RedisDB < 0 {
			return &dlerrors.ConfigError{
				Field:   "redis-db",
				Value:   c.RedisDB,
				Message: "Redis database index cannot be negative",
			}
		}
	}
	if c.GracePeriod < 0 {
		return &dlerrors.ConfigError{
			Field:   "grace",
			Value:   c.GracePeriod,
			Message: "grace period cannot be negative",
		}
	}
	return nil
}
