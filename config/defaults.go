package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so CLI flags, environment loading and
// tests agree on them.

const (
	// DefaultBindAddress keeps the server private to the host unless an
	// operator asks otherwise.
	DefaultBindAddress = "127.0.0.1"

	// DefaultPort is the standard Telnet port.
	DefaultPort = 23

	// DefaultIdleTimeout closes sessions with no traffic in either
	// direction for this long.
	DefaultIdleTimeout = 10 * time.Minute

	// DefaultMaxLineLength bounds one input line in bytes.
	DefaultMaxLineLength = 4096

	// DefaultMaxSubnegotiation bounds the bytes scanned for IAC SE.
	DefaultMaxSubnegotiation = 1024

	// DefaultRedisKey is the Redis list holding a shared board.
	DefaultRedisKey = "dsllink:board"

	// DefaultVerbosity prints informational messages.
	DefaultVerbosity = 1

	// DefaultGracePeriod is how long shutdown waits for sessions to
	// finish after their connections are closed.
	DefaultGracePeriod = 5 * time.Second
)
