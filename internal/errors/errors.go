// Package errors provides domain-specific error types for dsllink.
//
// Stream failures end a single session, validation failures are shown
// to the user and the session carries on, configuration failures stop
// the process before it listens.  Protocol noise from Telnet clients is
// not an error at all; it is absorbed inside the telnet package.
package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrSessionClosed     = errors.New("session closed by peer")
	ErrCircuitOpen       = errors.New("circuit breaker is open")
	ErrBoardUnavailable  = errors.New("message board unavailable")
	ErrEmptyMessage      = errors.New("message cannot be empty")
	ErrTooManySessions   = errors.New("session limit reached")
	ErrNicknameImmutable = errors.New("nickname already set")
)

// ── Structured error types ───────────────────────────────────────────

// StreamError is an I/O failure on a session's connection.  It is never
// retried: the session that sees one terminates.
type StreamError struct {
	Op   string // "read", "write", "negotiate", "accept"
	Addr string // remote address of the session
	Err  error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// ValidationError rejects user input.  It is reported back to the user
// and never tears down the connection.
type ValidationError struct {
	Field   string
	Message string
	Err     error // optional sentinel, e.g. ErrEmptyMessage
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a StreamError.  A nil err yields nil.
func Wrap(op, addr string, err error) error {
	if err == nil {
		return nil
	}
	return &StreamError{Op: op, Addr: addr, Err: err}
}

// EmptyMessage returns the ValidationError for a blank board post.
func EmptyMessage() *ValidationError {
	return &ValidationError{
		Field:   "message",
		Message: "Message cannot be empty. Please try again.",
		Err:     ErrEmptyMessage,
	}
}

// ── Classification helpers ───────────────────────────────────────────

// IsClosed reports whether err means the peer went away rather than
// something actually failing.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionClosed) || errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// IsValidation reports whether err is a user-input rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use dsllink/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
