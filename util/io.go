package util

import (
	"errors"
	"io"
	"net"
	"os"
)

// IsHarmless returns true for errors that are expected when a peer goes
// away: EOF, a closed connection, or an idle deadline firing.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// CloseQuietly closes c and discards the error.
func CloseQuietly(c io.Closer) {
	if c != nil {
		c.Close() //nolint:errcheck
	}
}
