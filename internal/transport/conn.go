package transport

import (
	"net"
	"os"
	"sync/atomic"
	"time"

	"dsllink/internal/metrics"
)

// Conn is an accepted connection with an idle deadline and traffic
// accounting.  Each Read and Write moves its own deadline idle into the
// future, so a session times out when a single read or write waits
// longer than idle.
type Conn struct {
	net.Conn
	idle      time.Duration
	collector *metrics.Collector
	stopped   atomic.Bool
}

// Wrap returns c with idle timeout and byte counting.  An idle of zero
// disables the timeout; a nil collector disables counting.
func Wrap(c net.Conn, idle time.Duration, collector *metrics.Collector) *Conn {
	return &Conn{Conn: c, idle: idle, collector: collector}
}

func (c *Conn) Read(p []byte) (int, error) {
	if c.idle > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
			return 0, err
		}
	}
	// Checked after the deadline is set so a concurrent StopReading
	// cannot be overridden by it.
	if c.stopped.Load() {
		return 0, os.ErrDeadlineExceeded
	}
	n, err := c.Conn.Read(p)
	c.collector.BytesReceived(int64(n))
	return n, err
}

func (c *Conn) Write(p []byte) (int, error) {
	if c.idle > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.idle)); err != nil {
			return 0, err
		}
	}
	n, err := c.Conn.Write(p)
	c.collector.BytesSent(int64(n))
	return n, err
}

// StopReading fails the pending Read and every later one with
// os.ErrDeadlineExceeded.  Writes keep working, so the owner of the
// connection can still say goodbye.  Safe for concurrent use.
func (c *Conn) StopReading() {
	c.stopped.Store(true)
	c.Conn.SetReadDeadline(time.Now()) //nolint:errcheck
}

// Idle returns the configured idle timeout.
func (c *Conn) Idle() time.Duration { return c.idle }
