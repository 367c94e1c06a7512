// Package transport owns the network side of a session: opening the
// listening socket and wrapping each accepted connection so that it
// times out when idle and reports its traffic to the metrics collector.
// What happens over the connection is the capability layer's job.
package transport

import (
	"context"
	"net"
	"time"
)

// KeepAlive is the TCP keep-alive period set on the listener, so dead
// peers are noticed even with the idle timeout disabled.
const KeepAlive = 30 * time.Second

// Listen opens a listening socket on address.  network is "tcp",
// "tcp4" or "tcp6".
func Listen(ctx context.Context, network, address string) (net.Listener, error) {
	lc := net.ListenConfig{KeepAlive: KeepAlive}
	return lc.Listen(ctx, network, address)
}
