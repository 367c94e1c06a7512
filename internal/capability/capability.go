// Package capability defines what happens over an established session.
// Each Capability encapsulates one conversation with the user and
// operates on a Session rather than a raw net.Conn, which keeps it
// testable and free of Telnet details.
package capability

import (
	"context"

	"dsllink/internal/session"
)

// Capability drives a single session.
type Capability interface {
	// Handle runs the conversation.  It returns nil when the user ends
	// it normally and an error matching ErrSessionClosed when the peer
	// went away first.
	Handle(ctx context.Context, sess *session.Session) error
}
