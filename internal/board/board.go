// Package board holds the shared message board: an append-only,
// insertion-ordered list of "{nickname}: {text}" entries that every
// session reads and writes.
//
// Two backends satisfy [Board].  [Memory] keeps the list in process and
// is the default.  [Redis] keeps it in a Redis list so that several
// server processes can share one board.
package board

import (
	"context"
	"time"

	dlerrors "dsllink/internal/errors"
)

// Board is the shared message store.  Implementations are safe for
// concurrent use by any number of sessions.
type Board interface {
	// Append adds one message at the end of the board.  Either the
	// whole message is added or nothing is.
	Append(ctx context.Context, nickname, text string) error
	// Snapshot returns every message in posting order.  The slice
	// belongs to the caller and never changes after it is returned.
	Snapshot(ctx context.Context) ([]string, error)
	// Len returns the number of messages on the board.
	Len(ctx context.Context) (int, error)
}

// Message is one board entry.
type Message struct {
	Nickname string
	Text     string
	Posted   time.Time
}

// String renders the message the way it is shown on the board.
func (m Message) String() string {
	return m.Nickname + ": " + m.Text
}

// validate rejects a post that the session layer should already have
// filtered out.
func validate(text string) error {
	if text == "" {
		return dlerrors.EmptyMessage()
	}
	return nil
}
