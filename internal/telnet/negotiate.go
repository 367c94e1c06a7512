package telnet

import (
	"fmt"
	"io"
)

// handshake is sent once when a connection opens: offer line mode,
// ask the client to suppress go-ahead and to report its window size,
// and take over echoing.
var handshake = [...][3]byte{
	{IAC, WILL, OptLinemode},
	{IAC, DO, OptSuppressGoAhead},
	{IAC, DO, OptNAWS},
	{IAC, WILL, OptEcho},
}

// Negotiate writes the opening handshake to w as four separate 3-byte
// writes.  It does not wait for replies; whatever the client answers
// is skipped later by the [Decoder].  The first write error is returned
// and nothing further is sent.
func Negotiate(w io.Writer) error {
	for _, seq := range handshake {
		if _, err := w.Write(seq[:]); err != nil {
			return fmt.Errorf("telnet: send %s %s: %w",
				CommandName(seq[1]), OptionName(seq[2]), err)
		}
	}
	return nil
}
