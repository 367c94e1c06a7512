// Package session represents a single client connection for its whole
// lifetime: the stream, the client's terminal size, the Telnet line
// decoder and the nickname chosen at login.
//
// Capabilities talk to a Session rather than to a raw net.Conn, so they
// never deal with IAC sequences, echo or word wrap themselves.
package session

import (
	"net"
	"strings"
	"sync"
	"time"

	dlerrors "dsllink/internal/errors"
	"dsllink/internal/telnet"
	"dsllink/util"
)

// Session is the runtime state of one connection.  It is owned by the
// goroutine serving the connection; only Close and Interrupt may be
// called from elsewhere.
type Session struct {
	Conn   net.Conn
	Dims   *telnet.Dimensions
	Logger *util.Logger

	addr     string
	decoder  *telnet.Decoder
	nickname string
	named    bool

	closeOnce sync.Once
	closeErr  error
}

// New binds a session to conn.  Input is decoded with the given decoder
// options and echoed back over conn.  The logger is tagged with the
// peer address.
func New(conn net.Conn, logger *util.Logger, opts ...telnet.Option) *Session {
	addr := util.RemoteName(conn)
	if logger == nil {
		logger = util.NewLogger(0)
	}
	dims := telnet.DefaultDimensions()
	return &Session{
		Conn:    conn,
		Dims:    dims,
		Logger:  logger.With(addr),
		addr:    addr,
		decoder: telnet.NewDecoder(conn, conn, dims, opts...),
	}
}

// Interrupt makes a pending ReadLine and every later one fail while
// the connection stays open for writing.
func (s *Session) Interrupt() {
	if r, ok := s.Conn.(interface{ StopReading() }); ok {
		r.StopReading()
		return
	}
	s.Conn.SetReadDeadline(time.Now()) //nolint:errcheck
}

// Addr returns the peer address.
func (s *Session) Addr() string { return s.addr }

// Negotiate sends the opening Telnet handshake.  A failure is logged and
// returned, but the connection stays usable: a client that never saw
// the handshake still sends lines.
func (s *Session) Negotiate() error {
	if err := telnet.Negotiate(s.Conn); err != nil {
		s.Logger.Warn("negotiation failed: %v", err)
		return dlerrors.Wrap("negotiate", s.addr, err)
	}
	return nil
}

// ReadLine returns the next line the user entered with surrounding
// whitespace removed.  When the peer goes away, even halfway through a
// line, the partial input is discarded and the error matches
// [dlerrors.ErrSessionClosed].
func (s *Session) ReadLine() (string, error) {
	line, err := s.decoder.ReadLine()
	if err != nil {
		return "", s.streamErr("read", err)
	}
	return strings.TrimSpace(line), nil
}

// WriteLine sends text wrapped to the client's current width.
func (s *Session) WriteLine(text string) error {
	if err := telnet.WriteLine(s.Conn, text, s.Dims.Columns()); err != nil {
		return s.streamErr("write", err)
	}
	return nil
}

// SetNickname records the user's nickname.  Only the first call takes
// effect; later calls return ErrNicknameImmutable.
func (s *Session) SetNickname(nick string) error {
	if s.named {
		return dlerrors.ErrNicknameImmutable
	}
	s.nickname = nick
	s.named = true
	s.Logger.Verbose("nickname %q", nick)
	return nil
}

// Nickname returns the nickname set at login, or "" before that.
func (s *Session) Nickname() string { return s.nickname }

// Close closes the connection.  It is safe to call more than once and
// from another goroutine.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Conn.Close()
	})
	return s.closeErr
}

func (s *Session) streamErr(op string, err error) error {
	if dlerrors.IsClosed(err) || util.IsHarmless(err) {
		return dlerrors.Wrap(op, s.addr, dlerrors.Join(dlerrors.ErrSessionClosed, err))
	}
	return dlerrors.Wrap(op, s.addr, err)
}
