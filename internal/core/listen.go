package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"dsllink/internal/capability"
	dlerrors "dsllink/internal/errors"
	"dsllink/internal/metrics"
	"dsllink/internal/session"
	"dsllink/internal/telnet"
	"dsllink/internal/transport"
	"dsllink/util"
)

// Sent to a client turned away by the session limit.
const msgServerFull = "Too many users are connected. Please try again later.\r\n"

// maxAcceptDelay caps the pause after a failed Accept.
const maxAcceptDelay = time.Second

// ListenMode accepts Telnet clients and runs the capability on each
// one in its own goroutine.  Sessions share nothing but the board the
// capability writes to.
type ListenMode struct {
	Network     string // "tcp", "tcp4" or "tcp6"
	Address     string // host:port, port 0 picks a free port
	IdleTimeout time.Duration
	MaxSessions int // 0 means unlimited
	GracePeriod time.Duration

	DecoderOptions []telnet.Option
	Capability     capability.Capability
	Collector      *metrics.Collector
	Logger         *util.Logger

	mu       sync.Mutex
	ln       net.Listener
	ready    chan struct{}
	sessions map[*session.Session]struct{}
	wg       sync.WaitGroup
}

// Ready is closed once the listener is bound.
func (m *ListenMode) Ready() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready == nil {
		m.ready = make(chan struct{})
	}
	return m.ready
}

// Addr returns the bound address, or nil before Run has bound it.
func (m *ListenMode) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ln == nil {
		return nil
	}
	return m.ln.Addr()
}

// ActiveSessions returns the number of sessions being served.
func (m *ListenMode) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run listens and serves until ctx is done or the listener fails.  On
// the way out it interrupts every live session, waits up to GracePeriod
// for the session goroutines to return and closes the stragglers.
func (m *ListenMode) Run(ctx context.Context) error {
	network := m.Network
	if network == "" {
		network = "tcp"
	}
	ln, err := transport.Listen(ctx, network, m.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.Address, err)
	}
	defer ln.Close()

	m.Ready()
	m.mu.Lock()
	ready := m.ready
	m.ln = ln
	m.sessions = make(map[*session.Session]struct{})
	m.mu.Unlock()
	close(ready)

	m.Logger.Info("listening on %s", ln.Addr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Shut the listener down when the context expires.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	err = m.acceptLoop(ctx, ln)
	cancel()
	m.shutdown()
	m.Logger.Verbose("metrics: %s", m.Collector.JSON())
	return err
}

func (m *ListenMode) acceptLoop(ctx context.Context, ln net.Listener) error {
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return dlerrors.Wrap("accept", ln.Addr().String(), err)
			}
			// Out of file descriptors and similar: back off and keep
			// serving the sessions we have.
			switch {
			case delay == 0:
				delay = 5 * time.Millisecond
			case delay < maxAcceptDelay:
				delay = min(2*delay, maxAcceptDelay)
			}
			m.Logger.Warn("accept: %v; retrying in %v", err, delay)
			m.Collector.RecordError(err.Error())
			sleepCtx(ctx, delay)
			continue
		}
		delay = 0

		sess, ok := m.admit(conn)
		if !ok {
			continue
		}
		m.wg.Add(1)
		go m.serve(ctx, sess)
	}
}

// admit wraps conn in a session and registers it, or turns the client
// away when the session limit is reached.
func (m *ListenMode) admit(conn net.Conn) (*session.Session, bool) {
	m.mu.Lock()
	full := m.MaxSessions > 0 && len(m.sessions) >= m.MaxSessions
	m.mu.Unlock()

	if full {
		m.Logger.Warn("%s: %v", util.RemoteName(conn), dlerrors.ErrTooManySessions)
		m.Collector.SessionRejected()
		conn.SetWriteDeadline(time.Now().Add(time.Second)) //nolint:errcheck
		conn.Write([]byte(msgServerFull))                  //nolint:errcheck
		util.CloseQuietly(conn)
		return nil, false
	}

	var sess *session.Session
	opts := append([]telnet.Option{}, m.DecoderOptions...)
	opts = append(opts, telnet.WithAnomalyHook(func(a telnet.Anomaly) {
		m.Collector.ProtocolAnomaly()
		sess.Logger.Debug("%s (option %s, %d bytes)", a.Kind, telnet.OptionName(a.Option), a.Bytes)
	}))
	sess = session.New(transport.Wrap(conn, m.IdleTimeout, m.Collector), m.Logger, opts...)

	m.mu.Lock()
	m.sessions[sess] = struct{}{}
	m.mu.Unlock()
	m.Collector.SessionOpened()
	return sess, true
}

func (m *ListenMode) serve(ctx context.Context, sess *session.Session) {
	defer m.wg.Done()
	defer m.release(sess)
	defer func() {
		if r := recover(); r != nil {
			sess.Logger.Error("session panic: %v", r)
			m.Collector.RecordError(fmt.Sprint(r))
		}
	}()

	start := time.Now()
	sess.Logger.Verbose("connected")

	err := m.Capability.Handle(ctx, sess)
	switch {
	case err == nil:
		sess.Logger.Verbose("disconnected after %v", time.Since(start).Truncate(time.Millisecond))
	case dlerrors.IsClosed(err) || util.IsHarmless(err):
		sess.Logger.Verbose("connection closed after %v: %v", time.Since(start).Truncate(time.Millisecond), err)
	default:
		sess.Logger.Error("%v", err)
		m.Collector.RecordError(err.Error())
	}
}

func (m *ListenMode) release(sess *session.Session) {
	util.CloseQuietly(sess)
	m.mu.Lock()
	delete(m.sessions, sess)
	m.mu.Unlock()
	m.Collector.SessionClosed()
}

// shutdown interrupts every live session so its capability can say
// goodbye, waits up to GracePeriod for the goroutines and then closes
// whatever is left.
func (m *ListenMode) shutdown() {
	m.mu.Lock()
	live := len(m.sessions)
	for sess := range m.sessions {
		sess.Interrupt()
	}
	m.mu.Unlock()

	if live > 0 {
		m.Logger.Verbose("closing %d sessions", live)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	grace := m.GracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	select {
	case <-done:
	case <-time.After(grace):
		m.mu.Lock()
		m.Logger.Warn("%d sessions still running after %v", len(m.sessions), grace)
		for sess := range m.sessions {
			util.CloseQuietly(sess)
		}
		m.mu.Unlock()
	}
}

// sleepCtx sleeps for at most d, returning early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
