package session

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dlerrors "dsllink/internal/errors"
	"dsllink/internal/telnet"
	"dsllink/util"
)

// pipeSession returns a session on one end of a pipe and the client end.
// Everything the server sends is collected in the returned buffer once
// the client end is drained.
func pipeSession(t *testing.T, opts ...telnet.Option) (*Session, net.Conn, <-chan []byte) {
	t.Helper()
	server, client := net.Pipe()
	sess := New(server, util.NewLogger(0), opts...)
	t.Cleanup(func() {
		sess.Close()
		client.Close()
	})

	out := make(chan []byte, 1)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, client) //nolint:errcheck
		out <- buf.Bytes()
	}()
	return sess, client, out
}

func TestSession_ReadLineTrims(t *testing.T) {
	server, client := net.Pipe()
	sess := New(server, nil)
	defer sess.Close()

	go func() {
		client.Write([]byte("  alice \t\r\n")) //nolint:errcheck
		io.Copy(io.Discard, client)            //nolint:errcheck
	}()

	line, err := sess.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "alice", line)
	client.Close()
}

func TestSession_ReadLineClosedMidLine(t *testing.T) {
	server, client := net.Pipe()
	sess := New(server, nil)
	defer sess.Close()

	go func() {
		client.Write([]byte("half a mess")) //nolint:errcheck
		client.Close()
	}()

	line, err := sess.ReadLine()
	assert.Empty(t, line)
	require.Error(t, err)
	assert.ErrorIs(t, err, dlerrors.ErrSessionClosed)

	var se *dlerrors.StreamError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "read", se.Op)
}

func TestSession_WriteLineUsesWidth(t *testing.T) {
	sess, client, out := pipeSession(t)
	sess.Dims.Set(10, 24)

	require.NoError(t, sess.WriteLine("aaaa bbbb cccc"))
	client.Close()

	assert.Equal(t, "aaaa bbbb\r\ncccc\r\n", string(<-out))
}

func TestSession_NAWSChangesWrapWidth(t *testing.T) {
	server, client := net.Pipe()
	sess := New(server, nil)
	defer sess.Close()

	received := make(chan string, 1)
	go func() {
		client.Write([]byte{telnet.IAC, telnet.SB, telnet.OptNAWS, 0, 12, 0, 5, telnet.IAC, telnet.SE}) //nolint:errcheck
		client.Write([]byte("go\r"))                                                                       //nolint:errcheck
		var buf bytes.Buffer
		tmp := make([]byte, 256)
		for !strings.HasSuffix(buf.String(), "dddd\r\n") {
			n, err := client.Read(tmp)
			if err != nil {
				break
			}
			buf.Write(tmp[:n])
		}
		received <- buf.String()
		client.Close()
	}()

	line, err := sess.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "go", line)
	assert.Equal(t, 12, sess.Dims.Width)
	assert.Equal(t, 5, sess.Dims.Height)

	require.NoError(t, sess.WriteLine("aaaa bbbb cccc dddd"))
	select {
	case got := <-received:
		// Echo of "go" first, then two 12-column lines.
		assert.Equal(t, "go\r\naaaa bbbb\r\ncccc dddd\r\n", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for output")
	}
}

func TestSession_Negotiate(t *testing.T) {
	sess, client, out := pipeSession(t)
	require.NoError(t, sess.Negotiate())
	client.Close()

	assert.Equal(t, []byte{
		telnet.IAC, telnet.WILL, telnet.OptLinemode,
		telnet.IAC, telnet.DO, telnet.OptSuppressGoAhead,
		telnet.IAC, telnet.DO, telnet.OptNAWS,
		telnet.IAC, telnet.WILL, telnet.OptEcho,
	}, <-out)
}

func TestSession_NegotiateFailureLogged(t *testing.T) {
	server, client := net.Pipe()
	client.Close()

	var logs bytes.Buffer
	logger := util.NewLogger(1)
	logger.SetOutput(&logs)

	sess := New(server, logger)
	defer sess.Close()

	err := sess.Negotiate()
	require.Error(t, err)
	assert.Contains(t, logs.String(), "[WRN]")
	assert.Contains(t, logs.String(), "negotiation failed")
}

func TestSession_WriteAfterPeerClosed(t *testing.T) {
	server, client := net.Pipe()
	client.Close()
	sess := New(server, nil)
	defer sess.Close()

	err := sess.WriteLine("hello")
	assert.ErrorIs(t, err, dlerrors.ErrSessionClosed)
}

func TestSession_Nickname(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	sess := New(server, nil)
	defer sess.Close()

	assert.Equal(t, "", sess.Nickname())
	require.NoError(t, sess.SetNickname("alice"))
	assert.ErrorIs(t, sess.SetNickname("mallory"), dlerrors.ErrNicknameImmutable)
	assert.Equal(t, "alice", sess.Nickname())
}

func TestSession_EmptyNicknameIsFinal(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	sess := New(server, nil)
	defer sess.Close()

	require.NoError(t, sess.SetNickname(""))
	assert.Error(t, sess.SetNickname("late"))
	assert.Equal(t, "", sess.Nickname())
}

func TestSession_CloseTwice(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	sess := New(server, nil)

	assert.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())
}

func TestSession_DecoderOptions(t *testing.T) {
	server, client := net.Pipe()
	var anomalies []telnet.Anomaly
	sess := New(server, nil,
		telnet.WithMaxLineLength(4),
		telnet.WithAnomalyHook(func(a telnet.Anomaly) { anomalies = append(anomalies, a) }),
	)
	defer sess.Close()

	go func() {
		client.Write([]byte("abcdefgh\r\n")) //nolint:errcheck
		io.Copy(io.Discard, client)          //nolint:errcheck
	}()

	line, err := sess.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "abcd", line)
	require.Len(t, anomalies, 1)
	assert.Equal(t, telnet.AnomalyLineOverflow, anomalies[0].Kind)
	client.Close()
}

func TestSession_InterruptKeepsWriteSide(t *testing.T) {
	sess, client, out := pipeSession(t)

	readErr := make(chan error, 1)
	go func() {
		_, err := sess.ReadLine()
		readErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	sess.Interrupt()

	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, dlerrors.ErrSessionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLine was not interrupted")
	}

	require.NoError(t, sess.WriteLine("goodbye"))
	sess.Close()
	client.Close()
	assert.Equal(t, "goodbye\r\n", string(<-out))
}
