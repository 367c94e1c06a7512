package capability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsllink/internal/board"
	dlerrors "dsllink/internal/errors"
	"dsllink/internal/metrics"
	"dsllink/internal/session"
	"dsllink/util"
)

// runScript plays script as the client against a BoardLoop and returns
// everything the server sent.  When hangup is set the client closes the
// connection right after sending the script.
func runScript(t *testing.T, ctx context.Context, loop *BoardLoop, script string, hangup bool) (string, error) {
	t.Helper()
	server, client := net.Pipe()
	sess := session.New(server, util.NewLogger(0))

	var out bytes.Buffer
	drained := make(chan struct{})
	go func() {
		io.Copy(&out, client) //nolint:errcheck
		close(drained)
	}()
	go func() {
		if script != "" {
			client.Write([]byte(script)) //nolint:errcheck
		}
		if hangup {
			client.Close()
		}
	}()

	err := loop.Handle(ctx, sess)
	sess.Close()
	<-drained
	client.Close()
	return out.String(), err
}

// assertInOrder checks that every part occurs in out, each after the
// previous one.
func assertInOrder(t *testing.T, out string, parts ...string) {
	t.Helper()
	rest := out
	for _, p := range parts {
		i := strings.Index(rest, p)
		if !assert.GreaterOrEqual(t, i, 0, "missing %q after previous parts in:\n%s", p, out) {
			return
		}
		rest = rest[i+len(p):]
	}
}

func TestBoardLoop_PostAndExit(t *testing.T) {
	b := board.NewMemory()
	m := metrics.New()
	loop := &BoardLoop{Board: b, Collector: m}

	out, err := runScript(t, context.Background(), loop, "alice\r\nhello world\r\nEXIT\r\n", false)
	require.NoError(t, err)

	assertInOrder(t, out,
		"\xff\xfb\x22\xff\xfd\x03\xff\xfd\x1f\xff\xfb\x01",
		"/_____//____/_____/",
		"Welcome to the DSL-Link Message Board!\r\n",
		"Welcome! Please enter your nickname:\r\n",
		"alice\r\n",
		"Hello, alice!\r\n",
		"\r\nMessage Board:\r\n",
		"No messages.\r\n",
		"\r\nEnter your message (type 'exit' to quit):\r\n",
		"hello world\r\n",
		"Message sent.\r\n",
		"\r\nMessage Board:\r\n",
		"alice: hello world\r\n",
		"EXIT\r\n",
		"Thank you!\r\n",
	)

	snap, _ := b.Snapshot(context.Background())
	assert.Equal(t, []string{"alice: hello world"}, snap)
	assert.EqualValues(t, 1, m.MessagesPosted())
}

func TestBoardLoop_ExitIsCaseInsensitive(t *testing.T) {
	for _, word := range []string{"exit", "Exit", "eXiT", "  exit  "} {
		t.Run(word, func(t *testing.T) {
			b := board.NewMemory()
			out, err := runScript(t, context.Background(), &BoardLoop{Board: b}, "x\r\n"+word+"\r\n", false)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(out, "Thank you!\r\n"))
			n, _ := b.Len(context.Background())
			assert.Zero(t, n)
		})
	}
}

func TestBoardLoop_ExitInsideMessageIsPosted(t *testing.T) {
	b := board.NewMemory()
	_, err := runScript(t, context.Background(), &BoardLoop{Board: b}, "x\r\nexit now\r\nexit\r\n", false)
	require.NoError(t, err)
	snap, _ := b.Snapshot(context.Background())
	assert.Equal(t, []string{"x: exit now"}, snap)
}

func TestBoardLoop_EmptyMessageReprompts(t *testing.T) {
	b := board.NewMemory()
	out, err := runScript(t, context.Background(), &BoardLoop{Board: b}, "bob\r\n\r\n   \t \r\nexit\r\n", false)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "Message cannot be empty. Please try again.\r\n"))
	// The board is shown again after every rejected post.
	assert.Equal(t, 3, strings.Count(out, "\r\nMessage Board:\r\n"))
	assert.NotContains(t, out, "Message sent.")
	n, _ := b.Len(context.Background())
	assert.Zero(t, n)
}

func TestBoardLoop_ShowsExistingMessages(t *testing.T) {
	ctx := context.Background()
	b := board.NewMemory()
	require.NoError(t, b.Append(ctx, "alice", "first"))
	require.NoError(t, b.Append(ctx, "bob", "second"))

	out, err := runScript(t, ctx, &BoardLoop{Board: b}, "carol\r\nexit\r\n", false)
	require.NoError(t, err)
	assertInOrder(t, out, "Message Board:\r\n", "alice: first\r\n", "bob: second\r\n", "Enter your message")
	assert.NotContains(t, out, "No messages.")
}

func TestBoardLoop_NicknameTrimmed(t *testing.T) {
	b := board.NewMemory()
	out, err := runScript(t, context.Background(), &BoardLoop{Board: b}, "  Dave Smith \r\nhi\r\nexit\r\n", false)
	require.NoError(t, err)
	assert.Contains(t, out, "Hello, Dave Smith!\r\n")
	snap, _ := b.Snapshot(context.Background())
	assert.Equal(t, []string{"Dave Smith: hi"}, snap)
}

func TestBoardLoop_EmptyNickname(t *testing.T) {
	b := board.NewMemory()
	out, err := runScript(t, context.Background(), &BoardLoop{Board: b}, "\r\nhi\r\nexit\r\n", false)
	require.NoError(t, err)
	assert.Contains(t, out, "Hello, !\r\n")
	snap, _ := b.Snapshot(context.Background())
	assert.Equal(t, []string{": hi"}, snap)
}

func TestBoardLoop_ClosedMidLine(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"at nickname", "ali"},
		{"before any input", ""},
		{"mid message", "alice\r\nhalf a mess"},
		{"after a post", "alice\r\none\r\ntwo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := board.NewMemory()
			_, err := runScript(t, context.Background(), &BoardLoop{Board: b}, tt.script, true)
			require.Error(t, err)
			assert.True(t, dlerrors.IsClosed(err), "unexpected error %v", err)

			snap, _ := b.Snapshot(context.Background())
			for _, entry := range snap {
				assert.NotContains(t, entry, "half")
				assert.NotContains(t, entry, "two")
			}
		})
	}
}

// failingBoard is a store that is down.
type failingBoard struct{}

var errStoreDown = errors.New("store down")

func (failingBoard) Append(context.Context, string, string) error {
	return errors.Join(dlerrors.ErrBoardUnavailable, errStoreDown)
}

func (failingBoard) Snapshot(context.Context) ([]string, error) {
	return nil, errors.Join(dlerrors.ErrBoardUnavailable, errStoreDown)
}

func (failingBoard) Len(context.Context) (int, error) { return 0, errStoreDown }

func TestBoardLoop_BoardFailureIsNotFatal(t *testing.T) {
	m := metrics.New()
	out, err := runScript(t, context.Background(), &BoardLoop{Board: failingBoard{}, Collector: m},
		"alice\r\nhello\r\nexit\r\n", false)
	require.NoError(t, err)

	assertInOrder(t, out,
		"The message board is unavailable right now.\r\n",
		"Your message could not be posted. Please try again.\r\n",
		"Thank you!\r\n",
	)
	assert.NotContains(t, out, "Message sent.")
	assert.EqualValues(t, 0, m.MessagesPosted())
	assert.Positive(t, m.ErrorCount())
}

func TestBoardLoop_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := board.NewMemory()
	out, err := runScript(t, ctx, &BoardLoop{Board: b}, "carol\r\n", false)
	require.NoError(t, err)
	assertInOrder(t, out, "Hello, carol!\r\n", "Server is shutting down. Goodbye!\r\n")
	assert.NotContains(t, out, "Message Board:")
}

// readUntil reads from conn until want has been seen and returns
// everything read.
func readUntil(t *testing.T, conn net.Conn, want string) string {
	t.Helper()
	var seen bytes.Buffer
	buf := make([]byte, 1024)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	for !strings.Contains(seen.String(), want) {
		n, err := conn.Read(buf)
		seen.Write(buf[:n])
		if err != nil {
			t.Fatalf("waiting for %q: %v (got %q)", want, err, seen.String())
		}
	}
	return seen.String()
}

func TestBoardLoop_InterruptedAtPrompt(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	sess := session.New(server, util.NewLogger(0))
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- (&BoardLoop{Board: board.NewMemory()}).Handle(ctx, sess) }()

	readUntil(t, client, "Please enter your nickname:")
	go client.Write([]byte("dave\r\n")) //nolint:errcheck
	readUntil(t, client, "(type 'exit' to quit):\r\n")

	cancel()
	sess.Interrupt()
	readUntil(t, client, "Server is shutting down. Goodbye!\r\n")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Handle did not return after interrupt")
	}
}

func TestBoardLoop_InterruptedAtNickname(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	sess := session.New(server, util.NewLogger(0))
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- (&BoardLoop{Board: board.NewMemory()}).Handle(ctx, sess) }()

	readUntil(t, client, "Please enter your nickname:")
	cancel()
	sess.Interrupt()
	readUntil(t, client, "Server is shutting down. Goodbye!\r\n")
	assert.NoError(t, <-done)
}
