package capability

import (
	"context"
	"fmt"
	"strings"

	"dsllink/internal/board"
	dlerrors "dsllink/internal/errors"
	"dsllink/internal/metrics"
	"dsllink/internal/session"
)

// Banner is shown to every client on connect.
const Banner = `
    ____  _____ __         __    _       __  
   / __ \/ ___// /        / /   (_)___  / /__
  / / / /\__ \/ /  ______/ /   / / __ \/ //_/
 / /_/ /___/ / /__/_____/ /___/ / / / / ,<   
/_____//____/_____/    /_____/_/_/ /_/_/|_|  
                                             
                                             
`

// Texts sent to the client.
const (
	msgWelcome      = "Welcome to the DSL-Link Message Board!\r\n"
	msgNickPrompt   = "Welcome! Please enter your nickname: "
	msgHello        = "Hello, %s!\r\n"
	msgBoardHeader  = "\r\nMessage Board:"
	msgNoMessages   = "No messages."
	msgPrompt       = "\r\nEnter your message (type 'exit' to quit): "
	msgEmpty        = "Message cannot be empty. Please try again.\r\n"
	msgThanks       = "Thank you!\r\n"
	msgSent         = "Message sent.\r\n"
	msgUnavailable  = "The message board is unavailable right now."
	msgNotPosted    = "Your message could not be posted. Please try again.\r\n"
	msgShuttingDown = "\r\nServer is shutting down. Goodbye!\r\n"
)

// exitCommand ends the board loop, compared case-insensitively.
const exitCommand = "exit"

// BoardLoop is the message board conversation: greet, ask for a
// nickname, then show the board and take posts until the user types
// exit or goes away.
type BoardLoop struct {
	Board     board.Board
	Collector *metrics.Collector
}

// Handle runs the conversation on sess.
func (b *BoardLoop) Handle(ctx context.Context, sess *session.Session) error {
	// A failed handshake is logged by the session; line-mode clients
	// still work without it.
	_ = sess.Negotiate()

	for _, text := range []string{Banner, msgWelcome, msgNickPrompt} {
		if err := sess.WriteLine(text); err != nil {
			return err
		}
	}

	nick, err := sess.ReadLine()
	if err != nil {
		if ctx.Err() != nil {
			return b.shutdown(sess)
		}
		return err
	}
	if err := sess.SetNickname(nick); err != nil {
		return err
	}
	if err := sess.WriteLine(fmt.Sprintf(msgHello, nick)); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return b.shutdown(sess)
		}
		if err := b.showBoard(ctx, sess); err != nil {
			return err
		}
		if err := sess.WriteLine(msgPrompt); err != nil {
			return err
		}

		// On shutdown the server interrupts the read; the connection
		// stays writable for the notice.
		text, err := sess.ReadLine()
		if err != nil {
			if ctx.Err() != nil {
				return b.shutdown(sess)
			}
			return err
		}

		if text == "" {
			if err := sess.WriteLine(msgEmpty); err != nil {
				return err
			}
			continue
		}
		if strings.ToLower(text) == exitCommand {
			return sess.WriteLine(msgThanks)
		}

		if err := b.post(ctx, sess, text); err != nil {
			return err
		}
	}
}

func (b *BoardLoop) showBoard(ctx context.Context, sess *session.Session) error {
	if err := sess.WriteLine(msgBoardHeader); err != nil {
		return err
	}

	entries, err := b.Board.Snapshot(ctx)
	if err != nil {
		sess.Logger.Warn("board snapshot: %v", err)
		b.Collector.RecordError(err.Error())
		return sess.WriteLine(msgUnavailable)
	}
	if len(entries) == 0 {
		return sess.WriteLine(msgNoMessages)
	}
	for _, entry := range entries {
		if err := sess.WriteLine(entry); err != nil {
			return err
		}
	}
	return nil
}

// post appends text to the board.  A store failure is reported to the
// user and is not fatal to the session.
func (b *BoardLoop) post(ctx context.Context, sess *session.Session, text string) error {
	if err := b.Board.Append(ctx, sess.Nickname(), text); err != nil {
		if dlerrors.IsValidation(err) {
			return sess.WriteLine(msgEmpty)
		}
		sess.Logger.Warn("board append: %v", err)
		b.Collector.RecordError(err.Error())
		return sess.WriteLine(msgNotPosted)
	}
	b.Collector.MessagePosted()
	sess.Logger.Verbose("posted %d bytes", len(text))
	return sess.WriteLine(msgSent)
}

func (b *BoardLoop) shutdown(sess *session.Session) error {
	if err := sess.WriteLine(msgShuttingDown); err != nil && !dlerrors.IsClosed(err) {
		return err
	}
	return nil
}
