package telnet

import (
	"bufio"
	"encoding/binary"
	"io"
	"strings"
	"unicode/utf8"
)

// Limits applied when the caller does not override them.
const (
	DefaultMaxSubnegotiation = 1024
	DefaultMaxLineLength     = 4096
)

// EventKind classifies one decoded unit of the input stream.
type EventKind int

const (
	// EventLiteral is a data byte for the line buffer.
	EventLiteral EventKind = iota
	// EventBackspace is BS or DEL.
	EventBackspace
	// EventLineTerminator is a bare CR or LF.
	EventLineTerminator
	// EventWindowSize is a complete NAWS report.
	EventWindowSize
	// EventSkip is an option reply or a subnegotiation that was consumed
	// and discarded.
	EventSkip
)

// Event is produced by the decoder's byte-level parser and consumed
// immediately by the line editor.  Stream closure is not an event; it
// surfaces as io.EOF.
type Event struct {
	Kind    EventKind
	Byte    byte // literal or terminator byte
	Escaped bool // literal 0xFF sent as IAC IAC
	Command byte // skipped command
	Option  byte // skipped or reported option
	Width   int  // EventWindowSize
	Height  int  // EventWindowSize
}

// AnomalyKind classifies input the decoder recovered from.
type AnomalyKind int

const (
	// AnomalySubnegotiationOverflow means no IAC SE arrived within the
	// subnegotiation byte limit; decoding resumed in normal text mode.
	AnomalySubnegotiationOverflow AnomalyKind = iota
	// AnomalyLineOverflow means the line exceeded the length limit; the
	// surplus bytes were dropped and not echoed.
	AnomalyLineOverflow
	// AnomalyInvalidUTF8 means the finished line held bytes that are not
	// UTF-8; they were dropped from the returned text.
	AnomalyInvalidUTF8
)

func (k AnomalyKind) String() string {
	switch k {
	case AnomalySubnegotiationOverflow:
		return "subnegotiation overflow"
	case AnomalyLineOverflow:
		return "line overflow"
	case AnomalyInvalidUTF8:
		return "invalid utf-8"
	default:
		return "unknown"
	}
}

// Anomaly describes one recovered protocol or decode problem.
type Anomaly struct {
	Kind   AnomalyKind
	Option byte // subnegotiation option, when relevant
	Bytes  int  // bytes discarded
}

// Option configures a [Decoder].
type Option func(*Decoder)

// WithMaxSubnegotiation bounds how many bytes are scanned while looking
// for IAC SE.  Zero removes the bound.
func WithMaxSubnegotiation(n int) Option {
	return func(d *Decoder) { d.maxSubneg = n }
}

// WithMaxLineLength bounds the line buffer in bytes.  Zero removes the
// bound.
func WithMaxLineLength(n int) Option {
	return func(d *Decoder) { d.maxLine = n }
}

// WithAnomalyHook registers fn to observe recovered anomalies.
func WithAnomalyHook(fn func(Anomaly)) Option {
	return func(d *Decoder) { d.onAnomaly = fn }
}

// Decoder reads a Telnet byte stream one byte at a time and assembles
// edited lines, echoing accepted input back to the client.  A Decoder
// keeps read-ahead state between calls, so one Decoder must be used for
// the whole life of a connection.  It is not safe for concurrent use.
type Decoder struct {
	r    *bufio.Reader
	echo io.Writer
	dims *Dimensions

	maxSubneg int
	maxLine   int
	onAnomaly func(Anomaly)

	buf       []byte
	overflow  bool
	pendingCR bool // last line ended on CR; a following LF or NUL belongs to it
}

// NewDecoder returns a Decoder reading from r, echoing to echo and
// recording window-size reports in dims.  A nil echo discards echoes;
// a nil dims gets a private 80×24 value.
func NewDecoder(r io.Reader, echo io.Writer, dims *Dimensions, opts ...Option) *Decoder {
	if echo == nil {
		echo = io.Discard
	}
	if dims == nil {
		dims = DefaultDimensions()
	}
	d := &Decoder{
		r:         bufio.NewReader(r),
		echo:      echo,
		dims:      dims,
		maxSubneg: DefaultMaxSubnegotiation,
		maxLine:   DefaultMaxLineLength,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dimensions returns the terminal size the decoder updates.
func (d *Decoder) Dimensions() *Dimensions { return d.dims }

// ReadLine returns the next line as text.  Bytes that are not valid
// UTF-8 are dropped.  If the stream ends before a terminator the partial
// line is returned together with io.EOF; callers must treat that as the
// end of the session, not as an empty line.
func (d *Decoder) ReadLine() (string, error) {
	line, err := d.ReadLineBytes()
	return d.text(line), err
}

// ReadLineBytes returns the next line without UTF-8 decoding.  An
// escaped IAC appears in it as a single 0xFF byte.  The terminator is
// not included.
func (d *Decoder) ReadLineBytes() ([]byte, error) {
	d.buf = d.buf[:0]
	d.overflow = false

	for {
		ev, err := d.next()
		if err != nil {
			return d.line(), err
		}

		if d.pendingCR {
			d.pendingCR = false
			if isCRCompanion(ev) {
				continue
			}
		}

		switch ev.Kind {
		case EventLiteral:
			if err := d.accept(ev); err != nil {
				return d.line(), err
			}
		case EventBackspace:
			if err := d.erase(); err != nil {
				return d.line(), err
			}
		case EventLineTerminator:
			d.pendingCR = ev.Byte == CR
			if _, err := d.echo.Write(crlf); err != nil {
				return d.line(), err
			}
			return d.line(), nil
		}
	}
}

// isCRCompanion reports whether ev is the LF of a CR LF pair or the NUL
// of a CR NUL pair.
func isCRCompanion(ev Event) bool {
	switch {
	case ev.Kind == EventLineTerminator && ev.Byte == LF:
		return true
	case ev.Kind == EventLiteral && !ev.Escaped && ev.Byte == NUL:
		return true
	}
	return false
}

func (d *Decoder) accept(ev Event) error {
	if d.maxLine > 0 && len(d.buf) >= d.maxLine {
		if !d.overflow {
			d.overflow = true
			d.anomaly(Anomaly{Kind: AnomalyLineOverflow, Bytes: 1})
		}
		return nil
	}
	d.buf = append(d.buf, ev.Byte)

	var err error
	if ev.Escaped {
		_, err = d.echo.Write([]byte{IAC, IAC})
	} else {
		_, err = d.echo.Write([]byte{ev.Byte})
	}
	return err
}

// erase removes the last character: a whole rune when the buffer ends
// in a valid multi-byte sequence, otherwise one byte.
func (d *Decoder) erase() error {
	if len(d.buf) == 0 {
		return nil
	}
	_, size := utf8.DecodeLastRune(d.buf)
	if size < 1 {
		size = 1
	}
	d.buf = d.buf[:len(d.buf)-size]
	_, err := d.echo.Write(eraseSeq)
	return err
}

func (d *Decoder) line() []byte {
	out := make([]byte, len(d.buf))
	copy(out, d.buf)
	return out
}

func (d *Decoder) text(line []byte) string {
	if utf8.Valid(line) {
		return string(line)
	}
	s := strings.ToValidUTF8(string(line), "")
	d.anomaly(Anomaly{Kind: AnomalyInvalidUTF8, Bytes: len(line) - len(s)})
	return s
}

func (d *Decoder) anomaly(a Anomaly) {
	if d.onAnomaly != nil {
		d.onAnomaly(a)
	}
}

// ── byte-level parser ───────────────────────────────────────────────

// next decodes one event from the stream.
func (d *Decoder) next() (Event, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return Event{}, err
	}
	switch b {
	case BS, DEL:
		return Event{Kind: EventBackspace, Byte: b}, nil
	case CR, LF:
		return Event{Kind: EventLineTerminator, Byte: b}, nil
	case IAC:
		return d.command()
	}
	return Event{Kind: EventLiteral, Byte: b}, nil
}

// command handles the byte after IAC.
func (d *Decoder) command() (Event, error) {
	cmd, err := d.r.ReadByte()
	if err != nil {
		return Event{}, err
	}
	switch cmd {
	case IAC:
		return Event{Kind: EventLiteral, Byte: IAC, Escaped: true}, nil
	case SB:
		return d.subnegotiation()
	}

	// Every option negotiation verb carries one option byte.
	opt, err := d.r.ReadByte()
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: EventSkip, Command: cmd, Option: opt}, nil
}

// subnegotiation handles everything after IAC SB up to and including
// IAC SE.
func (d *Decoder) subnegotiation() (Event, error) {
	opt, err := d.r.ReadByte()
	if err != nil {
		return Event{}, err
	}

	ev := Event{Kind: EventSkip, Command: SB, Option: opt}
	if opt == OptNAWS {
		var payload [4]byte
		if _, err := io.ReadFull(d.r, payload[:]); err != nil {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return Event{}, err
		}
		ev.Kind = EventWindowSize
		ev.Width = int(binary.BigEndian.Uint16(payload[0:2]))
		ev.Height = int(binary.BigEndian.Uint16(payload[2:4]))
		d.dims.Set(ev.Width, ev.Height)
	}

	if err := d.skipToSE(opt); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// skipToSE discards bytes until IAC SE.  An IAC followed by anything
// other than SE does not end the scan, and the byte after the IAC is
// not looked at again.  The scan gives up after maxSubneg bytes.
func (d *Decoder) skipToSE(opt byte) error {
	n := 0
	for d.maxSubneg <= 0 || n < d.maxSubneg {
		b, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		n++
		if b != IAC {
			continue
		}
		next, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		n++
		if next == SE {
			return nil
		}
	}
	d.anomaly(Anomaly{Kind: AnomalySubnegotiationOverflow, Option: opt, Bytes: n})
	return nil
}
