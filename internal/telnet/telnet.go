// Package telnet implements the small slice of the Telnet protocol a
// line-oriented, server-echoed session needs: the opening option
// handshake, a byte-level decoder that turns an interleaved stream of
// text and IAC sequences into edited lines, and a writer that reflows
// text to the client's window width with CRLF line endings.
//
// It is not a general Telnet implementation.  Option replies from the
// peer are read and discarded; the only subnegotiation understood is
// NAWS (window size).
package telnet

import "fmt"

// Telnet commands (RFC 854).
const (
	SE   byte = 240 // subnegotiation end
	NOP  byte = 241
	GA   byte = 249 // go ahead
	SB   byte = 250 // subnegotiation begin
	WILL byte = 251
	WONT byte = 252
	DO   byte = 253
	DONT byte = 254
	IAC  byte = 255 // interpret as command
)

// Telnet options used by the handshake.
const (
	OptEcho            byte = 1  // RFC 857
	OptSuppressGoAhead byte = 3  // RFC 858
	OptNAWS            byte = 31 // RFC 1073
	OptLinemode        byte = 34 // RFC 1184
)

// Control bytes with meaning inside a line.
const (
	NUL byte = 0x00
	BS  byte = 0x08
	LF  byte = 0x0a
	CR  byte = 0x0d
	DEL byte = 0x7f
)

var (
	crlf     = []byte{CR, LF}
	eraseSeq = []byte{BS, ' ', BS}
)

var commandNames = map[byte]string{
	SE: "SE", NOP: "NOP", GA: "GA", SB: "SB",
	WILL: "WILL", WONT: "WONT", DO: "DO", DONT: "DONT", IAC: "IAC",
}

var optionNames = map[byte]string{
	OptEcho:            "ECHO",
	OptSuppressGoAhead: "SUPPRESS-GO-AHEAD",
	OptNAWS:            "NAWS",
	OptLinemode:        "LINEMODE",
}

// CommandName returns the mnemonic for a command byte, or its number.
func CommandName(b byte) string {
	if n, ok := commandNames[b]; ok {
		return n
	}
	return fmt.Sprintf("CMD(%d)", b)
}

// OptionName returns the mnemonic for an option byte, or its number.
func OptionName(b byte) string {
	if n, ok := optionNames[b]; ok {
		return n
	}
	return fmt.Sprintf("OPT(%d)", b)
}
