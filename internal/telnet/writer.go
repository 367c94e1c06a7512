package telnet

import (
	"bytes"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"

	"dsllink/util"
)

type flusher interface {
	Flush() error
}

// WriteLine splits text on line breaks, wraps each piece to cols
// display columns and writes the result to w with CRLF after every
// line.  The whole output goes out in one Write, followed by Flush when
// w has one.  A 0xFF byte in text is sent as IAC IAC.
func WriteLine(w io.Writer, text string, cols int) error {
	if cols <= 0 {
		cols = DefaultWidth
	}

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	for _, segment := range SplitLines(text) {
		for _, line := range Wrap(segment, cols) {
			writeEscaped(buf, line)
			buf.Write(crlf)
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

func writeEscaped(buf *bytes.Buffer, s string) {
	for i := 0; i < len(s); i++ {
		if s[i] == IAC {
			buf.WriteByte(IAC)
		}
		buf.WriteByte(s[i])
	}
}

// SplitLines breaks s at CR LF, CR or LF.  A trailing line break does not
// start another line, but an empty string is one empty line.
func SplitLines(s string) []string {
	if s == "" {
		return []string{""}
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\r':
			out = append(out, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			start = i + 1
		case '\n':
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// Wrap greedily fills lines of at most cols columns from the words of
// s.  Indentation at the start of s and spacing between words are kept;
// whitespace where a line was broken is dropped.  A word wider than
// cols is cut into cols-sized pieces.  Blank input gives one empty
// line.
func Wrap(s string, cols int) []string {
	if cols < 1 {
		cols = 1
	}
	chunks := splitChunks(s)
	if len(chunks) == 0 || (len(chunks) == 1 && isBlank(chunks[0])) {
		return []string{""}
	}

	var lines []string
	for len(chunks) > 0 {
		var cur []string
		curLen := 0

		// Whitespace that would start a continuation line is dropped.
		if len(lines) > 0 && isBlank(chunks[0]) {
			chunks = chunks[1:]
		}

		for len(chunks) > 0 {
			n := Columns(chunks[0])
			if curLen+n > cols {
				break
			}
			cur = append(cur, chunks[0])
			curLen += n
			chunks = chunks[1:]
		}

		// A word wider than a whole line is cut to fill the space left.
		// When not even its first rune fits, the line is closed and the
		// word starts the next one; only an empty line takes a rune that
		// is too wide.
		if len(chunks) > 0 && Columns(chunks[0]) > cols {
			room := cols - curLen
			if len(cur) == 0 || firstColumns(chunks[0]) <= room {
				head, tail := cutColumns(chunks[0], room)
				cur = append(cur, head)
				curLen += Columns(head)
				chunks[0] = tail
			}
		}

		if len(cur) > 0 && isBlank(cur[len(cur)-1]) {
			cur = cur[:len(cur)-1]
		}
		if len(cur) > 0 {
			lines = append(lines, strings.Join(cur, ""))
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// splitChunks cuts s into alternating runs of whitespace and
// non-whitespace.  Every whitespace rune becomes a single space; other
// bytes, including ones that are not UTF-8, are kept as they are.
func splitChunks(s string) []string {
	var chunks []string
	var cur strings.Builder
	curSpace := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		space := unicode.IsSpace(r)
		if space != curSpace && cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		curSpace = space
		if space {
			cur.WriteByte(' ')
		} else {
			cur.WriteString(s[i : i+size])
		}
		i += size
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// cutColumns splits s after at most n columns, always taking at least
// one rune so the caller makes progress.  Callers only pass n smaller
// than the first rune's width when the line is otherwise empty.
func cutColumns(s string, n int) (head, tail string) {
	cols := 0
	for i, r := range s {
		w := runeColumns(r)
		if i > 0 && cols+w > n {
			return s[:i], s[i:]
		}
		cols += w
	}
	return s, ""
}

func firstColumns(s string) int {
	r, _ := utf8.DecodeRuneInString(s)
	return runeColumns(r)
}

// Columns returns the display width of s: two columns for East Asian
// wide and fullwidth runes, one for everything else.
func Columns(s string) int {
	n := 0
	for _, r := range s {
		n += runeColumns(r)
	}
	return n
}

func runeColumns(r rune) int {
	if r == utf8.RuneError {
		return 1
	}
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}
