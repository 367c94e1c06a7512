// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

var levelColors = map[string]string{
	"ERR": "\033[31m",
	"WRN": "\033[33m",
	"INF": "\033[32m",
	"VRB": "\033[36m",
	"DBG": "\033[35m",
}

// sink is the state shared between a Logger and the children created
// by [Logger.With].
type sink struct {
	mu         sync.Mutex
	output     io.Writer
	timestamps bool
	color      bool
}

// Logger writes levelled messages to stderr with optional timestamps,
// colour and a per-logger prefix (e.g. the remote address of a session).
type Logger struct {
	level  LogLevel
	prefix string
	sink   *sink
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).  Colour is
// enabled when stderr is a terminal.
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level: LogLevel(verbosity),
		sink: &sink{
			output:     os.Stderr,
			timestamps: verbosity >= 3, // auto-enable timestamps in debug mode
			color:      term.IsTerminal(int(os.Stderr.Fd())),
		},
	}
}

// With returns a child logger that prefixes every line with prefix.
// The child shares its parent's writer, level and settings.
func (l *Logger) With(prefix string) *Logger {
	p := prefix
	if l.prefix != "" {
		p = l.prefix + " " + prefix
	}
	return &Logger{level: l.level, prefix: p, sink: l.sink}
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.sink.mu.Lock()
	l.sink.timestamps = on
	l.sink.mu.Unlock()
}

// SetColor enables or disables ANSI colour on the level tag.
func (l *Logger) SetColor(on bool) {
	l.sink.mu.Lock()
	l.sink.color = on
	l.sink.mu.Unlock()
}

// SetOutput overrides the output writer (default: os.Stderr).  Colour is
// switched off because the new writer is not known to be a terminal.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.output = w
	l.sink.color = false
	l.sink.mu.Unlock()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write("INF", format, args...)
	}
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write("WRN", format, args...)
	}
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.write("VRB", format, args...)
	}
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.write("DBG", format, args...)
	}
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERR", format, args...)
}

func (l *Logger) write(level, format string, args ...interface{}) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = l.prefix + " " + msg
	}

	tag := "[" + level + "]"
	if s.color {
		tag = levelColors[level] + tag + "\033[0m"
	}

	if s.timestamps {
		ts := time.Now().Format("15:04:05.000")
		fmt.Fprintf(s.output, "%s %s %s\n", ts, tag, msg)
	} else {
		fmt.Fprintf(s.output, "%s %s\n", tag, msg)
	}
}
