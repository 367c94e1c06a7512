// Package cmd wires up the CLI flags and starts the message board
// server.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"dsllink/config"
	"dsllink/internal/board"
	"dsllink/internal/core"
	"dsllink/internal/metrics"
	"dsllink/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X dsllink/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the server until ctx is done.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("dsllink", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── listener ─────────────────────────────────────────────────
	fs.StringVarP(&cfg.Host, "bind", "b", cfg.Host, "Address to listen on")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Port to listen on")
	timeoutSec := int(cfg.IdleTimeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Idle timeout in seconds (0 disables)")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "Maximum concurrent sessions (0 = unlimited)")

	// ── protocol limits ──────────────────────────────────────────
	fs.IntVar(&cfg.MaxLineLength, "max-line", cfg.MaxLineLength, "Maximum input line length in bytes")
	fs.IntVar(&cfg.MaxSubnegotiation, "max-subneg", cfg.MaxSubnegotiation, "Maximum Telnet subnegotiation length in bytes")

	// ── board backend ────────────────────────────────────────────
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Keep the board in Redis at host:port (default: in memory)")
	fs.StringVar(&cfg.RedisKey, "redis-key", cfg.RedisKey, "Redis list holding the board")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "Redis database index")

	// ── output ───────────────────────────────────────────────────
	var verbose int
	var quiet bool
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Only print errors")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Validate configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(stderr, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(stderr, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "dsllink %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	if fs.Changed("timeout") {
		cfg.IdleTimeout = time.Duration(timeoutSec) * time.Second
	}
	cfg.Verbose += verbose
	if quiet {
		cfg.Verbose = int(util.LogQuiet)
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		printDryRun(stdout, cfg)
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	collector := metrics.New()

	b, closeBoard, err := openBoard(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBoard()

	mode, err := core.Build(cfg, b, logger, collector)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// openBoard returns the configured board backend and a func releasing
// it.
func openBoard(ctx context.Context, cfg *config.Config, logger *util.Logger) (board.Board, func(), error) {
	if !cfg.RedisEnabled() {
		logger.Verbose("board: in memory")
		return board.NewMemory(), func() {}, nil
	}

	rb := board.NewRedis(board.RedisConfig{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
		Key:  cfg.RedisKey,
	}, logger)
	if err := rb.Connect(ctx); err != nil {
		util.CloseQuietly(rb)
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("board: redis %s, key %s", cfg.RedisAddr, rb.Key())
	return rb, func() { util.CloseQuietly(rb) }, nil
}

func printDryRun(w io.Writer, cfg *config.Config) {
	backend := "memory"
	if cfg.RedisEnabled() {
		backend = fmt.Sprintf("redis %s db %d key %s", cfg.RedisAddr, cfg.RedisDB, cfg.RedisKey)
	}
	sessions := "unlimited"
	if cfg.MaxSessions > 0 {
		sessions = fmt.Sprint(cfg.MaxSessions)
	}
	timeout := "off"
	if cfg.IdleTimeout > 0 {
		timeout = cfg.IdleTimeout.String()
	}
	fmt.Fprintf(w, "listen:   %s\n", cfg.Address())
	fmt.Fprintf(w, "board:    %s\n", backend)
	fmt.Fprintf(w, "sessions: %s\n", sessions)
	fmt.Fprintf(w, "timeout:  %s\n", timeout)
	fmt.Fprintf(w, "limits:   line %d bytes, subnegotiation %d bytes\n", cfg.MaxLineLength, cfg.MaxSubnegotiation)
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `DSL-Link Message Board v%s

A Telnet server hosting a shared message board.

Usage:
  dsllink [options]

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Environment:
  DSLLINK_BIND, DSLLINK_PORT, DSLLINK_TIMEOUT, DSLLINK_MAX_SESSIONS,
  DSLLINK_MAX_LINE, DSLLINK_MAX_SUBNEG, DSLLINK_REDIS, DSLLINK_REDIS_KEY,
  DSLLINK_REDIS_DB, DSLLINK_VERBOSE, DSLLINK_DRY_RUN

Examples:
  dsllink                                     Listen on 127.0.0.1:23
  dsllink -b 0.0.0.0 -p 2323                  Listen on every interface
  dsllink --redis localhost:6379              Share one board between servers
  dsllink -vv --max-sessions 50 -w 300        Verbose, capped, 5 minute idle timeout
`)
}
