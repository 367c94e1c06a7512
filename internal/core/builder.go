package core

import (
	"errors"

	"dsllink/config"
	"dsllink/internal/board"
	"dsllink/internal/capability"
	"dsllink/internal/metrics"
	"dsllink/internal/telnet"
	"dsllink/util"
)

// Build assembles the message board server described by cfg.  The
// board backend is chosen and connected by the caller.
func Build(cfg *config.Config, b board.Board, logger *util.Logger, collector *metrics.Collector) (*ListenMode, error) {
	if cfg == nil {
		return nil, errors.New("core: nil config")
	}
	if b == nil {
		return nil, errors.New("core: nil board")
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}

	return &ListenMode{
		Network:     "tcp",
		Address:     cfg.Address(),
		IdleTimeout: cfg.IdleTimeout,
		MaxSessions: cfg.MaxSessions,
		GracePeriod: cfg.GracePeriod,
		DecoderOptions: []telnet.Option{
			telnet.WithMaxLineLength(cfg.MaxLineLength),
			telnet.WithMaxSubnegotiation(cfg.MaxSubnegotiation),
		},
		Capability: &capability.BoardLoop{Board: b, Collector: collector},
		Collector:  collector,
		Logger:     logger,
	}, nil
}
