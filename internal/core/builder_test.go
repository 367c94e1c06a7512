package core

import (
	"testing"
	"time"

	"dsllink/config"
	"dsllink/internal/board"
	"dsllink/internal/capability"
	"dsllink/internal/metrics"
	"dsllink/util"
)

func TestBuild_ListenMode(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "0.0.0.0"
	cfg.Port = 2323
	cfg.MaxSessions = 7
	cfg.IdleTimeout = time.Minute

	b := board.NewMemory()
	m := metrics.New()
	mode, err := Build(cfg, b, util.NewLogger(0), m)
	if err != nil {
		t.Fatal(err)
	}

	if mode.Address != "0.0.0.0:2323" {
		t.Errorf("Address = %q", mode.Address)
	}
	if mode.Network != "tcp" {
		t.Errorf("Network = %q", mode.Network)
	}
	if mode.MaxSessions != 7 || mode.IdleTimeout != time.Minute {
		t.Errorf("limits not carried over: %+v", mode)
	}
	if len(mode.DecoderOptions) != 2 {
		t.Errorf("expected 2 decoder options, got %d", len(mode.DecoderOptions))
	}

	loop, ok := mode.Capability.(*capability.BoardLoop)
	if !ok {
		t.Fatalf("expected *capability.BoardLoop, got %T", mode.Capability)
	}
	if loop.Board != b || loop.Collector != m {
		t.Error("board loop not wired to the given board and collector")
	}

	var _ Mode = mode
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build(nil, board.NewMemory(), nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := Build(config.Default(), nil, nil, nil); err == nil {
		t.Error("expected error for nil board")
	}
}

func TestBuild_NilLogger(t *testing.T) {
	mode, err := Build(config.Default(), board.NewMemory(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if mode.Logger == nil {
		t.Error("expected a default logger")
	}
}
