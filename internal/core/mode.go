// Package core is the orchestration layer.  It composes the transport,
// session and capability layers into a running server and provides a
// builder that assembles it from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  capability  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode that owns its lifecycle from
// opening the listener to the last session's teardown.
type Mode interface {
	Run(ctx context.Context) error
}
