// Package core is the orchestration layer.  It composes the credential
// store, hub and sessions into a running server, or a dialer and the
// console into a client, and provides a builder that selects the right
// mode from a Config.
//
// Architecture layers (bottom → top):
//
//	credstore, hub  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of linechat (listen or
// connect).  Each mode owns its full lifecycle from the first socket
// to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
