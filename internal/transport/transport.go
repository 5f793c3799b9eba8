// Package transport opens the client's connection to a chat server.
// It owns the "how" of reaching the server (timeouts, keep-alives)
// and leaves the line protocol to the layers above.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections.  ConnectMode depends on this
// interface so tests can substitute an in-memory or failing dialer.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer.
	// Stateless dialers return nil.
	Close() error
}
