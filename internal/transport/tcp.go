package transport

import (
	"context"
	"net"
	"time"
)

// DefaultKeepAlive is the TCP keep-alive period used when KeepAlive is
// zero, so a chat idle for hours is not dropped by a NAT.
const DefaultKeepAlive = 30 * time.Second

// TCPDialer establishes plain TCP connections.
type TCPDialer struct {
	Timeout   time.Duration // per-attempt connect timeout (0 = none)
	KeepAlive time.Duration // 0 = DefaultKeepAlive, < 0 disables
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	keepAlive := d.KeepAlive
	if keepAlive == 0 {
		keepAlive = DefaultKeepAlive
	}
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: keepAlive}
	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
