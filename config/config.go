// Package config defines the runtime configuration for linechat and
// the validation rules shared by the server and client modes.
package config

import (
	"fmt"
	"strconv"
	"time"

	"linechat/internal/errors"
	"linechat/util"
)

// Config holds every tuneable for a linechat server or client run.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Listen    bool
	Host      string        // client: server to dial
	Port      int           // client: server port
	BindHost  string        // server: optional bind address ("" = all interfaces)
	LocalPort int           // -p: listen port
	Timeout   time.Duration // server: idle read timeout per session (0 = none)
	Retry     int           // client: extra dial attempts with backoff

	// ── Server ───────────────────────────────────────────────────────
	StorePath     string
	HashPasswords bool
	MaxClients    int // 0 = unbounded
	QueueSize     int // per-session outbound queue

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	DryRun  bool
}

// ListenAddress returns the address the server binds.
func (c *Config) ListenAddress() string {
	return util.FormatAddr(c.BindHost, c.LocalPort)
}

// DialAddress returns the address the client connects to.
func (c *Config) DialAddress() string {
	return util.FormatAddr(c.Host, c.Port)
}

// ParsePort accepts a decimal port number in 1-65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Settings that only apply to the other mode are ignored, so one
// environment can serve both the server and the client.
func (c *Config) Validate() error {
	if c.Listen {
		if c.LocalPort < 1 || c.LocalPort > 65535 {
			return &errors.ConfigError{
				Field:   "port",
				Value:   c.LocalPort,
				Message: "out of range 1-65535",
				Hint:    fmt.Sprintf("listen mode needs -p <port>, e.g. -p %d", DefaultPort),
			}
		}
		if c.StorePath == "" {
			return &errors.ConfigError{
				Field:   "store",
				Message: "credential file is required in listen mode",
				Hint:    fmt.Sprintf("pass -s %s or set LINECHAT_STORE", DefaultStorePath),
			}
		}
		if c.MaxClients < 0 {
			return &errors.ConfigError{
				Field:   "max-clients",
				Value:   c.MaxClients,
				Message: "must not be negative",
				Hint:    "use 0 for no limit",
			}
		}
		if c.QueueSize < 1 {
			return &errors.ConfigError{
				Field:   "queue-size",
				Value:   c.QueueSize,
				Message: "must be at least 1",
			}
		}
	} else {
		if c.Host == "" {
			return &errors.ConfigError{
				Field:   "host",
				Message: "server address is required",
				Hint:    "linechat <host> [port]",
			}
		}
		if c.Port < 1 || c.Port > 65535 {
			return &errors.ConfigError{
				Field:   "port",
				Value:   c.Port,
				Message: "out of range 1-65535",
			}
		}
		if c.Retry < 0 {
			return &errors.ConfigError{
				Field:   "retry",
				Value:   c.Retry,
				Message: "must not be negative",
			}
		}
	}

	if c.Timeout < 0 {
		return &errors.ConfigError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "must not be negative",
			Hint:    "use 0 to let idle clients stay connected",
		}
	}

	return nil
}
