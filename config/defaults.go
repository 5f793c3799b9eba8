package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultPort is the chat port used by both server and client.
	DefaultPort = 12345

	// DefaultHost is the address the client dials when none is given.
	DefaultHost = "127.0.0.1"

	// DefaultStorePath is the credential file, relative to the working
	// directory of the server process.
	DefaultStorePath = "users.txt"

	// DefaultQueueSize is the per-session outbound queue length.  A
	// session whose queue fills up is disconnected as a slow consumer.
	DefaultQueueSize = 256

	// DefaultMaxClients of 0 means unbounded: one goroutine per
	// accepted connection with no ceiling.
	DefaultMaxClients = 0

	// DefaultConnTimeout bounds a single client dial attempt.
	DefaultConnTimeout = 30 * time.Second

	// DefaultAcceptRetryDelay is the pause after a temporary accept
	// error (e.g. EMFILE) before accepting again.
	DefaultAcceptRetryDelay = 50 * time.Millisecond

	// DefaultGracePeriod is how long shutdown waits for sessions to
	// finish their teardown.
	DefaultGracePeriod = 5 * time.Second

	// DefaultVerbosity for the server: chat lines are logged at Info.
	DefaultVerbosity = 1
)

// Defaults returns a Config populated with every default value.  The
// CLI overlays environment variables and flags on top of it.
func Defaults() *Config {
	return &Config{
		Host:       DefaultHost,
		Port:       DefaultPort,
		LocalPort:  DefaultPort,
		StorePath:  DefaultStorePath,
		QueueSize:  DefaultQueueSize,
		MaxClients: DefaultMaxClients,
	}
}
