// Package cmd wires up the CLI flags and dispatches to the chat core.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"linechat/config"
	"linechat/internal/core"
	"linechat/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X linechat/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the chat server or client.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Defaults()
	config.LoadFromEnv(cfg)
	envVerbose := cfg.Verbose // CountVarP resets the target to zero

	fs := flag.NewFlagSet("linechat", flag.ContinueOnError)

	// ── connection ───────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Run the chat server")
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Port to listen on (or connect to)")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Disconnect clients idle this many seconds (0 = never)")
	fs.IntVar(&cfg.Retry, "retry", cfg.Retry, "Retry a refused dial this many times with backoff")

	// ── server ───────────────────────────────────────────────────
	fs.StringVarP(&cfg.StorePath, "store", "s", cfg.StorePath, "Credential file")
	fs.BoolVar(&cfg.HashPasswords, "hash-passwords", cfg.HashPasswords, "Store new passwords as bcrypt hashes")
	fs.IntVar(&cfg.MaxClients, "max-clients", cfg.MaxClients, "Concurrent client limit (0 = unbounded)")
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "Outbound lines buffered per client before it is dropped")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate the configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !fs.Changed("verbose") {
		cfg.Verbose = envVerbose
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("linechat %s\n", version)
		return nil
	}

	cfg.Timeout = time.Duration(timeoutSec) * time.Second

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args(), fs.Changed("port")); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		printDryRun(cfg)
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	verbosity := cfg.Verbose
	if cfg.Listen {
		verbosity += config.DefaultVerbosity
	}
	logger := util.NewLogger(verbosity)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional handles "linechat -l [bind-host]" and
// "linechat [host [port]]".  A client with no host dials the default
// (or LINECHAT_HOST).
func parsePositional(cfg *config.Config, remaining []string, portFlag bool) error {
	if cfg.Listen {
		switch len(remaining) {
		case 0:
		case 1:
			cfg.BindHost = remaining[0]
		default:
			return fmt.Errorf("too many arguments for listen mode")
		}
		return nil
	}

	if portFlag {
		cfg.Port = cfg.LocalPort
	}
	switch len(remaining) {
	case 0:
	case 1:
		cfg.Host = remaining[0]
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
	default:
		return fmt.Errorf("too many arguments: expected <host> [port]")
	}
	return nil
}

func printDryRun(cfg *config.Config) {
	if cfg.Listen {
		fmt.Fprintf(os.Stderr, "linechat: would listen on %s (store %s, max-clients %d, queue %d, timeout %s)\n",
			cfg.ListenAddress(), cfg.StorePath, cfg.MaxClients, cfg.QueueSize, cfg.Timeout)
		return
	}
	fmt.Fprintf(os.Stderr, "linechat: would connect to %s (retry %d)\n", cfg.DialAddress(), cfg.Retry)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `linechat – line-oriented TCP chat v%s

Usage:
  linechat -l [-p <port>] [options] [bind-host]   Run the server
  linechat [options] <host> [port]                Connect as a client

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  LINECHAT_HOST, LINECHAT_PORT, LINECHAT_LISTEN, LINECHAT_STORE,
  LINECHAT_TIMEOUT, LINECHAT_RETRY, LINECHAT_HASH_PASSWORDS,
  LINECHAT_MAX_CLIENTS, LINECHAT_QUEUE_SIZE, LINECHAT_VERBOSE

Examples:
  linechat -l -p 12345                    Serve on all interfaces
  linechat -l -s /var/lib/chat/users.txt  Use another credential file
  linechat -l --max-clients 100 -w 600    Bound clients, drop idle ones
  linechat 127.0.0.1 12345                Join a chat
  linechat --retry 5 chat.example.com     Wait for a restarting server
`)
}
