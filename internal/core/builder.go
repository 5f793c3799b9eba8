package core

import (
	"os"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"linechat/config"
	"linechat/internal/credstore"
	"linechat/internal/hub"
	"linechat/internal/metrics"
	"linechat/internal/transport"
	"linechat/util"
)

// Build constructs the appropriate Mode from the given configuration.
// The configuration is expected to have passed Validate.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.Listen {
		return buildListen(cfg, logger)
	}
	return buildConnect(cfg, logger), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildListen(cfg *config.Config, logger *util.Logger) (Mode, error) {
	var opts []credstore.Option
	if cfg.HashPasswords {
		opts = append(opts, credstore.WithBcrypt(bcrypt.DefaultCost))
	}
	store, err := credstore.Open(cfg.StorePath, opts...)
	if err != nil {
		return nil, err
	}
	logger.Verbose("credential store %s", store.Path())

	m := metrics.New()
	return &ListenMode{
		Address:     cfg.ListenAddress(),
		Store:       store,
		Hub:         hub.New(logger, m),
		MaxClients:  cfg.MaxClients,
		QueueSize:   cfg.QueueSize,
		IdleTimeout: cfg.Timeout,
		GracePeriod: config.DefaultGracePeriod,
		Logger:      logger,
		Metrics:     m,
	}, nil
}

func buildConnect(cfg *config.Config, logger *util.Logger) Mode {
	mode := &ConnectMode{
		Dialer:  &transport.TCPDialer{Timeout: config.DefaultConnTimeout},
		Address: cfg.DialAddress(),
		Retry:   cfg.Retry,
		Logger:  logger,
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		mode.ReadPassword = terminalPassword(os.Stdin, os.Stdout)
	}
	return mode
}
