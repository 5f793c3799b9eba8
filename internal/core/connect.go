package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"linechat/internal/errors"
	"linechat/internal/retry"
	"linechat/internal/session"
	"linechat/internal/transport"
	"linechat/util"
)

// retryInitialDelay is the first pause between client dial attempts.
const retryInitialDelay = 500 * time.Millisecond

// ConnectMode is the console client: it dials the server, prints every
// line the server sends and forwards every line typed on stdin.
type ConnectMode struct {
	Dialer  transport.Dialer
	Address string
	Retry   int // extra dial attempts after the first
	Logger  *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer

	// ReadPassword, when set, reads the answer to a password prompt
	// without echo.  The builder installs it when stdin is a terminal.
	ReadPassword func() (string, error)
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run dials the server and relays lines until the server closes the
// connection or ctx is cancelled.  End of stdin half-closes the
// connection and waits for the server to finish.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	m.Logger.Verbose("connected to %s", conn.RemoteAddr())

	var last atomic.Value // most recent server line
	last.Store("")

	recvDone := make(chan error, 1)
	go func() { recvDone <- m.receive(conn, &last) }()

	sendDone := make(chan error, 1)
	go func() { sendDone <- m.transmit(conn, &last) }()

	select {
	case err := <-recvDone:
		return m.finish(ctx, err)
	case err := <-sendDone:
		if err != nil && !util.IsHarmless(err) {
			return fmt.Errorf("stdin: %w", err)
		}
		closeWrite(conn)
		return m.finish(ctx, <-recvDone)
	}
}

func (m *ConnectMode) dial(ctx context.Context) (net.Conn, error) {
	m.Logger.Verbose("connecting to %s", m.Address)

	var conn net.Conn
	attempt := func(_ int) error {
		c, err := m.Dialer.Dial(ctx, "tcp", m.Address)
		if err != nil {
			nerr := errors.Wrap("dial", m.Address, err)
			if !errors.IsRetryable(nerr) {
				return retry.Permanent(nerr)
			}
			return nerr
		}
		conn = c
		return nil
	}

	if m.Retry <= 0 {
		if err := attempt(1); err != nil {
			if retry.IsPermanent(err) {
				return nil, errors.Unwrap(err)
			}
			return nil, err
		}
		return conn, nil
	}

	b := retry.DefaultBackoff()
	b.InitialDelay = retryInitialDelay
	b.MaxAttempts = m.Retry + 1
	b.OnRetry = func(n int, err error, wait time.Duration) {
		m.Logger.Warn("attempt %d/%d: %v; retrying in %s", n, b.MaxAttempts, err, wait.Round(time.Millisecond))
	}
	if err := b.Do(ctx, attempt); err != nil {
		return nil, err
	}
	return conn, nil
}

// receive copies server lines to stdout, remembering the latest one so
// transmit can tell when a password is being asked for.
func (m *ConnectMode) receive(conn net.Conn, last *atomic.Value) error {
	out := m.stdout()
	sc := util.NewLineScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		last.Store(line)
		if err := util.WriteLine(out, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// transmit sends each stdin line to the server.  The line typed after a
// username prompt is followed by the password, which is read through
// ReadPassword when one is configured.
func (m *ConnectMode) transmit(conn net.Conn, last *atomic.Value) error {
	sc := util.NewLineScanner(m.stdin())
	secretNext := false

	for {
		var line string
		if secretNext && m.ReadPassword != nil {
			pw, err := m.ReadPassword()
			if err != nil {
				return err
			}
			line = pw
			secretNext = false
		} else {
			if !sc.Scan() {
				return sc.Err()
			}
			line = sc.Text()
			secretNext = isUsernamePrompt(last.Load().(string))
		}

		if err := util.WriteLine(conn, line); err != nil {
			return err
		}
	}
}

func (m *ConnectMode) finish(ctx context.Context, err error) error {
	if ctx.Err() != nil || util.IsHarmless(err) {
		m.Logger.Verbose("connection closed")
		return nil
	}
	return errors.Wrap("read", m.Address, err)
}

func isUsernamePrompt(line string) bool {
	line = strings.TrimSpace(line)
	return line == strings.TrimSpace(session.PromptLoginUsername) ||
		line == strings.TrimSpace(session.PromptSignupUsername)
}

// closeWrite half-closes conn so the server sees end of input while the
// client keeps reading.
func closeWrite(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite() //nolint:errcheck
		return
	}
	conn.Close()
}

// terminalPassword reads a line from the terminal f without echo.
func terminalPassword(f *os.File, echo io.Writer) func() (string, error) {
	return func() (string, error) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(echo)
		return string(b), err
	}
}
