package core

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"linechat/config"
	"linechat/internal/errors"
	"linechat/internal/hub"
	"linechat/internal/metrics"
	"linechat/internal/session"
	"linechat/util"
)

// ListenMode is the chat server: it accepts connections and runs a
// session for each one until the context is cancelled.
type ListenMode struct {
	Address string // "host:port" or ":port"
	Store   session.Authenticator
	Hub     *hub.Hub

	MaxClients  int           // 0 = unbounded
	QueueSize   int           // per-session outbound queue
	IdleTimeout time.Duration // 0 = none
	GracePeriod time.Duration // wait for sessions on shutdown

	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Run binds Address and serves until ctx is cancelled or Accept fails
// permanently.
func (m *ListenMode) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.Address)
	if err != nil {
		return errors.Wrap("listen", m.Address, err)
	}
	return m.Serve(ctx, ln)
}

// Serve accepts on an existing listener.  It takes ownership of ln.
// On cancellation the listener and every live session are closed, and
// Serve returns nil once the sessions have finished (or the grace
// period runs out).
func (m *ListenMode) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	m.Logger.Info("listening on %s", ln.Addr())

	var sessions sync.WaitGroup
	err := m.acceptLoop(ctx, ln, &sessions)

	cancel()
	m.waitSessions(&sessions)
	m.Logger.Verbose("metrics: %s", m.Metrics.JSON())
	return err
}

// ── Accept loop ──────────────────────────────────────────────────────

func (m *ListenMode) acceptLoop(ctx context.Context, ln net.Listener, sessions *sync.WaitGroup) error {
	var slots *semaphore.Weighted
	if m.MaxClients > 0 {
		slots = semaphore.NewWeighted(int64(m.MaxClients))
	}

	for {
		if slots != nil {
			if err := slots.Acquire(ctx, 1); err != nil {
				return nil // cancelled while full
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if slots != nil {
				slots.Release(1)
			}
			if ctx.Err() != nil {
				return nil
			}
			if isTemporary(err) {
				m.Logger.Warn("accept: %v; retrying", err)
				m.Metrics.RecordError(err.Error())
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(config.DefaultAcceptRetryDelay):
				}
				continue
			}
			return errors.Wrap("accept", ln.Addr().String(), err)
		}

		sessions.Add(1)
		go func() {
			defer sessions.Done()
			if slots != nil {
				defer slots.Release(1)
			}
			m.serveConn(ctx, conn)
		}()
	}
}

func (m *ListenMode) serveConn(ctx context.Context, conn net.Conn) {
	m.Metrics.ConnectionOpened()
	defer m.Metrics.ConnectionClosed()

	s := session.New(conn, session.Config{
		Store:       m.Store,
		Hub:         m.Hub,
		Logger:      m.Logger,
		Metrics:     m.Metrics,
		QueueSize:   m.QueueSize,
		IdleTimeout: m.IdleTimeout,
	})
	if err := s.Run(ctx); err != nil {
		m.Metrics.RecordError(err.Error())
		m.Logger.Verbose("session %s ended: %v", s.ID(), err)
	}
}

// waitSessions blocks until every session goroutine has returned, or
// the grace period expires.
func (m *ListenMode) waitSessions(sessions *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		sessions.Wait()
		close(done)
	}()

	grace := m.GracePeriod
	if grace <= 0 {
		grace = config.DefaultGracePeriod
	}
	select {
	case <-done:
	case <-time.After(grace):
		m.Logger.Warn("%d sessions still open after %s", m.Metrics.ActiveConnections(), grace)
	}
}

// isTemporary reports accept errors worth retrying (EMFILE, ECONNABORTED
// and friends all implement Temporary).
func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}
