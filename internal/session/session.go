// Package session runs one client connection from accept to close:
// the login/signup handshake, then relaying the client's lines through
// the hub until the peer goes away.
//
// Each session owns two goroutines.  Run is the reader and drives the
// state machine; a writer drains the outbound queue into the socket.
// Everything sent to the peer (prompts, replies and other members'
// broadcasts) goes through that one queue, so per-peer ordering holds
// and a broadcaster never blocks on a slow socket.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"linechat/internal/errors"
	"linechat/internal/hub"
	"linechat/internal/metrics"
	"linechat/util"
)

// drainTimeout bounds how long teardown spends flushing queued lines.
const drainTimeout = time.Second

// Authenticator is the credential store as seen by a session.
type Authenticator interface {
	Authenticate(username, password string) (bool, error)
	Register(username, password string) (bool, error)
}

// Registry is the hub as seen by a session.
type Registry interface {
	Add(m hub.Member)
	Remove(m hub.Member) bool
	Broadcast(line string, exclude hub.Member) int
}

// Config carries the collaborators every session shares.
type Config struct {
	Store   Authenticator
	Hub     Registry
	Logger  *util.Logger
	Metrics *metrics.Collector

	// QueueSize is the outbound queue length; a peer that falls this
	// far behind is disconnected.
	QueueSize int
	// IdleTimeout, when > 0, closes a session that sends nothing for
	// that long.  Zero waits forever.
	IdleTimeout time.Duration
}

// Session is the server side of one connected client.
type Session struct {
	id      string
	conn    net.Conn
	store   Authenticator
	hub     Registry
	logger  *util.Logger
	metrics *metrics.Collector
	idle    time.Duration

	out        chan string
	done       chan struct{} // closed by teardown
	writerDone chan struct{} // closed when the writer exits
	closeOnce  sync.Once
	slow       atomic.Bool

	mu       sync.Mutex
	state    State
	username string
}

// New binds a session to conn.  Call Run to start it.
func New(conn net.Conn, cfg Config) *Session {
	size := cfg.QueueSize
	if size < 1 {
		size = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	id := uuid.NewString()[:8]

	return &Session{
		id:         id,
		conn:       conn,
		store:      cfg.Store,
		hub:        cfg.Hub,
		logger:     logger.With(fmt.Sprintf("[%s %s]", id, conn.RemoteAddr())),
		metrics:    cfg.Metrics,
		idle:       cfg.IdleTimeout,
		out:        make(chan string, size),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// ID returns the short random identifier used in log lines.
func (s *Session) ID() string { return s.id }

// Name returns the bound username, or "" before authentication.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// bind sets the username.  It is only ever called once, on the
// transition to StateAuthenticated.
func (s *Session) bind(username string) {
	s.mu.Lock()
	s.username = username
	s.state = StateAuthenticated
	s.mu.Unlock()
}

// Close ends the session from outside by closing its connection; Run
// notices and tears down.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Deliver queues a line from another member without blocking.  A full
// queue means the peer cannot keep up: the connection is closed and the
// line is dropped.
func (s *Session) Deliver(line string) bool {
	select {
	case <-s.done:
		return false
	case <-s.writerDone:
		return false
	default:
	}

	select {
	case s.out <- line:
		return true
	default:
		if s.slow.CompareAndSwap(false, true) {
			s.metrics.SlowConsumer()
			s.logger.Warn("outbound queue full, disconnecting")
			s.conn.Close()
		}
		return false
	}
}

// send queues a reply to this session's own peer, waiting for room.
func (s *Session) send(line string) error {
	select {
	case s.out <- line:
		return nil
	case <-s.writerDone:
		return errors.ErrSessionClosed
	case <-s.done:
		return errors.ErrSessionClosed
	}
}

// Run drives the session until the peer disconnects, an I/O error
// occurs, or ctx is cancelled.  A clean disconnect returns nil.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Verbose("connected")

	go s.writeLoop()
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()
	defer s.teardown()

	sc := util.NewLineScanner(s.conn)

	if err := s.handshake(sc); err != nil {
		return s.classify(err)
	}

	s.hub.Add(s)
	s.logger.Info("%s logged in", s.Name())

	return s.classify(s.relay(sc))
}

// ── State machine ────────────────────────────────────────────────────

// handshake loops on the Login/Signup prompt until one succeeds.
func (s *Session) handshake(sc *bufio.Scanner) error {
	for {
		s.setState(StateUnauthenticated)
		if err := s.send(PromptChoice); err != nil {
			return err
		}
		choice, err := s.readLine(sc)
		if err != nil {
			return err
		}

		var ok bool
		switch strings.TrimSpace(choice) {
		case ChoiceLogin:
			ok, err = s.login(sc)
		case ChoiceSignup:
			ok, err = s.signup(sc)
		default:
			s.logger.Debug("ignoring choice %q", choice)
			continue
		}
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

func (s *Session) login(sc *bufio.Scanner) (bool, error) {
	s.setState(StateLogin)
	username, password, err := s.readCredentials(sc, PromptLoginUsername, PromptLoginPassword)
	if err != nil {
		return false, err
	}

	ok, err := s.store.Authenticate(username, password)
	switch {
	case err != nil:
		s.storeFailure("login", err)
		ok = false
	case !ok:
		err = errors.ErrInvalidCredentials
	}
	s.metrics.Login(ok)

	if !ok {
		s.logger.Verbose("login %q: %v", username, err)
		return false, s.send(LoginFailed)
	}
	s.bind(username)
	return true, s.send(LoginOK)
}

func (s *Session) signup(sc *bufio.Scanner) (bool, error) {
	s.setState(StateSignup)
	username, password, err := s.readCredentials(sc, PromptSignupUsername, PromptSignupPassword)
	if err != nil {
		return false, err
	}

	ok, err := s.store.Register(username, password)
	switch {
	case err == nil && !ok:
		err = errors.ErrUserExists
	case errors.Is(err, errors.ErrInvalidUsername):
	case err != nil:
		s.storeFailure("signup", err)
		ok = false
	}
	s.metrics.Signup(ok)

	if !ok {
		s.logger.Verbose("signup %q: %v", username, err)
		return false, s.send(SignupFailed)
	}
	s.bind(username)
	s.logger.Info("registered %q", username)
	return true, s.send(SignupOK)
}

func (s *Session) readCredentials(sc *bufio.Scanner, userPrompt, passPrompt string) (string, string, error) {
	if err := s.send(userPrompt); err != nil {
		return "", "", err
	}
	username, err := s.readLine(sc)
	if err != nil {
		return "", "", err
	}
	if err := s.send(passPrompt); err != nil {
		return "", "", err
	}
	password, err := s.readLine(sc)
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

// relay forwards every line from the peer to all other members.
func (s *Session) relay(sc *bufio.Scanner) error {
	name := s.Name()
	for {
		text, err := s.readLine(sc)
		if err != nil {
			return err
		}
		line := hub.ChatLine(name, text)
		s.metrics.MessageReceived()
		s.logger.Info("%s", line)
		s.hub.Broadcast(line, s)
	}
}

// storeFailure logs a credential store error; the request fails closed.
func (s *Session) storeFailure(op string, err error) {
	s.logger.Error("%s: %v", op, err)
	s.metrics.RecordError(err.Error())
}

// ── I/O ──────────────────────────────────────────────────────────────

// readLine returns the next line from the peer, honouring the idle
// timeout.  End of stream is reported as io.EOF.
func (s *Session) readLine(sc *bufio.Scanner) (string, error) {
	if s.idle > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.idle)) //nolint:errcheck
	}
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return sc.Text(), nil
}

// writeLoop drains the outbound queue into the socket, batching lines
// that are already waiting into one flush.
func (s *Session) writeLoop() {
	defer close(s.writerDone)
	w := bufio.NewWriter(s.conn)

	for {
		select {
		case line := <-s.out:
			if err := s.writeBatch(w, line); err != nil {
				if !util.IsHarmless(err) {
					s.logger.Verbose("write: %v", err)
				}
				s.conn.Close()
				return
			}
		case <-s.done:
			s.drain(w)
			return
		}
	}
}

func (s *Session) writeBatch(w *bufio.Writer, first string) error {
	if err := util.WriteLine(w, first); err != nil {
		return err
	}
	for {
		select {
		case line := <-s.out:
			if err := util.WriteLine(w, line); err != nil {
				return err
			}
		default:
			return w.Flush()
		}
	}
}

// drain flushes whatever is still queued when the session ends, so a
// final reply is not lost when the peer half-closes right after sending.
func (s *Session) drain(w *bufio.Writer) {
	s.conn.SetWriteDeadline(time.Now().Add(drainTimeout)) //nolint:errcheck
	for {
		select {
		case line := <-s.out:
			if util.WriteLine(w, line) != nil {
				return
			}
		default:
			w.Flush() //nolint:errcheck
			return
		}
	}
}

// teardown runs exactly once when Run returns: leave the hub (which
// announces the departure only if this session had joined), stop the
// writer, and release the connection.
func (s *Session) teardown() {
	name := s.Name()
	s.setState(StateClosed)

	if s.hub.Remove(s) {
		s.logger.Info("%s disconnected", name)
	} else {
		s.logger.Verbose("disconnected before login")
	}

	// A writer blocked on a peer that stopped reading must not hold
	// teardown forever.
	s.conn.SetWriteDeadline(time.Now().Add(drainTimeout)) //nolint:errcheck
	s.closeOnce.Do(func() { close(s.done) })
	<-s.writerDone
	s.conn.Close()
}

// classify maps a reader error onto what Run reports.
func (s *Session) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case s.slow.Load():
		return errors.ErrSlowConsumer
	case err == io.EOF, util.IsHarmless(err), errors.Is(err, errors.ErrSessionClosed):
		return nil
	case errors.IsTimeout(err):
		s.logger.Verbose("idle timeout")
		return fmt.Errorf("%s: %w", s.id, errors.ErrTimeout)
	case errors.Is(err, bufio.ErrTooLong):
		return fmt.Errorf("%s: protocol: %w", s.id, err)
	default:
		return errors.Wrap("read", s.conn.RemoteAddr().String(), err)
	}
}
