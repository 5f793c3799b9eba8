package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	lcerrors "linechat/internal/errors"
	"linechat/internal/hub"
	"linechat/internal/session"
	"linechat/internal/transport"
	"linechat/util"
)

// syncBuffer is a bytes.Buffer safe for one writer goroutine and a
// polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitFor polls until the buffer contains s.
func (b *syncBuffer) waitFor(t *testing.T, s string) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !strings.Contains(b.String(), s) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %q; output so far:\n%s", s, b.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newConnectMode(addr string, stdin io.Reader, stdout io.Writer) *ConnectMode {
	return &ConnectMode{
		Dialer:  &transport.TCPDialer{Timeout: 2 * time.Second},
		Address: addr,
		Logger:  util.NewLogger(0),
		Stdin:   stdin,
		Stdout:  stdout,
	}
}

// TestConnectMode_ScriptedSignup drives a real server from a scripted
// stdin and checks the console transcript.
func TestConnectMode_ScriptedSignup(t *testing.T) {
	srv := startServer(t, nil)

	input := bytes.NewBufferString("2\nalice\nsecret\n")
	output := &syncBuffer{}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if err := newConnectMode(srv.addr, input, output).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := strings.Join([]string{
		session.PromptChoice,
		session.PromptSignupUsername,
		session.PromptSignupPassword,
		session.SignupOK,
	}, "\n") + "\n"
	if got := output.String(); got != want {
		t.Errorf("transcript:\n%q\nwant:\n%q", got, want)
	}

	ok, err := srv.store.Authenticate("alice", "secret")
	if err != nil || !ok {
		t.Errorf("alice should be registered: ok=%v err=%v", ok, err)
	}
}

// TestConnectMode_ReceivesBroadcasts checks that lines from other
// members reach the console.
func TestConnectMode_ReceivesBroadcasts(t *testing.T) {
	srv := startServer(t, nil)

	stdinR, stdinW := io.Pipe()
	defer stdinW.Close()
	output := &syncBuffer{}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- newConnectMode(srv.addr, stdinR, output).Run(ctx) }()

	io.WriteString(stdinW, "2\nalice\nsecret\n") //nolint:errcheck
	output.waitFor(t, session.SignupOK)

	bob := dialClient(t, srv.addr)
	bob.join("bob")
	output.waitFor(t, hub.JoinNotice("bob"))

	bob.send("hi alice")
	output.waitFor(t, "bob: hi alice")

	io.WriteString(stdinW, "hi bob\n") //nolint:errcheck
	bob.expect("alice: hi bob")

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run returned %v after cancel", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("client did not stop on cancel")
	}
}

// TestConnectMode_PasswordPrompt checks that the answer after a
// username prompt is read through ReadPassword, not stdin.
func TestConnectMode_PasswordPrompt(t *testing.T) {
	srv := startServer(t, nil)

	stdinR, stdinW := io.Pipe()
	defer stdinW.Close()
	output := &syncBuffer{}

	var prompted atomic.Int32
	mode := newConnectMode(srv.addr, stdinR, output)
	mode.ReadPassword = func() (string, error) {
		prompted.Add(1)
		return "s3cret", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	go mode.Run(ctx) //nolint:errcheck

	io.WriteString(stdinW, "2\n") //nolint:errcheck
	output.waitFor(t, session.PromptSignupUsername)
	io.WriteString(stdinW, "alice\n") //nolint:errcheck
	output.waitFor(t, session.SignupOK)

	if n := prompted.Load(); n != 1 {
		t.Errorf("ReadPassword called %d times, want 1", n)
	}
	ok, err := srv.store.Authenticate("alice", "s3cret")
	if err != nil || !ok {
		t.Errorf("password from ReadPassword not used: ok=%v err=%v", ok, err)
	}
}

func TestConnectMode_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	mode := newConnectMode(addr, strings.NewReader(""), io.Discard)
	err = mode.Run(context.Background())
	if err == nil {
		t.Fatal("expected dial error")
	}
	var nerr *lcerrors.NetworkError
	if !errors.As(err, &nerr) || nerr.Op != "dial" {
		t.Errorf("expected dial NetworkError, got %T: %v", err, err)
	}
}

// TestConnectMode_RetryUntilServerUp starts the server after the first
// dial has already been refused.
func TestConnectMode_RetryUntilServerUp(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	addr := util.FormatAddr("127.0.0.1", port)

	go func() {
		time.Sleep(200 * time.Millisecond)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from server\n")) //nolint:errcheck
	}()

	output := &syncBuffer{}
	mode := newConnectMode(addr, strings.NewReader(""), output)
	mode.Retry = 5

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := output.String(); got != "hello from server\n" {
		t.Errorf("output = %q", got)
	}
}

// countingDialer fails every dial with err.
type countingDialer struct {
	err   error
	dials atomic.Int32
}

func (d *countingDialer) Dial(context.Context, string, string) (net.Conn, error) {
	d.dials.Add(1)
	return nil, d.err
}

func (d *countingDialer) Close() error { return nil }

// TestConnectMode_PermanentDialErrorNotRetried checks that an error the
// classifier does not consider retryable ends the dial immediately.
func TestConnectMode_PermanentDialErrorNotRetried(t *testing.T) {
	dialer := &countingDialer{err: errors.New("no such host")}
	mode := newConnectMode("chat.invalid:12345", strings.NewReader(""), io.Discard)
	mode.Dialer = dialer
	mode.Retry = 5

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	err := mode.Run(ctx)
	var nerr *lcerrors.NetworkError
	if !errors.As(err, &nerr) || nerr.Op != "dial" {
		t.Fatalf("expected dial NetworkError, got %T: %v", err, err)
	}
	if lcerrors.IsRetryable(err) {
		t.Errorf("error reported as retryable: %v", err)
	}
	if n := dialer.dials.Load(); n != 1 {
		t.Errorf("dialled %d times, want 1", n)
	}
}
