package util

import (
	"bufio"
	"errors"
	"io"
	"net"
)

// MaxLineSize caps a single protocol line.  Longer lines are a
// protocol error and end the session.
const MaxLineSize = 64 * 1024

// NewLineScanner returns a scanner that yields newline-delimited lines
// with the trailing "\n" (and any "\r" before it) removed.  A final
// fragment without a newline is still returned at EOF.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), MaxLineSize)
	return sc
}

// WriteLine writes s followed by a single "\n".
func WriteLine(w io.Writer, s string) error {
	_, err := io.WriteString(w, s+"\n")
	return err
}

// IsHarmless returns true for errors that are expected during shutdown
// or an ordinary peer disconnect.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
