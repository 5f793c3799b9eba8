// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a linechat server.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a linechat server.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	loginsOK          atomic.Int64
	loginsFailed      atomic.Int64
	signupsOK         atomic.Int64
	signupsFailed     atomic.Int64
	messagesIn        atomic.Int64
	deliveries        atomic.Int64
	slowConsumers     atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── Authentication metrics ───────────────────────────────────────────

// Login records the outcome of one login attempt.
func (c *Collector) Login(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.loginsOK.Add(1)
	} else {
		c.loginsFailed.Add(1)
	}
}

// Signup records the outcome of one signup attempt.
func (c *Collector) Signup(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.signupsOK.Add(1)
	} else {
		c.signupsFailed.Add(1)
	}
}

// FailedAuths returns failed logins plus failed signups.
func (c *Collector) FailedAuths() int64 {
	if c == nil {
		return 0
	}
	return c.loginsFailed.Load() + c.signupsFailed.Load()
}

// ── Message metrics ──────────────────────────────────────────────────

// MessageReceived records one chat line from an authenticated peer.
func (c *Collector) MessageReceived() {
	if c == nil {
		return
	}
	c.messagesIn.Add(1)
}

// Delivered records n lines queued for delivery by one broadcast.
func (c *Collector) Delivered(n int) {
	if c == nil {
		return
	}
	c.deliveries.Add(int64(n))
}

// SlowConsumer records a session dropped because its queue was full.
func (c *Collector) SlowConsumer() {
	if c == nil {
		return
	}
	c.slowConsumers.Add(1)
}

// MessagesIn returns total chat lines received.
func (c *Collector) MessagesIn() int64 {
	if c == nil {
		return 0
	}
	return c.messagesIn.Load()
}

// Deliveries returns total lines queued to recipients.
func (c *Collector) Deliveries() int64 {
	if c == nil {
		return 0
	}
	return c.deliveries.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	LoginsOK          int64  `json:"logins_ok"`
	LoginsFailed      int64  `json:"logins_failed"`
	SignupsOK         int64  `json:"signups_ok"`
	SignupsFailed     int64  `json:"signups_failed"`
	MessagesIn        int64  `json:"messages_in"`
	Deliveries        int64  `json:"deliveries"`
	SlowConsumers     int64  `json:"slow_consumers"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		LoginsOK:          c.loginsOK.Load(),
		LoginsFailed:      c.loginsFailed.Load(),
		SignupsOK:         c.signupsOK.Load(),
		SignupsFailed:     c.signupsFailed.Load(),
		MessagesIn:        c.messagesIn.Load(),
		Deliveries:        c.deliveries.Load(),
		SlowConsumers:     c.slowConsumers.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
