package metrics

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestCollector_Connections(t *testing.T) {
	c := New()

	c.ConnectionOpened()
	c.ConnectionOpened()
	if c.ActiveConnections() != 2 {
		t.Errorf("active = %d, want 2", c.ActiveConnections())
	}
	if c.TotalConnections() != 2 {
		t.Errorf("total = %d, want 2", c.TotalConnections())
	}

	c.ConnectionClosed()
	if c.ActiveConnections() != 1 {
		t.Errorf("active = %d, want 1", c.ActiveConnections())
	}
	if c.TotalConnections() != 2 {
		t.Errorf("total should remain 2, got %d", c.TotalConnections())
	}
}

func TestCollector_Auth(t *testing.T) {
	c := New()

	c.Login(true)
	c.Login(false)
	c.Login(false)
	c.Signup(true)
	c.Signup(false)

	snap := c.Snapshot()
	if snap.LoginsOK != 1 || snap.LoginsFailed != 2 {
		t.Errorf("logins = %d/%d, want 1/2", snap.LoginsOK, snap.LoginsFailed)
	}
	if snap.SignupsOK != 1 || snap.SignupsFailed != 1 {
		t.Errorf("signups = %d/%d, want 1/1", snap.SignupsOK, snap.SignupsFailed)
	}
	if c.FailedAuths() != 3 {
		t.Errorf("failed auths = %d, want 3", c.FailedAuths())
	}
}

func TestCollector_Messages(t *testing.T) {
	c := New()

	c.MessageReceived()
	c.Delivered(3)
	c.MessageReceived()
	c.Delivered(2)
	c.SlowConsumer()

	if c.MessagesIn() != 2 {
		t.Errorf("messages in = %d, want 2", c.MessagesIn())
	}
	if c.Deliveries() != 5 {
		t.Errorf("deliveries = %d, want 5", c.Deliveries())
	}
	if c.Snapshot().SlowConsumers != 1 {
		t.Errorf("slow consumers = %d, want 1", c.Snapshot().SlowConsumers)
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("first error")
	c.RecordError("second error")

	if c.ErrorCount() != 2 {
		t.Errorf("errors = %d, want 2", c.ErrorCount())
	}
	if msg := c.Snapshot().LastErrorMessage; msg != "second error" {
		t.Errorf("last error = %q", msg)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.ConnectionOpened()
				c.MessageReceived()
				c.ConnectionClosed()
			}
		}()
	}
	wg.Wait()

	if c.TotalConnections() != 1000 {
		t.Errorf("total = %d, want 1000", c.TotalConnections())
	}
	if c.ActiveConnections() != 0 {
		t.Errorf("active = %d, want 0", c.ActiveConnections())
	}
	if c.MessagesIn() != 1000 {
		t.Errorf("messages in = %d, want 1000", c.MessagesIn())
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.ConnectionOpened()
	c.Delivered(42)

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.ConnectionsActive != 1 {
		t.Errorf("JSON active = %d", snap.ConnectionsActive)
	}
	if snap.Deliveries != 42 {
		t.Errorf("JSON deliveries = %d", snap.Deliveries)
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.Login(true)
	c.Signup(false)
	c.MessageReceived()
	c.Delivered(5)
	c.SlowConsumer()
	c.RecordError("test")

	if c.ActiveConnections() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.Deliveries() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.ErrorCount() != 0 {
		t.Error("nil collector should return 0")
	}

	snap := c.Snapshot()
	if snap.ConnectionsActive != 0 {
		t.Error("nil snapshot should be zero")
	}

	j := c.JSON()
	if j == "" {
		t.Error("nil JSON should return valid JSON")
	}
}
