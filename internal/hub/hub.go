// Package hub is the shared registry of authenticated chat sessions and
// the broadcaster that fans lines out to them.
//
// One RWMutex guards the member set.  Add and Remove take the write
// side; Broadcast iterates under the read side, so a broadcast that
// starts after a Remove has returned never reaches the removed member.
// Delivery itself never blocks: members queue the line and return.
package hub

import (
	"fmt"
	"sort"
	"sync"

	"linechat/internal/metrics"
	"linechat/util"
)

// Member is one registered participant.  Deliver must not block; it
// reports false when the line could not be queued.
type Member interface {
	Name() string
	Deliver(line string) bool
}

// JoinNotice is broadcast to everyone else when name joins.
func JoinNotice(name string) string { return fmt.Sprintf("%s has joined the chat!", name) }

// LeaveNotice is broadcast to the remaining members when name leaves.
func LeaveNotice(name string) string { return fmt.Sprintf("%s has left the chat!", name) }

// ChatLine is what other members see when name says text.
func ChatLine(name, text string) string { return name + ": " + text }

// Hub is the registry and broadcaster.  The zero value is not usable;
// call New.
type Hub struct {
	mu      sync.RWMutex
	members map[Member]struct{}

	logger  *util.Logger
	metrics *metrics.Collector
}

// New returns an empty Hub.  Either argument may be nil.
func New(logger *util.Logger, m *metrics.Collector) *Hub {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Hub{
		members: make(map[Member]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// Add registers m and announces it to every other current member.
// Adding a member twice is a no-op and announces nothing.
func (h *Hub) Add(m Member) {
	h.mu.Lock()
	if _, ok := h.members[m]; ok {
		h.mu.Unlock()
		return
	}
	h.members[m] = struct{}{}
	n := len(h.members)
	h.mu.Unlock()

	h.logger.Verbose("%s joined (members: %d)", m.Name(), n)
	h.Broadcast(JoinNotice(m.Name()), m)
}

// Remove unregisters m and announces its departure to the remaining
// members.  It reports whether m was a member; removing an absent
// member does nothing and announces nothing.
func (h *Hub) Remove(m Member) bool {
	h.mu.Lock()
	if _, ok := h.members[m]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.members, m)
	n := len(h.members)
	h.mu.Unlock()

	h.logger.Verbose("%s left (members: %d)", m.Name(), n)
	h.Broadcast(LeaveNotice(m.Name()), nil)
	return true
}

// Broadcast queues line for every member except exclude (nil excludes
// nobody) and returns how many members accepted it.
func (h *Hub) Broadcast(line string, exclude Member) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for m := range h.members {
		if m == exclude {
			continue
		}
		if m.Deliver(line) {
			delivered++
		} else {
			h.logger.Debug("dropped line for %s", m.Name())
		}
	}
	h.metrics.Delivered(delivered)
	return delivered
}

// Contains reports whether m is currently registered.
func (h *Hub) Contains(m Member) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.members[m]
	return ok
}

// Len returns the number of registered members.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// Names returns the sorted names of all members.  Names may repeat:
// the registry is keyed by session, not by username.
func (h *Hub) Names() []string {
	h.mu.RLock()
	names := make([]string, 0, len(h.members))
	for m := range h.members {
		names = append(names, m.Name())
	}
	h.mu.RUnlock()

	sort.Strings(names)
	return names
}
