// Package link tracks device liveness and carries commands to the
// actuator controller over UDP.
package link

import (
	"errors"
	"sync"
	"time"
)

// ErrLinkDown describes a device that has not been heard from within the
// liveness timeout. It is informational and never blocks a command.
var ErrLinkDown = errors.New("robot link down")

// Health records the last liveness signal and where it came from.
type Health struct {
	mu       sync.RWMutex
	addr     string
	lastSeen time.Time
}

// NewHealth returns a Health that sends to addr until the device is seen
// somewhere else.
func NewHealth(addr string) *Health {
	return &Health{addr: addr}
}

// OnDeviceAlive records a liveness signal. It returns true if addr differs
// from the known address; the new address is adopted without confirmation.
func (h *Health) OnDeviceAlive(addr string, ts time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ts.After(h.lastSeen) {
		h.lastSeen = ts
	}
	if addr == "" || addr == h.addr {
		return false
	}
	h.addr = addr
	return true
}

// LastSeen returns the time of the latest liveness signal.
func (h *Health) LastSeen() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastSeen
}

// Addr returns the device address.
func (h *Health) Addr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.addr
}
