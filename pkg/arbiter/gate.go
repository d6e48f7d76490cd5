package arbiter

import (
	"sync"
	"time"
)

// MotionGate marks automated motion in progress. While held, or until the
// throttle window after the last manual command has elapsed, the idle
// keepalive to the actuator is withheld.
type MotionGate struct {
	mu    sync.Mutex
	held  bool
	stamp time.Time
}

// Acquire marks the start of an automated trajectory.
func (g *MotionGate) Acquire(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = true
	g.stamp = now
}

// Release marks the end of an automated trajectory.
func (g *MotionGate) Release(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = false
	g.stamp = now
}

// Touch records a manual command.
func (g *MotionGate) Touch(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stamp = now
}

// Held reports whether an automated trajectory holds the gate.
func (g *MotionGate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Open reports whether a keepalive may be sent at now.
func (g *MotionGate) Open(now time.Time, throttle time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.held && now.Sub(g.stamp) > throttle
}
