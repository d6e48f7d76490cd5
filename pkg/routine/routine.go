// Package routine holds the recorded waypoint sequence.
package routine

import (
	"sync"

	"github.com/gwillem/scara/pkg/robot"
)

// Store is an ordered, append-only list of waypoints. Clear is the only way
// to remove entries.
type Store struct {
	mu        sync.RWMutex
	waypoints []robot.Waypoint
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a waypoint at the end and returns the new length.
func (s *Store) Append(wp robot.Waypoint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waypoints = append(s.waypoints, wp)
	return len(s.waypoints)
}

// Clear removes all waypoints.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waypoints = nil
}

// Len returns the number of waypoints.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.waypoints)
}

// Waypoints returns a copy of the waypoints in recording order.
func (s *Store) Waypoints() []robot.Waypoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]robot.Waypoint, len(s.waypoints))
	copy(out, s.waypoints)
	return out
}
