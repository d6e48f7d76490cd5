// Package api exposes the inbound command surface over HTTP and streams
// status snapshots and notices to observers.
package api

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/gwillem/scara/pkg/status"
)

// subscriberBuffer is how many events a slow subscriber may lag behind
// before the oldest are dropped.
const subscriberBuffer = 16

// Event types carried on the stream.
const (
	EventStatus       = "status"
	EventNotification = "notification"
)

// Event is one message on the observer stream.
type Event struct {
	Type   string           `json:"type"`
	Status *status.Snapshot `json:"status,omitempty"`
	Notice *status.Notice   `json:"notice,omitempty"`
}

// Hub fans snapshots and notices out to subscribers. It implements the
// arbiter's Observer.
type Hub struct {
	clk clock.Clock

	mu          sync.Mutex
	subscribers map[string]chan Event
	last        *status.Snapshot
}

// NewHub returns a hub with no subscribers.
func NewHub(clk clock.Clock) *Hub {
	return &Hub{clk: clk, subscribers: make(map[string]chan Event)}
}

// Subscribe registers a subscriber. The latest snapshot, if any, is queued
// immediately.
func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last != nil {
		snap := *h.last
		ch <- Event{Type: EventStatus, Status: &snap}
	}
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Subscribers returns the number of subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish broadcasts a snapshot.
func (h *Hub) Publish(s status.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &s
	h.broadcast(Event{Type: EventStatus, Status: &s})
}

// Notify broadcasts a notice.
func (h *Hub) Notify(severity status.Severity, msg string) {
	n := status.Notice{Severity: severity, Message: msg, Time: h.clk.Now()}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast(Event{Type: EventNotification, Notice: &n})
}

// Close unsubscribes everyone.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}

// broadcast never blocks: a full subscriber loses its oldest event.
// Callers hold h.mu.
func (h *Hub) broadcast(ev Event) {
	for _, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
