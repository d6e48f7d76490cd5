// Package control runs the periodic housekeeping loop: idle keepalives to
// the device, the status heartbeat, and link up/down notices.
package control

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gwillem/scara/pkg/link"
	"github.com/gwillem/scara/pkg/status"
)

// ErrRunning is returned by Start when the loop is already running.
var ErrRunning = errors.New("control loop already running")

// Motion is the part of the arbiter the loop drives.
type Motion interface {
	Keepalive() bool
	RequestStatus()
}

// Link reports whether the device is currently reachable.
type Link interface {
	Connected() bool
}

// Notifier receives operator notices.
type Notifier interface {
	Notify(severity status.Severity, msg string)
}

// Config holds configuration for the controller.
type Config struct {
	Period   time.Duration // heartbeat period, default 1s
	Motion   Motion
	Link     Link
	Notifier Notifier
	Clock    clock.Clock
	Logger   *zap.SugaredLogger
}

// Stats counts what the loop has done since it started.
type Stats struct {
	Ticks      int
	Keepalives int
	LinkUp     bool
}

// Controller manages the heartbeat loop.
type Controller struct {
	period   time.Duration
	motion   Motion
	link     Link
	notifier Notifier
	clk      clock.Clock
	logger   *zap.SugaredLogger

	mu      sync.RWMutex
	running bool
	stats   Stats
}

// NewController creates a controller. Motion and Link are required.
func NewController(cfg Config) *Controller {
	if cfg.Period <= 0 {
		cfg.Period = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Controller{
		period:   cfg.Period,
		motion:   cfg.Motion,
		link:     cfg.Link,
		notifier: cfg.Notifier,
		clk:      cfg.Clock,
		logger:   cfg.Logger,
	}
}

// Period returns the heartbeat period.
func (c *Controller) Period() time.Duration {
	return c.period
}

// Running reports whether the loop is running.
func (c *Controller) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Stats returns a copy of the loop counters.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Start runs the loop until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrRunning
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Infow("control loop started", "period", c.period)

	ticker := c.clk.Ticker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.step()
		}
	}
}

func (c *Controller) step() {
	sent := c.motion.Keepalive()
	c.motion.RequestStatus()
	up := c.link.Connected()

	c.mu.Lock()
	c.stats.Ticks++
	if sent {
		c.stats.Keepalives++
	}
	changed := up != c.stats.LinkUp
	c.stats.LinkUp = up
	c.mu.Unlock()

	if !changed {
		return
	}
	if up {
		c.logger.Infow("robot link up")
		c.notify(status.SeveritySuccess, "robot link up")
	} else {
		c.logger.Warnw("robot link lost")
		c.notify(status.SeverityWarning, link.ErrLinkDown.Error())
	}
}

func (c *Controller) notify(severity status.Severity, msg string) {
	if c.notifier != nil {
		c.notifier.Notify(severity, msg)
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	c.logger.Infow("control loop stopped")
}
