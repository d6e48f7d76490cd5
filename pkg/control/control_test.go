package control

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/scara/pkg/link"
	"github.com/gwillem/scara/pkg/status"
)

type fakeMotion struct {
	gateOpen   atomic.Bool
	keepalives atomic.Int32
	requests   atomic.Int32
}

func (f *fakeMotion) Keepalive() bool {
	if !f.gateOpen.Load() {
		return false
	}
	f.keepalives.Add(1)
	return true
}

func (f *fakeMotion) RequestStatus() { f.requests.Add(1) }

type fakeLink struct{ up atomic.Bool }

func (f *fakeLink) Connected() bool { return f.up.Load() }

type noticeLog struct {
	mu      sync.Mutex
	notices []status.Notice
}

func (n *noticeLog) Notify(severity status.Severity, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, status.Notice{Severity: severity, Message: msg})
}

func (n *noticeLog) all() []status.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]status.Notice(nil), n.notices...)
}

func startLoop(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Error("control loop did not stop")
		}
	})
}

// tickUntil advances the mock clock one period at a time until cond holds.
func tickUntil(t *testing.T, clk *clock.Mock, period time.Duration, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		clk.Add(period)
		return cond()
	}, time.Second, time.Millisecond)
}

func TestHeartbeat(t *testing.T) {
	clk := clock.NewMock()
	motion := &fakeMotion{}
	motion.gateOpen.Store(true)
	c := NewController(Config{Motion: motion, Link: &fakeLink{}, Clock: clk})
	startLoop(t, c)

	tickUntil(t, clk, c.Period(), func() bool { return c.Stats().Ticks >= 3 })

	stats := c.Stats()
	assert.Equal(t, int32(stats.Ticks), motion.requests.Load())
	assert.Equal(t, stats.Ticks, stats.Keepalives)
}

func TestHeartbeatWithheldKeepalive(t *testing.T) {
	clk := clock.NewMock()
	motion := &fakeMotion{}
	c := NewController(Config{Motion: motion, Link: &fakeLink{}, Clock: clk})
	startLoop(t, c)

	tickUntil(t, clk, c.Period(), func() bool { return c.Stats().Ticks >= 2 })

	assert.Zero(t, motion.keepalives.Load())
	assert.Zero(t, c.Stats().Keepalives)
	assert.GreaterOrEqual(t, motion.requests.Load(), int32(2))
}

func TestLinkNotices(t *testing.T) {
	clk := clock.NewMock()
	lk := &fakeLink{}
	notices := &noticeLog{}
	c := NewController(Config{Motion: &fakeMotion{}, Link: lk, Notifier: notices, Clock: clk})
	startLoop(t, c)

	tickUntil(t, clk, c.Period(), func() bool { return c.Stats().Ticks >= 1 })
	assert.Empty(t, notices.all(), "no notice while the link stays down")

	lk.up.Store(true)
	tickUntil(t, clk, c.Period(), func() bool { return c.Stats().LinkUp })

	lk.up.Store(false)
	tickUntil(t, clk, c.Period(), func() bool { return !c.Stats().LinkUp })

	got := notices.all()
	require.Len(t, got, 2)
	assert.Equal(t, status.SeveritySuccess, got[0].Severity)
	assert.Equal(t, status.SeverityWarning, got[1].Severity)
	assert.Equal(t, link.ErrLinkDown.Error(), got[1].Message)
}

func TestStartTwice(t *testing.T) {
	clk := clock.NewMock()
	c := NewController(Config{Motion: &fakeMotion{}, Link: &fakeLink{}, Clock: clk})
	startLoop(t, c)

	require.Eventually(t, c.Running, time.Second, time.Millisecond)
	assert.ErrorIs(t, c.Start(context.Background()), ErrRunning)
}
