package api

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/scara/pkg/robot"
	"github.com/gwillem/scara/pkg/status"
)

func TestClient(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := NewClient(srv.URL + "/")

	s, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, robot.ModeIdle, s.Mode)

	engaged, err := c.ToggleEmergencyStop(ctx)
	require.NoError(t, err)
	assert.True(t, engaged)

	s, err = c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, s.EmergencyStop)
	assert.Equal(t, robot.ModeEmergencyStopped, s.Mode)
}

func TestClientStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	// Seed the hub so the subscriber gets a snapshot on connect.
	f.arb.RequestStatus()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- NewClient(srv.URL).Stream(ctx, func(ev Event) { events <- ev })
	}()

	ev := <-events
	assert.Equal(t, EventStatus, ev.Type)

	f.hub.Notify(status.SeverityInfo, "hello")
	ev = <-events
	assert.Equal(t, EventNotification, ev.Type)
	require.NotNil(t, ev.Notice)
	assert.Equal(t, "hello", ev.Notice.Message)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
