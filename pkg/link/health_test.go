package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealth_OnDeviceAlive(t *testing.T) {
	h := NewHealth("192.168.1.84")
	assert.True(t, h.LastSeen().IsZero())
	assert.Equal(t, "192.168.1.84", h.Addr())

	t0 := time.Unix(1000, 0)
	assert.False(t, h.OnDeviceAlive("192.168.1.84", t0))
	assert.Equal(t, t0, h.LastSeen())

	// A ping from a new address is adopted immediately.
	t1 := t0.Add(time.Second)
	assert.True(t, h.OnDeviceAlive("192.168.1.90", t1))
	assert.Equal(t, "192.168.1.90", h.Addr())
	assert.Equal(t, t1, h.LastSeen())

	// Late, out-of-order signals never move LastSeen backwards.
	assert.False(t, h.OnDeviceAlive("192.168.1.90", t0))
	assert.Equal(t, t1, h.LastSeen())
}

func TestHealth_EmptyAddrKeepsKnown(t *testing.T) {
	h := NewHealth("10.0.0.1")
	assert.False(t, h.OnDeviceAlive("", time.Unix(5, 0)))
	assert.Equal(t, "10.0.0.1", h.Addr())
	assert.Equal(t, time.Unix(5, 0), h.LastSeen())
}
