package link

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gwillem/scara/pkg/kinematics"
	"github.com/gwillem/scara/pkg/robot"
)

func listenLocal(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readOne(t *testing.T, conn net.PacketConn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 256)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestEncodeCommand(t *testing.T) {
	got := EncodeCommand(kinematics.JointPose{Q1: 12.345, Q2: -90, Z: 1.5}, robot.GripperClosed)
	assert.Equal(t, "12.35,-90.00,1.50,1", string(got))
}

func TestIsPing(t *testing.T) {
	assert.True(t, IsPing([]byte("PING")))
	assert.True(t, IsPing([]byte("ESP32 PING 42")))
	assert.False(t, IsPing([]byte("KEEPALIVE")))
}

func TestUDPActuator_SendAndKeepalive(t *testing.T) {
	device := listenLocal(t)
	port := device.LocalAddr().(*net.UDPAddr).Port

	out := listenLocal(t)
	act := NewUDPActuator(out, NewHealth("127.0.0.1"), port, zaptest.NewLogger(t).Sugar())

	act.Send(kinematics.JointPose{Q1: 1, Q2: 2, Z: 3}, robot.GripperOpen)
	assert.Equal(t, "1.00,2.00,3.00,0", readOne(t, device))

	act.SendKeepalive()
	assert.Equal(t, "KEEPALIVE", readOne(t, device))
}

func TestUDPActuator_FollowsRediscoveredAddress(t *testing.T) {
	device := listenLocal(t)
	port := device.LocalAddr().(*net.UDPAddr).Port

	// Start with an address that resolves nowhere useful.
	health := NewHealth("127.0.0.2")
	act := NewUDPActuator(listenLocal(t), health, port, zaptest.NewLogger(t).Sugar())
	act.SendKeepalive()

	health.OnDeviceAlive("127.0.0.1", time.Now())
	act.Send(kinematics.JointPose{}, robot.GripperClosed)
	assert.Equal(t, "0.00,0.00,0.00,1", readOne(t, device))
}

func TestListener_Run(t *testing.T) {
	in := listenLocal(t)
	clk := clock.NewMock()
	clk.Add(time.Hour)
	health := NewHealth("192.168.1.84")

	l := NewListener(in, health, clk, zaptest.NewLogger(t).Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	sender := listenLocal(t)
	_, err := sender.WriteTo([]byte("noise"), in.LocalAddr())
	require.NoError(t, err)
	_, err = sender.WriteTo([]byte("PING"), in.LocalAddr())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return health.Addr() == "127.0.0.1"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, clk.Now(), health.LastSeen())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}
