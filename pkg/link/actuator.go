package link

import (
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/gwillem/scara/pkg/kinematics"
	"github.com/gwillem/scara/pkg/robot"
)

// UDPActuator sends pose commands and keepalives to the device address
// currently known to Health. Sends are fire-and-forget.
type UDPActuator struct {
	conn   net.PacketConn
	health *Health
	port   int
	logger *zap.SugaredLogger

	mu       sync.Mutex
	lastAddr string
	dst      *net.UDPAddr
}

// NewUDPActuator returns an actuator writing to health's address on port.
func NewUDPActuator(conn net.PacketConn, health *Health, port int, logger *zap.SugaredLogger) *UDPActuator {
	return &UDPActuator{conn: conn, health: health, port: port, logger: logger}
}

// Send transmits a pose command.
func (u *UDPActuator) Send(pose kinematics.JointPose, grip robot.Gripper) {
	u.write(EncodeCommand(pose, grip))
}

// SendKeepalive transmits a keepalive datagram.
func (u *UDPActuator) SendKeepalive() {
	u.write(keepaliveMsg)
}

func (u *UDPActuator) write(payload []byte) {
	dst := u.destination()
	if dst == nil {
		return
	}
	if _, err := u.conn.WriteTo(payload, dst); err != nil {
		u.logger.Debugw("udp send failed", "addr", dst.String(), "error", err)
	}
}

// destination resolves the device address, re-resolving only when Health
// reports a new one.
func (u *UDPActuator) destination() *net.UDPAddr {
	addr := u.health.Addr()

	u.mu.Lock()
	defer u.mu.Unlock()
	if addr == u.lastAddr && u.dst != nil {
		return u.dst
	}
	dst, err := net.ResolveUDPAddr("udp", net.JoinHostPort(addr, strconv.Itoa(u.port)))
	if err != nil {
		u.logger.Warnw("cannot resolve device address", "addr", addr, "error", err)
		return nil
	}
	u.lastAddr = addr
	u.dst = dst
	return dst
}
