package link

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// readTimeout bounds each read so the loop notices cancellation.
const readTimeout = 500 * time.Millisecond

// Listener receives liveness datagrams and feeds them to Health.
type Listener struct {
	conn   net.PacketConn
	health *Health
	clk    clock.Clock
	logger *zap.SugaredLogger
}

// NewListener returns a listener reading from conn.
func NewListener(conn net.PacketConn, health *Health, clk clock.Clock, logger *zap.SugaredLogger) *Listener {
	return &Listener{conn: conn, health: health, clk: clk, logger: logger}
}

// Run reads datagrams until ctx is done. Any datagram containing PING
// refreshes the link; its sender IP becomes the device address.
func (l *Listener) Run(ctx context.Context) error {
	buf := make([]byte, 1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}

		n, src, err := l.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			l.logger.Debugw("udp read failed", "error", err)
			continue
		}
		if !IsPing(buf[:n]) {
			continue
		}

		ip := hostOf(src)
		if l.health.OnDeviceAlive(ip, l.clk.Now()) {
			l.logger.Infow("robot address updated", "addr", ip)
		}
	}
}

func hostOf(addr net.Addr) string {
	if u, ok := addr.(*net.UDPAddr); ok {
		return u.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
