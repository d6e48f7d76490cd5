package robot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.uber.org/zap"

	"github.com/gwillem/scara/pkg/kinematics"
)

// sendTimeout bounds a single fire-and-forget bus write.
const sendTimeout = 50 * time.Millisecond

// Arm drives the SCARA joints over a feetech STS servo bus.
type Arm struct {
	port        string
	calibration Calibration
	logger      *zap.SugaredLogger

	mu    sync.Mutex // serializes bus traffic
	bus   *feetech.Bus
	group *feetech.ServoGroup
}

// NewArm creates and initializes an arm connection.
func NewArm(port string, cal Calibration, logger *zap.SugaredLogger) (*Arm, error) {
	// Open serial bus
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	// Create servo group from calibration IDs
	ids := cal.ServoIDs()
	group := feetech.NewServoGroupByIDs(bus, ids...)

	return &Arm{
		port:        port,
		calibration: cal,
		logger:      logger,
		bus:         bus,
		group:       group,
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bus.Close()
}

// Enable enables torque on all servos.
func (a *Arm) Enable(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.group.EnableAll(ctx)
}

// Disable disables torque on all servos.
func (a *Arm) Disable(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.group.DisableAll(ctx)
}

// Send writes a pose and gripper state to the servos. Errors are logged and
// otherwise dropped; a dead bus shows up as a lost link instead.
func (a *Arm) Send(pose kinematics.JointPose, grip Gripper) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	err := a.WritePositions(ctx, map[JointName]float64{
		JointShoulder: pose.Q1,
		JointElbow:    pose.Q2,
		JointPiston:   pose.Z,
		JointGripper:  float64(grip),
	})
	if err != nil {
		a.logger.Debugw("servo write failed", "port", a.port, "error", err)
	}
}

// SendKeepalive is a no-op: servos hold their last position without
// traffic.
func (a *Arm) SendKeepalive() {}

// ReadPositions reads current positions from all joints in engineering
// units.
func (a *Arm) ReadPositions(ctx context.Context) (map[JointName]float64, error) {
	a.mu.Lock()
	rawPositions, err := a.group.Positions(ctx)
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	positions := make(map[JointName]float64, len(rawPositions))
	for id, raw := range rawPositions {
		name, cal, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		positions[name] = cal.FromRaw(raw)
	}

	return positions, nil
}

// WritePositions writes target positions in engineering units.
func (a *Arm) WritePositions(ctx context.Context, positions map[JointName]float64) error {
	rawPositions := make(feetech.PositionMap, len(positions))
	for name, value := range positions {
		cal, ok := a.calibration[name]
		if !ok {
			continue
		}
		rawPositions[cal.ID] = cal.ToRaw(value)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.group.SetPositions(ctx, rawPositions); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}

	return nil
}

// Watch reads the servo positions every interval and reports each
// successful read to alive, with the bus port as the source address.
func (a *Arm) Watch(ctx context.Context, clk clock.Clock, interval time.Duration, alive func(addr string, ts time.Time)) error {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			readCtx, cancel := context.WithTimeout(ctx, interval/2)
			_, err := a.ReadPositions(readCtx)
			cancel()
			if err != nil {
				a.logger.Debugw("servo read failed", "port", a.port, "error", err)
				continue
			}
			alive(a.port, clk.Now())
		}
	}
}
