// Package status projects the robot state into the snapshot published to
// observers.
package status

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/gwillem/scara/pkg/kinematics"
	"github.com/gwillem/scara/pkg/robot"
)

// Severity classifies a notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a human-readable event for operators.
type Notice struct {
	Severity Severity  `json:"type"`
	Message  string    `json:"msg"`
	Time     time.Time `json:"time"`
}

// Point2 is a planar point.
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Snapshot is the externally visible state of the controller.
type Snapshot struct {
	Mode          robot.Mode                `json:"mode"`
	Joints        kinematics.JointPose      `json:"joints"`
	Gripper       robot.Gripper             `json:"grip"`
	Position      kinematics.CartesianPoint `json:"position"`
	Elbow         Point2                    `json:"elbow"`
	Transform     [16]float64               `json:"transform"`
	Speed         int                       `json:"speed"`
	EmergencyStop bool                      `json:"estop"`
	RoutineLength int                       `json:"routine_length"`
	RoutineReady  bool                      `json:"routine_ready"`
	LinkConnected bool                      `json:"robot_connected"`
	LinkAddress   string                    `json:"robot_addr,omitempty"`
	Observers     int                       `json:"observers"` // connected pendants and monitors
	Time          time.Time                 `json:"time"`
}

// Link reports the last liveness signal from the device.
type Link interface {
	LastSeen() time.Time
	Addr() string
}

// Aggregator builds snapshots. It holds no robot state of its own.
type Aggregator struct {
	geom    kinematics.Geometry
	link    Link
	timeout time.Duration
	clk     clock.Clock

	observers func() int
}

// NewAggregator returns an aggregator that treats the link as connected
// while the last liveness signal is younger than timeout.
func NewAggregator(geom kinematics.Geometry, link Link, timeout time.Duration, clk clock.Clock) *Aggregator {
	return &Aggregator{geom: geom, link: link, timeout: timeout, clk: clk}
}

// WithObservers makes snapshots report count() as the number of connected
// observers. Call it before the aggregator is shared.
func (a *Aggregator) WithObservers(count func() int) *Aggregator {
	a.observers = count
	return a
}

// Connected reports whether the device has been seen within the timeout.
func (a *Aggregator) Connected() bool {
	seen := a.link.LastSeen()
	if seen.IsZero() {
		return false
	}
	return a.clk.Since(seen) < a.timeout
}

// Snapshot projects s into a Snapshot.
func (a *Aggregator) Snapshot(s robot.State) Snapshot {
	frame := a.geom.Forward(s.Pose)

	var transform [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			transform[i*4+j] = frame.Pose.At(i, j)
		}
	}

	mode := s.Mode
	if s.EmergencyStop {
		mode = robot.ModeEmergencyStopped
	}

	return Snapshot{
		Mode:          mode,
		Joints:        s.Pose,
		Gripper:       s.Gripper,
		Position:      frame.Point(),
		Elbow:         Point2{X: frame.Elbow.X, Y: frame.Elbow.Y},
		Transform:     transform,
		Speed:         s.Speed,
		EmergencyStop: s.EmergencyStop,
		RoutineLength: s.RoutineLength,
		RoutineReady:  s.RoutineLength > 0 && !s.EmergencyStop,
		LinkConnected: a.Connected(),
		LinkAddress:   a.link.Addr(),
		Observers:     a.observerCount(),
		Time:          a.clk.Now(),
	}
}

func (a *Aggregator) observerCount() int {
	if a.observers == nil {
		return 0
	}
	return a.observers()
}
