package robot

import (
	"fmt"

	"github.com/gwillem/scara/pkg/kinematics"
)

// Mode is the system mode. Exactly one is active at a time.
type Mode int

const (
	ModeIdle Mode = iota
	ModeManualJog
	ModeJointArc // interpolating in joint space
	ModeLinear   // interpolating along a Cartesian line
	ModeRoutine
	ModeEmergencyStopped
)

var modeNames = map[Mode]string{
	ModeIdle:             "idle",
	ModeManualJog:        "manual_jog",
	ModeJointArc:         "interpolating_joint",
	ModeLinear:           "interpolating_linear",
	ModeRoutine:          "routine_playback",
	ModeEmergencyStopped: "emergency_stopped",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	for mode, name := range modeNames {
		if name == string(b) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", b)
}

// Interpolating reports whether m is one of the goto modes.
func (m Mode) Interpolating() bool {
	return m == ModeJointArc || m == ModeLinear
}

// Automated reports whether m owns the arm for a multi-step motion.
func (m Mode) Automated() bool {
	return m.Interpolating() || m == ModeRoutine
}

// Waypoint is a recorded joint pose plus gripper state.
type Waypoint struct {
	kinematics.JointPose
	Gripper Gripper `json:"grip"`
}

// State is the externally observable robot state held by the arbiter.
type State struct {
	Pose          kinematics.JointPose
	Gripper       Gripper
	Mode          Mode
	Speed         int
	EmergencyStop bool
	RoutineLength int
}
