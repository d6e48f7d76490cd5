// Package robot provides the shared vocabulary of the SCARA arm and its
// servo-bus hardware backend.
package robot

// JointName identifies an actuated axis of the arm.
type JointName string

// Joint names for the SCARA arm.
const (
	JointShoulder JointName = "shoulder" // q1, degrees
	JointElbow    JointName = "elbow"    // q2, degrees
	JointPiston   JointName = "piston"   // z extension, centimeters
	JointGripper  JointName = "gripper"  // 0 open, 1 closed
)

// AllJoints returns all joint names in order (matching servo IDs 1-4).
func AllJoints() []JointName {
	return []JointName{
		JointShoulder,
		JointElbow,
		JointPiston,
		JointGripper,
	}
}

// Gripper is the binary state of the end-effector gripper.
type Gripper int

// Gripper states, as sent on the wire.
const (
	GripperOpen   Gripper = 0
	GripperClosed Gripper = 1
)

// ParseGripper converts a wire value into a gripper state. Any non-zero
// value closes the gripper.
func ParseGripper(v int) Gripper {
	if v != 0 {
		return GripperClosed
	}
	return GripperOpen
}

func (g Gripper) String() string {
	if g == GripperClosed {
		return "closed"
	}
	return "open"
}
