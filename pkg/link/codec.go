package link

import (
	"bytes"
	"fmt"

	"github.com/gwillem/scara/pkg/kinematics"
	"github.com/gwillem/scara/pkg/robot"
)

var (
	keepaliveMsg = []byte("KEEPALIVE")
	pingToken    = []byte("PING")
)

// EncodeCommand formats a pose command as "q1,q2,z,grip".
func EncodeCommand(pose kinematics.JointPose, grip robot.Gripper) []byte {
	return fmt.Appendf(nil, "%.2f,%.2f,%.2f,%d", pose.Q1, pose.Q2, pose.Z, int(grip))
}

// IsPing reports whether a datagram is a liveness signal.
func IsPing(payload []byte) bool {
	return bytes.Contains(payload, pingToken)
}
