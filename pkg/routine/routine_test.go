package routine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gwillem/scara/pkg/kinematics"
	"github.com/gwillem/scara/pkg/robot"
)

func wp(q1 float64, grip robot.Gripper) robot.Waypoint {
	return robot.Waypoint{JointPose: kinematics.JointPose{Q1: q1}, Gripper: grip}
}

func TestStore_AppendKeepsOrder(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, s.Len())

	assert.Equal(t, 1, s.Append(wp(10, robot.GripperOpen)))
	assert.Equal(t, 2, s.Append(wp(20, robot.GripperClosed)))
	assert.Equal(t, 3, s.Append(wp(30, robot.GripperOpen)))

	got := s.Waypoints()
	assert.Equal(t, []robot.Waypoint{
		wp(10, robot.GripperOpen),
		wp(20, robot.GripperClosed),
		wp(30, robot.GripperOpen),
	}, got)
}

func TestStore_WaypointsIsACopy(t *testing.T) {
	s := NewStore()
	s.Append(wp(10, robot.GripperOpen))

	got := s.Waypoints()
	got[0].Q1 = 99
	assert.Equal(t, 10.0, s.Waypoints()[0].Q1)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.Append(wp(10, robot.GripperOpen))
	s.Append(wp(20, robot.GripperOpen))
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Waypoints())

	assert.Equal(t, 1, s.Append(wp(5, robot.GripperClosed)))
}
