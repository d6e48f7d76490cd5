package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/scara/pkg/kinematics"
	"github.com/gwillem/scara/pkg/robot"
)

type fakeLink struct {
	seen time.Time
	addr string
}

func (f *fakeLink) LastSeen() time.Time { return f.seen }
func (f *fakeLink) Addr() string        { return f.addr }

func TestAggregator_Snapshot(t *testing.T) {
	clk := clock.NewMock()
	link := &fakeLink{seen: clk.Now(), addr: "10.0.0.2"}
	agg := NewAggregator(kinematics.DefaultGeometry(), link, 4*time.Second, clk)

	snap := agg.Snapshot(robot.State{
		Pose:          kinematics.JointPose{},
		Gripper:       robot.GripperClosed,
		Mode:          robot.ModeManualJog,
		Speed:         70,
		RoutineLength: 2,
	})

	assert.Equal(t, robot.ModeManualJog, snap.Mode)
	assert.Equal(t, robot.GripperClosed, snap.Gripper)
	assert.InDelta(t, 41.4518532, snap.Position.X, 1e-6)
	assert.InDelta(t, 12.3, snap.Position.Z, 1e-9)
	assert.InDelta(t, 28.9818176, snap.Elbow.X, 1e-6)
	assert.InDelta(t, 41.4518532, snap.Transform[3], 1e-6)
	assert.Equal(t, 1.0, snap.Transform[15])
	assert.Equal(t, 70, snap.Speed)
	assert.True(t, snap.RoutineReady)
	assert.True(t, snap.LinkConnected)
	assert.Equal(t, "10.0.0.2", snap.LinkAddress)
}

func TestAggregator_EmergencyStopOverridesMode(t *testing.T) {
	clk := clock.NewMock()
	agg := NewAggregator(kinematics.DefaultGeometry(), &fakeLink{}, 4*time.Second, clk)

	snap := agg.Snapshot(robot.State{Mode: robot.ModeJointArc, EmergencyStop: true, RoutineLength: 3})
	assert.Equal(t, robot.ModeEmergencyStopped, snap.Mode)
	assert.False(t, snap.RoutineReady)
}

func TestAggregator_LinkTimeout(t *testing.T) {
	clk := clock.NewMock()
	link := &fakeLink{}
	agg := NewAggregator(kinematics.DefaultGeometry(), link, 4*time.Second, clk)

	assert.False(t, agg.Connected(), "never seen")

	link.seen = clk.Now()
	assert.True(t, agg.Connected())

	clk.Add(3900 * time.Millisecond)
	assert.True(t, agg.Connected())

	clk.Add(100 * time.Millisecond)
	assert.False(t, agg.Connected(), "exactly at timeout")
}

func TestSnapshot_JSON(t *testing.T) {
	clk := clock.NewMock()
	agg := NewAggregator(kinematics.DefaultGeometry(), &fakeLink{}, 4*time.Second, clk)

	data, err := json.Marshal(agg.Snapshot(robot.State{Mode: robot.ModeLinear}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "interpolating_linear", decoded["mode"])
	assert.Equal(t, float64(0), decoded["grip"])
	assert.Contains(t, decoded, "robot_connected")
	assert.NotContains(t, decoded, "robot_addr")
}

func TestAggregator_Observers(t *testing.T) {
	clk := clock.NewMock()
	agg := NewAggregator(kinematics.DefaultGeometry(), &fakeLink{}, 4*time.Second, clk)
	assert.Zero(t, agg.Snapshot(robot.State{}).Observers)

	n := 2
	agg.WithObservers(func() int { return n })
	assert.Equal(t, 2, agg.Snapshot(robot.State{}).Observers)

	n = 0
	assert.Zero(t, agg.Snapshot(robot.State{}).Observers)
}
