package kinematics

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats/scalar"
)

const tol = 1e-6

func TestForward_ReferencePoint(t *testing.T) {
	g := DefaultGeometry()
	f := g.Forward(JointPose{})

	assert.InDelta(t, 28.9818176, f.Elbow.X, tol)
	assert.InDelta(t, 0.0, f.Elbow.Y, tol)
	assert.InDelta(t, 41.4518532, f.EndEffector.X, tol)
	assert.InDelta(t, 0.0, f.EndEffector.Y, tol)
	assert.InDelta(t, 12.3, f.EndEffector.Z, tol)

	r, c := f.Pose.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 4, c)
	assert.InDelta(t, 1.0, f.Pose.At(0, 0), tol)
	assert.InDelta(t, 41.4518532, f.Pose.At(0, 3), tol)
	assert.InDelta(t, 12.3, f.Pose.At(2, 3), tol)
	assert.InDelta(t, 1.0, f.Pose.At(3, 3), tol)
}

func TestForward_Orientation(t *testing.T) {
	g := DefaultGeometry()
	f := g.Forward(JointPose{Q1: 30, Q2: 60, Z: 2})

	// q1+q2 = 90 degrees: the rotation block is a quarter turn.
	assert.InDelta(t, 0.0, f.Pose.At(0, 0), tol)
	assert.InDelta(t, -1.0, f.Pose.At(0, 1), tol)
	assert.InDelta(t, 1.0, f.Pose.At(1, 0), tol)
	assert.InDelta(t, g.D1Offset-2, f.EndEffector.Z, tol)

	p := f.Point()
	assert.InDelta(t, f.EndEffector.X, p.X, tol)
	assert.InDelta(t, f.EndEffector.Y, p.Y, tol)
}

func TestForward_DoesNotMutateGeometry(t *testing.T) {
	g := DefaultGeometry()
	before := g
	g.Forward(JointPose{Q1: 10, Q2: 20, Z: 1})
	assert.Equal(t, before, g)
}

func TestInverse_Unreachable(t *testing.T) {
	g := DefaultGeometry()

	tests := []struct {
		name string
		pt   CartesianPoint
	}{
		{"inside min reach", CartesianPoint{X: 0, Y: 0, Z: 12.3}},
		{"beyond max reach", CartesianPoint{X: 45, Y: 0, Z: 12.3}},
		{"above piston range", CartesianPoint{X: 30, Y: 0, Z: 20}},
		{"below piston range", CartesianPoint{X: 30, Y: 0, Z: 12.3 - 4.3 - 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Inverse(tt.pt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnreachable))
		})
	}
}

func TestInverse_RoundTrip(t *testing.T) {
	g := DefaultGeometry()

	for _, q1 := range []float64{-60, 0, 45, 120} {
		for _, q2 := range []float64{40, 90, 140} {
			for _, z := range []float64{0, 2.15, 4.3} {
				want := JointPose{Q1: q1, Q2: q2, Z: z}
				got, err := g.Inverse(g.Forward(want).Point())
				require.NoError(t, err, "pose %+v", want)

				if !scalar.EqualWithinAbs(got.Q1, want.Q1, 1e-6) ||
					!scalar.EqualWithinAbs(got.Q2, want.Q2, 1e-6) ||
					!scalar.EqualWithinAbs(got.Z, want.Z, 1e-9) {
					t.Errorf("Inverse(Forward(%+v)) = %+v", want, got)
				}
			}
		}
	}
}

func TestInverse_BoundaryIsClamped(t *testing.T) {
	g := DefaultGeometry()

	// Fully stretched: the clamp keeps q2 away from zero.
	got, err := g.Inverse(CartesianPoint{X: g.MaxReach(), Y: 0, Z: g.D1Offset})
	require.NoError(t, err)
	assert.InDelta(t, math.Acos(1-g.Epsilon)*180/math.Pi, got.Q2, 1e-9)
	assert.Greater(t, got.Q2, 0.0)

	// Just inside the tolerance band past max reach still resolves.
	_, err = g.Inverse(CartesianPoint{X: g.MaxReach() + g.Epsilon/2, Y: 0, Z: g.D1Offset})
	require.NoError(t, err)
}

func TestInverse_ElbowConfiguration(t *testing.T) {
	g := DefaultGeometry()

	// The mirrored pose reaches the same point but is never returned.
	mirror := JointPose{Q1: 30, Q2: -70, Z: 1}
	got, err := g.Inverse(g.Forward(mirror).Point())
	require.NoError(t, err)
	assert.InDelta(t, 70.0, got.Q2, 1e-6)
	assert.NotEqual(t, math.Round(mirror.Q1), math.Round(got.Q1))
}

func TestReach(t *testing.T) {
	g := DefaultGeometry()
	assert.InDelta(t, 41.4518532, g.MaxReach(), tol)
	assert.InDelta(t, 16.511782, g.MinReach(), tol)
}

func TestLerp(t *testing.T) {
	a := JointPose{Q1: 0, Q2: 10, Z: 0}
	b := JointPose{Q1: 100, Q2: 20, Z: 4}
	assert.Equal(t, JointPose{Q1: 50, Q2: 15, Z: 2}, a.Lerp(b, 0.5))
	assert.Equal(t, b, a.Lerp(b, 1))

	p := CartesianPoint{X: 10, Y: 0, Z: 12}
	q := CartesianPoint{X: 20, Y: 10, Z: 10}
	assert.Equal(t, CartesianPoint{X: 15, Y: 5, Z: 11}, p.Lerp(q, 0.5))
}
