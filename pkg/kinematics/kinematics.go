// Package kinematics implements forward and inverse kinematics for a
// two-link SCARA arm with a prismatic vertical axis.
package kinematics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrUnreachable is returned when a Cartesian target has no joint solution.
var ErrUnreachable = errors.New("target unreachable")

// Geometry holds the fixed dimensions of the arm, in centimeters.
type Geometry struct {
	L1       float64 `json:"l1"`        // shoulder to elbow
	L2       float64 `json:"l2"`        // elbow to end effector
	D1Offset float64 `json:"d1_offset"` // height of the tool datum at zero extension
	ZTravel  float64 `json:"z_travel"`  // piston stroke
	Epsilon  float64 `json:"epsilon"`   // boundary tolerance
}

// DefaultGeometry returns the dimensions of the reference assembly.
func DefaultGeometry() Geometry {
	return Geometry{
		L1:       28.9818176,
		L2:       12.4700356,
		D1Offset: 12.3,
		ZTravel:  4.3,
		Epsilon:  0.1,
	}
}

// JointPose is a joint-space configuration: two angles in degrees and the
// piston extension in centimeters.
type JointPose struct {
	Q1 float64 `json:"q1"`
	Q2 float64 `json:"q2"`
	Z  float64 `json:"z"`
}

// Lerp blends p toward target by t in joint space.
func (p JointPose) Lerp(target JointPose, t float64) JointPose {
	return JointPose{
		Q1: p.Q1 + (target.Q1-p.Q1)*t,
		Q2: p.Q2 + (target.Q2-p.Q2)*t,
		Z:  p.Z + (target.Z-p.Z)*t,
	}
}

// CartesianPoint is an end-effector position in centimeters.
type CartesianPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Lerp blends p toward target by t along a straight line.
func (p CartesianPoint) Lerp(target CartesianPoint, t float64) CartesianPoint {
	return CartesianPoint{
		X: p.X + (target.X-p.X)*t,
		Y: p.Y + (target.Y-p.Y)*t,
		Z: p.Z + (target.Z-p.Z)*t,
	}
}

func (p CartesianPoint) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
}

// Frame is the result of a forward kinematics query.
type Frame struct {
	Elbow       r2.Vec
	EndEffector r3.Vec
	// Pose is the 4x4 homogeneous transform of the tool, rotated by q1+q2
	// about the vertical axis.
	Pose *mat.Dense
}

// Point returns the end-effector position.
func (f Frame) Point() CartesianPoint {
	return CartesianPoint{X: f.EndEffector.X, Y: f.EndEffector.Y, Z: f.EndEffector.Z}
}

// Forward computes the elbow and end-effector positions for a joint pose.
// It has no side effects.
func (g Geometry) Forward(p JointPose) Frame {
	q1 := radians(p.Q1)
	q12 := q1 + radians(p.Q2)
	c12, s12 := math.Cos(q12), math.Sin(q12)

	elbow := r2.Vec{X: g.L1 * math.Cos(q1), Y: g.L1 * math.Sin(q1)}
	tip := r2.Add(elbow, r2.Vec{X: g.L2 * c12, Y: g.L2 * s12})
	end := r3.Vec{X: tip.X, Y: tip.Y, Z: g.D1Offset - p.Z}

	pose := mat.NewDense(4, 4, []float64{
		c12, -s12, 0, end.X,
		s12, c12, 0, end.Y,
		0, 0, 1, end.Z,
		0, 0, 0, 1,
	})

	return Frame{Elbow: elbow, EndEffector: end, Pose: pose}
}

// Inverse solves the joint pose that places the end effector at pt.
//
// Only the positive-q2 elbow configuration is produced; it is the one the
// physical assembly can reach. cos(q2) is clamped to [-1+Epsilon, 1-Epsilon],
// so targets on the reach boundary resolve slightly inside it.
func (g Geometry) Inverse(pt CartesianPoint) (JointPose, error) {
	ext := g.D1Offset - pt.Z
	if ext < -g.Epsilon || ext > g.ZTravel+g.Epsilon {
		return JointPose{}, fmt.Errorf("%w: extension %.3f outside [0, %.3f]", ErrUnreachable, ext, g.ZTravel)
	}

	r := math.Hypot(pt.X, pt.Y)
	if r > g.MaxReach()+g.Epsilon || r < g.MinReach()-g.Epsilon {
		return JointPose{}, fmt.Errorf("%w: radius %.3f outside [%.3f, %.3f]", ErrUnreachable, r, g.MinReach(), g.MaxReach())
	}

	cosQ2 := (r*r - g.L1*g.L1 - g.L2*g.L2) / (2 * g.L1 * g.L2)
	cosQ2 = math.Max(math.Min(cosQ2, 1-g.Epsilon), -1+g.Epsilon)
	q2 := math.Acos(cosQ2)
	q1 := math.Atan2(pt.Y, pt.X) - math.Atan2(g.L2*math.Sin(q2), g.L1+g.L2*math.Cos(q2))

	return JointPose{Q1: degrees(q1), Q2: degrees(q2), Z: ext}, nil
}

// MaxReach is the planar radius at full extension.
func (g Geometry) MaxReach() float64 {
	return g.L1 + g.L2
}

// MinReach is the planar radius at full fold.
func (g Geometry) MinReach() float64 {
	return math.Abs(g.L1 - g.L2)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
