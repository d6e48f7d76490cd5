// Package trajectory builds finite step sequences between poses.
//
// Generators are lazy: each call to Next computes exactly one step, so a
// caller can check for cancellation between steps without any future steps
// having been computed.
package trajectory

import (
	"errors"
	"fmt"

	"github.com/gwillem/scara/pkg/kinematics"
)

// ErrSingularity is returned when an intermediate point of a straight-line
// move has no inverse kinematics solution.
var ErrSingularity = errors.New("trajectory crosses an unreachable point")

// Generator yields joint poses one step at a time. Next returns false once
// the sequence is exhausted or has failed; it never restarts.
type Generator interface {
	Next() (kinematics.JointPose, bool, error)
	Steps() int
}

// Joint interpolates linearly in joint space. The resulting end-effector
// path is generally an arc, not a straight line.
type Joint struct {
	start  kinematics.JointPose
	target kinematics.JointPose
	steps  int
	i      int
}

// JointInterpolate returns a generator emitting steps poses from start
// (exclusive) to target (inclusive).
func JointInterpolate(start, target kinematics.JointPose, steps int) *Joint {
	if steps < 1 {
		steps = 1
	}
	return &Joint{start: start, target: target, steps: steps}
}

// Next returns the next pose in the sequence.
func (j *Joint) Next() (kinematics.JointPose, bool, error) {
	if j.i >= j.steps {
		return kinematics.JointPose{}, false, nil
	}
	j.i++
	t := float64(j.i) / float64(j.steps)
	return j.start.Lerp(j.target, t), true, nil
}

// Steps returns the total number of steps.
func (j *Joint) Steps() int { return j.steps }

// Linear interpolates the end effector along a straight Cartesian segment,
// solving inverse kinematics at every step.
type Linear struct {
	geom   kinematics.Geometry
	start  kinematics.CartesianPoint
	target kinematics.CartesianPoint
	steps  int
	i      int
	failed bool
}

// CartesianInterpolate returns a generator tracing a straight line from
// start (exclusive) to target (inclusive).
func CartesianInterpolate(geom kinematics.Geometry, start, target kinematics.CartesianPoint, steps int) *Linear {
	if steps < 1 {
		steps = 1
	}
	return &Linear{geom: geom, start: start, target: target, steps: steps}
}

// Next returns the next pose in the sequence. If the next point cannot be
// solved it returns ErrSingularity and the generator stops; steps already
// returned are not affected.
func (l *Linear) Next() (kinematics.JointPose, bool, error) {
	if l.failed || l.i >= l.steps {
		return kinematics.JointPose{}, false, nil
	}
	l.i++
	t := float64(l.i) / float64(l.steps)
	pt := l.start.Lerp(l.target, t)

	pose, err := l.geom.Inverse(pt)
	if err != nil {
		l.failed = true
		return kinematics.JointPose{}, false, fmt.Errorf("%w: step %d/%d at %s: %v", ErrSingularity, l.i, l.steps, pt, err)
	}
	return pose, true, nil
}

// Steps returns the total number of steps.
func (l *Linear) Steps() int { return l.steps }
