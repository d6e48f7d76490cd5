// Package arbiter owns the live robot pose and system mode. It accepts
// operator commands, serializes motion, and enforces the emergency stop.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gwillem/scara/pkg/kinematics"
	"github.com/gwillem/scara/pkg/robot"
	"github.com/gwillem/scara/pkg/routine"
	"github.com/gwillem/scara/pkg/status"
	"github.com/gwillem/scara/pkg/trajectory"
)

// Actuator carries commands to the arm. Sends are best effort.
type Actuator interface {
	Send(pose kinematics.JointPose, grip robot.Gripper)
	SendKeepalive()
}

// Observer receives state snapshots and operator notices.
type Observer interface {
	Publish(s status.Snapshot)
	Notify(severity status.Severity, msg string)
}

// MoveKind selects the interpolation space of a goto.
type MoveKind int

const (
	MoveJoint  MoveKind = iota // linear in joint space
	MoveLinear                 // straight line in Cartesian space
)

// ParseMoveKind converts "joint" or "linear" into a MoveKind.
func ParseMoveKind(s string) (MoveKind, error) {
	switch s {
	case "joint", "":
		return MoveJoint, nil
	case "linear":
		return MoveLinear, nil
	}
	return 0, fmt.Errorf("%w: move mode %q", ErrInvalidInput, s)
}

func (k MoveKind) mode() robot.Mode {
	if k == MoveLinear {
		return robot.ModeLinear
	}
	return robot.ModeJointArc
}

// Options configures an Arbiter.
type Options struct {
	Geometry kinematics.Geometry
	Policy   trajectory.Policy
	Speed    int
	// Throttle is how long after a manual command keepalives stay withheld.
	Throttle time.Duration

	Actuator   Actuator
	Observer   Observer
	Routine    *routine.Store
	Aggregator *status.Aggregator // defaults to one that never sees the device
	Clock      clock.Clock
	Logger     *zap.SugaredLogger
}

// Arbiter is the motion state machine. At most one trajectory or routine
// runs at a time; manual jogs are applied immediately between them.
type Arbiter struct {
	geom     kinematics.Geometry
	policy   trajectory.Policy
	throttle time.Duration
	actuator Actuator
	observer Observer
	routine  *routine.Store
	agg      *status.Aggregator
	gate     MotionGate
	clk      clock.Clock
	logger   *zap.SugaredLogger

	// sendMu orders actuator sends with the poses they carry. It is taken
	// before mu and held across Send; mu is never held across Send.
	sendMu sync.Mutex

	mu     sync.Mutex
	pose   kinematics.JointPose
	grip   robot.Gripper
	mode   robot.Mode
	speed  int
	estop  bool
	stopCh chan struct{} // closed while the emergency stop is engaged
	busy   bool          // a trajectory or routine owns the arm
}

// New returns an idle Arbiter at the zero pose.
func New(opts Options) *Arbiter {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Routine == nil {
		opts.Routine = routine.NewStore()
	}
	if opts.Aggregator == nil {
		opts.Aggregator = status.NewAggregator(opts.Geometry, offlineLink{}, 0, opts.Clock)
	}
	return &Arbiter{
		geom:     opts.Geometry,
		policy:   opts.Policy,
		throttle: opts.Throttle,
		actuator: opts.Actuator,
		observer: opts.Observer,
		routine:  opts.Routine,
		agg:      opts.Aggregator,
		clk:      opts.Clock,
		logger:   opts.Logger,
		speed:    clampSpeed(opts.Speed),
		stopCh:   make(chan struct{}),
	}
}

// State returns a copy of the robot state.
func (a *Arbiter) State() robot.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return robot.State{
		Pose:          a.pose,
		Gripper:       a.grip,
		Mode:          a.mode,
		Speed:         a.speed,
		EmergencyStop: a.estop,
		RoutineLength: a.routine.Len(),
	}
}

// Snapshot returns the current status snapshot.
func (a *Arbiter) Snapshot() status.Snapshot {
	return a.agg.Snapshot(a.State())
}

// RequestStatus publishes the current snapshot.
func (a *Arbiter) RequestStatus() {
	a.publish()
}

// Gate returns the motion gate.
func (a *Arbiter) Gate() *MotionGate {
	return &a.gate
}

// Keepalive sends an idle keepalive if no motion is producing traffic and
// the throttle window has elapsed. It reports whether one was sent.
func (a *Arbiter) Keepalive() bool {
	if !a.gate.Open(a.clk.Now(), a.throttle) {
		return false
	}
	a.actuator.SendKeepalive()
	return true
}

// SetSpeed sets the motion speed as a percentage. Running trajectories pick
// up the change at their next step.
func (a *Arbiter) SetSpeed(speed int) error {
	if speed < 0 || speed > 100 {
		return fmt.Errorf("%w: speed %d outside 0-100", ErrInvalidInput, speed)
	}
	a.mu.Lock()
	a.speed = speed
	a.mu.Unlock()
	a.publish()
	return nil
}

// ManualJog applies a joint pose immediately, without interpolation.
func (a *Arbiter) ManualJog(pose kinematics.JointPose, grip robot.Gripper) error {
	a.sendMu.Lock()
	a.mu.Lock()
	if err := a.admissible(); err != nil {
		a.mu.Unlock()
		a.sendMu.Unlock()
		a.reject(err)
		return err
	}
	a.applyPose(pose, grip)
	a.mode = robot.ModeManualJog
	a.gate.Touch(a.clk.Now())
	a.mu.Unlock()

	a.actuator.Send(pose, grip)
	a.sendMu.Unlock()

	a.publish()
	return nil
}

// GotoCartesian moves the end effector to target, interpolating in joint
// space or along a straight line. It blocks until the move completes, fails,
// or is interrupted by the emergency stop.
func (a *Arbiter) GotoCartesian(ctx context.Context, target kinematics.CartesianPoint, kind MoveKind) error {
	a.mu.Lock()
	if err := a.admissible(); err != nil {
		a.mu.Unlock()
		a.reject(err)
		return err
	}
	goal, err := a.geom.Inverse(target)
	if err != nil {
		a.mu.Unlock()
		a.logger.Warnw("goto target unreachable", "target", target.String(), "error", err)
		a.observer.Notify(status.SeverityWarning, "target out of reach")
		return err
	}
	start, grip, stop := a.acquire(kind.mode())
	a.mu.Unlock()
	defer a.release()

	var gen trajectory.Generator
	if kind == MoveLinear {
		from := a.geom.Forward(start).Point()
		gen = trajectory.CartesianInterpolate(a.geom, from, target, a.policy.LinearSteps)
		a.observer.Notify(status.SeveritySuccess, "tracing straight line...")
	} else {
		gen = trajectory.JointInterpolate(start, goal, a.policy.ArcSteps)
		a.observer.Notify(status.SeveritySuccess, "joint move (arc)...")
	}
	a.logger.Infow("goto", "target", target.String(), "mode", kind.mode().String())

	err = a.drive(ctx, stop, gen, grip, a.policy.GotoDelay, 1)
	switch {
	case err == nil && kind == MoveLinear:
		a.observer.Notify(status.SeveritySuccess, "linear move finished")
	case err == nil:
		a.observer.Notify(status.SeveritySuccess, fmt.Sprintf("arrived: X%.2f Y%.2f", target.X, target.Y))
	case errors.Is(err, trajectory.ErrSingularity):
		a.logger.Warnw("linear move aborted", "error", err)
		a.observer.Notify(status.SeverityError, "trajectory impossible (singularity)")
	default:
		a.logger.Warnw("goto stopped", "error", err)
		a.observer.Notify(status.SeverityWarning, err.Error())
	}
	return err
}

// RecordWaypoint appends a waypoint to the routine and returns the new
// routine length. It does nothing while the emergency stop is engaged.
func (a *Arbiter) RecordWaypoint(wp robot.Waypoint) (int, error) {
	if a.EmergencyStopped() {
		return a.routine.Len(), ErrEmergencyStopped
	}
	n := a.routine.Append(wp)
	a.observer.Notify(status.SeveritySuccess, fmt.Sprintf("waypoint %d saved", n))
	a.publish()
	return n, nil
}

// ClearRoutine removes all recorded waypoints.
func (a *Arbiter) ClearRoutine() {
	a.routine.Clear()
	a.publish()
}

// RunRoutine plays the recorded waypoints in order, each reached by a joint
// interpolation from the previous one. It blocks until playback ends.
func (a *Arbiter) RunRoutine(ctx context.Context) error {
	a.mu.Lock()
	if err := a.admissible(); err != nil {
		a.mu.Unlock()
		a.reject(err)
		return err
	}
	waypoints := a.routine.Waypoints()
	if len(waypoints) == 0 {
		a.mu.Unlock()
		return ErrEmptyRoutine
	}
	current, _, stop := a.acquire(robot.ModeRoutine)
	a.mu.Unlock()
	defer a.release()

	a.logger.Infow("running routine", "waypoints", len(waypoints))
	a.publish()

	for i, wp := range waypoints {
		gen := trajectory.JointInterpolate(current, wp.JointPose, a.policy.RoutineSteps)
		if err := a.drive(ctx, stop, gen, wp.Gripper, a.policy.RoutineDelay, a.policy.RoutinePublishEvery); err != nil {
			a.logger.Warnw("routine stopped", "waypoint", i+1, "error", err)
			a.observer.Notify(status.SeverityWarning, err.Error())
			return err
		}
		current = wp.JointPose
		if err := a.wait(ctx, stop, a.policy.DwellDelay(a.currentSpeed())); err != nil {
			a.observer.Notify(status.SeverityWarning, err.Error())
			return err
		}
	}

	a.logger.Infow("routine finished")
	a.observer.Notify(status.SeveritySuccess, "routine finished")
	return nil
}

// ToggleEmergencyStop flips the emergency stop and returns the new state.
// Engaging it interrupts any running trajectory before its next step.
func (a *Arbiter) ToggleEmergencyStop() bool {
	a.mu.Lock()
	engaged := !a.estop
	a.setEmergencyStop(engaged)
	a.mu.Unlock()

	a.logger.Warnw("emergency stop changed", "engaged", engaged)
	if engaged {
		a.observer.Notify(status.SeverityError, "EMERGENCY STOP engaged")
	} else {
		a.observer.Notify(status.SeverityWarning, "emergency stop released")
	}
	a.publish()
	return engaged
}

// EmergencyStopped reports whether the emergency stop is engaged.
func (a *Arbiter) EmergencyStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.estop
}

// setEmergencyStop engages or releases the stop. Callers hold a.mu.
func (a *Arbiter) setEmergencyStop(on bool) {
	if on == a.estop {
		return
	}
	a.estop = on
	if on {
		close(a.stopCh)
	} else {
		a.stopCh = make(chan struct{})
	}
}

// admissible checks whether a motion command may start. Callers hold a.mu.
func (a *Arbiter) admissible() error {
	if a.estop {
		return ErrEmergencyStopped
	}
	if a.busy {
		return ErrBusy
	}
	return nil
}

func (a *Arbiter) reject(err error) {
	a.logger.Infow("motion rejected", "error", err)
	if errors.Is(err, ErrEmergencyStopped) {
		a.observer.Notify(status.SeverityError, "ERROR: E-STOP ACTIVE")
	} else {
		a.observer.Notify(status.SeverityWarning, err.Error())
	}
}

// acquire takes the execution lock and the motion gate. Callers hold a.mu.
func (a *Arbiter) acquire(mode robot.Mode) (kinematics.JointPose, robot.Gripper, <-chan struct{}) {
	a.busy = true
	a.mode = mode
	a.gate.Acquire(a.clk.Now())
	return a.pose, a.grip, a.stopCh
}

// release returns to idle and frees the execution lock and the gate.
func (a *Arbiter) release() {
	a.mu.Lock()
	a.busy = false
	a.mode = robot.ModeIdle
	a.gate.Release(a.clk.Now())
	a.mu.Unlock()
	a.publish()
}

// drive issues the steps of gen one at a time. The emergency stop is
// checked before each step is computed and again when it is issued.
func (a *Arbiter) drive(ctx context.Context, stop <-chan struct{}, gen trajectory.Generator, grip robot.Gripper, delay func(speed int) time.Duration, publishEvery int) error {
	for i := 1; ; i++ {
		if a.EmergencyStopped() {
			return ErrInterrupted
		}
		pose, ok, err := gen.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if !a.issue(pose, grip) {
			return ErrInterrupted
		}
		if publishEvery <= 1 || i%publishEvery == 0 || i == gen.Steps() {
			a.publish()
		}
		if err := a.wait(ctx, stop, delay(a.currentSpeed())); err != nil {
			return err
		}
	}
}

// issue records one step as the current pose and sends it, unless the
// emergency stop has been engaged. The send happens outside mu so a slow
// actuator never delays the emergency stop or status reads.
func (a *Arbiter) issue(pose kinematics.JointPose, grip robot.Gripper) bool {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	a.mu.Lock()
	if a.estop {
		a.mu.Unlock()
		return false
	}
	a.applyPose(pose, grip)
	a.mu.Unlock()

	a.actuator.Send(pose, grip)
	return true
}

// applyPose is the only place the recorded pose changes. Callers hold a.mu.
func (a *Arbiter) applyPose(pose kinematics.JointPose, grip robot.Gripper) {
	a.pose = pose
	a.grip = grip
}

// wait sleeps for d without holding any lock, returning early on the
// emergency stop or cancellation.
func (a *Arbiter) wait(ctx context.Context, stop <-chan struct{}, d time.Duration) error {
	if d <= 0 {
		select {
		case <-stop:
			return ErrInterrupted
		default:
			return ctx.Err()
		}
	}
	timer := a.clk.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-stop:
		return ErrInterrupted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Arbiter) currentSpeed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speed
}

func (a *Arbiter) publish() {
	a.observer.Publish(a.Snapshot())
}

func clampSpeed(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

type offlineLink struct{}

func (offlineLink) LastSeen() time.Time { return time.Time{} }
func (offlineLink) Addr() string        { return "" }

type nopObserver struct{}

func (nopObserver) Publish(status.Snapshot)        {}
func (nopObserver) Notify(status.Severity, string) {}
