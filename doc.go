// Package scara is a motion controller for a 3-DOF SCARA arm: two revolute
// joints in the horizontal plane, a vertical piston and a binary gripper.
//
// The controller solves forward and inverse kinematics, expands goto
// commands into joint-space or straight-line trajectories, records and
// replays routines, and enforces a latching emergency stop. Commands reach
// the arm either as UDP datagrams to a network controller or directly over
// a Feetech servo bus.
//
// # Installation
//
//	go install github.com/gwillem/scara/cmd/scara@latest
//
// # Usage
//
// Start the controller and its HTTP API:
//
//	scara serve
//
// Watch it from another terminal:
//
//	scara monitor
//
// To drive the arm over a servo bus, calibrate it first:
//
//	scara setup
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/scara: CLI with serve, monitor, setup and solve commands
//   - pkg/kinematics: Forward and inverse kinematics
//   - pkg/trajectory: Joint and Cartesian interpolation, step timing
//   - pkg/routine: Recorded waypoint store
//   - pkg/status: Status snapshots for observers
//   - pkg/arbiter: Motion state machine and emergency stop
//   - pkg/control: Keepalive and status heartbeat loop
//   - pkg/link: UDP device link and liveness tracking
//   - pkg/robot: Joint vocabulary, configuration and the servo-bus arm
//   - pkg/api: HTTP commands and the server-sent event stream
package scara
