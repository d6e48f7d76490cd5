package arbiter

import "errors"

var (
	// ErrEmergencyStopped rejects motion while the emergency stop is engaged.
	ErrEmergencyStopped = errors.New("emergency stop active")
	// ErrBusy rejects motion while another trajectory owns the arm.
	ErrBusy = errors.New("another motion is in progress")
	// ErrEmptyRoutine rejects playback of an empty routine.
	ErrEmptyRoutine = errors.New("routine is empty")
	// ErrInvalidInput rejects malformed command values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInterrupted is returned by a trajectory cut short by the emergency
	// stop. The arm stays at the last issued step.
	ErrInterrupted = errors.New("motion interrupted by emergency stop")
)
