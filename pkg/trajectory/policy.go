package trajectory

import "time"

// Policy holds the step counts and timing used to expand motion commands.
type Policy struct {
	ArcSteps     int
	LinearSteps  int
	RoutineSteps int

	GotoBaseDelay    time.Duration
	RoutineBaseDelay time.Duration
	WaypointDwell    time.Duration

	GotoSpeedFloor    int
	RoutineSpeedFloor int

	// RoutinePublishEvery is how many routine steps pass between status
	// publications.
	RoutinePublishEvery int
}

// DefaultPolicy returns the stock motion policy.
func DefaultPolicy() Policy {
	return Policy{
		ArcSteps:            100,
		LinearSteps:         50,
		RoutineSteps:        30,
		GotoBaseDelay:       20 * time.Millisecond,
		RoutineBaseDelay:    5 * time.Millisecond,
		WaypointDwell:       500 * time.Millisecond,
		GotoSpeedFloor:      5,
		RoutineSpeedFloor:   1,
		RoutinePublishEvery: 5,
	}
}

// StepDelay scales base inversely with speed, a percentage. Speeds below
// floor are raised to floor.
func StepDelay(base time.Duration, speed, floor int) time.Duration {
	if floor < 1 {
		floor = 1
	}
	if speed < floor {
		speed = floor
	}
	return time.Duration(float64(base) * 100 / float64(speed))
}

// GotoDelay is the per-step delay for Cartesian gotos.
func (p Policy) GotoDelay(speed int) time.Duration {
	return StepDelay(p.GotoBaseDelay, speed, p.GotoSpeedFloor)
}

// RoutineDelay is the per-step delay for routine playback.
func (p Policy) RoutineDelay(speed int) time.Duration {
	return StepDelay(p.RoutineBaseDelay, speed, p.RoutineSpeedFloor)
}

// DwellDelay is the pause after each routine waypoint.
func (p Policy) DwellDelay(speed int) time.Duration {
	return StepDelay(p.WaypointDwell, speed, p.RoutineSpeedFloor)
}
