package robot

// JointCalibration maps one joint's engineering range onto servo ticks.
type JointCalibration struct {
	ID        int     `json:"id"`
	DriveMode int     `json:"drive_mode"` // 1 inverts direction
	RangeMin  int     `json:"range_min"`
	RangeMax  int     `json:"range_max"`
	ValueMin  float64 `json:"value_min"`
	ValueMax  float64 `json:"value_max"`
}

// Calibration holds calibration data for all joints, keyed by joint name.
type Calibration map[JointName]JointCalibration

// DefaultCalibration returns a calibration spanning the middle half of a
// 12-bit STS servo for each joint. Ranges should be recorded with setup.
func DefaultCalibration(zTravel float64) Calibration {
	return Calibration{
		JointShoulder: {ID: 1, RangeMin: 1024, RangeMax: 3072, ValueMin: -90, ValueMax: 90},
		JointElbow:    {ID: 2, RangeMin: 1024, RangeMax: 3072, ValueMin: -150, ValueMax: 150},
		JointPiston:   {ID: 3, RangeMin: 1024, RangeMax: 3072, ValueMin: 0, ValueMax: zTravel},
		JointGripper:  {ID: 4, RangeMin: 1800, RangeMax: 2300, ValueMin: 0, ValueMax: 1},
	}
}

// ToRaw converts an engineering value to a raw servo position, clamped to
// the calibrated range.
func (c JointCalibration) ToRaw(value float64) int {
	span := c.ValueMax - c.ValueMin
	if span == 0 {
		return c.RangeMin
	}
	frac := (value - c.ValueMin) / span
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	if c.DriveMode == 1 {
		frac = 1 - frac
	}
	return c.RangeMin + int(frac*float64(c.RangeMax-c.RangeMin)+0.5)
}

// FromRaw converts a raw servo position to an engineering value.
func (c JointCalibration) FromRaw(raw int) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return c.ValueMin
	}
	frac := float64(raw-c.RangeMin) / rangeSize
	if c.DriveMode == 1 {
		frac = 1 - frac
	}
	return c.ValueMin + frac*(c.ValueMax-c.ValueMin)
}

// ServoIDs returns the servo IDs for all joints in the calibration.
func (c Calibration) ServoIDs() []int {
	ids := make([]int, 0, len(c))
	// Use AllJoints() to ensure consistent ordering
	for _, name := range AllJoints() {
		if jc, ok := c[name]; ok {
			ids = append(ids, jc.ID)
		}
	}
	return ids
}

// ByID returns joint name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (JointName, JointCalibration, bool) {
	for name, jc := range c {
		if jc.ID == id {
			return name, jc, true
		}
	}
	return "", JointCalibration{}, false
}
