package proximity

// CalibrationState maps relative depth to distance. It is a value: Calibrate returns the next
// state instead of mutating the receiver.
type CalibrationState struct {
	ScaleFactor float64
	// Calibrated is false until a vehicle sample has been accepted. Distances computed before
	// then are provisional.
	Calibrated bool
}

// NewCalibrationState returns an uncalibrated state. A non-positive scale factor falls back to
// DefaultScaleFactor.
func NewCalibrationState(scaleFactor float64) CalibrationState {
	if !isPositive(scaleFactor) {
		scaleFactor = DefaultScaleFactor
	}
	return CalibrationState{ScaleFactor: scaleFactor}
}

// Calibrate treats a vehicle's mean relative depth d as a sample taken at referenceDistance and
// returns the recalibrated state. The last accepted sample wins. Samples from non-vehicles and
// samples that are zero, negative or not finite leave the state unchanged, reported by ok.
func (s CalibrationState) Calibrate(vehicle bool, d, referenceDistance float64) (next CalibrationState, ok bool) {
	if !vehicle || !isPositive(d) || !isPositive(referenceDistance) {
		return s, false
	}
	scale := referenceDistance / d
	if !isPositive(scale) {
		return s, false
	}
	return CalibrationState{ScaleFactor: scale, Calibrated: true}, true
}

// Distance converts a mean relative depth to a distance in units given by unitConversion.
func (s CalibrationState) Distance(d, unitConversion float64) float64 {
	scale := s.ScaleFactor
	if !isPositive(scale) {
		scale = DefaultScaleFactor
	}
	return d / scale * unitConversion
}
