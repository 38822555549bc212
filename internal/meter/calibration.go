package meter

import "math"

// Calibration maps loudness onto the needle's swing. The decibel floor and
// peak depend on the microphone and amplifier in use.
//
// Angles are in radians measured counterclockwise from the positive X
// axis, so the needle rests at LeftLimit and swings towards RightLimit as
// the level rises.
type Calibration struct {
	ReferenceAmplitude float64 `yaml:"reference_amplitude" validate:"gt=0"`
	FloorDB            float64 `yaml:"floor_db" validate:"ltfield=PeakDB"`
	PeakDB             float64 `yaml:"peak_db"`
	LeftLimit          float64 `yaml:"left_limit" validate:"gtfield=RightLimit"`
	RightLimit         float64 `yaml:"right_limit"`
	OverloadThreshold  int     `yaml:"overload_threshold" validate:"gte=0,lte=32768"`
}

// DefaultCalibration is tuned for a phone-class microphone: a full-scale
// sine reads 0 dB and -55 dB pins the needle to its rest.
func DefaultCalibration() Calibration {
	return Calibration{
		ReferenceAmplitude: math.MaxInt16 / math.Sqrt2,
		FloorDB:            -55,
		PeakDB:             0,
		LeftLimit:          math.Pi * 3 / 4,
		RightLimit:         math.Pi / 4,
		OverloadThreshold:  math.MaxInt16 - 10000,
	}
}

// LevelDB returns the RMS level in dB relative to ReferenceAmplitude. RMS
// values below 1 are treated as 1.
func (c Calibration) LevelDB(rms int) float64 {
	if rms < 1 {
		rms = 1
	}
	return 20 * math.Log10(float64(rms)/c.ReferenceAmplitude)
}

// TargetAngle interpolates the level between the calibration floor and
// peak onto the angular limits. Levels outside [FloorDB, PeakDB] land
// outside the limits; the needle's stops take care of that.
func (c Calibration) TargetAngle(rms int) float64 {
	db := c.LevelDB(rms)
	return c.LeftLimit + (c.RightLimit-c.LeftLimit)*(db-c.FloorDB)/(c.PeakDB-c.FloorDB)
}

// Overloaded reports whether peak should light the overload LED.
func (c Calibration) Overloaded(peak int) bool {
	return peak > c.OverloadThreshold
}
