package meter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetAngleClampsRMSBelowOne(t *testing.T) {
	cal := DefaultCalibration()
	want := cal.TargetAngle(1)
	for _, rms := range []int{0, -1, -32768} {
		assert.Equal(t, want, cal.TargetAngle(rms), "rms=%d", rms)
		assert.False(t, math.IsInf(cal.LevelDB(rms), 0))
	}
}

func TestTargetAngleEndpoints(t *testing.T) {
	cal := DefaultCalibration()

	// A full-scale sine has RMS 32767/sqrt(2), the reference amplitude.
	assert.InDelta(t, 0, cal.LevelDB(23170), 1e-3)
	assert.InDelta(t, cal.RightLimit, cal.TargetAngle(23170), 1e-4)

	floorRMS := cal.ReferenceAmplitude * math.Pow(10, cal.FloorDB/20)
	assert.InDelta(t, cal.FloorDB, 20*math.Log10(floorRMS/cal.ReferenceAmplitude), 1e-9)
	assert.InDelta(t, cal.LeftLimit, cal.TargetAngle(int(math.Round(floorRMS))), 0.01)
}

func TestTargetAngleIsNotClamped(t *testing.T) {
	cal := DefaultCalibration()
	assert.Greater(t, cal.TargetAngle(1), cal.LeftLimit)
	assert.Less(t, cal.TargetAngle(32767), cal.RightLimit)
}

func TestTargetAngleDecreasesWithLoudness(t *testing.T) {
	cal := DefaultCalibration()
	prev := cal.TargetAngle(1)
	for rms := 2; rms <= 32768; rms *= 2 {
		got := cal.TargetAngle(rms)
		assert.Less(t, got, prev, "rms=%d", rms)
		prev = got
	}
}

func TestOverloaded(t *testing.T) {
	cal := DefaultCalibration()
	assert.Equal(t, 32767-10000, cal.OverloadThreshold)
	assert.True(t, cal.Overloaded(32767))
	assert.True(t, cal.Overloaded(22768))
	assert.False(t, cal.Overloaded(22767))
	assert.False(t, cal.Overloaded(0))
}
