package audio

import (
	"encoding/binary"
	"math"
)

// Loudness is the per-block level measurement: RMS and peak magnitude in
// the integer domain of 16-bit samples.
type Loudness struct {
	RMS  int
	Peak int
}

// Analyzer computes Loudness for successive PCM16 blocks. It remembers
// the last measurement so that an empty block leaves it untouched.
type Analyzer struct {
	last Loudness
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze scans block once for its peak and RMS. A zero-length block is
// a no-op and returns the previous measurement.
func (a *Analyzer) Analyze(block []int16) Loudness {
	if len(block) == 0 {
		return a.last
	}

	var peak int
	var sumSquares float64
	for _, s := range block {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
		f := float64(s)
		sumSquares += f * f
	}

	a.last = Loudness{
		RMS:  int(math.Sqrt(sumSquares / float64(len(block)))),
		Peak: peak,
	}
	return a.last
}

// Last returns the most recent measurement.
func (a *Analyzer) Last() Loudness {
	return a.last
}

// DecodePCM16 converts little-endian S16 PCM bytes to samples. A trailing
// odd byte is ignored.
func DecodePCM16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return samples
}
