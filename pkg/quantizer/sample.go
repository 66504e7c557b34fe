package quantizer

import (
	"errors"
	"fmt"
	"math"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
)

// How a clipped sample in [-1.0, 1.0] is mapped onto the int16 grid.
//
// Both policies scale by math.MaxInt16, so full scale is symmetric:
// +1.0 -> 32767 and -1.0 -> -32767. The policies differ only in the
// least significant bit.
type Rounding string

const (
	// Truncate toward zero, as a plain float to int conversion does.
	RoundingTruncate Rounding = "truncate"
	// Round to the nearest integer, ties to even.
	RoundingNearestEven Rounding = "nearesteven"
)

var (
	errUnknownRounding = errors.New("unknown rounding policy")
)

// Parse a rounding policy from its config string.
func ParseRounding(s string) (Rounding, error) {
	switch Rounding(s) {
	case RoundingTruncate:
		return RoundingTruncate, nil
	case RoundingNearestEven:
		return RoundingNearestEven, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownRounding, s)
	}
}

const maxInt16 = float64(math.MaxInt16)

// Scale s by gain, hard clip to [-1.0, 1.0] and quantize to int16.
//
// Invalid results never escape: NaN maps to +32767, +Inf to +32767 and
// -Inf to -32767. Note that a NaN/Inf sample times a zero gain is still NaN,
// so it too lands on +32767.
func QuantizeSample(s float32, gain float64, r Rounding) int16 {
	q, _ := quantizeSample(s, gain, r)
	return q
}

// Counts of anomalies seen while quantizing one block.
type BlockStats struct {
	// Samples whose scaled value fell outside [-1.0, 1.0], including invalid ones.
	Clipped int
	// Samples that were NaN or infinite after scaling.
	Invalid int
}

// Quantize src into dst and return the filled dst.
//
// dst is grown only if its capacity is smaller than len(src); with a
// correctly sized dst, Quantize does not allocate. The result always has
// exactly len(src) samples.
func Quantize(dst frame.PCM16Frame, src frame.PCMFrame, gain float64, r Rounding) (frame.PCM16Frame, BlockStats) {
	if cap(dst) < len(src) {
		dst = make(frame.PCM16Frame, len(src))
	}
	dst = dst[:len(src)]

	var stats BlockStats
	for i, s := range src {
		q, flag := quantizeSample(s, gain, r)
		dst[i] = q
		switch flag {
		case sampleClipped:
			stats.Clipped++
		case sampleInvalid:
			stats.Clipped++
			stats.Invalid++
		}
	}
	return dst, stats
}

type sampleFlag uint8

const (
	sampleOK sampleFlag = iota
	sampleClipped
	sampleInvalid
)

func quantizeSample(s float32, gain float64, r Rounding) (int16, sampleFlag) {
	scaled := float64(s) * gain
	switch {
	case scaled > 1.0:
		if math.IsInf(scaled, 1) {
			return math.MaxInt16, sampleInvalid
		}
		return math.MaxInt16, sampleClipped
	case scaled < -1.0:
		if math.IsInf(scaled, -1) {
			return -math.MaxInt16, sampleInvalid
		}
		return -math.MaxInt16, sampleClipped
	case scaled != scaled:
		// NaN fails every comparison above.
		return math.MaxInt16, sampleInvalid
	}

	v := scaled * maxInt16
	if r == RoundingNearestEven {
		return int16(math.RoundToEven(v)), sampleOK
	}
	return int16(v), sampleOK
}
