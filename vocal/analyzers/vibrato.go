package analyzers

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// The score peaks at 6 pitch direction reversals per second and falls off
// linearly to 0 at 4 reversals/s away from it. A sinusoidal vibrato at f Hz
// reverses direction 2f times per second, so the peak corresponds to a 3 Hz
// oscillation and a typical 5-7 Hz sung vibrato (10-14 reversals/s) scores 0.
const (
	vibratoTargetRate = 6.0
	vibratoTolerance  = 4.0
)

// AnalyzeVibrato scores pitch oscillation regularity in [0, 1].
//
// voiced holds the f0 values of voiced frames only, sampled at frameRate
// frames per second. The successive differences of the contour change sign
// at every direction reversal; rate is frameRate divided by the mean spacing
// between sign changes. That is twice the oscillation frequency of a
// sinusoidal contour. Fewer than two samples or two sign changes give 0.
func AnalyzeVibrato(voiced []float64, frameRate float64) float64 {
	rate, ok := VibratoRate(voiced, frameRate)
	if !ok {
		return 0.0
	}
	return 1.0 - math.Min(math.Abs(rate-vibratoTargetRate)/vibratoTolerance, 1.0)
}

// VibratoRate returns the pitch direction reversal rate per second (2f for a
// sinusoidal contour at f Hz), and false when the contour is too short to measure
func VibratoRate(voiced []float64, frameRate float64) (float64, bool) {
	if len(voiced) < 2 || frameRate <= 0 {
		return 0.0, false
	}

	// indices i where sign(d[i]) != sign(d[i+1]); zero counts as positive
	var crossings []float64
	prev := math.Signbit(voiced[1] - voiced[0])
	for i := 1; i < len(voiced)-1; i++ {
		curr := math.Signbit(voiced[i+1] - voiced[i])
		if curr != prev {
			crossings = append(crossings, float64(i))
		}
		prev = curr
	}

	if len(crossings) < 2 {
		return 0.0, false
	}

	spacing := make([]float64, len(crossings)-1)
	for i := range spacing {
		spacing[i] = crossings[i+1] - crossings[i]
	}

	return frameRate / stat.Mean(spacing, nil), true
}
