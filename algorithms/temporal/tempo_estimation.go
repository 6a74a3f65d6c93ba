package temporal

import (
	"math"
)

// TempoEstimation estimates a global tempo from an onset envelope by picking
// the autocorrelation lag that best matches a log-normal tempo prior.
type TempoEstimation struct {
	StartBPM   float64 // prior center
	StdOctaves float64 // prior width in octaves
	MinBPM     float64
	MaxBPM     float64
	WindowSec  float64 // longest lag considered
}

// NewTempoEstimation creates a tempo estimator centered on 120 BPM
func NewTempoEstimation() *TempoEstimation {
	return &TempoEstimation{
		StartBPM:   120.0,
		StdOctaves: 1.0,
		MinBPM:     30.0,
		MaxBPM:     320.0,
		WindowSec:  8.0,
	}
}

// EstimateTempo returns the tempo in BPM for an onset envelope sampled at
// frameRate frames per second. A flat or empty envelope yields 0.
func (te *TempoEstimation) EstimateTempo(onsetEnv []float64, frameRate float64) float64 {
	if len(onsetEnv) < 2 || frameRate <= 0 {
		return 0.0
	}

	maxLag := int(te.WindowSec * frameRate)
	if maxLag >= len(onsetEnv) {
		maxLag = len(onsetEnv) - 1
	}

	autocorr := te.calculateAutocorrelation(onsetEnv, maxLag)
	if autocorr[0] <= 0 {
		return 0.0
	}

	bestLag := 0
	bestScore := math.Inf(-1)
	for lag := 1; lag <= maxLag; lag++ {
		bpm := 60.0 * frameRate / float64(lag)
		if bpm < te.MinBPM || bpm > te.MaxBPM {
			continue
		}

		strength := math.Max(autocorr[lag]/autocorr[0], 0)
		prior := (math.Log2(bpm) - math.Log2(te.StartBPM)) / te.StdOctaves
		score := math.Log1p(1e6*strength) - 0.5*prior*prior

		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}

	if bestLag == 0 {
		return 0.0
	}
	return 60.0 * frameRate / float64(bestLag)
}

// calculateAutocorrelation returns the raw autocorrelation for lags 0..maxLag
func (te *TempoEstimation) calculateAutocorrelation(signal []float64, maxLag int) []float64 {
	autocorr := make([]float64, maxLag+1)

	for lag := 0; lag <= maxLag; lag++ {
		sum := 0.0
		for i := 0; i < len(signal)-lag; i++ {
			sum += signal[i] * signal[i+lag]
		}
		autocorr[lag] = sum
	}

	return autocorr
}
