package temporal

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
)

// Energy computes frame-wise RMS energy
type Energy struct {
	frameSize int
	hopSize   int
	center    bool
}

// NewEnergy creates a new energy calculator with centered frames
func NewEnergy(frameSize, hopSize int) *Energy {
	if frameSize <= 0 {
		frameSize = 2048
	}
	if hopSize <= 0 {
		hopSize = frameSize / 4
	}
	return &Energy{
		frameSize: frameSize,
		hopSize:   hopSize,
		center:    true,
	}
}

// ComputeRMS calculates root-mean-square energy for overlapping frames
func (e *Energy) ComputeRMS(signal []float64) []float64 {
	if len(signal) == 0 {
		return []float64{}
	}

	if e.center {
		signal = spectral.CenterPad(signal, e.frameSize/2)
	}

	numFrames := spectral.FrameCount(len(signal), e.frameSize, e.hopSize, false)
	energies := make([]float64, numFrames)

	for i := 0; i < numFrames; i++ {
		startIdx := i * e.hopSize
		endIdx := startIdx + e.frameSize

		sumSquares := 0.0
		for j := startIdx; j < endIdx; j++ {
			sumSquares += signal[j] * signal[j]
		}
		energies[i] = math.Sqrt(sumSquares / float64(e.frameSize))
	}

	return energies
}

// MeanRMS returns the mean frame RMS, 0 for an empty signal
func (e *Energy) MeanRMS(signal []float64) float64 {
	energies := e.ComputeRMS(signal)
	if len(energies) == 0 {
		return 0.0
	}
	return stat.Mean(energies, nil)
}
