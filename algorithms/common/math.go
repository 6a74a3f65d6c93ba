package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Small numeric helpers shared by the analyzers and the scorer, on top of gonum

// Mean calculates the arithmetic mean, 0 for an empty slice
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// MeanColumns averages a frames x values matrix over frames
func MeanColumns(frames [][]float64, width int) []float64 {
	mean := make([]float64, width)
	if len(frames) == 0 {
		return mean
	}
	for _, frame := range frames {
		for k := 0; k < width && k < len(frame); k++ {
			mean[k] += frame[k]
		}
	}
	floats.Scale(1/float64(len(frames)), mean)
	return mean
}

// MinMaxNormalize normalizes data to [0, 1]; constant data maps to all zeros
func MinMaxNormalize(data []float64) []float64 {
	normalized := make([]float64, len(data))
	if len(data) == 0 {
		return normalized
	}

	lo := floats.Min(data)
	hi := floats.Max(data)
	if hi == lo {
		return normalized
	}

	for i, val := range data {
		normalized[i] = (val - lo) / (hi - lo)
	}
	return normalized
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// FloorZero returns v, or 0 when v is negative or NaN
func FloorZero(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

// AllFinite reports whether every value is neither NaN nor infinite,
// returning the index of the first offending value otherwise
func AllFinite(data []float64) (int, bool) {
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i, false
		}
	}
	return -1, true
}
