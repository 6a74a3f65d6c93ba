package analyzers

import (
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
)

// MinMaxScaler rescales a row to [0, 1]. A scaler is fitted to one row and
// never shared between calls.
type MinMaxScaler struct {
	fitted []float64
}

// NewMinMaxScaler creates an empty scaler
func NewMinMaxScaler() *MinMaxScaler {
	return &MinMaxScaler{}
}

// FitTransform normalizes row across its own values
func (s *MinMaxScaler) FitTransform(row []float64) []float64 {
	s.fitted = common.MinMaxNormalize(row)
	return s.fitted
}

// NormalizeTimbre combines mean spectral centroid, bandwidth and rolloff
// into one value: the row is min-max normalized across the three
// descriptors and averaged. This captures the relative spread of the three
// descriptors, not their absolute position, so two very different voices
// can share a score. An all-equal row gives 0.
func NormalizeTimbre(centroid, bandwidth, rolloff float64) float64 {
	row := NewMinMaxScaler().FitTransform([]float64{centroid, bandwidth, rolloff})
	return stat.Mean(row, nil)
}
