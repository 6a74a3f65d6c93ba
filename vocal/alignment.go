package vocal

import (
	"math"

	"github.com/RyanBlaney/sonido-vocal/algorithms/stats"
)

// alignmentCostScale converts DTW cost into score points
const alignmentCostScale = 0.05

// PitchAligner compares two pitch contours with dynamic time warping
type PitchAligner struct {
	dtw *stats.DTWAlignment
}

// NewPitchAligner creates an aligner with the given cost normalization
func NewPitchAligner(normalization stats.DTWNormalization) *PitchAligner {
	return &PitchAligner{dtw: stats.NewDTWAlignmentWithNormalization(normalization)}
}

// Cost returns the alignment cost of the two contours after normalization
func (pa *PitchAligner) Cost(user, ref []float64) float64 {
	return pa.dtw.Distance(user, ref).Distance
}

// Path returns the full warping path for inspection
func (pa *PitchAligner) Path(user, ref []float64) (*stats.DTWResult, error) {
	return pa.dtw.Align(user, ref)
}

// AlignmentScore maps a DTW cost to [0, 100]
func AlignmentScore(cost float64) float64 {
	return math.Max(0, 100-cost*alignmentCostScale)
}
