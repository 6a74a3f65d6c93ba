package analyzers

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
	"github.com/RyanBlaney/sonido-vocal/logging"
)

// BeatSource recomputes beat times (seconds) and the onset strength envelope
// of a waveform
type BeatSource interface {
	BeatTrack(samples []float64, sampleRate int) (tempo float64, beats []float64, err error)
	OnsetStrength(samples []float64, sampleRate int) ([]float64, error)
}

// RhythmResult breaks the rhythm score into its two halves
type RhythmResult struct {
	Score        float64 `json:"score"`
	Regularity   float64 `json:"regularity"`
	PulseClarity float64 `json:"pulse_clarity"`
	Beats        int     `json:"beats"`
}

// RhythmAnalyzer scores beat regularity and pulse clarity
type RhythmAnalyzer struct {
	source BeatSource
	logger logging.Logger
}

// NewRhythmAnalyzer creates a rhythm analyzer over the given beat source
func NewRhythmAnalyzer(source BeatSource) *RhythmAnalyzer {
	return &RhythmAnalyzer{
		source: source,
		logger: logging.WithFields(logging.Fields{
			"component": "rhythm_analyzer",
		}),
	}
}

// Analyze returns the mean of beat regularity and pulse clarity. The tempo
// argument is accepted for context only; beats are always recomputed.
func (ra *RhythmAnalyzer) Analyze(samples []float64, sampleRate int, tempo float64) (*RhythmResult, error) {
	_, beats, err := ra.source.BeatTrack(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("rhythm beats: %w", err)
	}

	onset, err := ra.source.OnsetStrength(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("rhythm onsets: %w", err)
	}

	regularity := BeatRegularity(beats)
	clarity := PulseClarity(onset)

	ra.logger.Debug("Rhythm analyzed", logging.Fields{
		"tempo":         tempo,
		"beats":         len(beats),
		"regularity":    regularity,
		"pulse_clarity": clarity,
	})

	return &RhythmResult{
		Score:        (regularity + clarity) / 2,
		Regularity:   regularity,
		PulseClarity: clarity,
		Beats:        len(beats),
	}, nil
}

// BeatRegularity returns 1 - std/mean of the inter-beat intervals using the
// population standard deviation. Fewer than two beats give 0. The value is
// not clamped and goes negative for very irregular beats.
func BeatRegularity(beats []float64) float64 {
	if len(beats) < 2 {
		return 0.0
	}

	intervals := make([]float64, len(beats)-1)
	for i := range intervals {
		intervals[i] = beats[i+1] - beats[i]
	}

	mean, std := stat.PopMeanStdDev(intervals, nil)
	if mean == 0 {
		return 0.0
	}
	return 1.0 - std/mean
}

// PulseClarity is the mean onset strength capped at 1
func PulseClarity(onset []float64) float64 {
	if len(onset) == 0 {
		return 0.0
	}
	return math.Min(common.Mean(onset), 1.0)
}
