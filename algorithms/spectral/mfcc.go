package spectral

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
)

// MFCC computes Mel-Frequency Cepstral Coefficients from a magnitude spectrogram:
// mel power spectrogram, decibel scaling, orthonormal DCT-II over the mel axis.
type MFCC struct {
	numCoefficients int
	numMelFilters   int
	topDB           float64

	melScale  *MelScale
	dctMatrix [][]float64
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // default 13
	NumMelFilters   int     `json:"num_mel_filters"`  // default 128
	TopDB           float64 `json:"top_db"`           // default 80
}

// NewMFCC creates a new MFCC computer with default parameters
func NewMFCC(numCoefficients int) *MFCC {
	return NewMFCCWithParams(MFCCParams{NumCoefficients: numCoefficients})
}

// NewMFCCWithParams creates a new MFCC computer with custom parameters
func NewMFCCWithParams(params MFCCParams) *MFCC {
	if params.NumCoefficients <= 0 {
		params.NumCoefficients = 13
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = 128
	}
	if params.TopDB <= 0 {
		params.TopDB = 80
	}

	m := &MFCC{
		numCoefficients: params.NumCoefficients,
		numMelFilters:   params.NumMelFilters,
		topDB:           params.TopDB,
		melScale:        NewMelScale(),
	}
	m.createDCTMatrix()
	return m
}

// ComputeFrames returns one coefficient vector per STFT frame
func (m *MFCC) ComputeFrames(stft *STFTResult) ([][]float64, error) {
	if stft == nil || stft.TimeFrames == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}

	logMel := PowerToDB(m.melScale.MelSpectrogram(stft, m.numMelFilters), m.topDB)

	frames := make([][]float64, len(logMel))
	for t, bands := range logMel {
		frames[t] = m.applyDCT(bands)
	}
	return frames, nil
}

// Mean averages coefficient vectors over time
func (m *MFCC) Mean(frames [][]float64) []float64 {
	return common.MeanColumns(frames, m.numCoefficients)
}

// createDCTMatrix builds the orthonormal DCT-II basis
func (m *MFCC) createDCTMatrix() {
	n := float64(m.numMelFilters)
	m.dctMatrix = make([][]float64, m.numCoefficients)

	for k := 0; k < m.numCoefficients; k++ {
		row := make([]float64, m.numMelFilters)
		scale := math.Sqrt(2.0 / n)
		if k == 0 {
			scale = math.Sqrt(1.0 / n)
		}
		for i := 0; i < m.numMelFilters; i++ {
			row[i] = scale * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/n)
		}
		m.dctMatrix[k] = row
	}
}

func (m *MFCC) applyDCT(logMel []float64) []float64 {
	coeffs := make([]float64, m.numCoefficients)
	for k, basis := range m.dctMatrix {
		sum := 0.0
		for i := 0; i < len(logMel) && i < len(basis); i++ {
			sum += logMel[i] * basis[i]
		}
		coeffs[k] = sum
	}
	return coeffs
}
