package spectral

import (
	"math"
)

// MelScale provides mel frequency conversion and filter banks
type MelScale struct{}

// NewMelScale creates a new mel scale converter
func NewMelScale() *MelScale {
	return &MelScale{}
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// CreateMelFilterBank builds numFilters triangular filters over the
// fftSize/2+1 positive bins. Weights are evaluated at the exact bin
// frequencies and each filter is area-normalized (2 / bandwidth in Hz), so
// narrow low-frequency filters never collapse to zero width.
func (ms *MelScale) CreateMelFilterBank(numFilters int, fftSize int, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil
	}
	if highFreq <= 0 || highFreq > float64(sampleRate)/2 {
		highFreq = float64(sampleRate) / 2
	}

	lowMel := ms.HzToMel(lowFreq)
	highMel := ms.HzToMel(highFreq)

	// numFilters+2 edge frequencies, equally spaced in mel
	edges := make([]float64, numFilters+2)
	melStep := (highMel - lowMel) / float64(numFilters+1)
	for i := range edges {
		edges[i] = ms.MelToHz(lowMel + float64(i)*melStep)
	}

	fftFreqs := FrequencyBins(sampleRate, fftSize)

	filterBank := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		norm := 2.0 / (right - left)

		filter := make([]float64, len(fftFreqs))
		for k, f := range fftFreqs {
			lower := (f - left) / (center - left)
			upper := (right - f) / (right - center)
			w := math.Min(lower, upper)
			if w > 0 {
				filter[k] = w * norm
			}
		}
		filterBank[m] = filter
	}

	return filterBank
}

// ApplyFilterBank applies mel filter bank to a power spectrum
func (ms *MelScale) ApplyFilterBank(powerSpectrum []float64, filterBank [][]float64) []float64 {
	if len(filterBank) == 0 || len(powerSpectrum) == 0 {
		return []float64{}
	}

	melSpectrum := make([]float64, len(filterBank))
	for i, filter := range filterBank {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		melSpectrum[i] = sum
	}

	return melSpectrum
}

// MelSpectrogram projects a magnitude spectrogram onto numFilters mel bands (power)
func (ms *MelScale) MelSpectrogram(stft *STFTResult, numFilters int) [][]float64 {
	filterBank := ms.CreateMelFilterBank(numFilters, stft.WindowSize, stft.SampleRate, 0, 0)

	mel := make([][]float64, stft.TimeFrames)
	for t, frame := range stft.Magnitude {
		power := make([]float64, len(frame))
		for i, mag := range frame {
			power[i] = mag * mag
		}
		mel[t] = ms.ApplyFilterBank(power, filterBank)
	}
	return mel
}

// PowerToDB converts a power spectrogram to decibels (ref 1.0, floor 1e-10)
// in place and clips everything more than topDB below the global peak.
// topDB <= 0 disables clipping.
func PowerToDB(spectrogram [][]float64, topDB float64) [][]float64 {
	const amin = 1e-10

	peak := math.Inf(-1)
	for _, frame := range spectrogram {
		for i, p := range frame {
			db := 10.0 * math.Log10(math.Max(p, amin))
			frame[i] = db
			if db > peak {
				peak = db
			}
		}
	}

	if topDB > 0 && !math.IsInf(peak, -1) {
		floor := peak - topDB
		for _, frame := range spectrogram {
			for i, db := range frame {
				if db < floor {
					frame[i] = floor
				}
			}
		}
	}

	return spectrogram
}
