package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp for real and complex transforms
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the full complex spectrum of a real frame.
// go-dsp handles non-power-of-2 sizes.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// ComputeInverseReal computes the inverse FFT and keeps the real part
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	out := make([]float64, len(result))
	for i, val := range result {
		out[i] = real(val)
	}
	return out
}

// NextPowerOfTwo returns the smallest power of two >= n
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// FrequencyBins returns the center frequency in Hz of each of the
// windowSize/2+1 positive-frequency bins.
func FrequencyBins(sampleRate, windowSize int) []float64 {
	numBins := windowSize/2 + 1
	bins := make([]float64, numBins)
	for i := 0; i < numBins; i++ {
		bins[i] = float64(i) * float64(sampleRate) / float64(windowSize)
	}
	return bins
}
