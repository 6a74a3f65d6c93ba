package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/mjibson/go-dsp/window"
)

// STFTParams configures framing for the Short-Time Fourier Transform
type STFTParams struct {
	WindowSize int  `json:"window_size" yaml:"window_size"`
	HopSize    int  `json:"hop_size" yaml:"hop_size"`
	Center     bool `json:"center" yaml:"center"` // zero-pad WindowSize/2 on both sides
	Workers    int  `json:"workers" yaml:"workers"`
}

// DefaultSTFTParams matches the framing used for every vocal descriptor:
// 2048-sample windows, 512-sample hop, centered frames, single worker.
func DefaultSTFTParams() STFTParams {
	return STFTParams{
		WindowSize: 2048,
		HopSize:    512,
		Center:     true,
		Workers:    1,
	}
}

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft    *FFT
	params STFTParams
	window []float64
	logger logging.Logger
}

// STFTResult holds a magnitude spectrogram
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // FFT window size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64     `json:"time_resolution"` // Time resolution (seconds/frame)
}

// NewSTFT creates a new STFT calculator with a periodic Hann window
func NewSTFT(params STFTParams) *STFT {
	if params.WindowSize <= 0 {
		params.WindowSize = 2048
	}
	if params.HopSize <= 0 {
		params.HopSize = params.WindowSize / 4
	}
	if params.Workers <= 0 {
		params.Workers = 1
	}

	return &STFT{
		fft:    NewFFT(),
		params: params,
		window: PeriodicHann(params.WindowSize),
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
		}),
	}
}

// Params returns the framing parameters in use
func (s *STFT) Params() STFTParams {
	return s.params
}

// PeriodicHann returns an n-point periodic Hann window (the DFT-even form).
func PeriodicHann(n int) []float64 {
	if n <= 1 {
		return []float64{1}
	}
	return window.Hann(n + 1)[:n]
}

// CenterPad returns signal with pad zeros on both sides
func CenterPad(signal []float64, pad int) []float64 {
	padded := make([]float64, len(signal)+2*pad)
	copy(padded[pad:], signal)
	return padded
}

// FrameCount returns the number of frames the given framing produces for n samples
func FrameCount(n, windowSize, hopSize int, center bool) int {
	if center {
		n += 2 * (windowSize / 2)
	}
	if n < windowSize || hopSize <= 0 {
		return 0
	}
	return (n-windowSize)/hopSize + 1
}

// Compute computes the magnitude spectrogram of signal
func (s *STFT) Compute(signal []float64, sampleRate int) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}

	windowSize := s.params.WindowSize
	hopSize := s.params.HopSize

	if s.params.Center {
		signal = CenterPad(signal, windowSize/2)
	}

	numFrames := FrameCount(len(signal), windowSize, hopSize, false)
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		magnitude[i] = make([]float64, freqBins)
	}

	workers := min(s.params.Workers, runtime.NumCPU(), numFrames)
	if workers <= 1 {
		frameBuffer := make([]float64, windowSize)
		for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
			s.computeFrame(signal, frameIdx, frameBuffer, magnitude[frameIdx])
		}
	} else {
		s.computeParallel(signal, numFrames, workers, magnitude)
	}

	s.logger.Debug("STFT computed", logging.Fields{
		"frames":    numFrames,
		"freq_bins": freqBins,
		"workers":   workers,
	})

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// computeFrame windows one frame into buf and writes its magnitude spectrum to out
func (s *STFT) computeFrame(signal []float64, frameIdx int, buf, out []float64) {
	start := frameIdx * s.params.HopSize
	copy(buf, signal[start:start+s.params.WindowSize])
	for i := range buf {
		buf[i] *= s.window[i]
	}

	spectrum := s.fft.Compute(buf)
	for i := range out {
		out[i] = cmplx.Abs(spectrum[i])
	}
}

// computeParallel fans frames out to a fixed worker pool. Each worker owns its
// frame buffer and writes only to its own output rows.
func (s *STFT) computeParallel(signal []float64, numFrames, workers int, magnitude [][]float64) {
	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			frameBuffer := make([]float64, s.params.WindowSize)
			for frameIdx := range jobs {
				s.computeFrame(signal, frameIdx, frameBuffer, magnitude[frameIdx])
			}
		}()
	}

	for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()
}

// Power returns the squared magnitude spectrogram
func (r *STFTResult) Power() [][]float64 {
	power := make([][]float64, len(r.Magnitude))
	for t, frame := range r.Magnitude {
		power[t] = make([]float64, len(frame))
		for f, mag := range frame {
			power[t][f] = mag * mag
		}
	}
	return power
}
