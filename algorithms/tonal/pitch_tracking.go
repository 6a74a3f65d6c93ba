package tonal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-vocal/logging"
)

// PitchTrackerParams contains parameters for frame-wise YIN pitch tracking
type PitchTrackerParams struct {
	FrameLength int     `json:"frame_length"` // analysis frame (samples)
	HopSize     int     `json:"hop_size"`
	MinFreq     float64 `json:"min_freq"` // Hz
	MaxFreq     float64 `json:"max_freq"` // Hz
	Threshold   float64 `json:"threshold"`
	SilenceRMS  float64 `json:"silence_rms"` // frames below this RMS are unvoiced
	Center      bool    `json:"center"`
}

// DefaultPitchTrackerParams tracks between C2 and C7 on 2048-sample frames
func DefaultPitchTrackerParams() PitchTrackerParams {
	return PitchTrackerParams{
		FrameLength: 2048,
		HopSize:     512,
		MinFreq:     65.40639132514966,
		MaxFreq:     2093.004522404789,
		Threshold:   0.15,
		SilenceRMS:  1e-5,
		Center:      true,
	}
}

// PitchTrack is a per-frame fundamental frequency contour.
// Unvoiced frames hold NaN in F0.
type PitchTrack struct {
	F0         []float64 `json:"f0"`
	Voiced     []bool    `json:"voiced"`
	Confidence []float64 `json:"confidence"` // 1 - aperiodicity of the chosen lag
	FrameRate  float64   `json:"frame_rate"` // frames per second
	SampleRate int       `json:"sample_rate"`
}

// PitchTracker runs YIN over overlapping frames
//
// Reference: de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental
// frequency estimator for speech and music"
type PitchTracker struct {
	params PitchTrackerParams
	fft    *spectral.FFT
	logger logging.Logger
}

// NewPitchTracker creates a pitch tracker, filling unset parameters with defaults
func NewPitchTracker(params PitchTrackerParams) *PitchTracker {
	defaults := DefaultPitchTrackerParams()
	if params.FrameLength <= 0 {
		params.FrameLength = defaults.FrameLength
	}
	if params.HopSize <= 0 {
		params.HopSize = params.FrameLength / 4
	}
	if params.MinFreq <= 0 {
		params.MinFreq = defaults.MinFreq
	}
	if params.MaxFreq <= 0 {
		params.MaxFreq = defaults.MaxFreq
	}
	if params.Threshold <= 0 {
		params.Threshold = defaults.Threshold
	}
	if params.SilenceRMS <= 0 {
		params.SilenceRMS = defaults.SilenceRMS
	}

	return &PitchTracker{
		params: params,
		fft:    spectral.NewFFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "pitch_tracker",
		}),
	}
}

// Params returns the parameters in use
func (pt *PitchTracker) Params() PitchTrackerParams {
	return pt.params
}

// Track estimates f0 for every frame of signal
func (pt *PitchTracker) Track(signal []float64, sampleRate int) (*PitchTrack, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}
	if pt.params.MinFreq >= pt.params.MaxFreq {
		return nil, fmt.Errorf("min frequency %.2f must be below max frequency %.2f", pt.params.MinFreq, pt.params.MaxFreq)
	}

	frameLength := pt.frameLengthFor(sampleRate)
	hop := pt.params.HopSize
	if pt.params.Center {
		signal = spectral.CenterPad(signal, frameLength/2)
	}

	numFrames := spectral.FrameCount(len(signal), frameLength, hop, false)
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal shorter than one %d-sample frame", frameLength)
	}

	// integration window is half the frame, leaving the other half for lags
	window := frameLength / 2
	minTau := max(1, int(math.Floor(float64(sampleRate)/pt.params.MaxFreq)))
	maxTau := min(int(math.Ceil(float64(sampleRate)/pt.params.MinFreq)), frameLength-window-1)
	if minTau >= maxTau {
		return nil, fmt.Errorf("frequency range %.2f-%.2f Hz not resolvable at %d Hz with %d-sample frames",
			pt.params.MinFreq, pt.params.MaxFreq, sampleRate, frameLength)
	}

	track := &PitchTrack{
		F0:         make([]float64, numFrames),
		Voiced:     make([]bool, numFrames),
		Confidence: make([]float64, numFrames),
		FrameRate:  float64(sampleRate) / float64(hop),
		SampleRate: sampleRate,
	}

	voiced := 0
	for i := 0; i < numFrames; i++ {
		frame := signal[i*hop : i*hop+frameLength]
		track.F0[i] = math.NaN()

		if frameRMS(frame) < pt.params.SilenceRMS {
			continue
		}

		cmndf := pt.cumulativeMeanNormalizedDifference(frame, window, maxTau+1)
		tau := pt.absoluteThreshold(cmndf, minTau, maxTau)
		if tau < 0 {
			continue
		}

		period := parabolicInterpolation(cmndf, tau)
		f0 := float64(sampleRate) / period
		if f0 < pt.params.MinFreq || f0 > pt.params.MaxFreq {
			continue
		}

		track.F0[i] = f0
		track.Voiced[i] = true
		track.Confidence[i] = 1.0 - cmndf[tau]
		voiced++
	}

	pt.logger.Debug("Pitch tracked", logging.Fields{
		"frames": numFrames,
		"voiced": voiced,
	})

	return track, nil
}

// frameLengthFor returns the configured frame length, grown to the next power
// of two when half a frame cannot hold the period of MinFreq at sampleRate.
// Frames stay centered on the same hop grid, so the frame count and rate do
// not depend on the result.
func (pt *PitchTracker) frameLengthFor(sampleRate int) int {
	longestLag := int(math.Ceil(float64(sampleRate) / pt.params.MinFreq))
	return max(pt.params.FrameLength, spectral.NextPowerOfTwo(2*(longestLag+1)))
}

// cumulativeMeanNormalizedDifference returns d'(tau) for tau in [0, numLags).
// The difference function is expanded as e(0) + e(tau) - 2r(tau) with the
// cross-correlation r computed by FFT.
func (pt *PitchTracker) cumulativeMeanNormalizedDifference(frame []float64, window, numLags int) []float64 {
	n := spectral.NextPowerOfTwo(len(frame) + window)

	padded := make([]float64, n)
	copy(padded, frame)
	kernel := make([]float64, n)
	copy(kernel, frame[:window])

	a := pt.fft.Compute(padded)
	b := pt.fft.Compute(kernel)
	for i := range a {
		a[i] *= complex(real(b[i]), -imag(b[i]))
	}
	corr := pt.fft.ComputeInverseReal(a)

	// running energy of the lagged window
	cumsq := make([]float64, len(frame)+1)
	for i, v := range frame {
		cumsq[i+1] = cumsq[i] + v*v
	}
	energy0 := cumsq[window]

	cmndf := make([]float64, numLags)
	cmndf[0] = 1.0
	runningSum := 0.0
	for tau := 1; tau < numLags; tau++ {
		energyTau := cumsq[tau+window] - cumsq[tau]
		d := math.Max(energy0+energyTau-2*corr[tau], 0)

		runningSum += d
		if runningSum == 0 {
			cmndf[tau] = 1.0
		} else {
			cmndf[tau] = d * float64(tau) / runningSum
		}
	}

	return cmndf
}

// absoluteThreshold returns the first lag in [minTau, maxTau] below the
// threshold, walked down to its local minimum, or -1 when none qualifies
func (pt *PitchTracker) absoluteThreshold(cmndf []float64, minTau, maxTau int) int {
	for tau := minTau; tau <= maxTau; tau++ {
		if cmndf[tau] < pt.params.Threshold {
			for tau+1 <= maxTau && cmndf[tau+1] < cmndf[tau] {
				tau++
			}
			return tau
		}
	}
	return -1
}

// parabolicInterpolation refines a minimum location using its two neighbours
func parabolicInterpolation(data []float64, idx int) float64 {
	if idx <= 0 || idx >= len(data)-1 {
		return float64(idx)
	}

	y1 := data[idx-1]
	y2 := data[idx]
	y3 := data[idx+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2

	if a == 0 {
		return float64(idx)
	}

	shift := -b / (2 * a)
	if math.Abs(shift) > 1 {
		return float64(idx)
	}
	return float64(idx) + shift
}

func frameRMS(frame []float64) float64 {
	sum := 0.0
	for _, v := range frame {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// VoicedValues returns f0 of voiced frames in order
func (p *PitchTrack) VoicedValues() []float64 {
	values := make([]float64, 0, len(p.F0))
	for i, f := range p.F0 {
		if p.Voiced[i] {
			values = append(values, f)
		}
	}
	return values
}

// Mean returns the mean voiced f0, NaN when no frame is voiced
func (p *PitchTrack) Mean() float64 {
	values := p.VoicedValues()
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// ZeroFilled returns the contour with unvoiced frames set to 0
func (p *PitchTrack) ZeroFilled() []float64 {
	out := make([]float64, len(p.F0))
	for i, f := range p.F0 {
		if p.Voiced[i] {
			out[i] = f
		}
	}
	return out
}

// VoicedRatio returns the fraction of voiced frames
func (p *PitchTrack) VoicedRatio() float64 {
	if len(p.F0) == 0 {
		return 0.0
	}
	return float64(len(p.VoicedValues())) / float64(len(p.F0))
}
