package vocal

import (
	"fmt"

	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-vocal/algorithms/temporal"
	"github.com/RyanBlaney/sonido-vocal/algorithms/tonal"
)

// SpectralSummary holds the mean spectral shape descriptors of a waveform, in Hz
type SpectralSummary struct {
	Centroid  float64 `json:"centroid"`
	Bandwidth float64 `json:"bandwidth"`
	Rolloff   float64 `json:"rolloff"`
}

// Primitives is the signal-processing boundary the extractor consumes.
// Units: Hz for pitch and frequency bounds, BPM for tempo, seconds for beats.
type Primitives interface {
	// PitchTrack returns a per-frame f0 contour bounded to [minFreq, maxFreq]
	PitchTrack(samples []float64, sampleRate int, minFreq, maxFreq float64) (*tonal.PitchTrack, error)
	BeatTrack(samples []float64, sampleRate int) (tempo float64, beats []float64, err error)
	OnsetStrength(samples []float64, sampleRate int) ([]float64, error)
	SpectralDescriptors(samples []float64, sampleRate int) (*SpectralSummary, error)
	// MFCC returns the time-averaged coefficients
	MFCC(samples []float64, sampleRate int, numCoefficients int) ([]float64, error)
	// RMS returns frame-wise root-mean-square energy
	RMS(samples []float64) []float64
}

// DSPPrimitives implements Primitives with the algorithms packages:
// STFT framing shared by every descriptor, YIN pitch tracking and
// dynamic-programming beat tracking.
type DSPPrimitives struct {
	params spectral.STFTParams
	stft   *spectral.STFT
	beats  *temporal.BeatTracker
	energy *temporal.Energy
}

// NewDSPPrimitives creates the default primitives for the given framing
func NewDSPPrimitives(params spectral.STFTParams) *DSPPrimitives {
	stft := spectral.NewSTFT(params)
	params = stft.Params()

	return &DSPPrimitives{
		params: params,
		stft:   stft,
		beats:  temporal.NewBeatTracker(params),
		energy: temporal.NewEnergy(params.WindowSize, params.HopSize),
	}
}

func (p *DSPPrimitives) PitchTrack(samples []float64, sampleRate int, minFreq, maxFreq float64) (*tonal.PitchTrack, error) {
	tracker := tonal.NewPitchTracker(tonal.PitchTrackerParams{
		FrameLength: p.params.WindowSize,
		HopSize:     p.params.HopSize,
		MinFreq:     minFreq,
		MaxFreq:     maxFreq,
		Center:      p.params.Center,
	})
	return tracker.Track(samples, sampleRate)
}

func (p *DSPPrimitives) BeatTrack(samples []float64, sampleRate int) (float64, []float64, error) {
	res, err := p.stft.Compute(samples, sampleRate)
	if err != nil {
		return 0, nil, fmt.Errorf("beat spectrogram: %w", err)
	}
	beats := p.beats.TrackSpectrogram(res)
	return beats.Tempo, beats.Beats, nil
}

func (p *DSPPrimitives) OnsetStrength(samples []float64, sampleRate int) ([]float64, error) {
	return p.beats.Onsets().Compute(samples, sampleRate)
}

func (p *DSPPrimitives) SpectralDescriptors(samples []float64, sampleRate int) (*SpectralSummary, error) {
	res, err := p.stft.Compute(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("spectral descriptors: %w", err)
	}
	return spectralSummary(res), nil
}

func (p *DSPPrimitives) MFCC(samples []float64, sampleRate int, numCoefficients int) ([]float64, error) {
	res, err := p.stft.Compute(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("mfcc spectrogram: %w", err)
	}
	return meanMFCC(res, numCoefficients)
}

func (p *DSPPrimitives) RMS(samples []float64) []float64 {
	return p.energy.ComputeRMS(samples)
}

// Session returns primitives that compute the spectrogram and beat track of
// a waveform once and reuse them for every later call on the same samples.
// A session belongs to one goroutine.
func (p *DSPPrimitives) Session() Primitives {
	return &dspSession{DSPPrimitives: p}
}

func spectralSummary(res *spectral.STFTResult) *SpectralSummary {
	centroids := spectral.NewSpectralCentroid(res.SampleRate).ComputeFrames(res.Magnitude)
	bandwidths := spectral.NewSpectralBandwidth(res.SampleRate).ComputeFrames(res.Magnitude, centroids)
	rolloffs := spectral.NewSpectralRolloff(res.SampleRate).ComputeFrames(res.Magnitude, spectral.DefaultRolloffPercent)

	return &SpectralSummary{
		Centroid:  mean(centroids),
		Bandwidth: mean(bandwidths),
		Rolloff:   mean(rolloffs),
	}
}

func meanMFCC(res *spectral.STFTResult, numCoefficients int) ([]float64, error) {
	m := spectral.NewMFCC(numCoefficients)
	frames, err := m.ComputeFrames(res)
	if err != nil {
		return nil, fmt.Errorf("mfcc: %w", err)
	}
	return m.Mean(frames), nil
}

// dspSession memoizes per-waveform intermediates of DSPPrimitives
type dspSession struct {
	*DSPPrimitives

	samples    []float64
	sampleRate int
	stftResult *spectral.STFTResult
	beatResult *temporal.BeatResult
	computed   int // spectrograms computed
}

// sameWaveform reports whether samples is the slice the cache was built for
func (s *dspSession) sameWaveform(samples []float64, sampleRate int) bool {
	if s.stftResult == nil || sampleRate != s.sampleRate || len(samples) != len(s.samples) {
		return false
	}
	return len(samples) == 0 || &samples[0] == &s.samples[0]
}

func (s *dspSession) spectrogram(samples []float64, sampleRate int) (*spectral.STFTResult, error) {
	if s.sameWaveform(samples, sampleRate) {
		return s.stftResult, nil
	}

	res, err := s.stft.Compute(samples, sampleRate)
	if err != nil {
		return nil, err
	}
	s.samples, s.sampleRate = samples, sampleRate
	s.stftResult, s.beatResult = res, nil
	s.computed++
	return res, nil
}

func (s *dspSession) beatTrack(samples []float64, sampleRate int) (*temporal.BeatResult, error) {
	res, err := s.spectrogram(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("beat spectrogram: %w", err)
	}
	if s.beatResult == nil {
		s.beatResult = s.beats.TrackSpectrogram(res)
	}
	return s.beatResult, nil
}

func (s *dspSession) BeatTrack(samples []float64, sampleRate int) (float64, []float64, error) {
	beats, err := s.beatTrack(samples, sampleRate)
	if err != nil {
		return 0, nil, err
	}
	return beats.Tempo, append([]float64(nil), beats.Beats...), nil
}

func (s *dspSession) OnsetStrength(samples []float64, sampleRate int) ([]float64, error) {
	beats, err := s.beatTrack(samples, sampleRate)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), beats.OnsetEnvelope...), nil
}

func (s *dspSession) SpectralDescriptors(samples []float64, sampleRate int) (*SpectralSummary, error) {
	res, err := s.spectrogram(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("spectral descriptors: %w", err)
	}
	return spectralSummary(res), nil
}

func (s *dspSession) MFCC(samples []float64, sampleRate int, numCoefficients int) ([]float64, error) {
	res, err := s.spectrogram(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("mfcc spectrogram: %w", err)
	}
	return meanMFCC(res, numCoefficients)
}
