package temporal

import (
	"fmt"

	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
)

// OnsetStrength computes a spectral-flux onset envelope on a log-power mel
// spectrogram: positive first differences between frames, averaged over bands.
type OnsetStrength struct {
	stft     *spectral.STFT
	melScale *spectral.MelScale
	numMels  int
	lag      int
	topDB    float64
}

// NewOnsetStrength creates an onset envelope calculator for the given framing
func NewOnsetStrength(params spectral.STFTParams) *OnsetStrength {
	return &OnsetStrength{
		stft:     spectral.NewSTFT(params),
		melScale: spectral.NewMelScale(),
		numMels:  128,
		lag:      1,
		topDB:    80,
	}
}

// Compute returns one onset strength value per STFT frame
func (o *OnsetStrength) Compute(signal []float64, sampleRate int) ([]float64, error) {
	stftResult, err := o.stft.Compute(signal, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("onset spectrogram: %w", err)
	}
	return o.FromSpectrogram(stftResult), nil
}

// FromSpectrogram derives the onset envelope from an existing magnitude spectrogram
func (o *OnsetStrength) FromSpectrogram(stftResult *spectral.STFTResult) []float64 {
	numFrames := stftResult.TimeFrames
	envelope := make([]float64, numFrames)
	if numFrames == 0 {
		return envelope
	}

	melDB := spectral.PowerToDB(o.melScale.MelSpectrogram(stftResult, o.numMels), o.topDB)

	// flux[t] belongs to frame t+lag; centered frames are shifted by a
	// further windowSize/(2*hopSize) frames so peaks line up with the audio
	offset := o.lag
	if o.stft.Params().Center {
		offset += stftResult.WindowSize / (2 * stftResult.HopSize)
	}

	for t := o.lag; t < numFrames; t++ {
		idx := t - o.lag + offset
		if idx >= numFrames {
			break
		}

		sum := 0.0
		for b := range melDB[t] {
			if diff := melDB[t][b] - melDB[t-o.lag][b]; diff > 0 {
				sum += diff
			}
		}
		envelope[idx] = sum / float64(len(melDB[t]))
	}

	return envelope
}
