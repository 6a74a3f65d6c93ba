package temporal

import (
	"fmt"
	"math"
	"sort"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-vocal/logging"
)

// BeatResult holds the output of beat tracking
type BeatResult struct {
	Tempo         float64   `json:"tempo"`       // BPM
	Beats         []float64 `json:"beats"`       // beat times in seconds
	BeatFrames    []int     `json:"beat_frames"` // beat positions in onset frames
	OnsetEnvelope []float64 `json:"-"`
	FrameRate     float64   `json:"frame_rate"` // onset frames per second
}

// BeatTracker places beats with dynamic programming: a global tempo is
// estimated first, then the beat sequence maximizing onset strength with a
// penalty for deviating from the tempo period is recovered by backtracking.
type BeatTracker struct {
	onset  *OnsetStrength
	tempo  *TempoEstimation
	logger logging.Logger

	// Tightness scales the penalty on inter-beat intervals away from the period
	Tightness float64
	// Trim drops weak leading and trailing beats
	Trim bool
}

// NewBeatTracker creates a beat tracker using the given STFT framing
func NewBeatTracker(params spectral.STFTParams) *BeatTracker {
	onset := NewOnsetStrength(params)
	return &BeatTracker{
		onset:     onset,
		tempo:     NewTempoEstimation(),
		Tightness: 100.0,
		Trim:      true,
		logger: logging.WithFields(logging.Fields{
			"component": "beat_tracker",
		}),
	}
}

// Onsets exposes the onset envelope calculator used by the tracker
func (bt *BeatTracker) Onsets() *OnsetStrength {
	return bt.onset
}

// Track estimates tempo and beat times for signal
func (bt *BeatTracker) Track(signal []float64, sampleRate int) (*BeatResult, error) {
	stftResult, err := bt.onset.stft.Compute(signal, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("beat tracking: %w", err)
	}
	return bt.TrackSpectrogram(stftResult), nil
}

// TrackSpectrogram estimates tempo and beat times from an existing magnitude
// spectrogram computed with the tracker's framing
func (bt *BeatTracker) TrackSpectrogram(stftResult *spectral.STFTResult) *BeatResult {
	env := bt.onset.FromSpectrogram(stftResult)

	frameRate := float64(stftResult.SampleRate) / float64(stftResult.HopSize)
	tempo, frames := bt.TrackEnvelope(env, frameRate)

	beats := make([]float64, len(frames))
	for i, f := range frames {
		beats[i] = float64(f) / frameRate
	}

	bt.logger.Debug("Beats tracked", logging.Fields{
		"tempo": tempo,
		"beats": len(beats),
	})

	return &BeatResult{
		Tempo:         tempo,
		Beats:         beats,
		BeatFrames:    frames,
		OnsetEnvelope: env,
		FrameRate:     frameRate,
	}
}

// TrackEnvelope runs tempo estimation and beat placement on a precomputed
// onset envelope. A silent envelope gives tempo 0 and no beats.
func (bt *BeatTracker) TrackEnvelope(onsetEnv []float64, frameRate float64) (float64, []int) {
	if len(onsetEnv) == 0 || floats.Max(onsetEnv) <= 0 {
		return 0.0, []int{}
	}

	tempo := bt.tempo.EstimateTempo(onsetEnv, frameRate)
	if tempo <= 0 {
		return 0.0, []int{}
	}

	period := math.Round(60.0 * frameRate / tempo)
	if period < 1 {
		period = 1
	}

	std := stat.StdDev(onsetEnv, nil)
	if std == 0 || math.IsNaN(std) {
		return tempo, []int{}
	}
	normalized := make([]float64, len(onsetEnv))
	floats.ScaleTo(normalized, 1/std, onsetEnv)

	local := localScore(normalized, int(period))
	backlink, cumscore := bt.dynamicProgram(local, period)

	beats := backtrack(backlink, lastBeat(cumscore))
	if bt.Trim {
		beats = trimBeats(local, beats)
	}

	return tempo, beats
}

// localScore smooths the onset envelope with a Gaussian matched to the period
func localScore(onsets []float64, period int) []float64 {
	kernel := make([]float64, 2*period+1)
	for k := range kernel {
		d := float64(k-period) * 32.0 / float64(period)
		kernel[k] = math.Exp(-0.5 * d * d)
	}
	return convolveSame(onsets, kernel)
}

func (bt *BeatTracker) dynamicProgram(local []float64, period float64) ([]int, []float64) {
	n := len(local)
	backlink := make([]int, n)
	cumscore := make([]float64, n)

	// predecessors are searched between two periods and half a period back
	searchStart := -int(2 * period)
	searchEnd := -int(math.Round(period / 2))
	if searchEnd > -1 {
		searchEnd = -1
	}

	txwt := make([]float64, searchEnd-searchStart+1)
	for k := range txwt {
		d := float64(searchStart + k)
		l := math.Log(-d / period)
		txwt[k] = -bt.Tightness * l * l
	}

	maxLocal := floats.Max(local)
	firstBeat := true

	for i, score := range local {
		best := math.Inf(-1)
		bestJ := -1
		for k, w := range txwt {
			j := i + searchStart + k
			if j < 0 {
				continue
			}
			if c := cumscore[j] + w; c > best {
				best = c
				bestJ = j
			}
		}
		if bestJ < 0 {
			best = 0
		}

		cumscore[i] = score + best

		if firstBeat && score < 0.01*maxLocal {
			backlink[i] = -1
		} else {
			backlink[i] = bestJ
			firstBeat = false
		}
	}

	return backlink, cumscore
}

// lastBeat returns the last local maximum of cumscore above half the median
// local-maximum score
func lastBeat(cumscore []float64) int {
	n := len(cumscore)
	isMax := make([]bool, n)
	var peaks []float64
	for i := 0; i < n; i++ {
		left := cumscore[max(i-1, 0)]
		right := cumscore[min(i+1, n-1)]
		if cumscore[i] > left && cumscore[i] >= right {
			isMax[i] = true
			peaks = append(peaks, cumscore[i])
		}
	}

	if len(peaks) == 0 {
		return floats.MaxIdx(cumscore)
	}

	threshold := 0.5 * median(peaks)
	for i := n - 1; i >= 0; i-- {
		if isMax[i] && cumscore[i] > threshold {
			return i
		}
	}
	return floats.MaxIdx(cumscore)
}

func backtrack(backlink []int, tail int) []int {
	beats := []int{tail}
	for backlink[beats[len(beats)-1]] >= 0 {
		beats = append(beats, backlink[beats[len(beats)-1]])
	}

	for i, j := 0, len(beats)-1; i < j; i, j = i+1, j-1 {
		beats[i], beats[j] = beats[j], beats[i]
	}
	return beats
}

// trimBeats removes leading and trailing beats whose smoothed local score
// falls below half the RMS of all beat scores
func trimBeats(local []float64, beats []int) []int {
	if len(beats) == 0 {
		return beats
	}

	scores := make([]float64, len(beats))
	for i, b := range beats {
		scores[i] = local[b]
	}
	smooth := convolveSame(scores, window.Hann(5))

	threshold := 0.5 * math.Sqrt(floats.Dot(smooth, smooth)/float64(len(smooth)))

	first, last := -1, -1
	for i, s := range smooth {
		if s > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return []int{}
	}
	return beats[first:last]
}

// convolveSame returns the centered part of the full convolution, len(x) long
func convolveSame(x, kernel []float64) []float64 {
	half := len(kernel) / 2
	out := make([]float64, len(x))
	for i := range x {
		sum := 0.0
		for k, w := range kernel {
			j := i + half - k
			if j >= 0 && j < len(x) {
				sum += x[j] * w
			}
		}
		out[i] = sum
	}
	return out
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return 0.5 * (sorted[n/2-1] + sorted[n/2])
}
