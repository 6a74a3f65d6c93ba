package temporal

import (
	"math"
	"sort"
	"testing"

	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
)

const testSampleRate = 22050

// clickTrain places a short decaying 1.5 kHz burst every interval samples
func clickTrain(interval, n int) []float64 {
	out := make([]float64, n)
	for start := 2000; start < n; start += interval {
		for i := 0; i < 256 && start+i < n; i++ {
			decay := math.Exp(-float64(i) / 48)
			out[start+i] = decay * math.Sin(2*math.Pi*1500*float64(i)/testSampleRate)
		}
	}
	return out
}

func TestRMSOfSine(t *testing.T) {
	signal := make([]float64, testSampleRate)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * 440 * float64(i) / testSampleRate)
	}

	e := NewEnergy(2048, 512)
	frames := e.ComputeRMS(signal)
	if want := 1 + len(signal)/512; len(frames) != want {
		t.Fatalf("expected %d frames, got %d", want, len(frames))
	}

	mid := frames[len(frames)/2]
	if math.Abs(mid-1/math.Sqrt2) > 0.01 {
		t.Fatalf("mid-frame RMS = %f, want ~0.707", mid)
	}

	mean := e.MeanRMS(signal)
	if mean <= 0 || mean > mid {
		t.Fatalf("mean RMS %f should be positive and below the steady-state value", mean)
	}
}

func TestRMSOfSilenceIsZero(t *testing.T) {
	e := NewEnergy(2048, 512)
	if got := e.MeanRMS(make([]float64, 4096)); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
	if got := e.MeanRMS(nil); got != 0 {
		t.Fatalf("expected 0 for empty input, got %f", got)
	}
}

func TestOnsetStrengthPeaksAtClicks(t *testing.T) {
	signal := clickTrain(11264, testSampleRate*4)

	env, err := NewOnsetStrength(spectral.DefaultSTFTParams()).Compute(signal, testSampleRate)
	if err != nil {
		t.Fatalf("onset strength: %v", err)
	}
	if want := spectral.FrameCount(len(signal), 2048, 512, true); len(env) != want {
		t.Fatalf("expected %d frames, got %d", want, len(env))
	}

	for i, v := range env {
		if v < 0 {
			t.Fatalf("onset strength must be rectified, frame %d = %f", i, v)
		}
	}

	// first click at sample 2000 lands near frame 4
	peak := 0
	for i := 0; i < 15; i++ {
		if env[i] > env[peak] {
			peak = i
		}
	}
	if peak < 2 || peak > 7 {
		t.Fatalf("first onset peak at frame %d", peak)
	}
}

func TestOnsetStrengthOfSilence(t *testing.T) {
	env, err := NewOnsetStrength(spectral.DefaultSTFTParams()).Compute(make([]float64, 8192), testSampleRate)
	if err != nil {
		t.Fatalf("onset strength: %v", err)
	}
	for i, v := range env {
		if v != 0 {
			t.Fatalf("frame %d = %f, want 0", i, v)
		}
	}
}

func TestTempoEstimationOfPeriodicEnvelope(t *testing.T) {
	frameRate := float64(testSampleRate) / 512
	env := make([]float64, 600)
	for i := 5; i < len(env); i += 22 {
		env[i] = 1
	}

	got := NewTempoEstimation().EstimateTempo(env, frameRate)
	want := 60 * frameRate / 22
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("tempo = %f, want %f", got, want)
	}
}

func TestTempoEstimationOfFlatEnvelope(t *testing.T) {
	if got := NewTempoEstimation().EstimateTempo(make([]float64, 100), 43); got != 0 {
		t.Fatalf("expected 0 BPM, got %f", got)
	}
}

func TestBeatTrackerClickTrain(t *testing.T) {
	const interval = 22 * 512
	signal := clickTrain(interval, testSampleRate*12)

	res, err := NewBeatTracker(spectral.DefaultSTFTParams()).Track(signal, testSampleRate)
	if err != nil {
		t.Fatalf("track: %v", err)
	}

	wantTempo := 60.0 * testSampleRate / interval
	if math.Abs(res.Tempo-wantTempo) > 3 {
		t.Fatalf("tempo = %f, want ~%f", res.Tempo, wantTempo)
	}

	if len(res.Beats) < 10 {
		t.Fatalf("expected at least 10 beats, got %d", len(res.Beats))
	}

	intervals := make([]float64, len(res.Beats)-1)
	for i := range intervals {
		intervals[i] = res.Beats[i+1] - res.Beats[i]
		if intervals[i] <= 0 {
			t.Fatalf("beats must be increasing: %v", res.Beats)
		}
	}
	sort.Float64s(intervals)
	med := intervals[len(intervals)/2]
	if math.Abs(med-float64(interval)/testSampleRate) > 0.05 {
		t.Fatalf("median beat interval %f s", med)
	}
}

func TestBeatTrackerSilence(t *testing.T) {
	res, err := NewBeatTracker(spectral.DefaultSTFTParams()).Track(make([]float64, testSampleRate), testSampleRate)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if res.Tempo != 0 || len(res.Beats) != 0 {
		t.Fatalf("expected no tempo or beats for silence, got %f and %d beats", res.Tempo, len(res.Beats))
	}
}

func TestConvolveSame(t *testing.T) {
	got := convolveSame([]float64{0, 0, 1, 0, 0}, []float64{1, 2, 3})
	want := []float64{0, 1, 2, 3, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("convolveSame = %v, want %v", got, want)
		}
	}
}
