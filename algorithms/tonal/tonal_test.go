package tonal

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
)

func TestNoteToHz(t *testing.T) {
	tests := []struct {
		name string
		want float64
	}{
		{"A4", 440.0},
		{"C2", 65.406},
		{"C7", 2093.005},
		{"c#4", 277.183},
		{"Db4", 277.183},
		{"G♭2", 92.499},
		{"F♯5", 739.989},
		{"A", 27.5},
		{"C-1", 8.176},
	}

	for _, tt := range tests {
		got, err := NoteToHz(tt.name)
		if err != nil {
			t.Fatalf("NoteToHz(%q): %v", tt.name, err)
		}
		if math.Abs(got-tt.want) > 0.01 {
			t.Fatalf("NoteToHz(%q) = %f, want %f", tt.name, got, tt.want)
		}
	}
}

func TestNoteToHzRejectsGarbage(t *testing.T) {
	for _, name := range []string{"", "H2", "C#x", "4A"} {
		if _, err := NoteToHz(name); err == nil {
			t.Fatalf("expected error for %q", name)
		}
	}
}

func TestHzToNote(t *testing.T) {
	tests := []struct {
		freq float64
		want string
	}{
		{440, "A4"},
		{261.63, "C4"},
		{450, "A4"},
		{466.16, "A#4"},
		{65.41, "C2"},
		{0, ""},
		{-3, ""},
		{math.NaN(), ""},
	}

	for _, tt := range tests {
		if got := HzToNote(tt.freq); got != tt.want {
			t.Fatalf("HzToNote(%v) = %q, want %q", tt.freq, got, tt.want)
		}
	}
}

func TestNotesFromPitchSkipsUnvoiced(t *testing.T) {
	got := NotesFromPitch([]float64{440, math.NaN(), 0, 220, 880})
	want := []string{"A4", "A3", "A5"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestPitchTrackerSine(t *testing.T) {
	const sr = 22050
	for _, freq := range []float64{110, 220, 440, 880} {
		track, err := NewPitchTracker(DefaultPitchTrackerParams()).Track(sine(freq, sr, sr), sr)
		if err != nil {
			t.Fatalf("track %v Hz: %v", freq, err)
		}

		if mean := track.Mean(); math.Abs(mean-freq) > freq*0.01 {
			t.Fatalf("mean f0 for %v Hz sine = %f", freq, mean)
		}
		if track.VoicedRatio() < 0.8 {
			t.Fatalf("expected most frames voiced for %v Hz, got ratio %f", freq, track.VoicedRatio())
		}
		if math.Abs(track.FrameRate-float64(sr)/512) > 1e-9 {
			t.Fatalf("unexpected frame rate %f", track.FrameRate)
		}
	}
}

func TestPitchTrackerLowVoiceAtHighSampleRate(t *testing.T) {
	for _, sr := range []int{22050, 48000, 96000, 192000} {
		track, err := NewPitchTracker(DefaultPitchTrackerParams()).Track(sine(80, sr, sr), sr)
		if err != nil {
			t.Fatalf("track at %d Hz: %v", sr, err)
		}
		if mean := track.Mean(); math.Abs(mean-80) > 0.8 {
			t.Fatalf("mean f0 at %d Hz = %f, want ~80", sr, mean)
		}
		if track.VoicedRatio() < 0.8 {
			t.Fatalf("voiced ratio at %d Hz = %f", sr, track.VoicedRatio())
		}
		// frame grid follows the hop, not the grown frame
		if want := spectral.FrameCount(sr, 2048, 512, true); len(track.F0) != want {
			t.Fatalf("frames at %d Hz = %d, want %d", sr, len(track.F0), want)
		}
	}
}

func TestPitchTrackerFrameLengthFor(t *testing.T) {
	pt := NewPitchTracker(DefaultPitchTrackerParams())
	tests := []struct {
		sampleRate int
		want       int
	}{
		{22050, 2048},
		{44100, 2048},
		{96000, 4096},
		{192000, 8192},
	}
	for _, tt := range tests {
		if got := pt.frameLengthFor(tt.sampleRate); got != tt.want {
			t.Fatalf("frameLengthFor(%d) = %d, want %d", tt.sampleRate, got, tt.want)
		}
	}
}

func TestPitchTrackerSilence(t *testing.T) {
	const sr = 22050
	track, err := NewPitchTracker(DefaultPitchTrackerParams()).Track(make([]float64, sr), sr)
	if err != nil {
		t.Fatalf("track: %v", err)
	}

	if !math.IsNaN(track.Mean()) {
		t.Fatalf("expected NaN mean for silence, got %f", track.Mean())
	}
	for i, f := range track.F0 {
		if !math.IsNaN(f) || track.Voiced[i] {
			t.Fatalf("frame %d should be unvoiced", i)
		}
	}
	for _, f := range track.ZeroFilled() {
		if f != 0 {
			t.Fatalf("zero-filled contour should be all zeros")
		}
	}
	if track.VoicedRatio() != 0 {
		t.Fatalf("expected voiced ratio 0")
	}
}

func TestPitchTrackerRejectsInvertedRange(t *testing.T) {
	params := DefaultPitchTrackerParams()
	params.MinFreq, params.MaxFreq = 1000, 500
	if _, err := NewPitchTracker(params).Track(sine(220, 22050, 22050), 22050); err == nil {
		t.Fatalf("expected error for inverted frequency range")
	}
}

func TestParabolicInterpolation(t *testing.T) {
	// symmetric neighbours keep the integer location
	if got := parabolicInterpolation([]float64{1, 0, 1}, 1); got != 1 {
		t.Fatalf("got %f", got)
	}
	// minimum of (x-1.25)^2 sampled at 0,1,2
	got := parabolicInterpolation([]float64{1.5625, 0.0625, 0.5625}, 1)
	if math.Abs(got-1.25) > 1e-12 {
		t.Fatalf("got %f, want 1.25", got)
	}
}
