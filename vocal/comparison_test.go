package vocal

import (
	"math"
	"slices"
	"testing"

	"github.com/RyanBlaney/sonido-vocal/vocal/config"
)

func sampleFeatures() *FeatureSet {
	return &FeatureSet{
		PitchMean:    220,
		Pitch:        []float64{0, 218, 220, 221, 222, 0, 219},
		Tempo:        120,
		RhythmScore:  0.8,
		TimbreScore:  0.45,
		VibratoScore: 0.7,
		Energy:       0.12,
		MFCCMean:     make([]float64, NumMFCC),
		SampleRate:   22050,
		FrameRate:    22050.0 / 512,
	}
}

func TestCompareIdentityIsPerfect(t *testing.T) {
	f := sampleFeatures()
	res := Compare(f, f, nil)

	if math.Abs(res.Score-100) > 1e-9 {
		t.Fatalf("score = %f, want 100", res.Score)
	}
	if res.Verdict != VerdictExcellent {
		t.Fatalf("verdict = %s, want excellent", res.Verdict)
	}
	if res.AlignmentCost != 0 || res.Components.Alignment != 100 || res.Components.Vibrato != 100 {
		t.Fatalf("unexpected informational components %+v", res.Components)
	}
	if len(res.Flags) != 0 {
		t.Fatalf("unexpected flags %v", res.Flags)
	}
}

func TestCompareTempoDifference(t *testing.T) {
	user := sampleFeatures()
	ref := sampleFeatures()
	ref.Tempo = 130

	res := Compare(user, ref, nil)
	if math.Abs(res.Components.Tempo-90) > 1e-9 {
		t.Fatalf("tempo score = %f, want 90", res.Components.Tempo)
	}
	// only the tempo term moved: 100 - 0.2*10
	if math.Abs(res.Score-98) > 1e-9 {
		t.Fatalf("score = %f, want 98", res.Score)
	}
}

func TestCompareIsSymmetric(t *testing.T) {
	a := sampleFeatures()
	b := &FeatureSet{
		PitchMean:    300,
		Pitch:        []float64{290, 300, 310},
		Tempo:        95,
		RhythmScore:  0.3,
		TimbreScore:  0.9,
		VibratoScore: 0.1,
		Energy:       0.4,
	}

	cfg := config.Default()
	cfg.AlignmentNormalization = "path_length"

	ab := Compare(a, b, cfg)
	ba := Compare(b, a, cfg)
	if ab.Components != ba.Components || ab.Score != ba.Score || ab.AlignmentCost != ba.AlignmentCost {
		t.Fatalf("comparison not symmetric: %+v vs %+v", ab, ba)
	}
}

func TestCompareScoreBounds(t *testing.T) {
	far := &FeatureSet{
		PitchMean:   2000,
		Pitch:       []float64{2000, 2000},
		Tempo:       300,
		RhythmScore: -3, // very irregular beats go negative
		TimbreScore: 1,
		Energy:      50,
	}

	cfg := config.Default()
	cfg.VibratoWeight = 1
	cfg.AlignmentWeight = 1

	tests := []struct {
		name      string
		user, ref *FeatureSet
	}{
		{"far apart", sampleFeatures(), far},
		{"identity with extra weights", sampleFeatures(), sampleFeatures()},
		{"nil inputs", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compare(tt.user, tt.ref, cfg)
			if res.Score < 0 || res.Score > 100 || math.IsNaN(res.Score) {
				t.Fatalf("score %f out of bounds", res.Score)
			}
			c := res.Components
			for _, v := range []float64{c.Pitch, c.Tempo, c.Rhythm, c.Timbre, c.Energy, c.Vibrato, c.Alignment} {
				if v < 0 {
					t.Fatalf("negative component in %+v", c)
				}
			}
		})
	}
}

func TestCompareUndefinedPitch(t *testing.T) {
	silent := &FeatureSet{PitchMean: math.NaN(), Pitch: []float64{0, 0, 0}}

	res := Compare(silent, silent, nil)
	if res.Components.Pitch != 100 {
		t.Fatalf("NaN vs NaN pitch score = %f, want 100", res.Components.Pitch)
	}
	if !slices.Contains(res.Flags, FlagPitchUndefinedUser) || !slices.Contains(res.Flags, FlagPitchUndefinedReference) {
		t.Fatalf("expected both undefined flags, got %v", res.Flags)
	}

	res = Compare(silent, sampleFeatures(), nil)
	if res.Components.Pitch != 0 {
		t.Fatalf("NaN vs defined pitch score = %f, want 0", res.Components.Pitch)
	}
	if !slices.Equal(res.Flags, []string{FlagPitchUndefinedUser}) {
		t.Fatalf("unexpected flags %v", res.Flags)
	}
	if math.IsNaN(res.Score) {
		t.Fatalf("score must be defined")
	}
}

func TestVerdictThresholds(t *testing.T) {
	s := NewScorer(nil)

	tests := []struct {
		score float64
		want  Verdict
	}{
		{100, VerdictExcellent},
		{85, VerdictExcellent},
		{84.99, VerdictGood},
		{70, VerdictGood},
		{69.99, VerdictNeedsImprovement},
		{0, VerdictNeedsImprovement},
	}

	for _, tt := range tests {
		if got := s.Verdict(tt.score); got != tt.want {
			t.Fatalf("Verdict(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestCompareCarriesVerdictText(t *testing.T) {
	user := sampleFeatures()
	ref := sampleFeatures()
	ref.PitchMean = 400
	ref.Tempo = 60

	res := Compare(user, ref, nil)
	if res.Verdict != VerdictNeedsImprovement {
		t.Fatalf("verdict = %s (score %f)", res.Verdict, res.Score)
	}
	if res.Headline == "" || res.Details == "" {
		t.Fatalf("missing verdict text")
	}
	if res.Weights.Pitch != 0.30 || res.Weights.Vibrato != 0 || res.Weights.Alignment != 0 {
		t.Fatalf("unexpected weights %+v", res.Weights)
	}
}

func TestAlignmentScore(t *testing.T) {
	if got := AlignmentScore(0); got != 100 {
		t.Fatalf("AlignmentScore(0) = %f", got)
	}
	if got := AlignmentScore(400); math.Abs(got-80) > 1e-9 {
		t.Fatalf("AlignmentScore(400) = %f, want 80", got)
	}
	if got := AlignmentScore(1e6); got != 0 {
		t.Fatalf("AlignmentScore(1e6) = %f, want 0", got)
	}
}
