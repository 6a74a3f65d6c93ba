package vocal

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
	"github.com/RyanBlaney/sonido-vocal/algorithms/tonal"
)

// FeatureSet is the compact descriptor of one analyzed waveform. It is
// built once by the Extractor and never written afterwards.
type FeatureSet struct {
	PitchMean    float64   `json:"pitch_mean"`     // Hz over voiced frames, NaN if none
	Pitch        []float64 `json:"pitch_sequence"` // per frame, unvoiced frames 0
	Tempo        float64   `json:"tempo"`          // BPM
	RhythmScore  float64   `json:"rhythm_score"`
	TimbreScore  float64   `json:"timbre_score"`
	VibratoScore float64   `json:"vibrato_score"`
	Energy       float64   `json:"energy"` // mean frame RMS
	MFCCMean     []float64 `json:"mfcc_mean"`

	SampleRate      int     `json:"sample_rate"`
	FrameRate       float64 `json:"frame_rate"` // pitch frames per second
	DurationSeconds float64 `json:"duration_seconds"`
	VoicedRatio     float64 `json:"voiced_ratio"`
}

// featureSetJSON mirrors FeatureSet with pitch_mean as a pointer so an
// undefined (NaN) mean round-trips through null
type featureSetJSON struct {
	PitchMean *float64 `json:"pitch_mean"`
	*featureSetAlias
}

type featureSetAlias FeatureSet

// MarshalJSON writes a NaN pitch_mean as null
func (f FeatureSet) MarshalJSON() ([]byte, error) {
	out := featureSetJSON{featureSetAlias: (*featureSetAlias)(&f)}
	if !math.IsNaN(f.PitchMean) && !math.IsInf(f.PitchMean, 0) {
		pm := f.PitchMean
		out.PitchMean = &pm
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null or missing pitch_mean as NaN
func (f *FeatureSet) UnmarshalJSON(data []byte) error {
	in := featureSetJSON{featureSetAlias: (*featureSetAlias)(f)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.PitchMean == nil {
		f.PitchMean = math.NaN()
	} else {
		f.PitchMean = *in.PitchMean
	}
	return nil
}

// HasPitch reports whether at least one frame was voiced
func (f *FeatureSet) HasPitch() bool {
	return !math.IsNaN(f.PitchMean)
}

// PitchSequence returns a copy of the zero-filled pitch contour
func (f *FeatureSet) PitchSequence() []float64 {
	return append([]float64(nil), f.Pitch...)
}

// PitchNote returns the note nearest to the mean pitch, "" when unvoiced
func (f *FeatureSet) PitchNote() string {
	return tonal.HzToNote(f.PitchMean)
}

// Notes returns the note name of every voiced frame
func (f *FeatureSet) Notes() []string {
	return tonal.NotesFromPitch(f.Pitch)
}

// LoadFeatureSet reads a FeatureSet previously written with Save
func LoadFeatureSet(path string) (*FeatureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}

	var f FeatureSet
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse features %s: %w", path, err)
	}
	return &f, nil
}

// Save writes the FeatureSet as indented JSON
func (f *FeatureSet) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write features: %w", err)
	}
	return nil
}

func mean(values []float64) float64 {
	return common.Mean(values)
}
