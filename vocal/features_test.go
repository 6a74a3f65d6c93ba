package vocal

import (
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func TestFeatureSetJSONUndefinedPitch(t *testing.T) {
	f := &FeatureSet{PitchMean: math.NaN(), Pitch: []float64{0, 0}, MFCCMean: []float64{1, 2}}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"pitch_mean":null`) {
		t.Fatalf("expected null pitch_mean in %s", data)
	}
	if !strings.Contains(string(data), `"pitch_sequence":[0,0]`) {
		t.Fatalf("expected pitch_sequence array in %s", data)
	}

	var back FeatureSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsNaN(back.PitchMean) || back.HasPitch() {
		t.Fatalf("expected NaN pitch mean, got %f", back.PitchMean)
	}
	if len(back.MFCCMean) != 2 {
		t.Fatalf("mfcc_mean lost: %v", back.MFCCMean)
	}
}

func TestFeatureSetSaveLoad(t *testing.T) {
	f := sampleFeatures()
	path := filepath.Join(t.TempDir(), "features.json")

	if err := f.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := LoadFeatureSet(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if back.PitchMean != f.PitchMean || back.Tempo != f.Tempo || len(back.Pitch) != len(f.Pitch) {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestFeatureSetAccessors(t *testing.T) {
	f := sampleFeatures()

	seq := f.PitchSequence()
	seq[1] = -1
	if f.Pitch[1] == -1 {
		t.Fatalf("PitchSequence must return a copy")
	}
	if note := f.PitchNote(); note != "A3" {
		t.Fatalf("PitchNote = %q, want A3", note)
	}
	if notes := f.Notes(); len(notes) != 5 {
		t.Fatalf("expected 5 voiced notes, got %v", notes)
	}

	silent := &FeatureSet{PitchMean: math.NaN()}
	if silent.PitchNote() != "" {
		t.Fatalf("unvoiced take should have no note")
	}
}
