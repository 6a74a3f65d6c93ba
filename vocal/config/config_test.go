package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.PitchWeight != 0.30 || cfg.TempoWeight != 0.20 || cfg.RhythmWeight != 0.20 ||
		cfg.TimbreWeight != 0.15 || cfg.EnergyWeight != 0.15 {
		t.Fatalf("unexpected default weights: %+v", cfg)
	}
	if cfg.VibratoWeight != 0 || cfg.AlignmentWeight != 0 {
		t.Fatalf("vibrato and alignment should default to informational")
	}
	if cfg.ExcellentThreshold != 85 || cfg.GoodThreshold != 70 {
		t.Fatalf("unexpected thresholds %f/%f", cfg.ExcellentThreshold, cfg.GoodThreshold)
	}
	if math.Abs(cfg.MinFreq-65.406) > 0.01 || math.Abs(cfg.MaxFreq-2093.0) > 0.01 {
		t.Fatalf("unexpected frequency range %f-%f", cfg.MinFreq, cfg.MaxFreq)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefaultReturnsFreshValue(t *testing.T) {
	a := Default()
	a.PitchWeight = 0.9
	if b := Default(); b.PitchWeight != 0.30 {
		t.Fatalf("mutating one default leaked into another: %f", b.PitchWeight)
	}
}

func TestSetDefault(t *testing.T) {
	defer SetDefault(nil)

	custom := Default()
	custom.GoodThreshold = 60
	if err := SetDefault(custom); err != nil {
		t.Fatalf("set default: %v", err)
	}
	custom.GoodThreshold = 10

	if got := Default().GoodThreshold; got != 60 {
		t.Fatalf("expected override 60, got %f", got)
	}

	bad := Default()
	bad.ExcellentThreshold = 50
	if err := SetDefault(bad); err == nil {
		t.Fatalf("invalid override should be rejected")
	}

	SetDefault(nil)
	if got := Default().GoodThreshold; got != 70 {
		t.Fatalf("expected built-in 70 after reset, got %f", got)
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"thresholds inverted", func(c *Config) { c.ExcellentThreshold = 70 }, "excellent_threshold"},
		{"negative weight", func(c *Config) { c.TimbreWeight = -0.1 }, "timbre_weight"},
		{"negative vibrato weight", func(c *Config) { c.VibratoWeight = -1 }, "vibrato_weight"},
		{"bad note", func(c *Config) { c.MinNote = "X9" }, "min_note"},
		{"inverted range", func(c *Config) { c.MinFreq, c.MaxFreq = 500, 100 }, "min_freq"},
		{"zero frequency", func(c *Config) { c.MaxFreq = 0 }, "max_freq"},
		{"unknown normalization", func(c *Config) { c.AlignmentNormalization = "median" }, "alignment_normalization"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Fatalf("expected field %s, got %s", tt.field, cfgErr.Field)
			}
		})
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAMLMergesOverDefaults(t *testing.T) {
	path := writeFile(t, "vocal.yaml", `
pitch_weight: 0.4
good_threshold: 65
min_note: A2
alignment_normalization: path_length
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.PitchWeight != 0.4 || cfg.GoodThreshold != 65 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.TempoWeight != 0.20 || cfg.ExcellentThreshold != 85 {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
	if math.Abs(cfg.MinFreq-110) > 1e-9 {
		t.Fatalf("min_freq should follow min_note A2, got %f", cfg.MinFreq)
	}
	if cfg.Normalization() != "path_length" {
		t.Fatalf("unexpected normalization %q", cfg.Normalization())
	}
}

func TestLoadKeepsOverrideFrequencies(t *testing.T) {
	defer SetDefault(nil)

	custom := Default()
	custom.MinFreq, custom.MaxFreq = 90, 1500
	if err := SetDefault(custom); err != nil {
		t.Fatalf("set default: %v", err)
	}

	cfg, err := Load(writeFile(t, "weights.yaml", "pitch_weight: 0.35\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MinFreq != 90 || cfg.MaxFreq != 1500 {
		t.Fatalf("override range lost: %f-%f", cfg.MinFreq, cfg.MaxFreq)
	}

	cfg, err = Load(writeFile(t, "notes.yaml", "min_note: A2\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if math.Abs(cfg.MinFreq-110) > 1e-9 || cfg.MaxFreq != 1500 {
		t.Fatalf("only min_freq should follow the new note, got %f-%f", cfg.MinFreq, cfg.MaxFreq)
	}

	cfg, err = Load(writeFile(t, "both.yaml", "min_note: A2\nmin_freq: 100\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MinFreq != 100 {
		t.Fatalf("explicit min_freq should win over min_note, got %f", cfg.MinFreq)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "vocal.json", `{"energy_weight": 0.25, "max_freq": 1000}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EnergyWeight != 0.25 || cfg.MaxFreq != 1000 {
		t.Fatalf("json values not applied: %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "vocal.yaml", "pitch_wieght: 0.4\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "pitch_wieght") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeFile(t, "vocal.yaml", "excellent_threshold: 60\n")

	_, err := Load(path)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "excellent_threshold" {
		t.Fatalf("expected excellent_threshold ConfigError, got %v", err)
	}
}

func TestLoadEmptyFileGivesDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yaml", "# nothing here\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PitchWeight != 0.30 || math.Abs(cfg.MinFreq-65.406) > 0.01 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
