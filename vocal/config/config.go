package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-vocal/algorithms/stats"
	"github.com/RyanBlaney/sonido-vocal/algorithms/tonal"
)

// Config holds scoring weights, verdict thresholds and the pitch search range.
// The five main weights are meant to sum to 1.0; this is not enforced.
type Config struct {
	PitchWeight     float64 `json:"pitch_weight" yaml:"pitch_weight"`
	TempoWeight     float64 `json:"tempo_weight" yaml:"tempo_weight"`
	RhythmWeight    float64 `json:"rhythm_weight" yaml:"rhythm_weight"`
	TimbreWeight    float64 `json:"timbre_weight" yaml:"timbre_weight"`
	EnergyWeight    float64 `json:"energy_weight" yaml:"energy_weight"`
	VibratoWeight   float64 `json:"vibrato_weight" yaml:"vibrato_weight"`     // 0 keeps vibrato informational
	AlignmentWeight float64 `json:"alignment_weight" yaml:"alignment_weight"` // 0 keeps DTW informational

	ExcellentThreshold float64 `json:"excellent_threshold" yaml:"excellent_threshold"`
	GoodThreshold      float64 `json:"good_threshold" yaml:"good_threshold"`

	MinNote string  `json:"min_note" yaml:"min_note"`
	MaxNote string  `json:"max_note" yaml:"max_note"`
	MinFreq float64 `json:"min_freq" yaml:"min_freq"` // Hz, derived from MinNote unless set
	MaxFreq float64 `json:"max_freq" yaml:"max_freq"` // Hz, derived from MaxNote unless set

	// VibratoThreshold is carried for compatibility and not used in scoring
	VibratoThreshold float64 `json:"vibrato_threshold" yaml:"vibrato_threshold"`

	AlignmentNormalization string `json:"alignment_normalization" yaml:"alignment_normalization"` // "none" or "path_length"
}

// ConfigError reports an invalid configuration value
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

var (
	defaultMu       sync.RWMutex
	defaultOverride *Config
)

// builtin returns the stock configuration with frequencies derived from the notes
func builtin() *Config {
	cfg := &Config{
		PitchWeight:            0.30,
		TempoWeight:            0.20,
		RhythmWeight:           0.20,
		TimbreWeight:           0.15,
		EnergyWeight:           0.15,
		VibratoWeight:          0.0,
		AlignmentWeight:        0.0,
		ExcellentThreshold:     85,
		GoodThreshold:          70,
		MinNote:                "C2",
		MaxNote:                "C7",
		VibratoThreshold:       0.5,
		AlignmentNormalization: string(stats.NormalizeNone),
	}
	// the stock notes always parse
	_ = cfg.deriveFrequencies()
	return cfg
}

// Default returns a fresh copy of the process-wide default configuration
func Default() *Config {
	defaultMu.RLock()
	defer defaultMu.RUnlock()

	if defaultOverride != nil {
		cfg := *defaultOverride
		return &cfg
	}
	return builtin()
}

// SetDefault replaces the process-wide default after validating it.
// nil restores the built-in configuration.
func SetDefault(cfg *Config) error {
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return err
		}
		copied := *cfg
		cfg = &copied
	}

	defaultMu.Lock()
	defaultOverride = cfg
	defaultMu.Unlock()
	return nil
}

// Load reads a YAML (or JSON) file and merges it over the defaults.
// Unknown keys are rejected and the result is validated.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// rangeKeys records which pitch range keys a document sets
type rangeKeys struct {
	MinNote *string  `yaml:"min_note"`
	MaxNote *string  `yaml:"max_note"`
	MinFreq *float64 `yaml:"min_freq"`
	MaxFreq *float64 `yaml:"max_freq"`
}

// Parse decodes configuration from r over the defaults and validates it.
// A note set without its frequency re-derives that frequency; bounds the
// document leaves alone keep the default's value.
func Parse(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()

	if len(bytes.TrimSpace(raw)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode config: %w", err)
		}

		var keys rangeKeys
		if err := yaml.Unmarshal(raw, &keys); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if keys.MinNote != nil && keys.MinFreq == nil {
			cfg.MinFreq = 0
		}
		if keys.MaxNote != nil && keys.MaxFreq == nil {
			cfg.MaxFreq = 0
		}
	}

	if err := cfg.deriveFrequencies(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// deriveFrequencies fills unset MinFreq/MaxFreq from the note names
func (c *Config) deriveFrequencies() error {
	if c.MinFreq == 0 {
		hz, err := tonal.NoteToHz(c.MinNote)
		if err != nil {
			return &ConfigError{Field: "min_note", Reason: err.Error()}
		}
		c.MinFreq = hz
	}
	if c.MaxFreq == 0 {
		hz, err := tonal.NoteToHz(c.MaxNote)
		if err != nil {
			return &ConfigError{Field: "max_note", Reason: err.Error()}
		}
		c.MaxFreq = hz
	}
	return nil
}

// Validate checks thresholds, weights, the frequency range and the
// alignment policy
func (c *Config) Validate() error {
	if c.ExcellentThreshold <= c.GoodThreshold {
		return &ConfigError{
			Field:  "excellent_threshold",
			Reason: fmt.Sprintf("must be greater than good_threshold (%.2f <= %.2f)", c.ExcellentThreshold, c.GoodThreshold),
		}
	}

	weights := c.Weights()
	for _, name := range weightFields {
		if w := weights[name]; w < 0 {
			return &ConfigError{Field: name, Reason: fmt.Sprintf("must not be negative, got %.4f", w)}
		}
	}

	if _, err := tonal.NoteToHz(c.MinNote); err != nil {
		return &ConfigError{Field: "min_note", Reason: err.Error()}
	}
	if _, err := tonal.NoteToHz(c.MaxNote); err != nil {
		return &ConfigError{Field: "max_note", Reason: err.Error()}
	}
	if c.MinFreq <= 0 {
		return &ConfigError{Field: "min_freq", Reason: "must be positive"}
	}
	if c.MaxFreq <= 0 {
		return &ConfigError{Field: "max_freq", Reason: "must be positive"}
	}
	if c.MinFreq >= c.MaxFreq {
		return &ConfigError{
			Field:  "min_freq",
			Reason: fmt.Sprintf("must be below max_freq (%.2f >= %.2f)", c.MinFreq, c.MaxFreq),
		}
	}

	if _, err := stats.ParseDTWNormalization(c.AlignmentNormalization); err != nil {
		return &ConfigError{Field: "alignment_normalization", Reason: err.Error()}
	}

	return nil
}

var weightFields = []string{
	"pitch_weight", "tempo_weight", "rhythm_weight", "timbre_weight",
	"energy_weight", "vibrato_weight", "alignment_weight",
}

// Weights returns every scoring weight keyed by its config field name
func (c *Config) Weights() map[string]float64 {
	return map[string]float64{
		"pitch_weight":     c.PitchWeight,
		"tempo_weight":     c.TempoWeight,
		"rhythm_weight":    c.RhythmWeight,
		"timbre_weight":    c.TimbreWeight,
		"energy_weight":    c.EnergyWeight,
		"vibrato_weight":   c.VibratoWeight,
		"alignment_weight": c.AlignmentWeight,
	}
}

// Normalization returns the parsed alignment normalization policy
func (c *Config) Normalization() stats.DTWNormalization {
	n, err := stats.ParseDTWNormalization(c.AlignmentNormalization)
	if err != nil {
		return stats.NormalizeNone
	}
	return n
}
