package vocal

import (
	"math"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/RyanBlaney/sonido-vocal/vocal/config"
)

// Verdict classifies a final score
type Verdict string

const (
	VerdictExcellent        Verdict = "excellent"
	VerdictGood             Verdict = "good"
	VerdictNeedsImprovement Verdict = "needs_improvement"
)

// Flags marking degenerate inputs in a ComparisonResult
const (
	FlagPitchUndefinedUser      = "pitch_undefined_user"
	FlagPitchUndefinedReference = "pitch_undefined_reference"
)

// Per-dimension penalty per unit of difference
const (
	pitchPenalty  = 0.5   // points per Hz
	tempoPenalty  = 1.0   // points per BPM
	energyPenalty = 100.0 // points per unit RMS
)

var verdictText = map[Verdict]struct{ headline, details string }{
	VerdictExcellent: {
		"Excellent performance!",
		"Very strong command of pitch, rhythm and expression.",
	},
	VerdictGood: {
		"Good performance",
		"Solid overall delivery with a few points to improve.",
	},
	VerdictNeedsImprovement: {
		"Performance needs improvement",
		"Adjustments are needed in pitch, rhythm or expression.",
	},
}

// Components holds one value per scored dimension. It is used both for the
// per-dimension scores and for the weights applied to them.
type Components struct {
	Pitch     float64 `json:"pitch_score"`
	Tempo     float64 `json:"tempo_score"`
	Rhythm    float64 `json:"rhythm_score"`
	Timbre    float64 `json:"timbre_score"`
	Energy    float64 `json:"energy_score"`
	Vibrato   float64 `json:"vibrato_score"`
	Alignment float64 `json:"alignment_score"`
}

// dot returns the weighted sum of c
func (c Components) dot(w Components) float64 {
	return c.Pitch*w.Pitch +
		c.Tempo*w.Tempo +
		c.Rhythm*w.Rhythm +
		c.Timbre*w.Timbre +
		c.Energy*w.Energy +
		c.Vibrato*w.Vibrato +
		c.Alignment*w.Alignment
}

// ComparisonResult is the outcome of scoring a user take against a reference
type ComparisonResult struct {
	Score         float64    `json:"score"` // [0, 100]
	Verdict       Verdict    `json:"verdict"`
	Headline      string     `json:"headline"`
	Details       string     `json:"details"`
	Components    Components `json:"components"`
	AlignmentCost float64    `json:"alignment_cost"`
	Weights       Components `json:"weights"`
	Flags         []string   `json:"flags,omitempty"`
}

// Scorer compares FeatureSets under a fixed configuration
type Scorer struct {
	cfg     *config.Config
	aligner *PitchAligner
	logger  logging.Logger
}

// NewScorer creates a scorer. A nil cfg uses config.Default().
func NewScorer(cfg *config.Config) *Scorer {
	if cfg == nil {
		cfg = config.Default()
	}

	return &Scorer{
		cfg:     cfg,
		aligner: NewPitchAligner(cfg.Normalization()),
		logger: logging.WithFields(logging.Fields{
			"component": "vocal_scorer",
		}),
	}
}

// Compare scores user against ref using cfg. It never fails; degenerate
// inputs yield defined scores and flags.
func Compare(user, ref *FeatureSet, cfg *config.Config) *ComparisonResult {
	return NewScorer(cfg).Compare(user, ref)
}

// Compare scores user against ref
func (s *Scorer) Compare(user, ref *FeatureSet) *ComparisonResult {
	user = orEmpty(user)
	ref = orEmpty(ref)

	var flags []string
	pitch := pitchScore(user.PitchMean, ref.PitchMean)
	if !user.HasPitch() {
		flags = append(flags, FlagPitchUndefinedUser)
	}
	if !ref.HasPitch() {
		flags = append(flags, FlagPitchUndefinedReference)
	}

	cost := s.aligner.Cost(user.Pitch, ref.Pitch)

	components := Components{
		Pitch:     pitch,
		Tempo:     common.FloorZero(100 - math.Abs(user.Tempo-ref.Tempo)*tempoPenalty),
		Rhythm:    common.FloorZero(100 * (1 - math.Abs(user.RhythmScore-ref.RhythmScore))),
		Timbre:    common.FloorZero(100 * (1 - math.Abs(user.TimbreScore-ref.TimbreScore))),
		Energy:    common.FloorZero(100 - math.Abs(user.Energy-ref.Energy)*energyPenalty),
		Vibrato:   common.FloorZero(100 * (1 - math.Abs(user.VibratoScore-ref.VibratoScore))),
		Alignment: common.FloorZero(AlignmentScore(cost)),
	}

	weights := Components{
		Pitch:     s.cfg.PitchWeight,
		Tempo:     s.cfg.TempoWeight,
		Rhythm:    s.cfg.RhythmWeight,
		Timbre:    s.cfg.TimbreWeight,
		Energy:    s.cfg.EnergyWeight,
		Vibrato:   s.cfg.VibratoWeight,
		Alignment: s.cfg.AlignmentWeight,
	}

	score := common.Clamp(common.FloorZero(components.dot(weights)), 0, 100)
	verdict := s.Verdict(score)
	text := verdictText[verdict]

	s.logger.Debug("Comparison completed", logging.Fields{
		"score":          score,
		"verdict":        string(verdict),
		"alignment_cost": cost,
		"flags":          flags,
	})

	return &ComparisonResult{
		Score:         score,
		Verdict:       verdict,
		Headline:      text.headline,
		Details:       text.details,
		Components:    components,
		AlignmentCost: cost,
		Weights:       weights,
		Flags:         flags,
	}
}

// Verdict classifies score against the configured thresholds
func (s *Scorer) Verdict(score float64) Verdict {
	switch {
	case score >= s.cfg.ExcellentThreshold:
		return VerdictExcellent
	case score >= s.cfg.GoodThreshold:
		return VerdictGood
	default:
		return VerdictNeedsImprovement
	}
}

// pitchScore treats two undefined means as identical and a single
// undefined mean as a total mismatch
func pitchScore(user, ref float64) float64 {
	userNaN, refNaN := math.IsNaN(user), math.IsNaN(ref)
	switch {
	case userNaN && refNaN:
		return 100
	case userNaN || refNaN:
		return 0
	}
	return common.FloorZero(100 - math.Abs(user-ref)*pitchPenalty)
}

func orEmpty(f *FeatureSet) *FeatureSet {
	if f != nil {
		return f
	}
	return &FeatureSet{PitchMean: math.NaN()}
}
