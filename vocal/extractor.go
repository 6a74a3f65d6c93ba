package vocal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/RyanBlaney/sonido-vocal/transcode"
	"github.com/RyanBlaney/sonido-vocal/vocal/analyzers"
	"github.com/RyanBlaney/sonido-vocal/vocal/config"
)

// NumMFCC is the number of cepstral coefficients kept in a FeatureSet
const NumMFCC = 13

// Extractor turns a mono waveform into a FeatureSet
type Extractor struct {
	cfg        *config.Config
	primitives Primitives
	decoder    *transcode.Decoder
	logger     logging.Logger
}

// sessionPrimitives is implemented by primitives that share intermediate
// results across the calls of one extraction
type sessionPrimitives interface {
	Session() Primitives
}

// NewExtractor creates an extractor over the default DSP primitives.
// A nil cfg uses config.Default().
func NewExtractor(cfg *config.Config) *Extractor {
	if cfg == nil {
		cfg = config.Default()
	}

	return &Extractor{
		cfg:        cfg,
		primitives: NewDSPPrimitives(spectral.DefaultSTFTParams()),
		decoder:    transcode.NewDecoder(nil),
		logger: logging.WithFields(logging.Fields{
			"component": "vocal_extractor",
		}),
	}
}

// WithPrimitives swaps the signal-processing backend
func (e *Extractor) WithPrimitives(p Primitives) *Extractor {
	e.primitives = p
	return e
}

// WithDecoder swaps the file decoder used by ExtractFile
func (e *Extractor) WithDecoder(d *transcode.Decoder) *Extractor {
	e.decoder = d
	return e
}

// Extract computes every feature of samples. It fails with a *DecodeError
// when the waveform is empty, the rate is not positive or a sample is not finite.
func (e *Extractor) Extract(samples []float64, sampleRate int) (*FeatureSet, error) {
	if len(samples) == 0 {
		return nil, &DecodeError{Err: errors.New("empty waveform")}
	}
	if sampleRate <= 0 {
		return nil, &DecodeError{Err: fmt.Errorf("invalid sample rate %d", sampleRate)}
	}
	if idx, ok := common.AllFinite(samples); !ok {
		return nil, &DecodeError{Err: fmt.Errorf("non-finite sample at index %d", idx)}
	}

	prims := e.primitives
	if s, ok := prims.(sessionPrimitives); ok {
		prims = s.Session()
	}

	logger := e.logger.WithFields(logging.Fields{
		"function":    "Extract",
		"samples":     len(samples),
		"sample_rate": sampleRate,
	})
	start := time.Now()

	track, err := prims.PitchTrack(samples, sampleRate, e.cfg.MinFreq, e.cfg.MaxFreq)
	if err != nil {
		return nil, fmt.Errorf("pitch track: %w", err)
	}

	tempo, _, err := prims.BeatTrack(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("beat track: %w", err)
	}

	rhythm, err := analyzers.NewRhythmAnalyzer(prims).Analyze(samples, sampleRate, tempo)
	if err != nil {
		return nil, err
	}

	desc, err := prims.SpectralDescriptors(samples, sampleRate)
	if err != nil {
		return nil, err
	}

	mfcc, err := prims.MFCC(samples, sampleRate, NumMFCC)
	if err != nil {
		return nil, err
	}

	features := &FeatureSet{
		PitchMean:       track.Mean(),
		Pitch:           track.ZeroFilled(),
		Tempo:           tempo,
		RhythmScore:     rhythm.Score,
		TimbreScore:     analyzers.NormalizeTimbre(desc.Centroid, desc.Bandwidth, desc.Rolloff),
		VibratoScore:    analyzers.AnalyzeVibrato(track.VoicedValues(), track.FrameRate),
		Energy:          common.FloorZero(mean(prims.RMS(samples))),
		MFCCMean:        mfcc,
		SampleRate:      sampleRate,
		FrameRate:       track.FrameRate,
		DurationSeconds: float64(len(samples)) / float64(sampleRate),
		VoicedRatio:     track.VoicedRatio(),
	}

	logger.Debug("Features extracted", logging.Fields{
		"pitch_mean":    features.PitchMean,
		"tempo":         features.Tempo,
		"voiced_ratio":  features.VoicedRatio,
		"duration_ms":   time.Since(start).Milliseconds(),
		"pitch_frames":  len(features.Pitch),
		"rhythm_score":  features.RhythmScore,
		"vibrato_score": features.VibratoScore,
	})

	return features, nil
}

// ExtractFile decodes path and extracts its features. Decoding tries the
// native WAV reader first and converts through ffmpeg once on failure.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*FeatureSet, error) {
	audioData, err := e.decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, &DecodeError{File: path, Err: err}
	}

	features, err := e.Extract(audioData.PCM, audioData.SampleRate)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) && decodeErr.File == "" {
			decodeErr.File = path
			return nil, decodeErr
		}
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	e.logger.WithContext(ctx).Info("Extracted features", logging.Fields{
		"file":        path,
		"duration_s":  features.DurationSeconds,
		"sample_rate": features.SampleRate,
		"converted":   audioData.Metadata != nil && audioData.Metadata.Converted,
	})

	return features, nil
}

// ExtractPair extracts the user and reference takes concurrently. Each
// extraction owns its own data; the first error wins.
func (e *Extractor) ExtractPair(ctx context.Context, userPath, refPath string) (user, ref *FeatureSet, err error) {
	var (
		wg      sync.WaitGroup
		userErr error
		refErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		user, userErr = e.ExtractFile(logging.ContextWithFields(ctx, logging.Fields{"role": "user"}), userPath)
	}()
	go func() {
		defer wg.Done()
		ref, refErr = e.ExtractFile(logging.ContextWithFields(ctx, logging.Fields{"role": "reference"}), refPath)
	}()
	wg.Wait()

	if userErr != nil {
		return nil, nil, userErr
	}
	if refErr != nil {
		return nil, nil, refErr
	}
	return user, ref, nil
}
