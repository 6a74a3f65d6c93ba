package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-vocal/logging"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag; anything else goes through ffmpeg
const wavFormatPCM = 1

// AudioData represents decoded mono audio
type AudioData struct {
	PCM        []float64      `json:"-"` // samples in [-1, 1]
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"` // channels after downmix (always 1)
	Duration   time.Duration  `json:"duration"`
	Metadata   *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata describes the decoded source
type AudioMetadata struct {
	Source         string `json:"source"`
	Format         string `json:"format"`
	BitDepth       int    `json:"bit_depth"`
	SourceChannels int    `json:"source_channels"`
	SampleRate     int    `json:"sample_rate"`
	Converted      bool   `json:"converted"` // went through ffmpeg
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate"` // ffmpeg conversion rate
	TargetChannels   int           `json:"target_channels" yaml:"target_channels"`
	FFmpegPath       string        `json:"ffmpeg_path" yaml:"ffmpeg_path"`   // Path to ffmpeg binary
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`           // Timeout for one ffmpeg conversion
	TempDir          string        `json:"temp_dir" yaml:"temp_dir"`         // "" uses os.TempDir
	MaxDuration      time.Duration `json:"max_duration" yaml:"max_duration"` // 0 decodes the whole file
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 44100,
		TargetChannels:   1,
		FFmpegPath:       "ffmpeg", // Assume in PATH
		Timeout:          30 * time.Second,
	}
}

// Decoder loads audio files, decoding canonical PCM WAV natively and
// converting anything else once with ffmpeg before decoding again.
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// Config returns the decoder configuration
func (d *Decoder) Config() DecoderConfig {
	return *d.config
}

// DecodeFile decodes an audio file to mono PCM. Native WAV decoding is tried
// first; on failure the file is converted to a temporary WAV and decoded again.
// When both attempts fail the returned error carries both causes.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	data, nativeErr := DecodeWAVFile(filename)
	if nativeErr == nil {
		d.truncate(data)
		logger.Debug("Decoded natively", logging.Fields{
			"sample_rate": data.SampleRate,
			"samples":     len(data.PCM),
		})
		return data, nil
	}

	logger.Debug("Native decode failed, converting with ffmpeg", logging.Fields{
		"reason": nativeErr.Error(),
	})

	tmp, err := os.CreateTemp(d.config.TempDir, "vocal-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := d.ConvertToWAV(ctx, filename, tmpPath); err != nil {
		logger.Error(err, "FFmpeg conversion failed")
		return nil, errors.Join(fmt.Errorf("native decode: %w", nativeErr), err)
	}

	data, err = DecodeWAVFile(tmpPath)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("native decode: %w", nativeErr), fmt.Errorf("decode converted file: %w", err))
	}

	data.Metadata.Source = filename
	data.Metadata.Converted = true
	d.truncate(data)

	logger.Debug("Decoded after conversion", logging.Fields{
		"sample_rate": data.SampleRate,
		"samples":     len(data.PCM),
	})

	return data, nil
}

// truncate keeps at most MaxDuration of audio
func (d *Decoder) truncate(data *AudioData) {
	if d.config.MaxDuration <= 0 {
		return
	}
	limit := int(d.config.MaxDuration.Seconds() * float64(data.SampleRate))
	if limit < len(data.PCM) {
		data.PCM = data.PCM[:limit]
		data.Duration = time.Duration(float64(limit) / float64(data.SampleRate) * float64(time.Second))
	}
}

// ConvertToWAV runs one ffmpeg conversion of src into a 16-bit PCM WAV at
// the configured rate and channel count
func (d *Decoder) ConvertToWAV(ctx context.Context, src, dst string) error {
	args := []string{
		"-v", "error", // Suppress verbose output
		"-y",
		"-i", src,
		"-vn",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
		"-ac", strconv.Itoa(d.config.TargetChannels),
		"-c:a", "pcm_s16le",
		"-f", "wav",
	}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", strconv.FormatFloat(d.config.MaxDuration.Seconds(), 'f', -1, 64))
	}
	args = append(args, dst)

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)

	logging.Debug("Running FFmpeg conversion", logging.Fields{
		"component": "audio_decoder",
		"command":   fmt.Sprintf("%s %s", d.config.FFmpegPath, strings.Join(args, " ")),
	})

	if _, err := cmd.Output(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("ffmpeg conversion failed: %w, stderr: %s", err, strings.TrimSpace(string(exitError.Stderr)))
		}
		return fmt.Errorf("ffmpeg conversion failed: %w", err)
	}

	return nil
}

// DecodeWAVFile decodes a PCM WAV file from disk
func DecodeWAVFile(filename string) (*AudioData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	data, err := DecodeWAV(file)
	if err != nil {
		return nil, err
	}
	data.Metadata.Source = filename
	return data, nil
}

// DecodeWAV decodes integer PCM WAV data, downmixing to mono and scaling
// samples to [-1, 1]
func DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported WAV audio format %d", decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM buffer: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, errors.New("WAV file has no usable format chunk")
	}

	channels := buf.Format.NumChannels
	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	pcm := downmix(buf, channels, bitDepth)
	if len(pcm) == 0 {
		return nil, errors.New("WAV file contains no samples")
	}

	sampleRate := buf.Format.SampleRate
	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   1,
		Duration:   time.Duration(float64(len(pcm)) / float64(sampleRate) * float64(time.Second)),
		Metadata: &AudioMetadata{
			Format:         "wav",
			BitDepth:       bitDepth,
			SourceChannels: channels,
			SampleRate:     sampleRate,
		},
	}, nil
}

// downmix averages interleaved channels and scales by the bit depth.
// 8-bit PCM is unsigned and centered on 128.
func downmix(buf *audio.IntBuffer, channels, bitDepth int) []float64 {
	scale := 1.0
	if bitDepth > 1 {
		scale = math.Exp2(float64(bitDepth - 1))
	}
	bias := 0.0
	if bitDepth == 8 {
		bias = 128
	}
	frames := len(buf.Data) / channels
	pcm := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]) - bias
		}
		pcm[i] = sum / float64(channels) / scale
	}
	return pcm
}

// EncodeWAV writes mono samples in [-1, 1] as 16-bit PCM WAV
func EncodeWAV(w io.WriteSeeker, pcm []float64, sampleRate int) error {
	encoder := wav.NewEncoder(w, sampleRate, 16, 1, wavFormatPCM)

	data := make([]int, len(pcm))
	for i, v := range pcm {
		v = math.Max(-1, math.Min(1, v))
		data[i] = int(math.Round(v * 32767))
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("data writing error: %w", err)
	}
	return encoder.Close()
}

// WriteWAVFile writes mono samples to a new WAV file
func WriteWAVFile(filename string, pcm []float64, sampleRate int) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("output file creation error: %w", err)
	}
	defer file.Close()

	return EncodeWAV(file, pcm, sampleRate)
}
