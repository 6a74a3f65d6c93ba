package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/RyanBlaney/sonido-vocal/transcode"
	"github.com/RyanBlaney/sonido-vocal/vocal"
	"github.com/RyanBlaney/sonido-vocal/vocal/config"
)

const (
	keyConfig   = "config"
	keyLogLevel = "log-level"
	keyLogJSON  = "log-json"
	keyFFmpeg   = "ffmpeg"
	keyDuration = "duration"
)

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("VOCALSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "vocalscore",
		Short:         "Score a vocal take against a reference performance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(v, cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringP(keyConfig, "c", "", "YAML or JSON scoring configuration")
	flags.String(keyLogLevel, "warn", "log level (debug, info, warn, error)")
	flags.Bool(keyLogJSON, false, "write logs as JSON")
	flags.String(keyFFmpeg, "ffmpeg", "ffmpeg binary used to convert non-WAV input")
	flags.Duration(keyDuration, 0, "analyze at most this much of each recording (0 = all)")
	for _, key := range []string{keyConfig, keyLogLevel, keyLogJSON, keyFFmpeg, keyDuration} {
		_ = v.BindPFlag(key, flags.Lookup(key))
	}

	root.AddCommand(
		newAnalyzeCommand(v),
		newCompareCommand(v),
		newNotesCommand(v),
	)
	return root
}

// setupLogging sends every log level to w so stdout carries only results
func setupLogging(v *viper.Viper, w io.Writer) error {
	level, err := logging.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return err
	}
	logging.SetGlobalLogger(logging.NewZapLoggerWithWriter(w, level, v.GetBool(keyLogJSON)))
	return nil
}

// loadConfig returns the configured file merged over defaults, or the defaults
func loadConfig(v *viper.Viper) (*config.Config, error) {
	if path := v.GetString(keyConfig); path != "" {
		return config.Load(path)
	}
	return config.Default(), nil
}

func newExtractor(v *viper.Viper, cfg *config.Config) *vocal.Extractor {
	decoderCfg := transcode.DefaultDecoderConfig()
	if ffmpeg := v.GetString(keyFFmpeg); ffmpeg != "" {
		decoderCfg.FFmpegPath = ffmpeg
	}
	decoderCfg.MaxDuration = v.GetDuration(keyDuration)
	return vocal.NewExtractor(cfg).WithDecoder(transcode.NewDecoder(decoderCfg))
}
