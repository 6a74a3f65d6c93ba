package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-vocal/vocal"
)

func newAnalyzeCommand(v *viper.Viper) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "analyze <audio>",
		Short: "Extract the feature set of one recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			features, err := newExtractor(v, cfg).ExtractFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output != "" {
				return features.Save(output)
			}
			return writeJSON(cmd.OutOrStdout(), features)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the feature set to this file instead of stdout")
	return cmd
}

func newCompareCommand(v *viper.Viper) *cobra.Command {
	var (
		fromFeatures bool
		output       string
	)

	cmd := &cobra.Command{
		Use:   "compare <user> <reference>",
		Short: "Score a user take against a reference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			var user, ref *vocal.FeatureSet
			if fromFeatures {
				if user, err = vocal.LoadFeatureSet(args[0]); err != nil {
					return err
				}
				if ref, err = vocal.LoadFeatureSet(args[1]); err != nil {
					return err
				}
			} else {
				user, ref, err = newExtractor(v, cfg).ExtractPair(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
			}

			result := vocal.Compare(user, ref, cfg)
			if output != "" {
				return writeJSONFile(output, result)
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&fromFeatures, "features", false, "inputs are feature set JSON files written by analyze")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the comparison result to this file instead of stdout")
	return cmd
}

func newNotesCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "notes <audio>",
		Short: "Print the sung notes of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			features, err := newExtractor(v, cfg).ExtractFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !features.HasPitch() {
				fmt.Fprintf(out, "%s: no voiced frames\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "mean pitch: %.1f Hz (%s)\n", features.PitchMean, features.PitchNote())
			fmt.Fprintln(out, strings.Join(collapseRuns(features.Notes()), " "))
			return nil
		},
	}
}

// collapseRuns drops consecutive repeats of the same note
func collapseRuns(notes []string) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		if len(out) == 0 || out[len(out)-1] != n {
			out = append(out, n)
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeJSON(f, v); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
