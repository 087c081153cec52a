package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/job"
)

var (
	mergeBaseline string
	mergeOut      string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <tagged template> <answered working copy>",
	Short: "Merge an answered working copy into its tagged template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := mergeOut
		if out == "" {
			out = job.OutputPaths(args[0]).Final
		}

		stats, err := job.MergeFiles(args[0], args[1], mergeBaseline, out)
		if err != nil {
			return err
		}

		zap.L().Info("merge complete",
			zap.Int("answers", stats.Answers),
			zap.Int("filled", stats.Filled),
			zap.Int("unchanged", stats.Unchanged),
			zap.Int("no_slot", stats.NoSlot),
			zap.String("output", out),
		)
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeBaseline, "baseline", "", "unanswered working copy; unchanged lines are not merged")
	mergeCmd.Flags().StringVar(&mergeOut, "out", "", "output path (default <template>_final_filled.html)")
	rootCmd.AddCommand(mergeCmd)
}
