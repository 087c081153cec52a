package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/dispatch"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/job"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/llm"
)

var (
	runSteps  string
	runReport string
)

var runCmd = &cobra.Command{
	Use:   "run [file or glob]...",
	Short: "Tag, reduce and fill questionnaires",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		steps, patterns, err := runInputs(cmd, args)
		if err != nil {
			return err
		}

		files := job.ResolveFiles(patterns)
		if len(files) == 0 {
			return eris.New("run: no input files")
		}

		if err := cfg.Validate(steps.NeedsAnswering()); err != nil {
			return eris.Wrap(err, "run: invalid config")
		}

		var d *dispatch.Dispatcher
		if steps.NeedsAnswering() {
			answerer, err := llm.New(cfg.Answering)
			if err != nil {
				return err
			}
			d = dispatch.New(answerer, cfg.Batch, cfg.Prompt, cfg.Answering.Structured)
		}

		start := time.Now()
		runner := job.NewRunner(cfg, d)
		results := runner.Run(ctx, files, steps)

		if runReport != "" {
			if err := job.WriteReport(runReport, results); err != nil {
				return err
			}
		}

		var failed, filled int
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
			filled += r.Filled
		}
		zap.L().Info("run complete",
			zap.String("run_id", runner.RunID()),
			zap.Int("files", len(results)),
			zap.Int("failed", failed),
			zap.Int("filled", filled),
			zap.Duration("elapsed", time.Since(start)),
		)

		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "run: interrupted")
		}
		return nil
	},
}

// runInputs picks the steps and input patterns. In config mode the file
// list comes from configuration and arguments are ignored; process.both_steps
// chooses between the full pipeline and tagging only unless --steps is set.
func runInputs(cmd *cobra.Command, args []string) (job.Steps, []string, error) {
	steps, err := job.ParseSteps(runSteps)
	if err != nil {
		return "", nil, err
	}
	if !cfg.Process.ConfigMode {
		return steps, args, nil
	}

	if len(args) > 0 {
		zap.L().Warn("run: config mode ignores arguments", zap.Strings("args", args))
	}
	if !cmd.Flags().Changed("steps") {
		steps = job.StepTag
		if cfg.Process.BothSteps {
			steps = job.StepBoth
		}
	}
	files, err := cfg.ConfiguredFiles()
	if err != nil {
		return "", nil, err
	}
	return steps, files, nil
}

func init() {
	runCmd.Flags().StringVar(&runSteps, "steps", string(job.StepBoth), "steps to run: 1 (tag), 2 (reduce a tagged file) or both")
	runCmd.Flags().StringVar(&runReport, "report", "", "write a per-file CSV report to this path")
	rootCmd.AddCommand(runCmd)
}
