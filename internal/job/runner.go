// Package job runs the fill pipeline over input files, one file at a time.
package job

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/answer"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/config"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/dispatch"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/document"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/patch"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/reducer"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/slots"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/tagger"
)

// Steps selects how much of the pipeline runs.
type Steps string

const (
	// StepTag only writes the tagged original.
	StepTag Steps = "1"
	// StepReduce only reduces an already tagged input.
	StepReduce Steps = "2"
	// StepBoth runs the complete fill pipeline.
	StepBoth Steps = "both"
)

// ParseSteps validates a --steps value.
func ParseSteps(s string) (Steps, error) {
	switch Steps(s) {
	case StepTag, StepReduce, StepBoth:
		return Steps(s), nil
	default:
		return "", eris.Errorf("job: invalid steps %q (want 1, 2 or both)", s)
	}
}

// NeedsAnswering reports whether the steps call the Answering Service.
func (s Steps) NeedsAnswering() bool {
	return s == StepBoth
}

// Result summarises one processed file.
type Result struct {
	File          string        `csv:"file"`
	Steps         string        `csv:"steps"`
	Marked        int           `csv:"marked"`
	Scalars       int           `csv:"scalars"`
	Tables        int           `csv:"tables"`
	Batches       int           `csv:"batches"`
	FailedBatches int           `csv:"failed_batches"`
	Answered      int           `csv:"answered"`
	Patched       int           `csv:"patched"`
	Filled        int           `csv:"filled"`
	Output        string        `csv:"output"`
	DurationMs    int64         `csv:"duration_ms"`
	Error         string        `csv:"error"`
	Duration      time.Duration `csv:"-"`
}

// Runner processes files with one configuration and one dispatcher.
type Runner struct {
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	runID      string
}

// NewRunner creates a Runner. dispatcher may be nil when no file needs
// answering.
func NewRunner(cfg *config.Config, dispatcher *dispatch.Dispatcher) *Runner {
	return &Runner{
		cfg:        cfg,
		dispatcher: dispatcher,
		runID:      uuid.NewString(),
	}
}

// RunID identifies this runner's log lines.
func (r *Runner) RunID() string {
	return r.runID
}

// Run processes files sequentially. A failing file is logged and recorded
// in its Result; the remaining files still run unless ctx is cancelled.
func (r *Runner) Run(ctx context.Context, files []string, steps Steps) []Result {
	log := zap.L().With(zap.String("run_id", r.runID))
	log.Info("job: starting", zap.Int("files", len(files)), zap.String("steps", string(steps)))

	results := make([]Result, 0, len(files))
	var failed int
	for _, f := range files {
		if ctx.Err() != nil {
			log.Warn("job: cancelled, skipping remaining files", zap.Int("remaining", len(files)-len(results)))
			break
		}
		res, err := r.ProcessFile(ctx, f, steps)
		if err != nil {
			failed++
			log.Error("job: file failed", zap.String("file", f), zap.Error(err))
		}
		results = append(results, res)
	}

	log.Info("job: complete",
		zap.Int("processed", len(results)),
		zap.Int("succeeded", len(results)-failed),
		zap.Int("failed", failed),
	)
	return results
}

// ProcessFile runs the selected steps on one input file.
func (r *Runner) ProcessFile(ctx context.Context, path string, steps Steps) (Result, error) {
	start := time.Now()
	res := Result{File: path, Steps: string(steps)}

	err := r.process(ctx, path, steps, &res)
	if err != nil {
		res.Error = err.Error()
	}
	res.Duration = time.Since(start)
	res.DurationMs = res.Duration.Milliseconds()
	return res, err
}

func (r *Runner) process(ctx context.Context, path string, steps Steps, res *Result) error {
	log := zap.L().With(zap.String("run_id", r.runID), zap.String("file", path))
	out := OutputPaths(path)

	doc, err := document.ReadFile(path)
	if err != nil {
		return err
	}
	log.Info("job: read input", zap.String("encoding", doc.Encoding), zap.Int("lines", doc.Len()))

	if steps == StepReduce {
		if len(doc.Markers()) == 0 {
			log.Warn("job: input carries no position markers")
		}
		reduced := reducer.Reduce(doc, reducer.Options{})
		if err := document.WriteFile(out.Simplified, reduced); err != nil {
			return err
		}
		res.Marked = len(reduced.Markers())
		res.Output = out.Simplified
		return nil
	}

	tagged, stats := tagger.Tag(doc, tagger.Options{Selectors: r.cfg.Process.Selectors})
	res.Marked = stats.Marked()
	if err := document.WriteFile(out.Tagged, tagged); err != nil {
		return err
	}
	log.Info("job: tagged", zap.Int("markers", stats.Marked()), zap.String("output", out.Tagged))
	res.Output = out.Tagged
	if steps == StepTag {
		return nil
	}

	reduced := reducer.Reduce(tagged, reducer.Options{})
	if err := document.WriteFile(out.Simplified, reduced); err != nil {
		return err
	}
	res.Output = out.Simplified

	if r.dispatcher == nil {
		return eris.New("job: no answering service configured")
	}
	if d := r.cfg.Batch.JobTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	found := slots.Extract(reduced)
	res.Scalars = len(found.Scalars)
	res.Tables = len(found.Tables)
	if found.Empty() {
		log.Warn("job: nothing to fill")
	}

	batches := r.batches(found)
	res.Batches = len(batches)
	log.Info("job: dispatching",
		zap.Int("scalars", res.Scalars),
		zap.Int("tables", res.Tables),
		zap.Int("batches", len(batches)),
	)
	responses := r.dispatcher.Run(ctx, batches)

	working := reduced.Clone()
	if err := r.applyAnswers(working, responses, out.Working, res); err != nil {
		return err
	}
	if err := document.WriteFile(out.Working, working); err != nil {
		return err
	}

	final := tagged.Clone()
	ms := patch.Merge(final, working, reduced)
	res.Filled = ms.Filled
	if err := document.WriteFile(out.Final, final); err != nil {
		return err
	}
	res.Output = out.Final

	log.Info("job: filled",
		zap.Int("answered", res.Answered),
		zap.Int("patched", res.Patched),
		zap.Int("filled", ms.Filled),
		zap.Int("failed_batches", res.FailedBatches),
		zap.String("output", out.Final),
	)
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "job: answering interrupted")
	}
	return nil
}

func (r *Runner) batches(found slots.Slots) []dispatch.Batch {
	batches := dispatch.ScalarBatches(found.Scalars, r.cfg.Batch.QuestionNumber)
	for _, t := range found.Tables {
		batches = append(batches, dispatch.TableChunks(t, r.cfg.Batch.TableTokenBudget, r.cfg.Batch.BytesPerToken)...)
	}
	return batches
}

// applyAnswers patches every answer into working, in batch order. With
// checkpointing on, the working copy is flushed after each patch so an
// interrupted run keeps what it already applied.
func (r *Runner) applyAnswers(working *document.Document, responses []dispatch.Response, checkpointPath string, res *Result) error {
	mode := patch.ParseSearchMode(r.cfg.Process.MarkerSearch)

	for _, resp := range responses {
		if resp.Err != nil {
			res.FailedBatches++
			continue
		}
		for _, anchor := range resp.Batch.Anchors() {
			ans, ok := resp.Answers[anchor]
			if !ok {
				continue
			}
			res.Answered++

			applied := false
			if resp.Batch.Kind == answer.KindTable {
				applied = patch.Table(working, anchor, resp.Batch.Span, ans) > 0
			} else {
				applied = patch.Scalar(working, anchor, ans, mode)
			}
			if !applied {
				zap.L().Debug("job: answer not applied", zap.Int("anchor", anchor), zap.Int("batch", resp.Batch.ID))
				continue
			}
			res.Patched++

			if r.cfg.Process.Checkpoint {
				if err := document.WriteFile(checkpointPath, working); err != nil {
					return eris.Wrap(err, "job: checkpoint")
				}
			}
		}
	}
	return nil
}
