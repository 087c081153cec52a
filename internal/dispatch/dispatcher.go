// Package dispatch groups extracted slots into batches and sends them to
// the Answering Service with bounded concurrency.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/answer"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/config"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/llm"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/resilience"
)

// Response is the outcome of one batch. Answers is nil when Err is set.
type Response struct {
	Batch   Batch
	Raw     string
	Answers map[int]string
	// Reduced is true when the reply came from the fallback prompt.
	Reduced bool
	Err     error
}

// Dispatcher sends batches to an Answerer.
type Dispatcher struct {
	answerer      llm.Answerer
	prompts       Prompts
	maxConcurrent int
	limiter       *rate.Limiter
	threshold     int
}

// New creates a Dispatcher from the batch and prompt settings.
func New(answerer llm.Answerer, bc config.BatchConfig, pc config.PromptConfig, structured bool) *Dispatcher {
	d := &Dispatcher{
		answerer:      answerer,
		prompts:       Prompts{Subject: pc.Subject, Structured: structured},
		maxConcurrent: bc.MaxConcurrent,
		threshold:     bc.BreakerThreshold,
	}
	if d.maxConcurrent <= 0 {
		d.maxConcurrent = 10
	}
	if bc.RequestsPerSecond > 0 {
		burst := max(1, int(bc.RequestsPerSecond))
		d.limiter = rate.NewLimiter(rate.Limit(bc.RequestsPerSecond), burst)
	}
	return d
}

// Run sends every batch, at most maxConcurrent at a time, and returns one
// Response per batch in input order. A failed batch never stops the others.
// Each call starts with a closed breaker, so one file's outage does not
// short-circuit the next file.
func (d *Dispatcher) Run(ctx context.Context, batches []Batch) []Response {
	responses := make([]Response, len(batches))
	breaker := resilience.NewBreaker("answering", d.threshold, 30*time.Second)

	g := new(errgroup.Group)
	g.SetLimit(d.maxConcurrent)

	for i, b := range batches {
		if b.ID == 0 {
			b.ID = i + 1
		}
		g.Go(func() error {
			responses[i] = d.dispatch(ctx, breaker, b)
			return nil
		})
	}
	_ = g.Wait()

	return responses
}

func (d *Dispatcher) dispatch(ctx context.Context, breaker *resilience.Breaker, b Batch) Response {
	log := zap.L().With(
		zap.Int("batch", b.ID),
		zap.Stringer("kind", b.Kind),
		zap.Int("items", len(b.Items)),
	)
	resp := Response{Batch: b}

	raw, err := d.ask(ctx, breaker, d.prompts.Full(b))
	if err != nil && ctx.Err() == nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		if errors.Is(err, llm.ErrContextLength) {
			log.Warn("dispatch: prompt too long, retrying with reduced prompt")
		} else {
			log.Warn("dispatch: answering failed, retrying with reduced prompt", zap.Error(err))
		}
		resp.Reduced = true
		raw, err = d.ask(ctx, breaker, d.prompts.Reduced(b))
	}
	if err != nil {
		log.Error("dispatch: batch left unanswered", zap.Error(err))
		resp.Err = eris.Wrapf(err, "dispatch: batch %d", b.ID)
		return resp
	}

	resp.Raw = raw
	resp.Answers = answer.Demux(b.Kind, b.Anchors(), answer.Parse(raw, b.Kind))
	log.Debug("dispatch: batch answered",
		zap.Int("answered", len(resp.Answers)),
		zap.Bool("reduced", resp.Reduced),
	)
	return resp
}

func (d *Dispatcher) ask(ctx context.Context, breaker *resilience.Breaker, prompt string) (string, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "dispatch: rate limit wait")
		}
	}
	return resilience.Execute(ctx, breaker, func(ctx context.Context) (string, error) {
		return d.answerer.Answer(ctx, prompt)
	})
}
