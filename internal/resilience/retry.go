package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy is the transport retry policy for calls to the Answering Service.
// It covers a single request; the reduced-prompt fallback sits above it.
type Policy struct {
	// Name labels retry log lines.
	Name string
	// Attempts is the total number of tries including the first.
	Attempts int
	// Backoff is the delay after the first failure. It doubles per failure
	// up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Jitter randomises each delay by up to this fraction either way.
	Jitter float64
}

// DefaultPolicy returns three attempts with a 500ms doubling backoff.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Backoff:    500 * time.Millisecond,
		MaxBackoff: 30 * time.Second,
		Jitter:     0.25,
	}
}

// PolicyFor builds a named policy from config values. Zero values keep the
// defaults.
func PolicyFor(name string, attempts int, backoff time.Duration) Policy {
	p := DefaultPolicy()
	p.Name = name
	if attempts > 0 {
		p.Attempts = attempts
	}
	if backoff > 0 {
		p.Backoff = backoff
	}
	return p
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Backoff <= 0 {
		p.Backoff = def.Backoff
	}
	if p.MaxBackoff < p.Backoff {
		p.MaxBackoff = p.Backoff
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// delay returns the wait after the given failure (0-based).
func (p Policy) delay(failure int) time.Duration {
	d := p.Backoff
	for i := 0; i < failure && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if p.Jitter > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * p.Jitter * float64(d))
	}
	if d < 0 {
		return 0
	}
	return d
}

// Do calls fn until it succeeds, fails with an error Retryable rejects,
// runs out of attempts or ctx ends. The last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var zero T
	var err error
	for failure := 0; ; failure++ {
		var val T
		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
		if failure+1 >= p.Attempts || ctx.Err() != nil || !Retryable(err) {
			return zero, err
		}

		wait := p.delay(failure)
		zap.L().Warn("resilience: retrying",
			zap.String("service", p.Name),
			zap.Int("attempt", failure+2),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}
