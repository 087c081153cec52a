package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failing(_ context.Context) (string, error) { return "", errors.New("fail") }
func passing(_ context.Context) (string, error) { return "ok", nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("answering", 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = Execute(ctx, b, failing)
	}
	if b.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	_, err := Execute(ctx, b, func(_ context.Context) (string, error) {
		t.Error("must not be called while open")
		return "", nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker("answering", 2, time.Minute)
	ctx := context.Background()

	_, _ = Execute(ctx, b, failing)
	_, _ = Execute(ctx, b, passing)
	_, _ = Execute(ctx, b, failing)
	if b.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	now := time.Now()
	b := NewBreaker("answering", 1, time.Second)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = Execute(ctx, b, failing)
	if b.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(2 * time.Second)
	if b.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	val, err := Execute(ctx, b, passing)
	if err != nil || val != "ok" {
		t.Fatalf("trial call failed: %v", err)
	}
	if b.State() != CircuitClosed {
		t.Errorf("expected closed after trial call, got %s", b.State())
	}
}

func TestBreaker_FailedTrialReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker("answering", 1, time.Second)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = Execute(ctx, b, failing)
	now = now.Add(2 * time.Second)
	_, _ = Execute(ctx, b, failing)

	if b.State() != CircuitOpen {
		t.Errorf("expected open after failed trial call, got %s", b.State())
	}
}

func TestBreaker_DisabledAndNil(t *testing.T) {
	ctx := context.Background()
	b := NewBreaker("answering", 0, 0)
	for i := 0; i < 10; i++ {
		_, _ = Execute(ctx, b, failing)
	}
	if b.State() != CircuitClosed {
		t.Errorf("disabled breaker should stay closed, got %s", b.State())
	}

	val, err := Execute[string](ctx, nil, passing)
	if err != nil || val != "ok" {
		t.Errorf("nil breaker should pass through, got %q %v", val, err)
	}
}

func TestCircuitState_String(t *testing.T) {
	if CircuitHalfOpen.String() != "half-open" || CircuitState(9).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
