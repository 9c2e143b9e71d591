package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryEventuallySucceeds(t *testing.T) {
	p := NewRetryPolicy(2, time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	p := NewRetryPolicy(2, time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("still broken")
	})
	if err == nil {
		t.Fatalf("expected failure")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryNeverRetriesRateLimits(t *testing.T) {
	p := NewRetryPolicy(5, time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return RateLimitError{Provider: "evaluator"}
	})
	if !IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("rate limit retried: %d calls", calls)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewRetryPolicy(5, time.Hour)
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancel, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancel, got %d", calls)
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	if !cb.Allow() {
		t.Fatalf("fresh breaker must allow")
	}

	cb.OnError(errors.New("not a rate limit"))
	cb.OnError(errors.New("not a rate limit"))
	if !cb.Allow() {
		t.Fatalf("plain errors must not open the breaker")
	}

	cb.OnError(RateLimitError{Provider: "x"})
	cb.OnError(RateLimitError{Provider: "x"})
	if cb.Allow() {
		t.Fatalf("breaker must open after threshold rate limits")
	}

	time.Sleep(60 * time.Millisecond)
	if !cb.Allow() {
		t.Fatalf("breaker must close after cooldown")
	}

	cb.OnError(RateLimitError{Provider: "x"})
	cb.OnSuccess()
	cb.OnError(RateLimitError{Provider: "x"})
	if !cb.Allow() {
		t.Fatalf("success must reset the failure count")
	}
}
