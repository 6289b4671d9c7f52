package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/kbukum/graphflow/errors"
)

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), DefaultRetryConfig(), func() (string, error) {
		calls++
		return "success", nil
	})
	if err != nil || result != "success" {
		t.Fatalf("expected success, got %q, %v", result, err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.Upstream("openai", stderrors.New("503"))
		}
		return "success", nil
	})
	if err != nil || result != "success" {
		t.Fatalf("expected success, got %q, %v", result, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_ExceedsMaxAttempts(t *testing.T) {
	calls := 0
	testErr := stderrors.New("persistent error")
	_, err := Retry(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		return "", testErr
	})
	if !stderrors.Is(err, testErr) {
		t.Fatalf("expected testErr, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_NonRetryableAppError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastConfig(5), func() (int, error) {
		calls++
		return 0, errors.InvalidInput("model", "unknown")
	})
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestRetry_RespectsContext(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 10, InitialBackoff: 100 * time.Millisecond, BackoffFactor: 2.0}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := Retry(ctx, cfg, func() (string, error) {
		calls++
		return "", stderrors.New("error")
	})
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if calls >= 10 {
		t.Fatalf("expected fewer than 10 calls, got %d", calls)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	cfg := fastConfig(3)
	var attempts []int
	cfg.OnRetry = func(attempt int, _ error, backoff time.Duration) {
		if backoff <= 0 {
			t.Errorf("expected positive backoff, got %v", backoff)
		}
		attempts = append(attempts, attempt)
	}
	_, _ = Retry(context.Background(), cfg, func() (string, error) {
		return "", stderrors.New("fail")
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("expected callbacks for attempts 1 and 2, got %v", attempts)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain", stderrors.New("x"), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"upstream", errors.Upstream("anthropic", nil), true},
		{"invalid", errors.InvalidInput("x", "y"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DefaultRetryIf(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 2.0}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, time.Second},
	}
	for _, tc := range tests {
		if got := calculateBackoff(tc.attempt, cfg); got != tc.want {
			t.Fatalf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestLimiter(t *testing.T) {
	unlimited := NewLimiter(LimiterConfig{})
	for range 100 {
		if !unlimited.Allow() {
			t.Fatal("expected unlimited limiter to always allow")
		}
	}

	lim := NewLimiter(LimiterConfig{RequestsPerSecond: 1, Burst: 1})
	if !lim.Allow() {
		t.Fatal("expected first request to be allowed")
	}
	if lim.Allow() {
		t.Fatal("expected second immediate request to be limited")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := lim.Wait(ctx); err == nil {
		t.Fatal("expected Wait to fail when the deadline is shorter than the refill")
	}
}
