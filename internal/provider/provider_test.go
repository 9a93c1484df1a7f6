package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetry_SucceedsAfterRetryableFailures(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, 0.001, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("429 too many requests")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_StopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, 0.001, func() error {
		attempts++
		return errors.New("invalid api key")
	})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if attempts != 1 {
		t.Errorf("non-retryable error should stop after first attempt, got %d", attempts)
	}
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 2, 0.001, func() error {
		attempts++
		return errors.New("503 service unavailable")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("expected maxRetries+1=3 attempts, got %d", attempts)
	}
}

func TestWithRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := withRetry(ctx, 10, 1, func() error {
		attempts++
		return errors.New("rate_limit exceeded")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"rate_limit_error: slow down", true},
		{"HTTP 429", true},
		{"500 internal server error", true},
		{"connection reset by peer", true},
		{"deadline exceeded", true},
		{"invalid_request_error: bad api key", false},
		{"unauthorized", false},
	}
	for _, c := range cases {
		if got := isRetryable(errors.New(c.msg)); got != c.want {
			t.Errorf("isRetryable(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.MaxTokens != 4096 {
		t.Errorf("expected default MaxTokens 4096, got %d", cfg.MaxTokens)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected default MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.RetryBaseSec != 1 {
		t.Errorf("expected default RetryBaseSec 1, got %v", cfg.RetryBaseSec)
	}
}
