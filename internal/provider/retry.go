package provider

import (
	"context"
	"math"
	"strings"
	"time"
)

// withRetry runs fn up to maxRetries+1 times with exponential backoff
// (baseSec * 2^attempt), the same shape as
// internal/agent/providers/anthropic.go's Complete retry loop. It stops
// early if fn's error is not retryable.
func withRetry(ctx context.Context, maxRetries int, baseSec float64, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt == maxRetries {
			return err
		}
		backoff := time.Duration(baseSec*math.Pow(2, float64(attempt))) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate_limit"), strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return true
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return true
	default:
		return false
	}
}
