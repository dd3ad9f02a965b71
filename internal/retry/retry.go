// Package retry runs an operation with bounded exponential backoff.
// It is used to wait for backing stores during startup.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

const (
	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2 // ±20%

	// MaxDelay caps a single backoff step.
	MaxDelay = 30 * time.Second
)

// Policy controls how often and how patiently an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// BaseDelay is the wait after the first failure; it doubles after each.
	BaseDelay time.Duration
	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NextDelay calculates the delay after the given failed attempt with
// exponential backoff + jitter. attempt is 0-indexed.
func NextDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}

	delay := base << attempt
	if delay <= 0 || delay > MaxDelay {
		delay = MaxDelay
	}

	// Add ±20% jitter to prevent thundering herd
	jitterRange := float64(delay) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(delay) + jitter)
}

// IsExhausted returns true if max attempts have been reached.
func IsExhausted(attemptCount, maxAttempts int) bool {
	return attemptCount >= maxAttempts
}

// Do calls fn until it succeeds, the attempts are exhausted, or ctx is done.
// The last error is returned wrapped with the attempt count.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		if IsExhausted(attempt+1, maxAttempts) {
			return fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		delay := NextDelay(p.BaseDelay, attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
