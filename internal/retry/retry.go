// Package retry provides the engine-wide retry policy applied at the
// adapter invocation boundary. Adapters never retry internally; the
// orchestrator wraps every call with one shared Policy so backoff behavior
// stays uniform across sources.
package retry

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"
)

// Policy describes bounded retries with exponential backoff and jitter.
// The zero value performs a single attempt with no waiting.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; each further wait
	// doubles it.
	BaseDelay time.Duration
	// MaxDelay caps the backoff. Zero means no cap.
	MaxDelay time.Duration
	// Jitter widens each wait by a random offset in ±Jitter fraction of
	// the delay, spreading retries from concurrent requests apart.
	Jitter float64
	// Retryable decides whether an error is worth another attempt. Nil
	// means Transient.
	Retryable func(error) bool
}

// Do invokes fn until it succeeds, the attempt budget is spent, the error
// is not retryable, or ctx ends. It returns nil on success and otherwise
// the error from the last attempt.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = Transient
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts-1 || !retryable(err) {
			break
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(p.delay(attempt)):
		}
	}
	return lastErr
}

// delay computes the wait after the given zero-based attempt.
func (p Policy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay * time.Duration(1<<attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	jitter := int64(float64(delay) * p.Jitter)
	if jitter > 0 {
		delay += time.Duration(rand.Int64N(2*jitter) - jitter)
	}

	if delay < 0 {
		return p.BaseDelay
	}
	return delay
}

// Transient reports whether an error looks like a passing fault worth
// retrying: rate limits, connection churn, upstream 5xx noise. Anything
// else, including context cancellation, is treated as final.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

var transientPatterns = []string{
	"rate limit", "too many requests", "timeout", "connection refused",
	"connection reset", "temporary failure", "service unavailable",
	"internal server error", "bad gateway", "gateway timeout", "network",
}
