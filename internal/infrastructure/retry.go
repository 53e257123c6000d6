package infrastructure

import (
	"context"
	"math/rand"
	"net/http"
	"time"
)

// retryable statuses for upstream API calls
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// runs fn up to maxRetries+1 times with exponential backoff and jitter.
// fn returns (retryable, err); a nil error stops immediately.
func withRetry(ctx context.Context, maxRetries int, backoff time.Duration, fn func() (bool, error)) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		retryable, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == maxRetries {
			break
		}

		delay := backoff << attempt
		delay += time.Duration(rand.Int63n(int64(backoff) / 2))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
