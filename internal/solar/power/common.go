package power

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// RetryConfig controls the fixed-count retry policy.
type RetryConfig struct {
	MaxAttempts int
	// Delay is waited after every attempt, successful or not. It paces
	// requests rather than backing off.
	Delay time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client *http.Client
	Retry  RetryConfig
}

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrServerError      = errors.New("server error")
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrEmptyPayload     = errors.New("empty parameter payload")
	ErrCircuitOpen      = errors.New("circuit breaker open")

	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid retry configuration")
)

// doRequestWithResilience runs up to MaxAttempts attempts through the circuit
// breaker. An attempt is the request plus decode, so a 200 with an unusable
// body is retried like a transport error. An open breaker ends the loop.
func doRequestWithResilience[T any](
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
	decode func(resp *http.Response) (T, error),
) (T, error) {
	var zero T
	if cfg.Client == nil {
		return zero, errNoHTTPClient
	}
	if cfg.Retry.MaxAttempts <= 0 || cfg.Retry.Delay < 0 {
		return zero, errInvalidConfig
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.Retry.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return zero, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, ErrRateLimited
			}
			if resp.StatusCode >= 500 {
				return nil, fmt.Errorf("%w: %d", ErrServerError, resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
			}

			return decode(resp)
		})

		if waitErr := sleepCtx(ctx, cfg.Retry.Delay); waitErr != nil && err != nil {
			return zero, waitErr
		}

		if err == nil {
			v, ok := result.(T)
			if !ok {
				return zero, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return v, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}

		lastErr = fmt.Errorf("attempt %d/%d: %w", attempt, cfg.Retry.MaxAttempts, err)
	}

	return zero, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
