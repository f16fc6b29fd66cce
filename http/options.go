package http

import (
	nethttp "net/http"
	"time"
)

const (
	// MinJitterMultiplier is the lower bound of the jitter multiplier.
	// Jitter only ever extends a delay, so a server's Retry-After is never shortened.
	MinJitterMultiplier = 1.0

	// HeaderRetryAfter is the response header carrying the server's retry hint in seconds
	HeaderRetryAfter = "Retry-After"

	// DefaultTimeout is the default per-attempt timeout of HTTPTransport
	DefaultTimeout = 30 * time.Second
)

// retryableStatusCodes lists the statuses that trigger a retry
var retryableStatusCodes = [...]int{
	nethttp.StatusTooManyRequests,
	nethttp.StatusInternalServerError,
	nethttp.StatusServiceUnavailable,
}

// IsRetryableStatus reports whether code is one of 429, 500 or 503.
func IsRetryableStatus(code int) bool {
	for _, c := range retryableStatusCodes {
		if c == code {
			return true
		}
	}
	return false
}

// RateLimitingOptions configures the retry policy of a Client.
// Values are copied into the client at construction and never change afterwards.
type RateLimitingOptions struct {
	// MaxRetries is the number of retries allowed after the initial attempt.
	MaxRetries int
	// MaxRetryDelay caps the backoff delay before jitter is applied.
	MaxRetryDelay time.Duration
	// BackoffMultiplier grows the previous delay when the server sends no hint.
	BackoffMultiplier float64
	// InitialRetryDelay is used for the first retry when the server sends no hint.
	InitialRetryDelay time.Duration
	// MaxJitterMultiplier is the upper bound of the random factor applied to each delay.
	MaxJitterMultiplier float64

	// RetryOnZeroDelay retries immediately when the computed delay is zero
	// (e.g. "Retry-After: 0"). When false such responses are returned as-is.
	RetryOnZeroDelay bool
	// RetryTransportErrors retries transport failures using the backoff delay.
	// When false they are returned to the caller on the first occurrence.
	RetryTransportErrors bool
}

// DefaultRateLimitingOptions returns the options used when none are supplied
func DefaultRateLimitingOptions() RateLimitingOptions {
	return RateLimitingOptions{
		MaxRetries:          2,
		MaxRetryDelay:       60 * time.Second,
		BackoffMultiplier:   2,
		InitialRetryDelay:   5 * time.Second,
		MaxJitterMultiplier: 1.3,
	}
}

// Validate checks the option invariants and returns a validation ClientError
// naming the first offending field.
func (o RateLimitingOptions) Validate() error {
	if o.MaxRetries < 0 {
		return NewValidationError("max retries must not be negative", "MaxRetries")
	}
	if o.MaxRetryDelay <= 0 {
		return NewValidationError("max retry delay must be positive", "MaxRetryDelay")
	}
	if o.MaxJitterMultiplier < MinJitterMultiplier {
		return NewValidationError("max jitter multiplier must be at least 1.0", "MaxJitterMultiplier")
	}
	return nil
}

// RetryInfo is the state carried into the next attempt of a logical request
type RetryInfo struct {
	RemainingRetries int
	RetryDelay       time.Duration
}
