// Package http provides a REST client that transparently retries requests
// rejected by rate limiting or transient failures.
//
// Retries
//   - Triggered only by HTTP 429, 500 and 503 responses.
//   - The budget is RateLimitingOptions.MaxRetries retries after the first attempt.
//   - When the budget runs out the last response is returned as-is, not as an error.
//   - Transport errors are returned immediately unless RetryTransportErrors is set.
//
// Delay
//   - A "Retry-After: <seconds>" header wins over computed backoff.
//   - Without a hint the first retry waits InitialRetryDelay and each following one
//     waits min(BackoffMultiplier * previous, MaxRetryDelay).
//   - The delay is then multiplied by a random factor in [1.0, MaxJitterMultiplier],
//     so a server's hint is only ever extended.
//   - A computed delay of zero stops retrying unless RetryOnZeroDelay is set.
//
// Notes
//   - Request bodies are bytes and are re-sent unchanged on every attempt.
//   - All attempts of one logical request carry the same X-Request-ID.
//   - The wait between attempts honors context cancellation.
package http
