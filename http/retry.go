package http

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const maxDuration = time.Duration(math.MaxInt64)

// ComputeRetryInfo decides whether the response warrants another attempt.
//
// It returns false for any status other than 429, 500 or 503, when the retry
// budget is spent, or when no positive delay could be computed. Otherwise the
// returned RetryInfo holds the decremented budget and the jittered delay.
// A malformed Retry-After header is ignored in favor of the backoff delay.
func ComputeRetryInfo(remainingRetries int, lastRetryDelay time.Duration, opts RateLimitingOptions, resp *Response) (RetryInfo, bool) {
	d := retryDecider{opts: opts, random: rand.Float64}
	return d.compute(remainingRetries, lastRetryDelay, resp)
}

// retryDecider carries the policy plus the pluggable jitter source and
// the hook used to report unusable Retry-After values.
type retryDecider struct {
	opts      RateLimitingOptions
	random    func() float64
	onBadHint func(value string, err error)
}

func (d retryDecider) compute(remaining int, lastDelay time.Duration, resp *Response) (RetryInfo, bool) {
	if resp == nil || !IsRetryableStatus(resp.StatusCode) {
		return RetryInfo{}, false
	}

	delay, ok := d.retryAfter(resp)
	if !ok {
		delay = d.backoff(lastDelay)
	}
	return d.schedule(remaining, delay)
}

// computeForError schedules a retry after a transport failure. There is no
// response to take a hint from, so only the backoff branch applies.
func (d retryDecider) computeForError(remaining int, lastDelay time.Duration) (RetryInfo, bool) {
	return d.schedule(remaining, d.backoff(lastDelay))
}

// retryAfter returns the server's hint. ok is false when the header is absent or unusable.
func (d retryDecider) retryAfter(resp *Response) (time.Duration, bool) {
	raw := strings.TrimSpace(resp.Header(HeaderRetryAfter))
	if raw == "" {
		return 0, false
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err == nil && seconds < 0 {
		err = fmt.Errorf("negative value %d", seconds)
	}
	if err != nil {
		if d.onBadHint != nil {
			d.onBadHint(raw, err)
		}
		return 0, false
	}

	if seconds > int64(maxDuration/time.Second) {
		return maxDuration, true
	}
	return time.Duration(seconds) * time.Second, true
}

func (d retryDecider) backoff(lastDelay time.Duration) time.Duration {
	if lastDelay <= 0 {
		return d.opts.InitialRetryDelay
	}
	next := float64(lastDelay) * d.opts.BackoffMultiplier
	if next >= float64(d.opts.MaxRetryDelay) {
		return d.opts.MaxRetryDelay
	}
	return time.Duration(next)
}

func (d retryDecider) schedule(remaining int, delay time.Duration) (RetryInfo, bool) {
	if remaining <= 0 {
		return RetryInfo{}, false
	}
	if delay > 0 {
		return RetryInfo{
			RemainingRetries: remaining - 1,
			RetryDelay:       scaleDuration(delay, d.jitterMultiplier()),
		}, true
	}
	if delay == 0 && d.opts.RetryOnZeroDelay {
		return RetryInfo{RemainingRetries: remaining - 1}, true
	}
	return RetryInfo{}, false
}

// jitterMultiplier draws uniformly from [MinJitterMultiplier, MaxJitterMultiplier).
func (d retryDecider) jitterMultiplier() float64 {
	spread := d.opts.MaxJitterMultiplier - MinJitterMultiplier
	if spread <= 0 {
		return MinJitterMultiplier
	}
	random := d.random
	if random == nil {
		random = rand.Float64
	}
	return MinJitterMultiplier + random()*spread
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	scaled := float64(d) * factor
	if scaled >= float64(maxDuration) {
		return maxDuration
	}
	return time.Duration(scaled)
}
