package http

import (
	"math"
	nethttp "net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRandom(v float64) func() float64 {
	return func() float64 { return v }
}

func responseWithRetryAfter(status int, retryAfter string) *Response {
	resp := &Response{StatusCode: status, Headers: make(nethttp.Header)}
	if retryAfter != "" {
		resp.Headers.Set(HeaderRetryAfter, retryAfter)
	}
	return resp
}

func TestComputeRetryInfoNonRetryableStatus(t *testing.T) {
	opts := DefaultRateLimitingOptions()
	for _, status := range []int{200, 201, 204, 301, 400, 401, 403, 404, 409, 418, 501, 502, 504} {
		for _, remaining := range []int{0, 1, 5} {
			for _, last := range []time.Duration{0, time.Second, time.Minute} {
				_, retry := ComputeRetryInfo(remaining, last, opts, responseWithRetryAfter(status, "1"))
				assert.False(t, retry, "status %d remaining %d last %v", status, remaining, last)
			}
		}
	}
}

func TestComputeRetryInfoNilResponse(t *testing.T) {
	_, retry := ComputeRetryInfo(2, 0, DefaultRateLimitingOptions(), nil)
	assert.False(t, retry)
}

func TestComputeRetryInfoRetryableStatuses(t *testing.T) {
	for _, status := range []int{nethttp.StatusTooManyRequests, nethttp.StatusInternalServerError, nethttp.StatusServiceUnavailable} {
		info, retry := ComputeRetryInfo(1, 0, DefaultRateLimitingOptions(), responseWithRetryAfter(status, ""))
		require.True(t, retry, "status %d", status)
		assert.Equal(t, 0, info.RemainingRetries)
	}
}

func TestBudgetDecreasesUntilExhausted(t *testing.T) {
	opts := DefaultRateLimitingOptions()
	opts.MaxRetries = 4
	d := retryDecider{opts: opts, random: fixedRandom(0)}
	resp := responseWithRetryAfter(nethttp.StatusServiceUnavailable, "")

	remaining := opts.MaxRetries
	var last time.Duration
	for i := 0; i < opts.MaxRetries; i++ {
		info, retry := d.compute(remaining, last, resp)
		require.True(t, retry)
		assert.Less(t, info.RemainingRetries, remaining)
		remaining, last = info.RemainingRetries, info.RetryDelay
	}

	assert.Equal(t, 0, remaining)
	_, retry := d.compute(remaining, last, resp)
	assert.False(t, retry)
}

func TestRetryAfterTakesPrecedence(t *testing.T) {
	opts := DefaultRateLimitingOptions()
	resp := responseWithRetryAfter(nethttp.StatusTooManyRequests, "5")

	unjittered := retryDecider{opts: opts, random: fixedRandom(0)}
	info, retry := unjittered.compute(2, 40*time.Second, resp)
	require.True(t, retry)
	assert.Equal(t, 5*time.Second, info.RetryDelay)
	assert.Equal(t, 1, info.RemainingRetries)

	for range 200 {
		info, retry := ComputeRetryInfo(2, 0, opts, resp)
		require.True(t, retry)
		assert.GreaterOrEqual(t, info.RetryDelay, 5*time.Second)
		assert.LessOrEqual(t, info.RetryDelay, 6500*time.Millisecond)
	}
}

func TestRetryAfterIsNotCappedByMaxRetryDelay(t *testing.T) {
	opts := DefaultRateLimitingOptions()
	opts.MaxRetryDelay = time.Second
	d := retryDecider{opts: opts, random: fixedRandom(0)}

	info, retry := d.compute(1, 0, responseWithRetryAfter(nethttp.StatusTooManyRequests, "120"))
	require.True(t, retry)
	assert.Equal(t, 120*time.Second, info.RetryDelay)
}

func TestBackoffGrowth(t *testing.T) {
	opts := RateLimitingOptions{
		MaxRetries:          6,
		MaxRetryDelay:       10 * time.Second,
		BackoffMultiplier:   2,
		InitialRetryDelay:   time.Second,
		MaxJitterMultiplier: 1.0,
	}
	d := retryDecider{opts: opts}
	resp := responseWithRetryAfter(nethttp.StatusInternalServerError, "")

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	remaining := opts.MaxRetries
	var last time.Duration
	for i, expected := range want {
		info, retry := d.compute(remaining, last, resp)
		require.True(t, retry, "retry %d", i)
		assert.Equal(t, expected, info.RetryDelay, "retry %d", i)
		remaining, last = info.RemainingRetries, info.RetryDelay
	}
}

func TestBackoffUsesPreviousJitteredDelay(t *testing.T) {
	opts := DefaultRateLimitingOptions()
	d := retryDecider{opts: opts}

	assert.Equal(t, opts.InitialRetryDelay, d.backoff(0))
	assert.Equal(t, 13*time.Second, d.backoff(6500*time.Millisecond))
	assert.Equal(t, opts.MaxRetryDelay, d.backoff(45*time.Second))
}

func TestJitterBounds(t *testing.T) {
	opts := DefaultRateLimitingOptions()
	resp := responseWithRetryAfter(nethttp.StatusServiceUnavailable, "")

	for _, r := range []float64{0, 0.25, 0.5, 0.999999} {
		d := retryDecider{opts: opts, random: fixedRandom(r)}
		info, retry := d.compute(1, 0, resp)
		require.True(t, retry)
		assert.GreaterOrEqual(t, info.RetryDelay, opts.InitialRetryDelay)
		assert.LessOrEqual(t, float64(info.RetryDelay), float64(opts.InitialRetryDelay)*opts.MaxJitterMultiplier)
	}

	d := retryDecider{opts: opts, random: fixedRandom(0.5)}
	info, _ := d.compute(1, 0, resp)
	assert.InDelta(t, float64(5750*time.Millisecond), float64(info.RetryDelay), float64(time.Microsecond))
}

func TestJitterMultiplierOfOneDisablesJitter(t *testing.T) {
	opts := DefaultRateLimitingOptions()
	opts.MaxJitterMultiplier = 1.0
	d := retryDecider{opts: opts, random: fixedRandom(0.9)}
	assert.InDelta(t, 1.0, d.jitterMultiplier(), 0)
}

func TestMalformedRetryAfterFallsBackToBackoff(t *testing.T) {
	for _, raw := range []string{"soon", "1.5", "Wed, 21 Oct 2015 07:28:00 GMT", "-3"} {
		t.Run(raw, func(t *testing.T) {
			var reported string
			var reportErr error
			d := retryDecider{
				opts:   DefaultRateLimitingOptions(),
				random: fixedRandom(0),
				onBadHint: func(value string, err error) {
					reported, reportErr = value, err
				},
			}

			info, retry := d.compute(2, 0, responseWithRetryAfter(nethttp.StatusTooManyRequests, raw))
			require.True(t, retry)
			assert.Equal(t, d.opts.InitialRetryDelay, info.RetryDelay)
			assert.Equal(t, raw, reported)
			assert.Error(t, reportErr)
		})
	}
}

func TestRetryAfterWhitespaceIsTrimmed(t *testing.T) {
	d := retryDecider{opts: DefaultRateLimitingOptions(), random: fixedRandom(0)}
	info, retry := d.compute(1, 0, responseWithRetryAfter(nethttp.StatusTooManyRequests, " 3 "))
	require.True(t, retry)
	assert.Equal(t, 3*time.Second, info.RetryDelay)
}

func TestHugeRetryAfterIsClamped(t *testing.T) {
	d := retryDecider{opts: DefaultRateLimitingOptions(), random: fixedRandom(0.5)}
	info, retry := d.compute(1, 0, responseWithRetryAfter(nethttp.StatusTooManyRequests, "9223372036854775807"))
	require.True(t, retry)
	assert.Equal(t, time.Duration(math.MaxInt64), info.RetryDelay)
}

func TestZeroDelay(t *testing.T) {
	resp := responseWithRetryAfter(nethttp.StatusTooManyRequests, "0")

	d := retryDecider{opts: DefaultRateLimitingOptions()}
	_, retry := d.compute(2, 0, resp)
	assert.False(t, retry, "zero delay stops retrying by default")

	opts := DefaultRateLimitingOptions()
	opts.RetryOnZeroDelay = true
	d = retryDecider{opts: opts}
	info, retry := d.compute(2, 0, resp)
	require.True(t, retry)
	assert.Equal(t, RetryInfo{RemainingRetries: 1}, info)

	_, retry = d.compute(0, 0, resp)
	assert.False(t, retry, "budget still applies to immediate retries")
}

func TestZeroInitialDelayWithoutHint(t *testing.T) {
	opts := DefaultRateLimitingOptions()
	opts.InitialRetryDelay = 0
	d := retryDecider{opts: opts}

	_, retry := d.compute(2, 0, responseWithRetryAfter(nethttp.StatusServiceUnavailable, ""))
	assert.False(t, retry)
}

func TestComputeForError(t *testing.T) {
	d := retryDecider{opts: DefaultRateLimitingOptions(), random: fixedRandom(0)}

	info, retry := d.computeForError(1, 0)
	require.True(t, retry)
	assert.Equal(t, RetryInfo{RemainingRetries: 0, RetryDelay: 5 * time.Second}, info)

	_, retry = d.computeForError(0, info.RetryDelay)
	assert.False(t, retry)
}

func TestScaleDurationSaturates(t *testing.T) {
	assert.Equal(t, time.Duration(math.MaxInt64), scaleDuration(time.Duration(math.MaxInt64/2), 3))
	assert.Equal(t, 1500*time.Millisecond, scaleDuration(time.Second, 1.5))
}

func TestRetryAfterNegativeReportsError(t *testing.T) {
	var got error
	d := retryDecider{onBadHint: func(_ string, err error) { got = err }}
	_, ok := d.retryAfter(responseWithRetryAfter(nethttp.StatusTooManyRequests, "-1"))
	assert.False(t, ok)
	require.Error(t, got)
	assert.Contains(t, got.Error(), "negative")
}
