package http

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/go-ratefetch/observability"
)

// Metric instrument names recorded by MetricsStats
const (
	MetricFetchAttempts   = "ratefetch.fetch.attempts"
	MetricFetchRetries    = "ratefetch.fetch.retries"
	MetricFetchRetryDelay = "ratefetch.fetch.retry_delay"
)

// NoopStats discards everything it is given
type NoopStats struct{}

var _ StatsRecorder = NoopStats{}

// LogFetchAttempt implements StatsRecorder
func (NoopStats) LogFetchAttempt() {}

// LogRetry implements StatsRecorder
func (NoopStats) LogRetry(time.Duration) {}

// Stats implements StatsRecorder and always reports zeroes
func (NoopStats) Stats() FetchStats { return FetchStats{} }

// AtomicStats accumulates counters with sync/atomic so that concurrent
// fetches sharing one Client never lose increments.
type AtomicStats struct {
	attempts   atomic.Int64
	retries    atomic.Int64
	retryDelay atomic.Int64
}

var _ StatsRecorder = (*AtomicStats)(nil)

// NewAtomicStats creates a zeroed accumulating recorder
func NewAtomicStats() *AtomicStats {
	return &AtomicStats{}
}

// LogFetchAttempt counts one transport invocation
func (s *AtomicStats) LogFetchAttempt() {
	s.attempts.Add(1)
}

// LogRetry counts one retry and adds its delay to the running total.
// The total saturates at the maximum duration.
func (s *AtomicStats) LogRetry(delay time.Duration) {
	s.retries.Add(1)
	for {
		current := s.retryDelay.Load()
		next := current + int64(delay)
		if delay > 0 && next < current {
			next = math.MaxInt64
		}
		if s.retryDelay.CompareAndSwap(current, next) {
			return
		}
	}
}

// Stats returns a snapshot of the counters
func (s *AtomicStats) Stats() FetchStats {
	return FetchStats{
		FetchAttemptCount:    s.attempts.Load(),
		FetchRetryCount:      s.retries.Load(),
		TotalFetchRetryDelay: time.Duration(s.retryDelay.Load()),
	}
}

// Reset zeroes all counters
func (s *AtomicStats) Reset() {
	s.attempts.Store(0)
	s.retries.Store(0)
	s.retryDelay.Store(0)
}

// MetricsStats accumulates like AtomicStats and mirrors every event to
// OpenTelemetry instruments.
type MetricsStats struct {
	*AtomicStats
	attempts   metric.Int64Counter
	retries    metric.Int64Counter
	retryDelay metric.Float64Histogram
	attrs      metric.MeasurementOption
}

var _ StatsRecorder = (*MetricsStats)(nil)

// NewMetricsStats creates the instruments on meter. attrs are attached to every measurement.
func NewMetricsStats(meter metric.Meter, attrs ...attribute.KeyValue) (*MetricsStats, error) {
	attempts, err := observability.CreateCounter(meter, MetricFetchAttempts,
		"Transport invocations, including retries")
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricFetchAttempts, err)
	}

	retries, err := observability.CreateCounter(meter, MetricFetchRetries,
		"Retries scheduled after a throttled or failed attempt")
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricFetchRetries, err)
	}

	retryDelay, err := observability.CreateHistogram(meter, MetricFetchRetryDelay,
		"Delay waited before each retry", metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s histogram: %w", MetricFetchRetryDelay, err)
	}

	s := &MetricsStats{
		AtomicStats: NewAtomicStats(),
		attempts:    attempts,
		retries:     retries,
		retryDelay:  retryDelay,
	}
	if len(attrs) > 0 {
		s.attrs = metric.WithAttributes(attrs...)
	}
	return s, nil
}

// LogFetchAttempt implements StatsRecorder
func (s *MetricsStats) LogFetchAttempt() {
	s.AtomicStats.LogFetchAttempt()
	s.attempts.Add(context.Background(), 1, s.addOptions()...)
}

// LogRetry implements StatsRecorder
func (s *MetricsStats) LogRetry(delay time.Duration) {
	s.AtomicStats.LogRetry(delay)
	ctx := context.Background()
	s.retries.Add(ctx, 1, s.addOptions()...)
	s.retryDelay.Record(ctx, float64(delay)/float64(time.Millisecond), s.recordOptions()...)
}

func (s *MetricsStats) addOptions() []metric.AddOption {
	if s.attrs == nil {
		return nil
	}
	return []metric.AddOption{s.attrs}
}

func (s *MetricsStats) recordOptions() []metric.RecordOption {
	if s.attrs == nil {
		return nil
	}
	return []metric.RecordOption{s.attrs}
}
