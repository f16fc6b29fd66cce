// Package testing provides in-memory OpenTelemetry providers and assertion
// helpers for verifying fetch spans and retry metrics in unit tests.
//
// Usage:
//
//	tp := NewTestTraceProvider()
//	defer tp.Shutdown(context.Background())
//
//	client, _ := http.NewBuilder(log).WithTracerProvider(tp).Build()
//	_, _ = client.Get(ctx, req)
//
//	spans := SpansNamed(tp.Exporter, "ratefetch GET")
//	require.Len(t, spans, 1)
package testing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	metricNotFoundErrMsg = "metric %s not found"
	noDataPointsErrMsg   = "no data points for metric %s"
)

// TestTraceProvider wraps the SDK TracerProvider and in-memory exporter for testing.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider that exports spans synchronously
// into memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	return &TestTraceProvider{
		TracerProvider: provider,
		Exporter:       exporter,
	}
}

// TestMeterProvider wraps the SDK MeterProvider and manual reader for testing.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider whose metrics are collected on demand.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)

	return &TestMeterProvider{
		MeterProvider: provider,
		Reader:        reader,
	}
}

// Collect reads all metrics from the provider.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	err := tmp.Reader.Collect(context.Background(), &rm)
	require.NoError(t, err, "failed to collect metrics")
	return rm
}

// SpansNamed returns the captured spans with the given name.
func SpansNamed(exporter *tracetest.InMemoryExporter, name string) tracetest.SpanStubs {
	var out tracetest.SpanStubs
	for _, s := range exporter.GetSpans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// AssertSpanAttribute asserts that span carries key with the expected value.
func AssertSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string, expected any) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			assert.Equal(t, expected, attributeValue(attr.Value), "attribute %s value mismatch", key)
			return
		}
	}
	t.Errorf("attribute %s not found on span %s", key, span.Name)
}

func attributeValue(v attribute.Value) any {
	switch v.Type() {
	case attribute.BOOL:
		return v.AsBool()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.STRING:
		return v.AsString()
	default:
		return v.AsInterface()
	}
}

// FindMetric finds a metric by name. Returns nil if not found.
func FindMetric(rm metricdata.ResourceMetrics, metricName string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == metricName {
				return &m
			}
		}
	}
	return nil
}

// GetMetricSumValue sums every data point of an int64 Sum metric.
func GetMetricSumValue(rm metricdata.ResourceMetrics, metricName string) (int64, error) {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0, fmt.Errorf(metricNotFoundErrMsg, metricName)
	}
	data, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0, fmt.Errorf("metric %s is not a Sum[int64]", metricName)
	}
	if len(data.DataPoints) == 0 {
		return 0, fmt.Errorf(noDataPointsErrMsg, metricName)
	}
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total, nil
}

// GetMetricHistogram returns the count and sum of a float64 Histogram metric.
func GetMetricHistogram(rm metricdata.ResourceMetrics, metricName string) (count uint64, sum float64, err error) {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0, 0, fmt.Errorf(metricNotFoundErrMsg, metricName)
	}
	data, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		return 0, 0, fmt.Errorf("metric %s is not a Histogram[float64]", metricName)
	}
	if len(data.DataPoints) == 0 {
		return 0, 0, fmt.Errorf(noDataPointsErrMsg, metricName)
	}
	for _, dp := range data.DataPoints {
		count += dp.Count
		sum += dp.Sum
	}
	return count, sum, nil
}
