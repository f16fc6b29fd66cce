package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsWhenEnabled(t *testing.T) {
	cfg := Config{Enabled: true, Service: ServiceConfig{Name: "ratefetch"}}
	cfg.ApplyDefaults()

	assert.Equal(t, "unknown", cfg.Service.Version)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
	assert.Equal(t, EndpointStdout, cfg.Trace.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Trace.Protocol)
	require.NotNil(t, cfg.Trace.Enabled)
	assert.True(t, *cfg.Trace.Enabled)
	require.NotNil(t, cfg.Trace.SampleRate)
	assert.InDelta(t, 1.0, *cfg.Trace.SampleRate, 0.0001)
	assert.Equal(t, 500*time.Millisecond, cfg.Trace.BatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.Trace.ExportTimeout)
	require.NotNil(t, cfg.Metrics.Enabled)
	assert.True(t, *cfg.Metrics.Enabled)
	assert.Equal(t, ProtocolHTTP, cfg.Metrics.Protocol)
	assert.Equal(t, 10*time.Second, cfg.Metrics.Interval)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{
		Enabled:     true,
		Environment: "production",
		Service:     ServiceConfig{Name: "ratefetch", Version: "1.2.3"},
		Trace: TraceConfig{
			Enabled:    BoolPtr(false),
			Endpoint:   "collector:4317",
			Protocol:   ProtocolGRPC,
			SampleRate: Float64Ptr(0.0),
		},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "1.2.3", cfg.Service.Version)
	assert.False(t, *cfg.Trace.Enabled)
	assert.InDelta(t, 0.0, *cfg.Trace.SampleRate, 0.0001)
	assert.Equal(t, 5*time.Second, cfg.Trace.BatchTimeout)
	assert.Equal(t, 60*time.Second, cfg.Trace.ExportTimeout)
	assert.Equal(t, ProtocolGRPC, cfg.Metrics.Protocol)
}

func TestApplyDefaultsLeavesSignalsUnsetWhenDisabled(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	assert.Nil(t, cfg.Trace.Enabled)
	assert.Nil(t, cfg.Metrics.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{name: "nil", cfg: nil, wantErr: ErrNilConfig},
		{name: "disabled_without_name", cfg: &Config{}},
		{name: "enabled_without_name", cfg: &Config{Enabled: true}, wantErr: ErrMissingServiceName},
		{
			name: "sample_rate_out_of_range",
			cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "svc"},
				Trace: TraceConfig{SampleRate: Float64Ptr(1.5)}},
			wantErr: ErrInvalidSampleRate,
		},
		{
			name: "http_endpoint_without_scheme",
			cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "svc"},
				Trace: TraceConfig{Endpoint: "collector:4318", Protocol: ProtocolHTTP}},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name: "grpc_endpoint_with_scheme",
			cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "svc"},
				Trace: TraceConfig{Endpoint: "http://collector:4317", Protocol: ProtocolGRPC}},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name: "unknown_protocol",
			cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "svc"},
				Trace: TraceConfig{Endpoint: "collector:4317", Protocol: "udp"}},
			wantErr: ErrInvalidProtocol,
		},
		{
			name: "bad_metrics_endpoint",
			cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "svc"},
				Metrics: MetricsConfig{Enabled: BoolPtr(true), Endpoint: "collector:4318", Protocol: ProtocolHTTP}},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name: "valid_otlp_http",
			cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "svc"},
				Trace: TraceConfig{Endpoint: "https://collector:4318", Protocol: ProtocolHTTP}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
