package observability

import (
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that outputs to stdout (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the default environment name for development mode.
	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to the provided bool value.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to the provided float64 value.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Config defines the configuration for tracing and metrics export.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, the provider hands out no-op tracers and meters.
	Enabled bool `koanf:"enabled" mapstructure:"enabled"`

	Service     ServiceConfig `koanf:"service" mapstructure:"service"`
	Environment string        `koanf:"environment" mapstructure:"environment"`
	Trace       TraceConfig   `koanf:"trace" mapstructure:"trace"`
	Metrics     MetricsConfig `koanf:"metrics" mapstructure:"metrics"`
}

// ServiceConfig contains service identification metadata.
type ServiceConfig struct {
	// Name identifies the service in traces and metrics. Required when enabled.
	Name    string `koanf:"name" mapstructure:"name"`
	Version string `koanf:"version" mapstructure:"version"`
}

// TraceConfig configures span export.
type TraceConfig struct {
	// Enabled defaults to true when observability is enabled.
	Enabled  *bool             `koanf:"enabled" mapstructure:"enabled"`
	Endpoint string            `koanf:"endpoint" mapstructure:"endpoint"`
	Protocol string            `koanf:"protocol" mapstructure:"protocol"`
	Insecure bool              `koanf:"insecure" mapstructure:"insecure"`
	Headers  map[string]string `koanf:"headers" mapstructure:"headers"`
	// SampleRate is the ratio of sampled traces in [0.0, 1.0]. Defaults to 1.0.
	SampleRate *float64 `koanf:"samplerate" mapstructure:"samplerate"`
	// BatchTimeout is the maximum delay before a span batch is exported.
	BatchTimeout  time.Duration `koanf:"batchtimeout" mapstructure:"batchtimeout"`
	ExportTimeout time.Duration `koanf:"exporttimeout" mapstructure:"exporttimeout"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Enabled defaults to true when observability is enabled.
	Enabled  *bool  `koanf:"enabled" mapstructure:"enabled"`
	Endpoint string `koanf:"endpoint" mapstructure:"endpoint"`
	// Protocol defaults to the trace protocol.
	Protocol      string        `koanf:"protocol" mapstructure:"protocol"`
	Interval      time.Duration `koanf:"interval" mapstructure:"interval"`
	ExportTimeout time.Duration `koanf:"exporttimeout" mapstructure:"exporttimeout"`
}

// ApplyDefaults sets default values for any config fields that are not specified.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	// Only set when nil (unset). If explicitly set to false, preserve it.
	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(1.0)
	}
	if c.Trace.BatchTimeout == 0 {
		c.Trace.BatchTimeout = c.byEnvironment(c.Trace.Endpoint, 500*time.Millisecond, 5*time.Second)
	}
	if c.Trace.ExportTimeout == 0 {
		c.Trace.ExportTimeout = c.byEnvironment(c.Trace.Endpoint, 10*time.Second, 60*time.Second)
	}

	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = EndpointStdout
	}
	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = c.Trace.Protocol
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 10 * time.Second
	}
	if c.Metrics.ExportTimeout == 0 {
		c.Metrics.ExportTimeout = c.byEnvironment(c.Metrics.Endpoint, 10*time.Second, 60*time.Second)
	}
}

// byEnvironment picks the development value for local or stdout setups
func (c *Config) byEnvironment(endpoint string, development, production time.Duration) time.Duration {
	if c.Environment == EnvironmentDevelopment || endpoint == EndpointStdout {
		return development
	}
	return production
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}

	if c.Trace.SampleRate != nil {
		if rate := *c.Trace.SampleRate; rate < 0.0 || rate > 1.0 {
			return ErrInvalidSampleRate
		}
	}
	if err := validateEndpoint(c.Trace.Endpoint, c.Trace.Protocol); err != nil {
		return err
	}

	if c.Metrics.Enabled == nil || !*c.Metrics.Enabled {
		return nil
	}
	protocol := c.Metrics.Protocol
	if protocol == "" {
		protocol = c.Trace.Protocol
	}
	return validateEndpoint(c.Metrics.Endpoint, protocol)
}

// validateEndpoint checks the protocol and that the endpoint format matches it.
// gRPC endpoints use "host:port"; HTTP endpoints need an http:// or https:// scheme.
func validateEndpoint(endpoint, protocol string) error {
	if endpoint == EndpointStdout || endpoint == "" {
		return nil
	}
	if protocol == "" {
		protocol = ProtocolHTTP
	}

	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
	switch protocol {
	case ProtocolHTTP:
		if !hasScheme {
			return ErrInvalidEndpointFormat
		}
	case ProtocolGRPC:
		if hasScheme {
			return ErrInvalidEndpointFormat
		}
	default:
		return ErrInvalidProtocol
	}
	return nil
}
