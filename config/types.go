package config

import (
	"time"

	"github.com/knadh/koanf/v2"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-ratefetch/http"
	"github.com/gaborage/go-ratefetch/observability"
)

// Config represents the overall configuration of a ratefetch client process.
// The embedded koanf.Koanf instance allows access to keys not modeled here.
type Config struct {
	App           AppConfig            `koanf:"app" json:"app" yaml:"app" mapstructure:"app"`
	Fetch         FetchConfig          `koanf:"fetch" json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Transport     TransportConfig      `koanf:"transport" json:"transport" yaml:"transport" mapstructure:"transport"`
	Log           LogConfig            `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Observability observability.Config `koanf:"observability" json:"observability" yaml:"observability" mapstructure:"observability"`

	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" mapstructure:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" mapstructure:"env" validate:"oneof=development staging production"`
}

// FetchConfig holds the retry policy.
type FetchConfig struct {
	MaxRetries           int           `koanf:"maxretries" json:"maxretries" yaml:"maxretries" mapstructure:"maxretries" validate:"gte=0"`
	MaxRetryDelay        time.Duration `koanf:"maxretrydelay" json:"maxretrydelay" yaml:"maxretrydelay" mapstructure:"maxretrydelay" validate:"gt=0"`
	BackoffMultiplier    float64       `koanf:"backoffmultiplier" json:"backoffmultiplier" yaml:"backoffmultiplier" mapstructure:"backoffmultiplier"`
	InitialRetryDelay    time.Duration `koanf:"initialretrydelay" json:"initialretrydelay" yaml:"initialretrydelay" mapstructure:"initialretrydelay" validate:"gte=0"`
	MaxJitterMultiplier  float64       `koanf:"maxjittermultiplier" json:"maxjittermultiplier" yaml:"maxjittermultiplier" mapstructure:"maxjittermultiplier" validate:"gte=1"`
	RetryOnZeroDelay     bool          `koanf:"retryonzerodelay" json:"retryonzerodelay" yaml:"retryonzerodelay" mapstructure:"retryonzerodelay"`
	RetryTransportErrors bool          `koanf:"retrytransporterrors" json:"retrytransporterrors" yaml:"retrytransporterrors" mapstructure:"retrytransporterrors"`
	// Debug enables per-attempt request/response logging
	Debug bool `koanf:"debug" json:"debug" yaml:"debug" mapstructure:"debug"`
}

// TransportConfig holds settings of the net/http transport and the client-side limiter.
type TransportConfig struct {
	Timeout time.Duration     `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	Headers map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`
	// RateLimit caps outgoing requests per second, retries included. 0 disables the limiter.
	RateLimit      float64 `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit" mapstructure:"ratelimit" validate:"gte=0"`
	Burst          int     `koanf:"burst" json:"burst" yaml:"burst" mapstructure:"burst" validate:"gte=0"`
	PropagateTrace bool    `koanf:"propagatetrace" json:"propagatetrace" yaml:"propagatetrace" mapstructure:"propagatetrace"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// RateLimitingOptions converts the fetch section into client options
func (c FetchConfig) RateLimitingOptions() http.RateLimitingOptions {
	return http.RateLimitingOptions{
		MaxRetries:           c.MaxRetries,
		MaxRetryDelay:        c.MaxRetryDelay,
		BackoffMultiplier:    c.BackoffMultiplier,
		InitialRetryDelay:    c.InitialRetryDelay,
		MaxJitterMultiplier:  c.MaxJitterMultiplier,
		RetryOnZeroDelay:     c.RetryOnZeroDelay,
		RetryTransportErrors: c.RetryTransportErrors,
	}
}

// Limiter returns a token bucket for the configured rate, or nil when disabled.
// A zero burst is raised to 1 so that the limiter can admit requests.
func (c TransportConfig) Limiter() *rate.Limiter {
	if c.RateLimit <= 0 {
		return nil
	}
	burst := c.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.RateLimit), burst)
}

// Koanf exposes the underlying instance for keys not covered by Config
func (c *Config) Koanf() *koanf.Koanf {
	return c.k
}
