package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-ratefetch/http"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{Name: testAppName, Version: "v1.0.0", Env: EnvProduction},
		Fetch: FetchConfig{
			MaxRetries:          2,
			MaxRetryDelay:       60 * time.Second,
			BackoffMultiplier:   2,
			InitialRetryDelay:   5 * time.Second,
			MaxJitterMultiplier: 1.3,
		},
		Transport: TransportConfig{Timeout: time.Second},
		Log:       LogConfig{Level: "warn"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing_name", mutate: func(c *Config) { c.App.Name = "" }, wantErr: "config_missing: app.name"},
		{name: "zero_timeout", mutate: func(c *Config) { c.Transport.Timeout = 0 }, wantErr: "transport.timeout"},
		{name: "negative_rate", mutate: func(c *Config) { c.Transport.RateLimit = -1 }, wantErr: "transport.ratelimit"},
		{name: "negative_initial_delay", mutate: func(c *Config) { c.Fetch.InitialRetryDelay = -time.Second }, wantErr: "fetch.initialretrydelay"},
		{
			name: "observability_without_service",
			mutate: func(c *Config) {
				c.Observability.Enabled = true
			},
			wantErr: "observability config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRunsOptionInvariants(t *testing.T) {
	cfg := validConfig()
	cfg.Fetch.MaxJitterMultiplier = 0.5

	err := Validate(cfg)
	require.Error(t, err)
	// struct tags catch it first and report the dotted key
	assert.Contains(t, err.Error(), "fetch.maxjittermultiplier")

	opts := cfg.Fetch.RateLimitingOptions()
	assert.True(t, http.IsErrorType(opts.Validate(), http.ValidationError))
}
