package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAppName = "ratefetch"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileWithDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, testAppName, cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Env)

	assert.Equal(t, 2, cfg.Fetch.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Fetch.MaxRetryDelay)
	assert.InDelta(t, 2.0, cfg.Fetch.BackoffMultiplier, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Fetch.InitialRetryDelay)
	assert.InDelta(t, 1.3, cfg.Fetch.MaxJitterMultiplier, 1e-9)
	assert.False(t, cfg.Fetch.RetryOnZeroDelay)
	assert.False(t, cfg.Fetch.RetryTransportErrors)

	assert.Equal(t, 30*time.Second, cfg.Transport.Timeout)
	assert.Nil(t, cfg.Transport.Limiter())

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Observability.Enabled)
	assert.NotNil(t, cfg.Koanf())
}

func TestLoadFileWithYAMLAndOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
app:
  env: staging
fetch:
  maxretries: 4
  initialretrydelay: 250ms
  retryonzerodelay: true
transport:
  ratelimit: 5
  burst: 2
  headers:
    Accept: application/json
`)
	writeFile(t, dir, "config.staging.yaml", `
fetch:
  maxretrydelay: 10s
log:
  level: debug
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.App.Env)
	assert.Equal(t, 4, cfg.Fetch.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Fetch.InitialRetryDelay)
	assert.Equal(t, 10*time.Second, cfg.Fetch.MaxRetryDelay)
	assert.True(t, cfg.Fetch.RetryOnZeroDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "application/json", cfg.Transport.Headers["Accept"])

	limiter := cfg.Transport.Limiter()
	require.NotNil(t, limiter)
	assert.InDelta(t, 5.0, float64(limiter.Limit()), 1e-9)
	assert.Equal(t, 2, limiter.Burst())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("RATEFETCH_FETCH_MAXRETRIES", "7")
	t.Setenv("RATEFETCH_FETCH_MAXRETRYDELAY", "90s")
	t.Setenv("RATEFETCH_LOG_PRETTY", "true")

	cfg, err := LoadBytes([]byte("fetch:\n  maxretries: 1\n"))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Fetch.MaxRetries)
	assert.Equal(t, 90*time.Second, cfg.Fetch.MaxRetryDelay)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoadBytesRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{name: "negative_max_retries", yaml: "fetch:\n  maxretries: -1\n", field: "fetch.maxretries"},
		{name: "zero_max_retry_delay", yaml: "fetch:\n  maxretrydelay: 0s\n", field: "fetch.maxretrydelay"},
		{name: "jitter_below_one", yaml: "fetch:\n  maxjittermultiplier: 0.9\n", field: "fetch.maxjittermultiplier"},
		{name: "unknown_log_level", yaml: "log:\n  level: loud\n", field: "log.level"},
		{name: "unknown_env", yaml: "app:\n  env: qa\n", field: "app.env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.field)

			var configErr *ConfigError
			assert.ErrorAs(t, err, &configErr)
		})
	}
}

func TestLoadBytesRejectsMalformedYAML(t *testing.T) {
	_, err := LoadBytes([]byte("fetch: [unclosed"))
	require.Error(t, err)

	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "load", configErr.Category)
}

func TestRateLimitingOptionsBridge(t *testing.T) {
	cfg, err := LoadBytes([]byte(`
fetch:
  maxretries: 3
  maxretrydelay: 20s
  backoffmultiplier: 1.5
  initialretrydelay: 100ms
  maxjittermultiplier: 1.1
  retrytransporterrors: true
`))
	require.NoError(t, err)

	opts := cfg.Fetch.RateLimitingOptions()
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, 20*time.Second, opts.MaxRetryDelay)
	assert.InDelta(t, 1.5, opts.BackoffMultiplier, 1e-9)
	assert.Equal(t, 100*time.Millisecond, opts.InitialRetryDelay)
	assert.InDelta(t, 1.1, opts.MaxJitterMultiplier, 1e-9)
	assert.True(t, opts.RetryTransportErrors)
	assert.NoError(t, opts.Validate())
}

func TestTransportLimiterRaisesZeroBurst(t *testing.T) {
	limiter := TransportConfig{RateLimit: 2}.Limiter()
	require.NotNil(t, limiter)
	assert.Equal(t, 1, limiter.Burst())
}
