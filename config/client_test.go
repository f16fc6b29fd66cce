package config

import (
	"context"
	nethttp "net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-ratefetch/http"
	"github.com/gaborage/go-ratefetch/logger"
	"github.com/gaborage/go-ratefetch/testing/fixtures"
)

func TestClientBuilderAppliesConfig(t *testing.T) {
	cfg, err := LoadBytes([]byte(`
fetch:
  maxretries: 4
  initialretrydelay: 10ms
transport:
  timeout: 2s
  headers:
    x-client: ratefetch
  ratelimit: 1000
  burst: 5
`))
	require.NoError(t, err)

	srv := fixtures.NewThrottledServer(fixtures.ThrottleConfig{Script: []fixtures.ScriptedResponse{
		{Status: nethttp.StatusServiceUnavailable},
	}})
	defer srv.Close()

	var delays []time.Duration
	client, err := cfg.ClientBuilder(logger.NewNop()).
		WithWaiter(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, 4, client.Options().MaxRetries)
	assert.Equal(t, 10*time.Millisecond, client.Options().InitialRetryDelay)

	resp, err := client.Get(context.Background(), &http.Request{URL: srv.URL()})
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Len(t, delays, 1)
	assert.GreaterOrEqual(t, delays[0], 10*time.Millisecond)

	for _, r := range srv.Requests() {
		assert.Equal(t, "ratefetch", r.Headers.Get("X-Client"))
	}
}
