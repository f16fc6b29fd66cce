package config

import (
	"github.com/gaborage/go-ratefetch/http"
	"github.com/gaborage/go-ratefetch/logger"
)

// ClientBuilder returns an http.Builder seeded with the fetch and transport
// sections. Callers may add a stats recorder or tracer provider before Build.
func (c *Config) ClientBuilder(log logger.Logger) *http.Builder {
	b := http.NewBuilder(log).
		WithOptions(c.Fetch.RateLimitingOptions()).
		WithTimeout(c.Transport.Timeout).
		WithTraceContextPropagation(c.Transport.PropagateTrace).
		WithDebug(c.Fetch.Debug)

	for key, value := range c.Transport.Headers {
		b = b.WithDefaultHeader(key, value)
	}
	if limiter := c.Transport.Limiter(); limiter != nil {
		b = b.WithRateLimiter(limiter)
	}
	return b
}
