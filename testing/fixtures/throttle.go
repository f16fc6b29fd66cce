// Package fixtures provides real HTTP servers for exercising the ratefetch
// client end to end without external dependencies.
package fixtures

import (
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	// DefaultRetryAfter is the Retry-After value sent with throttled responses
	DefaultRetryAfter = "1"
	limiterCleanup    = 3 * time.Minute
)

// ScriptedResponse is a canned answer consumed by one request before throttling applies.
type ScriptedResponse struct {
	Status     int
	RetryAfter string
	Body       string
}

// ThrottleConfig configures a ThrottledServer.
type ThrottleConfig struct {
	// Rate is the sustained requests per second allowed per caller. Zero disables throttling.
	Rate rate.Limit
	// Burst is the token bucket size. Values below 1 are raised to 1.
	Burst int
	// RetryAfter is sent with throttled responses. Defaults to DefaultRetryAfter.
	RetryAfter string
	// Script answers the first len(Script) requests in order.
	Script []ScriptedResponse
}

// RecordedRequest captures what the server received
type RecordedRequest struct {
	Method  string
	Path    string
	Headers nethttp.Header
	Body    []byte
}

// ThrottledServer is an echo server behind httptest that rejects callers above a
// token-bucket rate with 429 Too Many Requests and a Retry-After header.
type ThrottledServer struct {
	echo   *echo.Echo
	server *httptest.Server
	cfg    ThrottleConfig

	mu       sync.Mutex
	script   []ScriptedResponse
	requests []RecordedRequest

	hits      atomic.Int64
	throttled atomic.Int64
}

// NewThrottledServer starts a server with the given configuration. Call Close when done.
func NewThrottledServer(cfg ThrottleConfig) *ThrottledServer {
	if cfg.RetryAfter == "" {
		cfg.RetryAfter = DefaultRetryAfter
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &ThrottledServer{
		echo:   e,
		cfg:    cfg,
		script: append([]ScriptedResponse(nil), cfg.Script...),
	}

	e.Use(middleware.Recover())
	e.Use(s.record)
	e.Use(s.scripted)
	e.Use(s.rateLimit())
	e.Any("/*", s.ok)

	s.server = httptest.NewServer(e)
	return s
}

// URL returns the base URL of the server
func (s *ThrottledServer) URL() string {
	return s.server.URL
}

// Close shuts the server down
func (s *ThrottledServer) Close() {
	s.server.Close()
}

// Hits returns the number of requests received
func (s *ThrottledServer) Hits() int64 {
	return s.hits.Load()
}

// Throttled returns the number of requests answered with 429
func (s *ThrottledServer) Throttled() int64 {
	return s.throttled.Load()
}

// Requests returns a copy of every request received, in arrival order
func (s *ThrottledServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *ThrottledServer) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.hits.Add(1)

		req := c.Request()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return echo.NewHTTPError(nethttp.StatusBadRequest, err.Error())
		}

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:  req.Method,
			Path:    req.URL.Path,
			Headers: req.Header.Clone(),
			Body:    body,
		})
		s.mu.Unlock()

		return next(c)
	}
}

func (s *ThrottledServer) scripted(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		if len(s.script) == 0 {
			s.mu.Unlock()
			return next(c)
		}
		resp := s.script[0]
		s.script = s.script[1:]
		s.mu.Unlock()

		if resp.Status == nethttp.StatusTooManyRequests {
			s.throttled.Add(1)
		}
		if resp.RetryAfter != "" {
			c.Response().Header().Set("Retry-After", resp.RetryAfter)
		}
		return c.String(resp.Status, resp.Body)
	}
}

// rateLimit is the echo rate limiter keyed by caller IP, answering denials with Retry-After.
func (s *ThrottledServer) rateLimit() echo.MiddlewareFunc {
	if s.cfg.Rate <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      s.cfg.Rate,
				Burst:     s.cfg.Burst,
				ExpiresIn: limiterCleanup,
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(nethttp.StatusForbidden, err.Error())
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			s.throttled.Add(1)
			c.Response().Header().Set("Retry-After", s.cfg.RetryAfter)
			return c.JSON(nethttp.StatusTooManyRequests, map[string]any{
				"error": map[string]any{
					"message": "Too many requests",
					"status":  nethttp.StatusTooManyRequests,
				},
			})
		},
	})
}

func (s *ThrottledServer) ok(c echo.Context) error {
	return c.JSON(nethttp.StatusOK, map[string]any{
		"status": "ok",
		"method": c.Request().Method,
		"path":   c.Request().URL.Path,
		"hit":    strconv.FormatInt(s.hits.Load(), 10),
	})
}
