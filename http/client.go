package http

import (
	"context"
	nethttp "net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-ratefetch/logger"
)

const tracerName = "github.com/gaborage/go-ratefetch/http"

// spanURLFilter strips credentials from URLs recorded on spans
var spanURLFilter = logger.NewSensitiveDataFilter(nil)

// Waiter suspends the calling goroutine for d or until ctx is done.
// It returns ctx.Err() when the wait was cut short.
type Waiter func(ctx context.Context, d time.Duration) error

// Client retries requests rejected with 429, 500 or 503 according to its RateLimitingOptions.
//
// The transport, stats recorder and debug flag may be swapped between calls;
// each Fetch works with the values current when it started.
type Client struct {
	options RateLimitingOptions
	logger  logger.Logger
	limiter *rate.Limiter
	tracer  trace.Tracer
	wait    Waiter

	mu        sync.RWMutex
	transport Transport
	stats     StatsRecorder
	debug     bool

	callCount int64
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a client with the given options, a net/http transport and no stats.
// It fails when the options are invalid.
func NewClient(opts RateLimitingOptions, log logger.Logger) (*Client, error) {
	return NewBuilder(log).WithOptions(opts).Build()
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	options         RateLimitingOptions
	transportConfig TransportConfig
	httpClient      *nethttp.Client
	logger          logger.Logger
	transport       Transport
	stats           StatsRecorder
	limiter         *rate.Limiter
	tracerProvider  trace.TracerProvider
	wait            Waiter
	debug           bool
}

// NewBuilder creates a new client builder seeded with DefaultRateLimitingOptions
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		options: DefaultRateLimitingOptions(),
		transportConfig: TransportConfig{
			Timeout:        DefaultTimeout,
			DefaultHeaders: make(map[string]string),
		},
		logger: log,
	}
}

// WithOptions replaces the whole retry policy
func (b *Builder) WithOptions(opts RateLimitingOptions) *Builder {
	b.options = opts
	return b
}

// WithRetries sets the retry budget and the first backoff delay
func (b *Builder) WithRetries(maxRetries int, initialDelay time.Duration) *Builder {
	b.options.MaxRetries = maxRetries
	b.options.InitialRetryDelay = initialDelay
	return b
}

// WithTimeout sets the per-attempt timeout of the default transport
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.transportConfig.Timeout = timeout
	return b
}

// WithHTTPClient makes the default transport send through httpClient
func (b *Builder) WithHTTPClient(httpClient *nethttp.Client) *Builder {
	b.httpClient = httpClient
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.transportConfig.BasicAuth = &BasicAuth{
		Username: username,
		Password: password,
	}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.transportConfig.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.transportConfig.RequestInterceptors = append(b.transportConfig.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.transportConfig.ResponseInterceptors = append(b.transportConfig.ResponseInterceptors, interceptor)
	return b
}

// WithTraceContextPropagation enables W3C trace context headers on outgoing requests
func (b *Builder) WithTraceContextPropagation(enabled bool) *Builder {
	b.transportConfig.PropagateTraceContext = enabled
	return b
}

// WithTransport replaces the default net/http transport
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithStatsRecorder sets the recorder for attempt/retry counters
func (b *Builder) WithStatsRecorder(s StatsRecorder) *Builder {
	b.stats = s
	return b
}

// WithRateLimiter waits on limiter before every attempt, retries included
func (b *Builder) WithRateLimiter(limiter *rate.Limiter) *Builder {
	b.limiter = limiter
	return b
}

// WithTracerProvider records one span per logical request
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithWaiter replaces the timer used between attempts
func (b *Builder) WithWaiter(w Waiter) *Builder {
	b.wait = w
	return b
}

// WithDebug enables per-attempt request/response logging
func (b *Builder) WithDebug(debug bool) *Builder {
	b.debug = debug
	return b
}

// Build validates the options and creates the client
func (b *Builder) Build() (*Client, error) {
	if err := b.options.Validate(); err != nil {
		return nil, err
	}
	if b.limiter != nil && !limiterCanGrant(b.limiter) {
		return nil, NewValidationError("rate limiter burst must be at least 1", "limiter")
	}

	c := &Client{
		options:   b.options,
		logger:    b.logger,
		limiter:   b.limiter,
		wait:      b.wait,
		transport: b.transport,
		stats:     b.stats,
		debug:     b.debug,
	}
	if c.logger == nil {
		c.logger = logger.NewNop()
	}
	if c.wait == nil {
		c.wait = sleepContext
	}
	if c.transport == nil {
		c.transport = b.defaultTransport()
	}
	if c.stats == nil {
		c.stats = NoopStats{}
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	c.tracer = tp.Tracer(tracerName)
	return c, nil
}

func (b *Builder) defaultTransport() Transport {
	if b.httpClient != nil {
		return NewHTTPTransportWithClient(b.httpClient, b.transportConfig)
	}
	return NewHTTPTransport(b.transportConfig)
}

// Options returns the retry policy the client was built with
func (c *Client) Options() RateLimitingOptions {
	return c.options
}

// SetTransport swaps the transport used by subsequent fetches. nil is ignored.
func (c *Client) SetTransport(t Transport) {
	if t == nil {
		return
	}
	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
}

// SetStatsRecorder swaps the stats recorder. nil installs NoopStats.
func (c *Client) SetStatsRecorder(s StatsRecorder) {
	if s == nil {
		s = NoopStats{}
	}
	c.mu.Lock()
	c.stats = s
	c.mu.Unlock()
}

// SetDebug toggles per-attempt logging
func (c *Client) SetDebug(debug bool) {
	c.mu.Lock()
	c.debug = debug
	c.mu.Unlock()
}

// StatsRecorder returns the recorder currently in use
func (c *Client) StatsRecorder() StatsRecorder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Client) collaborators() (Transport, StatsRecorder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transport, c.stats, c.debug
}

// Fetch sends req with req.Method (GET when empty) and retries throttled attempts.
func (c *Client) Fetch(ctx context.Context, req *Request) (*Response, error) {
	method := nethttp.MethodGet
	if req != nil && req.Method != "" {
		method = req.Method
	}
	return c.Do(ctx, method, req)
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *Client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *Client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Do performs a logical request with the specified method.
//
// The same request is sent on every attempt. A retryable response that
// exhausts the budget is returned with a nil error. Transport errors are
// returned unless RetryTransportErrors is set. If ctx ends while waiting
// for the next attempt, a CanceledError is returned.
func (c *Client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	transport, stats, debug := c.collaborators()
	ctx, requestID := ensureRequestID(ctx)
	ctx, span := c.tracer.Start(ctx, "ratefetch "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", spanURLFilter.FilterString("url", req.URL)),
			attribute.String("ratefetch.request_id", requestID),
		))
	defer span.End()

	start := time.Now()
	callCount := atomic.AddInt64(&c.callCount, 1)
	decider := c.decider(method, req)

	remaining := c.options.MaxRetries
	var lastDelay time.Duration

	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.waitLimiter(ctx, attempt-1); err != nil {
				return nil, c.fail(span, err)
			}
		}

		stats.LogFetchAttempt()
		if debug {
			c.logRequest(method, req, requestID, attempt)
		}

		resp, err := transport.RoundTrip(ctx, method, req)
		if resp == nil && err == nil {
			err = NewNetworkError("transport returned no response", nil)
		}

		var info RetryInfo
		var retry bool
		if err != nil {
			if !c.options.RetryTransportErrors || ctx.Err() != nil {
				return nil, c.fail(span, err)
			}
			info, retry = decider.computeForError(remaining, lastDelay)
			if !retry {
				return nil, c.fail(span, err)
			}
		} else {
			resp.Stats = Stats{
				ElapsedTime: time.Since(start),
				CallCount:   callCount,
				Attempts:    attempt,
			}
			info, retry = decider.compute(remaining, lastDelay, resp)
			if !retry {
				if debug {
					c.logResponse(resp, requestID)
				}
				span.SetAttributes(
					attribute.Int("http.response.status_code", resp.StatusCode),
					attribute.Int("ratefetch.attempts", attempt),
				)
				return resp, nil
			}
		}

		if debug {
			c.logRetry(resp, err, requestID, attempt, info)
		}
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("ratefetch.attempt", attempt),
			attribute.Int64("ratefetch.retry_delay_ms", info.RetryDelay.Milliseconds()),
			attribute.Int("ratefetch.remaining_retries", info.RemainingRetries),
		))

		if err := c.wait(ctx, info.RetryDelay); err != nil {
			return nil, c.fail(span, NewCanceledError(attempt, err))
		}
		stats.LogRetry(info.RetryDelay)

		remaining = info.RemainingRetries
		lastDelay = info.RetryDelay
	}
}

// waitLimiter blocks on the client-side limiter. A limiter that can never
// grant a token is a configuration error; anything else means ctx ends
// before the next token.
func (c *Client) waitLimiter(ctx context.Context, attempts int) error {
	err := c.limiter.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return NewCanceledError(attempts, ctxErr)
	}
	if !limiterCanGrant(c.limiter) {
		return NewValidationError("rate limiter burst must be at least 1", "limiter")
	}
	return NewCanceledError(attempts, err)
}

func limiterCanGrant(l *rate.Limiter) bool {
	return l.Limit() == rate.Inf || l.Burst() >= 1
}

func (c *Client) decider(method string, req *Request) retryDecider {
	return retryDecider{
		opts: c.options,
		onBadHint: func(value string, err error) {
			c.logger.Warn().
				Err(err).
				Str("method", method).
				Str("url", req.URL).
				Str("retry_after", value).
				Msg("Ignoring malformed Retry-After header")
		},
	}
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// validateRequest validates the request before sending
func validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.URL == "" {
		return NewValidationError("URL cannot be empty", "url")
	}
	return nil
}

// sleepContext is the default Waiter
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// logRequest logs an outgoing attempt
func (c *Client) logRequest(method string, req *Request, requestID string, attempt int) {
	logEvent := c.logger.Info().
		Str("direction", "outbound").
		Str("method", method).
		Str("url", req.URL).
		Str("request_id", requestID).
		Int("attempt", attempt)

	if len(req.Headers) > 0 {
		logEvent = logEvent.Interface("headers", req.Headers)
	}

	logEvent.Msg("REST client request")
}

// logResponse logs the response returned to the caller
func (c *Client) logResponse(resp *Response, requestID string) {
	c.logger.Info().
		Str("direction", "inbound").
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Int("attempts", resp.Stats.Attempts).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Msg("REST client response")
}

// logRetry logs a scheduled retry
func (c *Client) logRetry(resp *Response, err error, requestID string, attempt int, info RetryInfo) {
	logEvent := c.logger.Info().
		Str("request_id", requestID).
		Int("attempt", attempt).
		Dur("retry_delay", info.RetryDelay).
		Int("remaining_retries", info.RemainingRetries)

	if resp != nil {
		logEvent = logEvent.Int("status", resp.StatusCode)
		if hint := resp.Header(HeaderRetryAfter); hint != "" {
			logEvent = logEvent.Str("retry_after", hint)
		}
	}
	if err != nil {
		logEvent = logEvent.Err(err)
	}

	logEvent.Msg("REST client retry scheduled")
}
