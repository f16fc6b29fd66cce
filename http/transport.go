package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TransportConfig holds the settings of HTTPTransport
type TransportConfig struct {
	Timeout              time.Duration
	BasicAuth            *BasicAuth
	DefaultHeaders       map[string]string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	// RequestIDHeader names the header carrying the logical request ID (default: X-Request-ID).
	// Set DisableRequestID to send no ID at all.
	RequestIDHeader  string
	DisableRequestID bool
	// PropagateTraceContext injects W3C traceparent/tracestate from the active span.
	PropagateTraceContext bool
}

// HTTPTransport performs exactly one exchange per RoundTrip using net/http.
type HTTPTransport struct {
	httpClient *nethttp.Client
	config     TransportConfig
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport backed by a fresh *http.Client using cfg.Timeout
func NewHTTPTransport(cfg TransportConfig) *HTTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return NewHTTPTransportWithClient(&nethttp.Client{Timeout: cfg.Timeout}, cfg)
}

// NewHTTPTransportWithClient creates a transport that sends through httpClient.
// A nil httpClient falls back to http.DefaultClient.
func NewHTTPTransportWithClient(httpClient *nethttp.Client, cfg TransportConfig) *HTTPTransport {
	if httpClient == nil {
		httpClient = nethttp.DefaultClient
	}
	if cfg.RequestIDHeader == "" {
		cfg.RequestIDHeader = HeaderXRequestID
	}
	return &HTTPTransport{httpClient: httpClient, config: cfg}
}

// RoundTrip builds the request, sends it once and reads the whole body.
func (t *HTTPTransport) RoundTrip(ctx context.Context, method string, req *Request) (*Response, error) {
	httpReq, err := t.buildRequest(ctx, method, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, NewTimeoutError("request timeout", t.httpClient.Timeout, err)
		}
		return nil, NewNetworkError("request execution failed", err)
	}

	return t.buildResponse(ctx, httpReq, httpResp)
}

// buildRequest constructs an *http.Request, applies headers/auth, and runs request interceptors.
func (t *HTTPTransport) buildRequest(ctx context.Context, method string, req *Request) (*nethttp.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, NewNetworkError("failed to create HTTP request", err)
	}

	t.applyHeaders(ctx, httpReq, req)
	t.applyAuth(httpReq, req)

	if t.config.PropagateTraceContext {
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))
	}

	for _, interceptor := range t.config.RequestInterceptors {
		if err := interceptor(ctx, httpReq); err != nil {
			return nil, NewInterceptorError("request interceptor failed", "request", err)
		}
	}
	return httpReq, nil
}

// applyHeaders applies default headers, then request headers, then the request ID
func (t *HTTPTransport) applyHeaders(ctx context.Context, httpReq *nethttp.Request, req *Request) {
	for key, value := range t.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	// Request-specific headers override defaults
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if httpReq.Header.Get("Content-Type") == "" && req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if !t.config.DisableRequestID && httpReq.Header.Get(t.config.RequestIDHeader) == "" {
		if id, ok := RequestIDFromContext(ctx); ok {
			httpReq.Header.Set(t.config.RequestIDHeader, id)
		}
	}
}

// applyAuth applies basic authentication; request-specific auth takes precedence
func (t *HTTPTransport) applyAuth(httpReq *nethttp.Request, req *Request) {
	auth := req.Auth
	if auth == nil {
		auth = t.config.BasicAuth
	}
	if auth != nil {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
}

// buildResponse runs response interceptors and reads the body into a Response.
func (t *HTTPTransport) buildResponse(ctx context.Context, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, error) {
	defer httpResp.Body.Close()

	for _, interceptor := range t.config.ResponseInterceptors {
		if err := interceptor(ctx, httpReq, httpResp); err != nil {
			return nil, NewInterceptorError("response interceptor failed", "response", err)
		}
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Body:       respBody,
		Headers:    httpResp.Header,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
