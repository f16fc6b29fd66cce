package http

import (
	"context"
	nethttp "net/http"
	"time"
)

// Fetcher defines the REST client interface for making rate-limit aware HTTP requests
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
}

// Transport performs a single HTTP exchange. Implementations must not retry.
type Transport interface {
	RoundTrip(ctx context.Context, method string, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(ctx context.Context, method string, req *Request) (*Response, error)

// RoundTrip calls f(ctx, method, req)
func (f TransportFunc) RoundTrip(ctx context.Context, method string, req *Request) (*Response, error) {
	return f(ctx, method, req)
}

// StatsRecorder accumulates attempt and retry counters across fetches.
// Implementations must be safe for concurrent use.
type StatsRecorder interface {
	LogFetchAttempt()
	LogRetry(delay time.Duration)
	Stats() FetchStats
}

// FetchStats is a snapshot of the counters kept by a StatsRecorder
type FetchStats struct {
	FetchAttemptCount    int64
	FetchRetryCount      int64
	TotalFetchRetryDelay time.Duration
}

// Request represents an HTTP request with all necessary data.
// Method is optional; Fetch defaults it to GET.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Auth    *BasicAuth
}

// Response represents an HTTP response with tracking information
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Header returns the first value of the named response header, or "" when absent.
func (r *Response) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Stats contains execution statistics for one logical request
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
	Attempts    int
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// RequestInterceptor is called before sending each attempt
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving each attempt's response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error
