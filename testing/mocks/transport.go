package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-ratefetch/http"
)

// MockTransport provides a testify-based mock implementation of http.Transport.
//
// Example usage:
//
//	transport := &mocks.MockTransport{}
//	transport.On("RoundTrip", mock.Anything, "GET", mock.Anything).
//		Return(&http.Response{StatusCode: 429}, nil).Once()
//	transport.On("RoundTrip", mock.Anything, "GET", mock.Anything).
//		Return(&http.Response{StatusCode: 200}, nil)
type MockTransport struct {
	mock.Mock
}

var _ http.Transport = (*MockTransport)(nil)

// RoundTrip implements http.Transport.
// Returned responses are copied so that each attempt sees a fresh value.
func (m *MockTransport) RoundTrip(ctx context.Context, method string, req *http.Request) (*http.Response, error) {
	arguments := m.Called(ctx, method, req)

	var resp *http.Response
	switch v := arguments.Get(0).(type) {
	case *http.Response:
		if v != nil {
			cp := *v
			resp = &cp
		}
	case func(context.Context, string, *http.Request) *http.Response:
		resp = v(ctx, method, req)
	}
	return resp, arguments.Error(1)
}

// ExpectStatus is a helper that queues one response with the given status and headers.
func (m *MockTransport) ExpectStatus(status int, headers map[string]string) *mock.Call {
	resp := &http.Response{StatusCode: status}
	if len(headers) > 0 {
		resp.Headers = make(map[string][]string, len(headers))
		for k, v := range headers {
			resp.Headers.Set(k, v)
		}
	}
	return m.On("RoundTrip", mock.Anything, mock.Anything, mock.Anything).Return(resp, nil).Once()
}

// MockStatsRecorder provides a testify-based mock implementation of http.StatsRecorder.
type MockStatsRecorder struct {
	mock.Mock
}

var _ http.StatsRecorder = (*MockStatsRecorder)(nil)

// LogFetchAttempt implements http.StatsRecorder
func (m *MockStatsRecorder) LogFetchAttempt() {
	m.Called()
}

// LogRetry implements http.StatsRecorder
func (m *MockStatsRecorder) LogRetry(delay time.Duration) {
	m.Called(delay)
}

// Stats implements http.StatsRecorder
func (m *MockStatsRecorder) Stats() http.FetchStats {
	arguments := m.Called()
	if s, ok := arguments.Get(0).(http.FetchStats); ok {
		return s
	}
	return http.FetchStats{}
}
