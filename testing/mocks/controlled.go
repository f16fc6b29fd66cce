package mocks

import (
	"context"
	"math/rand/v2"
	nethttp "net/http"
	"sync"
	"sync/atomic"

	"github.com/gaborage/go-ratefetch/http"
)

// SyntheticFailure describes a response fabricated instead of a real exchange.
type SyntheticFailure struct {
	StatusCode int
	// StatusText defaults to nethttp.StatusText(StatusCode) when empty.
	StatusText string
	// HeaderPopulator, when set, fills the response headers (e.g. Retry-After).
	HeaderPopulator func(nethttp.Header)
}

// RateLimited returns a 429 failure carrying the given Retry-After value.
// An empty retryAfter produces no header.
func RateLimited(retryAfter string) *SyntheticFailure {
	return &SyntheticFailure{
		StatusCode: nethttp.StatusTooManyRequests,
		HeaderPopulator: func(h nethttp.Header) {
			if retryAfter != "" {
				h.Set(http.HeaderRetryAfter, retryAfter)
			}
		},
	}
}

// Unavailable returns a 503 failure without a Retry-After header.
func Unavailable() *SyntheticFailure {
	return &SyntheticFailure{StatusCode: nethttp.StatusServiceUnavailable}
}

func (f *SyntheticFailure) response() *http.Response {
	text := f.StatusText
	if text == "" {
		text = nethttp.StatusText(f.StatusCode)
	}
	resp := &http.Response{
		StatusCode: f.StatusCode,
		Status:     text,
		Headers:    make(nethttp.Header),
	}
	if f.HeaderPopulator != nil {
		f.HeaderPopulator(resp.Headers)
	}
	return resp
}

// FailureController decides, per attempt, whether the ControlledTransport fails.
// A nil result lets the attempt through to the fallback transport.
type FailureController interface {
	NextFailure(req *http.Request) *SyntheticFailure
}

// ControlledTransport is an http.Transport that fabricates failures chosen by
// its controller and otherwise delegates to a fallback.
type ControlledTransport struct {
	controller FailureController
	fallback   http.Transport

	calls     atomic.Int64
	synthetic atomic.Int64
}

var _ http.Transport = (*ControlledTransport)(nil)

// NewControlledTransport creates a transport driven by controller.
// A nil fallback answers every non-failed attempt with 200 OK.
func NewControlledTransport(controller FailureController, fallback http.Transport) *ControlledTransport {
	if fallback == nil {
		fallback = http.TransportFunc(okResponse)
	}
	return &ControlledTransport{controller: controller, fallback: fallback}
}

// RoundTrip implements http.Transport
func (t *ControlledTransport) RoundTrip(ctx context.Context, method string, req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	if t.controller != nil {
		if failure := t.controller.NextFailure(req); failure != nil {
			t.synthetic.Add(1)
			return failure.response(), nil
		}
	}
	return t.fallback.RoundTrip(ctx, method, req)
}

// Calls returns how many attempts reached the transport
func (t *ControlledTransport) Calls() int64 {
	return t.calls.Load()
}

// SyntheticResponses returns how many attempts were answered with a fabricated failure
func (t *ControlledTransport) SyntheticResponses() int64 {
	return t.synthetic.Load()
}

func okResponse(context.Context, string, *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: nethttp.StatusOK,
		Status:     nethttp.StatusText(nethttp.StatusOK),
		Headers:    make(nethttp.Header),
	}, nil
}

// SequenceController replays a fixed list of outcomes, one per attempt.
// nil entries and attempts past the end of the list succeed.
type SequenceController struct {
	mu       sync.Mutex
	failures []*SyntheticFailure
	calls    int
}

// NewSequenceController creates a controller replaying failures in order
func NewSequenceController(failures ...*SyntheticFailure) *SequenceController {
	return &SequenceController{failures: failures}
}

// NextFailure implements FailureController
func (c *SequenceController) NextFailure(*http.Request) *SyntheticFailure {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.calls
	c.calls++
	if idx < len(c.failures) {
		return c.failures[idx]
	}
	return nil
}

// Calls returns how many attempts consulted the controller
func (c *SequenceController) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the sequence to its first entry
func (c *SequenceController) Reset() {
	c.mu.Lock()
	c.calls = 0
	c.mu.Unlock()
}

// RandomController fails each attempt with a fixed probability.
// Seeded controllers produce the same outcomes on every run.
type RandomController struct {
	mu          sync.Mutex
	rng         *rand.Rand
	probability float64
	failure     SyntheticFailure
	calls       int
	failures    int
}

// NewRandomController creates a controller failing with probability in [0, 1].
// Each failure is a copy of failure.
func NewRandomController(seed uint64, probability float64, failure SyntheticFailure) *RandomController {
	return &RandomController{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		probability: probability,
		failure:     failure,
	}
}

// NextFailure implements FailureController
func (c *RandomController) NextFailure(*http.Request) *SyntheticFailure {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.rng.Float64() >= c.probability {
		return nil
	}
	c.failures++
	f := c.failure
	return &f
}

// Calls returns how many attempts consulted the controller
func (c *RandomController) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Failures returns how many attempts were failed
func (c *RandomController) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}
