// Package testing provides test doubles and fixtures for code built on the
// ratefetch HTTP client.
//
// # Mocks
//
// The mocks subpackage provides testify-based mocks of http.Transport and
// http.StatsRecorder, and a ControlledTransport whose failures are scripted by
// a FailureController:
//   - SequenceController replays a fixed list of synthetic failures
//   - RandomController fails with a configured probability from a seeded source
//
// # Fixtures
//
// The fixtures subpackage provides ThrottledServer, a real HTTP server that
// rejects callers above a token-bucket rate with 429 and a Retry-After header.
//
// # Usage
//
//	import (
//		"github.com/gaborage/go-ratefetch/testing/mocks"
//		"github.com/gaborage/go-ratefetch/testing/fixtures"
//	)
package testing
