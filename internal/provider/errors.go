package provider

import "errors"

// Sentinel errors for generation backend failures.
var (
	// ErrRateLimited indicates the backend returned a rate limit response.
	ErrRateLimited = errors.New("provider: rate limited")

	// ErrBackendDown indicates the backend is unreachable, timed out, or
	// returned a server error.
	ErrBackendDown = errors.New("provider: backend unavailable")

	// ErrBadRequest indicates the backend rejected the request itself
	// (a client-side 4xx other than rate limiting).
	ErrBadRequest = errors.New("provider: bad request")

	// ErrEmptyCompletion indicates a 2xx response that carried no usable text.
	ErrEmptyCompletion = errors.New("provider: empty completion")
)
