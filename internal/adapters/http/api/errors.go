package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limited")
	ErrNotReady    = errors.New("not ready")
)

// Error codes carried in the JSON error body.
const (
	codeBadRequest  = "bad_request"
	codeRateLimited = "rate_limited"
	codeInternal    = "internal_error"
	codeNotReady    = "not_ready"
)
