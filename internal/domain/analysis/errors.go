package analysis

import "errors"

// Sentinel errors for request validation.
var (
	ErrEmptyText    = errors.New("text must not be blank")
	ErrUnknownModel = errors.New("unknown model type")
)
