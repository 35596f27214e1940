package service

import (
	"errors"
	"fmt"

	"github.com/okian/sentiment/internal/domain/analysis"
)

var (
	// ErrUnavailable is matched by every orchestration failure.
	ErrUnavailable = errors.New("service unavailable")
	// ErrInvalidRequest wraps validation failures.
	ErrInvalidRequest = errors.New("invalid analysis request")
)

// UnavailableError records the terminal stage of a failed request and its
// cause.
type UnavailableError struct {
	Stage analysis.Stage
	Err   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("service unavailable (%s): %v", e.Stage, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// StageOf returns the terminal stage of an orchestration failure, or "".
func StageOf(err error) analysis.Stage {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue.Stage
	}
	return ""
}
