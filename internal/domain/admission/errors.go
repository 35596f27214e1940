package admission

import "errors"

var (
	// ErrRejected is returned when every permit is taken.
	ErrRejected = errors.New("admission rejected: no permit available")
	// ErrNotHeld is the panic value of Release without a matching acquire.
	ErrNotHeld = errors.New("admission: release of a permit that is not held")
)
