package predictor

import (
	"errors"
	"fmt"
)

// Kind classifies a failed predictor call.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindConnection
	KindRemoteClient
	KindRemoteServer
	KindParse
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindRemoteClient:
		return "remote_client"
	case KindRemoteServer:
		return "remote_server"
	case KindParse:
		return "parse"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// Sentinels matched by Error.Is, one per Kind.
var (
	ErrTimeout      = errors.New("predictor timeout")
	ErrConnection   = errors.New("predictor unreachable")
	ErrRemoteClient = errors.New("predictor rejected request")
	ErrRemoteServer = errors.New("predictor failed")
	ErrParse        = errors.New("predictor response unreadable")
	ErrCanceled     = errors.New("predictor call canceled")
)

var sentinels = map[Kind]error{
	KindTimeout:      ErrTimeout,
	KindConnection:   ErrConnection,
	KindRemoteClient: ErrRemoteClient,
	KindRemoteServer: ErrRemoteServer,
	KindParse:        ErrParse,
	KindCanceled:     ErrCanceled,
}

// Error is returned by Client.Predict for every failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("predictor %s: status %d: %s", e.Kind, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("predictor %s: %v", e.Kind, e.Err)
	}
	return "predictor " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's Kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf returns the Kind of err, or 0 when err is not a predictor error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
