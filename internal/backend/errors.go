package backend

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated means no usable credential survived resolution.
var ErrUnauthenticated = errors.New("unauthenticated")

// Error is a failure the backend itself reported with a status and a
// structured reason. It is forwarded to the caller as-is.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend rejected: status=%d detail=%s", e.StatusCode, e.Detail)
}

// TransportError is a network-level failure (DNS, connection refused,
// timeout) distinct from anything the backend said.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsBackendError unwraps err into *Error if the backend reported it.
func AsBackendError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
