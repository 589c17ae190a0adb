package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is matched by every socket level failure.
	ErrTransport = errors.New("transport error")

	// ErrTimeout is returned once every attempt timed out.
	ErrTimeout = errors.New("timeout reached, possible reasons: rate limited, timeout too short or wrong host")

	// ErrInvalidAttempts rejects attempt counts below one.
	ErrInvalidAttempts = errors.New("invalid attempt count")

	// ErrAttemptsMismatch rejects a per-attempt timeout list whose length differs from the attempt count.
	ErrAttemptsMismatch = errors.New("number of attempts does not match the number of timeouts")

	// ErrInvalidTimeout rejects non-positive timeouts.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidOption rejects other unusable options.
	ErrInvalidOption = errors.New("invalid transport option")

	// ErrInvalidAddress rejects addresses that are not host:port with a 16-bit port.
	ErrInvalidAddress = errors.New("invalid address")
)

// Error is a socket failure bound to the remote address.
type Error struct {
	Err  error
	Op   string
	Addr string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

// Unwrap matches ErrTransport as well as the underlying cause.
func (e *Error) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}
