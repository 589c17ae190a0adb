package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is matched by every decode failure.
	ErrMalformed = errors.New("malformed packet")

	// ErrShortBuffer means a field needs more bytes than remain.
	ErrShortBuffer = errors.New("buffer too short")

	// ErrUnterminatedString means no NUL byte was found before the end of the buffer.
	ErrUnterminatedString = errors.New("string is not NUL terminated")

	// ErrBadCount means a count field references more records than the buffer can hold.
	ErrBadCount = errors.New("invalid record count")
)

// DecodeError describes where and why decoding stopped.
type DecodeError struct {
	Err    error
	Field  string
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

// Unwrap lets errors.Is match both ErrMalformed and the precise cause.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformed, e.Err}
}

// Errorf builds a *DecodeError for callers that validate structure outside a Reader.
func Errorf(field string, offset int, err error) error {
	return &DecodeError{Field: field, Offset: offset, Err: err}
}
