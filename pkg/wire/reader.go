// Package wire implements the byte-level primitives shared by the A2S and
// master server codecs: a little-endian read cursor, NUL-terminated strings
// and structured decode errors.
package wire

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Reader is a forward-only cursor over a received datagram.
// Every read either consumes exactly the field width or fails with a *DecodeError
// and leaves the cursor untouched.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Bytes returns the unread tail without consuming it.
func (r *Reader) Bytes() []byte {
	return r.buf[r.pos:]
}

func (r *Reader) take(field string, n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, &DecodeError{Field: field, Offset: r.pos, Err: ErrShortBuffer}
	}

	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip discards n bytes.
func (r *Reader) Skip(field string, n int) error {
	_, err := r.take(field, n)
	return err
}

// Uint8 reads one unsigned byte.
func (r *Reader) Uint8(field string) (uint8, error) {
	b, err := r.take(field, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a little-endian unsigned 16-bit value.
func (r *Reader) Uint16(field string) (uint16, error) {
	b, err := r.take(field, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Int16 reads a little-endian signed 16-bit value.
func (r *Reader) Int16(field string) (int16, error) {
	v, err := r.Uint16(field)
	return int16(v), err
}

// Int32 reads a little-endian signed 32-bit value.
func (r *Reader) Int32(field string) (int32, error) {
	b, err := r.take(field, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// Float32 reads a little-endian IEEE-754 single precision value.
func (r *Reader) Float32(field string) (float32, error) {
	b, err := r.take(field, 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// Int64 reads a little-endian signed 64-bit value.
func (r *Reader) Int64(field string) (int64, error) {
	b, err := r.take(field, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// CString reads bytes up to the first NUL and advances past the terminator.
// A missing terminator is an error; the string is never truncated silently.
func (r *Reader) CString(field string) (string, error) {
	i := bytes.IndexByte(r.buf[r.pos:], 0x00)
	if i < 0 {
		return "", &DecodeError{Field: field, Offset: r.pos, Err: ErrUnterminatedString}
	}

	s := string(r.buf[r.pos : r.pos+i])
	r.pos += i + 1
	return s, nil
}
