// Package transport implements the single request/single reply UDP exchange
// used by the A2S and master server protocols, with per-attempt timeouts and
// resends of the identical datagram.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Transport owns one UDP socket for the lifetime of a logical query session.
// Exchanges on the same Transport are sequential; it is not safe for concurrent use.
type Transport struct {
	conn net.Conn
	addr string
	buf  []byte
	opts Options
}

// ValidateAddress checks that address is host:port with a 16-bit port.
func ValidateAddress(address string) error {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidAddress, address)
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("%w: %q has bad port", ErrInvalidAddress, address)
	}

	return nil
}

// Dial validates the options and the address, then opens the session socket.
// Configuration errors are returned before any network activity.
func Dial(ctx context.Context, address string, opts ...Option) (*Transport, error) {
	o, err := NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	return DialOptions(ctx, address, o)
}

// DialOptions is like Dial for pre-built options.
func DialOptions(ctx context.Context, address string, o Options) (*Transport, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	conn, err := o.Dialer.DialContext(ctx, "udp", address)
	if err != nil {
		return nil, &Error{Op: "dial", Addr: address, Err: err}
	}

	return &Transport{
		conn: conn,
		addr: address,
		buf:  make([]byte, o.BufferSize),
		opts: o,
	}, nil
}

// Addr returns the remote address the transport was dialed with.
func (t *Transport) Addr() string {
	return t.addr
}

// Close releases the socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// AcceptFunc reports whether reply answers the packet just sent. Rejected
// replies are dropped and the wait continues within the same attempt.
type AcceptFunc func(reply []byte) bool

// Exchange sends packet and returns the first datagram received.
//
// Each attempt writes the identical packet and waits up to the attempt's
// timeout. A timed out attempt is followed by the next one; any other socket
// error fails immediately without consuming further attempts. Datagrams
// queued before a write are discarded, so a late reply to an earlier packet
// never answers a later one. Cancelling ctx interrupts the pending read.
func (t *Transport) Exchange(ctx context.Context, packet []byte) ([]byte, error) {
	return t.ExchangeFunc(ctx, packet, nil)
}

// ExchangeFunc is Exchange with a filter for replies that arrive after the
// write but are known to belong to an earlier packet. A nil accept takes
// every reply.
func (t *Transport) ExchangeFunc(ctx context.Context, packet []byte, accept AcceptFunc) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		// a past deadline unblocks the pending read
		_ = t.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	for attempt := 0; attempt < t.opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Op: "exchange", Addr: t.addr, Err: err}
		}

		if n := t.discard(); n > 0 {
			log.Trace().
				Str("addr", t.addr).
				Int("attempt", attempt+1).
				Int("discarded", n).
				Msg("Queued datagrams discarded")
		}

		timeout := t.opts.TimeoutFor(attempt)
		deadline := time.Now().Add(timeout)
		ctxBound := false
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
			ctxBound = true
		}

		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return nil, &Error{Op: "deadline", Addr: t.addr, Err: err}
		}
		// cancellation that fired before the deadline above was overwritten
		if err := ctx.Err(); err != nil {
			return nil, &Error{Op: "exchange", Addr: t.addr, Err: err}
		}

		if _, err := t.conn.Write(packet); err != nil {
			return nil, &Error{Op: "write", Addr: t.addr, Err: err}
		}

		reply, err := t.read(attempt, accept)
		if err == nil {
			_ = t.conn.SetReadDeadline(time.Time{})

			log.Trace().
				Str("addr", t.addr).
				Int("attempt", attempt+1).
				Int("sent", len(packet)).
				Int("received", len(reply)).
				Msg("Datagram exchanged")

			return reply, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{Op: "exchange", Addr: t.addr, Err: ctxErr}
		}
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, &Error{Op: "read", Addr: t.addr, Err: err}
		}
		if ctxBound {
			return nil, &Error{Op: "exchange", Addr: t.addr, Err: context.DeadlineExceeded}
		}

		log.Trace().
			Str("addr", t.addr).
			Int("attempt", attempt+1).
			Int("attempts", t.opts.Attempts).
			Dur("timeout", timeout).
			Msg("Attempt timed out")
	}

	return nil, &Error{Op: "exchange", Addr: t.addr, Err: ErrTimeout}
}

// read waits for the first reply that accept takes, until the read deadline.
func (t *Transport) read(attempt int, accept AcceptFunc) ([]byte, error) {
	for {
		n, err := t.conn.Read(t.buf)
		if err != nil {
			return nil, err
		}

		reply := t.buf[:n]
		if accept == nil || accept(reply) {
			return bytes.Clone(reply), nil
		}

		log.Trace().
			Str("addr", t.addr).
			Int("attempt", attempt+1).
			Int("received", n).
			Msg("Stale reply dropped")
	}
}

// discard drops every datagram already queued on the socket and reports
// how many were dropped. It may reset the read deadline.
func (t *Transport) discard() int {
	return drainConn(t.conn, t.buf)
}
