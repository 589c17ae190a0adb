package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

const (
	// DefaultTimeout is used for every attempt when no timeout is configured.
	DefaultTimeout = time.Second

	// DefaultBufferSize fits any single-packet A2S or master reply.
	DefaultBufferSize = 4096
)

// Dialer abstracts over [*net.Dialer].
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options configures a Transport. Build it with NewOptions.
type Options struct {
	// Dialer creates the per-session UDP socket.
	Dialer Dialer

	// Timeouts, when set, holds one timeout per attempt.
	Timeouts []time.Duration

	// Timeout is the uniform per-attempt timeout used when Timeouts is empty.
	Timeout time.Duration

	// Attempts is the number of times a datagram is sent before giving up.
	// Zero means len(Timeouts), or 1 when no list is configured.
	Attempts int

	// BufferSize is the receive buffer size; longer datagrams are truncated by the kernel.
	BufferSize int
}

// Option mutates Options.
type Option func(*Options)

// WithAttempts sets how many times a request is sent before failing with ErrTimeout.
func WithAttempts(n int) Option {
	return func(o *Options) { o.Attempts = n }
}

// WithTimeout sets a uniform per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithTimeouts sets distinct per-attempt timeouts. Its length must match the attempt count.
func WithTimeouts(d ...time.Duration) Option {
	return func(o *Options) { o.Timeouts = append([]time.Duration(nil), d...) }
}

// WithDialer replaces the default [*net.Dialer].
func WithDialer(d Dialer) Option {
	return func(o *Options) { o.Dialer = d }
}

// WithBufferSize sets the receive buffer size.
func WithBufferSize(n int) Option {
	return func(o *Options) { o.BufferSize = n }
}

// NewOptions applies opts over the defaults and validates the result.
func NewOptions(opts ...Option) (Options, error) {
	o := Options{
		Dialer:     &net.Dialer{},
		Timeout:    DefaultTimeout,
		BufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.Attempts == 0 {
		o.Attempts = 1
		if len(o.Timeouts) > 0 {
			o.Attempts = len(o.Timeouts)
		}
	}

	if err := o.Validate(); err != nil {
		return Options{}, err
	}

	return o, nil
}

// Validate reports configuration errors. It never touches the network.
func (o Options) Validate() error {
	if o.Attempts < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidAttempts, o.Attempts)
	}

	if len(o.Timeouts) > 0 {
		if len(o.Timeouts) != o.Attempts {
			return fmt.Errorf("%w: %d attempts, %d timeouts", ErrAttemptsMismatch, o.Attempts, len(o.Timeouts))
		}
		for i, d := range o.Timeouts {
			if d <= 0 {
				return fmt.Errorf("%w: attempt %d has %s", ErrInvalidTimeout, i+1, d)
			}
		}
	} else if o.Timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, o.Timeout)
	}

	if o.BufferSize <= 0 {
		return fmt.Errorf("%w: buffer size %d", ErrInvalidOption, o.BufferSize)
	}
	if o.Dialer == nil {
		return fmt.Errorf("%w: nil dialer", ErrInvalidOption)
	}

	return nil
}

// TimeoutFor returns the timeout of the zero-based attempt.
func (o Options) TimeoutFor(attempt int) time.Duration {
	if attempt < len(o.Timeouts) {
		return o.Timeouts[attempt]
	}
	return o.Timeout
}

// Budget is the worst-case time a single exchange may take.
func (o Options) Budget() time.Duration {
	var total time.Duration
	for i := 0; i < o.Attempts; i++ {
		total += o.TimeoutFor(i)
	}
	return total
}
