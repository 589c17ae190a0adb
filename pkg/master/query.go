// Package master enumerates game server addresses from a Steam master server.
//
// The directory is paged: each request is seeded with the last address of the
// previous page and the server signals the end by returning 0.0.0.0:0 as the
// final entry. All pages of one enumeration share a single UDP socket.
//
//	filter := master.NewFilter().Set("appid", master.Int(221100)).Set("dedicated", master.Bool(true))
//	addrs, err := master.Query(ctx, "hl2master.steampowered.com:27011", master.RegionEurope, filter)
package master

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net/netip"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sonar/pkg/transport"
	"golang.org/x/time/rate"
)

// ErrPageLimit is returned when the server keeps paging past the configured ceiling.
var ErrPageLimit = errors.New("master page limit reached")

// Options tunes an enumeration.
type Options struct {
	// Limiter paces page requests when set.
	Limiter *rate.Limiter

	// Transport configures the shared session socket.
	Transport []transport.Option

	// MaxPages stops the enumeration with ErrPageLimit; zero means unbounded.
	MaxPages int
}

// Option mutates Options.
type Option func(*Options)

// WithMaxPages bounds the number of page requests.
func WithMaxPages(n int) Option {
	return func(o *Options) { o.MaxPages = n }
}

// WithLimiter waits on l before every page request.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *Options) { o.Limiter = l }
}

// WithTransport sets attempts, timeouts and dialer of the session socket.
func WithTransport(opts ...transport.Option) Option {
	return func(o *Options) { o.Transport = append(o.Transport, opts...) }
}

// Servers lazily enumerates the directory. Addresses are yielded in encounter
// order; the terminating sentinel is never yielded. An error ends the sequence.
// Each call starts a fresh enumeration from the sentinel seed.
func Servers(ctx context.Context, address string, region Region, filter *Filter, opts ...Option) iter.Seq2[netip.AddrPort, error] {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(netip.AddrPort, error) bool) {
		if !region.Valid() {
			yield(netip.AddrPort{}, fmt.Errorf("master %s: %s is not a valid region", address, region))
			return
		}

		t, err := transport.Dial(ctx, address, o.Transport...)
		if err != nil {
			yield(netip.AddrPort{}, fmt.Errorf("master: %w", err))
			return
		}
		defer func() { _ = t.Close() }()

		var (
			seed = Sentinel
			prev []byte
		)
		// a repeated copy of the previous page cannot answer the next request
		fresh := func(reply []byte) bool {
			return prev == nil || !bytes.Equal(reply, prev)
		}

		for page := 1; ; page++ {
			if o.MaxPages > 0 && page > o.MaxPages {
				yield(netip.AddrPort{}, fmt.Errorf("master %s: %w (%d)", address, ErrPageLimit, o.MaxPages))
				return
			}
			if o.Limiter != nil {
				if err := o.Limiter.Wait(ctx); err != nil {
					yield(netip.AddrPort{}, fmt.Errorf("master %s: %w", address, err))
					return
				}
			}

			reply, err := t.ExchangeFunc(ctx, NewRequest(region, seed, filter), fresh)
			if err != nil {
				yield(netip.AddrPort{}, fmt.Errorf("master %s page %d: %w", address, page, err))
				return
			}
			prev = reply

			addrs, err := DecodeAddresses(reply)
			if err != nil {
				yield(netip.AddrPort{}, fmt.Errorf("master %s page %d: %w", address, page, err))
				return
			}

			log.Debug().
				Str("master", address).
				Int("page", page).
				Int("count", len(addrs)).
				Str("seed", seed.String()).
				Msg("Master page received")

			// an empty page cannot seed another request
			if len(addrs) == 0 {
				return
			}

			last := addrs[len(addrs)-1]
			done := last == Sentinel
			if done {
				addrs = addrs[:len(addrs)-1]
			}

			for _, a := range addrs {
				if !yield(a, nil) {
					return
				}
			}

			if done {
				return
			}
			seed = last
		}
	}
}

// Query collects the whole enumeration. On error the addresses gathered so
// far are returned alongside it.
func Query(ctx context.Context, address string, region Region, filter *Filter, opts ...Option) ([]netip.AddrPort, error) {
	var out []netip.AddrPort
	for addr, err := range Servers(ctx, address, region, filter, opts...) {
		if err != nil {
			return out, err
		}
		out = append(out, addr)
	}
	return out, nil
}
