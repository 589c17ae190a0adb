// Package a2s implements the Source engine server query protocol
// (A2S_INFO, A2S_PLAYER and A2S_RULES) over single-packet UDP replies.
//
// Every query opens its own socket, performs the challenge handshake when the
// server asks for one, and decodes the final reply:
//
//	info, err := a2s.QueryInfo(ctx, "192.0.2.10:27015", transport.WithAttempts(3))
//
// Transport failures match [transport.ErrTransport]; malformed replies match
// [wire.ErrMalformed].
package a2s

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sonar/pkg/transport"
	"github.com/woozymasta/sonar/pkg/wire"
)

// ErrUnexpectedChallenge is returned when a server answers a challenged request with another challenge.
var ErrUnexpectedChallenge = errors.New("unexpected challenge reply")

// Exchanger sends one datagram and returns the first reply accept takes.
// [*transport.Transport] implements it.
type Exchanger interface {
	ExchangeFunc(ctx context.Context, packet []byte, accept transport.AcceptFunc) ([]byte, error)
}

// Kind selects the query variant.
type Kind uint8

// Query kinds.
const (
	KindInfo Kind = iota
	KindPlayers
	KindRules
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindPlayers:
		return "players"
	case KindRules:
		return "rules"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// request builds the packet for this kind carrying challenge, if any.
func (k Kind) request(challenge Challenge) []byte {
	switch k {
	case KindPlayers:
		return NewPlayerRequest(challenge)
	case KindRules:
		return NewRulesRequest(challenge)
	default:
		return NewInfoRequest(challenge)
	}
}

// challenge classifies the first reply. Info servers may answer with data
// directly; player and rules servers always answer with a challenge.
func (k Kind) challenge(reply []byte) (Challenge, bool, error) {
	if k == KindInfo && !IsChallenge(reply) {
		return nil, false, nil
	}

	if len(reply) <= replyHeaderSize {
		return nil, false, wire.Errorf("challenge", len(reply), wire.ErrShortBuffer)
	}
	return Challenge(append([]byte(nil), reply[replyHeaderSize:]...)), true, nil
}

// state of the challenge handshake.
type state uint8

const (
	awaitingChallenge state = iota
	awaitingData
)

// RoundTrip runs the handshake for kind over ex and returns the data reply.
// It performs at most two exchanges.
func RoundTrip(ctx context.Context, ex Exchanger, kind Kind) ([]byte, error) {
	var (
		packet = kind.request(nil)
		st     = awaitingChallenge
		accept transport.AcceptFunc
	)

	for {
		reply, err := ex.ExchangeFunc(ctx, packet, accept)
		if err != nil {
			return nil, err
		}

		switch st {
		case awaitingChallenge:
			token, ok, err := kind.challenge(reply)
			if err != nil {
				return nil, err
			}
			if !ok {
				return reply, nil
			}

			log.Trace().
				Str("kind", kind.String()).
				Hex("challenge", token).
				Msg("Challenge received")

			packet = kind.request(token)
			st = awaitingData
			accept = notRepeated(token)

		case awaitingData:
			if IsChallenge(reply) {
				return nil, wire.Errorf("challenge", 0, ErrUnexpectedChallenge)
			}
			return reply, nil
		}
	}
}

// notRepeated rejects another copy of the challenge carrying token, which a
// server sends when an earlier attempt of the challenge request is answered late.
func notRepeated(token Challenge) transport.AcceptFunc {
	return func(reply []byte) bool {
		return !IsChallenge(reply) || !bytes.Equal(reply[replyHeaderSize:], token)
	}
}

// query opens a session transport, runs the handshake and decodes the reply.
func query[T any](ctx context.Context, address string, kind Kind, decode func([]byte) (T, error), opts []transport.Option) (T, error) {
	var zero T

	t, err := transport.Dial(ctx, address, opts...)
	if err != nil {
		return zero, fmt.Errorf("a2s %s: %w", kind, err)
	}
	defer func() { _ = t.Close() }()

	reply, err := RoundTrip(ctx, t, kind)
	if err != nil {
		return zero, fmt.Errorf("a2s %s %s: %w", kind, address, err)
	}

	out, err := decode(reply)
	if err != nil {
		return zero, fmt.Errorf("a2s %s %s: %w", kind, address, err)
	}

	return out, nil
}

// QueryInfo requests A2S_INFO from address (host:port).
func QueryInfo(ctx context.Context, address string, opts ...transport.Option) (*Info, error) {
	return query(ctx, address, KindInfo, DecodeInfo, opts)
}

// QueryPlayers requests A2S_PLAYER from address (host:port).
func QueryPlayers(ctx context.Context, address string, opts ...transport.Option) (*Players, error) {
	return query(ctx, address, KindPlayers, DecodePlayers, opts)
}

// QueryRules requests A2S_RULES from address (host:port).
func QueryRules(ctx context.Context, address string, opts ...transport.Option) (*Rules, error) {
	return query(ctx, address, KindRules, DecodeRules, opts)
}
