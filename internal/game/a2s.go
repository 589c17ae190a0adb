// Package game runs A2S queries against individual game servers with shared transport settings.
package game

import (
	"context"
	"time"

	"github.com/woozymasta/sonar/pkg/a2s"
	"github.com/woozymasta/sonar/pkg/transport"
)

// Querier is the subset of A2S used by the crawler, maintenance and the HTTP API.
type Querier interface {
	Info(ctx context.Context, address string) (*a2s.Info, error)
	Players(ctx context.Context, address string) (*a2s.Players, error)
	Rules(ctx context.Context, address string) (*a2s.Rules, error)
}

// Client queries servers over UDP, one socket per query.
type Client struct {
	opts []transport.Option
}

// New returns a Client that applies opts to every query. The options are
// validated once so misconfiguration surfaces before any server is contacted.
func New(opts ...transport.Option) (*Client, error) {
	if _, err := transport.NewOptions(opts...); err != nil {
		return nil, err
	}

	return &Client{opts: opts}, nil
}

// Info requests A2S_INFO.
func (c *Client) Info(ctx context.Context, address string) (*a2s.Info, error) {
	return observe(a2s.KindInfo, func() (*a2s.Info, error) {
		return a2s.QueryInfo(ctx, address, c.opts...)
	})
}

// Players requests A2S_PLAYER.
func (c *Client) Players(ctx context.Context, address string) (*a2s.Players, error) {
	return observe(a2s.KindPlayers, func() (*a2s.Players, error) {
		return a2s.QueryPlayers(ctx, address, c.opts...)
	})
}

// Rules requests A2S_RULES.
func (c *Client) Rules(ctx context.Context, address string) (*a2s.Rules, error) {
	return observe(a2s.KindRules, func() (*a2s.Rules, error) {
		return a2s.QueryRules(ctx, address, c.opts...)
	})
}

func observe[T any](kind a2s.Kind, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()

	metricQuerySeconds.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	metricQueries.WithLabelValues(kind.String(), queryResult(err)).Inc()

	return v, err
}
