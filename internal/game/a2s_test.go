package game

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/sonar/pkg/transport"
	"github.com/woozymasta/sonar/pkg/wire"
)

func TestNewValidates(t *testing.T) {
	_, err := New(transport.WithAttempts(2), transport.WithTimeouts(time.Second))
	require.ErrorIs(t, err, transport.ErrAttemptsMismatch)

	c, err := New(transport.WithAttempts(2))
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestClientTimeout(t *testing.T) {
	// a bound socket that never answers
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	c, err := New(transport.WithTimeout(20 * time.Millisecond))
	require.NoError(t, err)

	before := testutil.ToFloat64(metricQueries.WithLabelValues("info", "timeout"))

	var q Querier = c
	_, err = q.Info(context.Background(), conn.LocalAddr().String())
	require.ErrorIs(t, err, transport.ErrTimeout)

	_, err = q.Players(context.Background(), conn.LocalAddr().String())
	require.ErrorIs(t, err, transport.ErrTimeout)

	_, err = q.Rules(context.Background(), conn.LocalAddr().String())
	require.ErrorIs(t, err, transport.ErrTimeout)

	after := testutil.ToFloat64(metricQueries.WithLabelValues("info", "timeout"))
	require.Equal(t, before+1, after)
}

func TestQueryResult(t *testing.T) {
	require.Equal(t, "ok", queryResult(nil))
	require.Equal(t, "timeout", queryResult(&transport.Error{Op: "read", Err: transport.ErrTimeout}))
	require.Equal(t, "malformed", queryResult(wire.Errorf("header", 0, wire.ErrMalformed)))
	require.Equal(t, "error", queryResult(context.Canceled))
}
