package crawler

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/sonar/internal/geoip"
	"github.com/woozymasta/sonar/internal/models"
	"github.com/woozymasta/sonar/pkg/a2s"
	"github.com/woozymasta/sonar/pkg/master"
	"github.com/woozymasta/sonar/pkg/transport"
)

// startMaster serves the given pages in order, one per request.
func startMaster(t *testing.T, pages ...[]netip.AddrPort) string {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 1400)
		for i := 0; ; i++ {
			_, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if i < len(pages) {
				_, _ = conn.WriteTo(master.EncodeAddresses(pages[i]), addr)
			}
		}
	}()

	return conn.LocalAddr().String()
}

type stubQuerier struct {
	infos map[string]*a2s.Info
}

func (q stubQuerier) Info(_ context.Context, address string) (*a2s.Info, error) {
	if info, ok := q.infos[address]; ok {
		return info, nil
	}
	return nil, transport.ErrTimeout
}

func (stubQuerier) Players(context.Context, string) (*a2s.Players, error) {
	return nil, errors.ErrUnsupported
}

func (stubQuerier) Rules(context.Context, string) (*a2s.Rules, error) {
	return nil, errors.ErrUnsupported
}

type memStore struct {
	mu      sync.Mutex
	servers map[string]models.Server
	err     error
}

func (m *memStore) UpsertServer(s models.Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.servers == nil {
		m.servers = map[string]models.Server{}
	}
	m.servers[s.Address()] = s
	return nil
}

func ap(s string) netip.AddrPort {
	return netip.MustParseAddrPort(s)
}

func TestRun(t *testing.T) {
	a, b, c, d := ap("1.1.1.1:27015"), ap("2.2.2.2:27016"), ap("3.3.3.3:2303"), ap("4.4.4.4:27015")
	addr := startMaster(t,
		[]netip.AddrPort{a, b},
		[]netip.AddrPort{b, c, d, master.Sentinel},
	)

	q := stubQuerier{infos: map[string]*a2s.Info{
		a.String(): {Name: "alpha", Map: "chernarusplus", Players: 10, MaxPlayers: 60},
		b.String(): {Name: "bravo", Map: "enoch", Environment: a2s.EnvLinux},
		c.String(): {Name: "charlie", Extra: a2s.ExtraData{Flags: a2s.EDFPort, Port: 2302}},
	}}
	store := &memStore{}
	geo := geoip.Static{a.Addr(): "US"}

	cr := New(Config{
		Master:  addr,
		Region:  master.RegionAll,
		Workers: 3,
		MasterOptions: []master.Option{
			master.WithTransport(transport.WithTimeout(time.Second)),
		},
	}, q, store, geo)

	saved := testutil.ToFloat64(metricServers.WithLabelValues(resultSaved))

	stats, err := cr.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, saved+3, testutil.ToFloat64(metricServers.WithLabelValues(resultSaved)))
	require.Equal(t, int64(4), stats.Discovered)
	require.Equal(t, int64(1), stats.Duplicates)
	require.Equal(t, int64(4), stats.Queried)
	require.Equal(t, int64(3), stats.Saved)
	require.Equal(t, int64(1), stats.Failed)

	require.Len(t, store.servers, 3)
	require.Equal(t, "US", store.servers[a.String()].CountryCode)
	require.Equal(t, "Linux", store.servers[b.String()].Environment)
	require.Equal(t, 2302, store.servers[c.String()].GamePort)
	require.NotContains(t, store.servers, d.String())
}

func TestRunMasterFailureKeepsDiscovered(t *testing.T) {
	a := ap("1.1.1.1:27015")
	// second page never answers
	addr := startMaster(t, []netip.AddrPort{a})

	store := &memStore{}
	cr := New(Config{
		Master:        addr,
		Region:        master.RegionEurope,
		Workers:       1,
		MasterOptions: []master.Option{master.WithTransport(transport.WithTimeout(30 * time.Millisecond))},
	}, stubQuerier{infos: map[string]*a2s.Info{a.String(): {Name: "alpha"}}}, store, nil)

	stats, err := cr.Run(context.Background())
	require.ErrorIs(t, err, transport.ErrTimeout)
	require.Equal(t, int64(1), stats.Saved)
	require.Contains(t, store.servers, a.String())
}

func TestRunStoreError(t *testing.T) {
	a := ap("1.1.1.1:27015")
	addr := startMaster(t, []netip.AddrPort{a, master.Sentinel})

	store := &memStore{err: errors.New("disk full")}
	cr := New(Config{Master: addr, Region: master.RegionAll}, stubQuerier{infos: map[string]*a2s.Info{a.String(): {}}}, store, nil)

	stats, err := cr.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.StoreErrs)
	require.Zero(t, stats.Saved)
}

func TestAddrSet(t *testing.T) {
	s := newAddrSet()
	require.True(t, s.add(ap("1.2.3.4:1")))
	require.False(t, s.add(ap("1.2.3.4:1")))
	require.True(t, s.add(ap("1.2.3.4:2")))
	require.True(t, s.add(ap("[::1]:1")))
}
