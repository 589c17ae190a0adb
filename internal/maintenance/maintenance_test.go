package maintenance

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/woozymasta/sonar/internal/models"
	"github.com/woozymasta/sonar/internal/storage"
	"github.com/woozymasta/sonar/pkg/a2s"
	"github.com/woozymasta/sonar/pkg/transport"
)

type stubQuerier map[string]*a2s.Info

func (q stubQuerier) Info(_ context.Context, address string) (*a2s.Info, error) {
	if info, ok := q[address]; ok {
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

func seed(t *testing.T, servers ...models.Server) *storage.Repository {
	t.Helper()

	repo, err := storage.New(filepath.Join(t.TempDir(), "sonar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	for _, s := range servers {
		require.NoError(t, repo.UpsertServer(s))
	}
	return repo
}

func TestRefresh(t *testing.T) {
	old := time.Now().Add(-24 * time.Hour).UTC()
	repo := seed(t,
		models.Server{IP: "10.0.0.1", Port: 27015, Name: "old name", CountryCode: "NL", LastSeen: old},
		models.Server{IP: "10.0.0.2", Port: 27015, Name: "gone", LastSeen: old},
	)

	q := stubQuerier{"10.0.0.1:27015": {Name: "new name", Players: 4}}
	res, err := Refresh(context.Background(), repo, q, Options{Workers: 2})
	require.NoError(t, err)
	require.Equal(t, Result{Checked: 2, Updated: 1, Deleted: 1, Offline: 1}, res)

	s, err := repo.GetServer("10.0.0.1", 27015)
	require.NoError(t, err)
	require.Equal(t, "new name", s.Name)
	require.Equal(t, "NL", s.CountryCode)
	require.Equal(t, uint8(4), s.Players)
	require.True(t, s.FirstSeen.Equal(old))
	require.True(t, s.LastSeen.After(old))

	_, err = repo.GetServer("10.0.0.2", 27015)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRefreshKeepOfflineOnlyStale(t *testing.T) {
	now := time.Now().UTC()
	repo := seed(t,
		models.Server{IP: "10.0.0.1", Port: 1, LastSeen: now},
		models.Server{IP: "10.0.0.2", Port: 1, LastSeen: now.Add(-2 * time.Hour)},
	)

	res, err := Refresh(context.Background(), repo, stubQuerier{}, Options{
		OnlyStale:   time.Hour,
		KeepOffline: true,
	})
	require.NoError(t, err)
	require.Equal(t, Result{Checked: 1, Offline: 1}, res)

	count, err := repo.CountServers()
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestRefreshEmpty(t *testing.T) {
	res, err := Refresh(context.Background(), seed(t), stubQuerier{}, Options{})
	require.NoError(t, err)
	require.Zero(t, res)
}

func TestPrune(t *testing.T) {
	now := time.Now().UTC()
	repo := seed(t,
		models.Server{IP: "10.0.0.1", Port: 1, LastSeen: now},
		models.Server{IP: "10.0.0.2", Port: 1, LastSeen: now.Add(-72 * time.Hour)},
	)

	n, err := Prune(repo, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
