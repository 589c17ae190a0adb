package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/woozymasta/sonar/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "sonar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func server(ip string, port int, seen time.Time) models.Server {
	return models.Server{
		IP:          ip,
		Port:        port,
		Name:        "srv " + ip,
		Map:         "chernarusplus",
		Game:        "DayZ",
		AppID:       4000,
		Players:     3,
		MaxPlayers:  60,
		ServerType:  "dedicated",
		Environment: "windows",
		VAC:         true,
		LastSeen:    seen,
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sonar.db")

	repo, err := New(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = New(path)
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	var applied int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	require.Equal(t, 2, applied)
}

func TestUpsertServer(t *testing.T) {
	repo := newTestRepo(t)
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	s := server("10.0.0.1", 27016, first)
	s.CountryCode = "DE"
	require.NoError(t, repo.UpsertServer(s))

	got, err := repo.GetServer("10.0.0.1", 27016)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Count)
	require.True(t, got.FirstSeen.Equal(first))
	require.Equal(t, "DE", got.CountryCode)
	require.Equal(t, uint8(3), got.Players)
	require.True(t, got.VAC)
	require.False(t, got.Password)

	later := first.Add(time.Hour)
	s = server("10.0.0.1", 27016, later)
	s.Map = "enoch"
	s.CountryCode = ""
	require.NoError(t, repo.UpsertServer(s))

	got, err = repo.GetServer("10.0.0.1", 27016)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Count)
	require.Equal(t, "enoch", got.Map)
	require.Equal(t, "DE", got.CountryCode, "blank country keeps the known one")
	require.True(t, got.FirstSeen.Equal(first))
	require.True(t, got.LastSeen.Equal(later))
}

func TestGetServersFilter(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	a := server("10.0.0.1", 27016, now)
	a.CountryCode = "FR"
	b := server("10.0.0.2", 27016, now.Add(-time.Minute))
	b.Players = 0
	b.Map = "enoch"
	c := server("10.0.0.3", 2303, now.Add(-48*time.Hour))
	c.Game = "Arma 3"

	for _, s := range []models.Server{a, b, c} {
		require.NoError(t, repo.UpsertServer(s))
	}

	all, err := repo.GetServers(models.ServerFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "10.0.0.1", all[0].IP, "ordered by last seen")
	require.Equal(t, "10.0.0.3", all[2].IP)

	tests := []struct {
		name   string
		filter models.ServerFilter
		want   []string
	}{
		{"game", models.ServerFilter{Game: "Arma 3"}, []string{"10.0.0.3"}},
		{"map", models.ServerFilter{Map: "enoch"}, []string{"10.0.0.2"}},
		{"country is case insensitive", models.ServerFilter{Country: "fr"}, []string{"10.0.0.1"}},
		{"not empty", models.ServerFilter{NotEmpty: true}, []string{"10.0.0.1", "10.0.0.3"}},
		{"seen before", models.ServerFilter{SeenBefore: now.Add(-time.Hour)}, []string{"10.0.0.3"}},
		{"limit offset", models.ServerFilter{Limit: 1, Offset: 1}, []string{"10.0.0.2"}},
		{"no match", models.ServerFilter{Game: "none"}, []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.GetServers(tc.filter)
			require.NoError(t, err)

			ips := []string{}
			for _, s := range got {
				ips = append(ips, s.IP)
			}
			require.Equal(t, tc.want, ips)
		})
	}
}

func TestDeleteServer(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.UpsertServer(server("10.0.0.1", 27016, time.Now())))

	require.NoError(t, repo.DeleteServer("10.0.0.1", 27016))
	require.ErrorIs(t, repo.DeleteServer("10.0.0.1", 27016), ErrNotFound)

	_, err := repo.GetServer("10.0.0.1", 27016)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteStale(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	require.NoError(t, repo.UpsertServer(server("10.0.0.1", 1, now)))
	require.NoError(t, repo.UpsertServer(server("10.0.0.2", 1, now.Add(-2*time.Hour))))
	require.NoError(t, repo.UpsertServer(server("10.0.0.3", 1, now.Add(-3*time.Hour))))

	n, err := repo.DeleteStale(now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	count, err := repo.CountServers()
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
