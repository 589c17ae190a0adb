package config

import (
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/sonar/pkg/master"
	"github.com/woozymasta/sonar/pkg/transport"
)

func parse(t *testing.T, args ...string) (*Config, string, error) {
	t.Helper()
	return ParseArgs(args, flags.HelpFlag|flags.PassDoubleDash)
}

func TestParseQueryCommand(t *testing.T) {
	cfg, cmd, err := parse(t, "--a2s-timeouts", "100ms", "--a2s-timeouts", "300ms", "info", "127.0.0.1:27015")
	require.NoError(t, err)
	require.Equal(t, "info", cmd)
	require.Equal(t, "127.0.0.1:27015", cfg.Info.Args.Address)
	require.Equal(t, []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}, cfg.A2S.Timeouts)

	o, err := transport.NewOptions(cfg.A2S.TransportOptions()...)
	require.NoError(t, err)
	require.Equal(t, 2, o.Attempts)
	require.Equal(t, 400*time.Millisecond, o.Budget())
	require.Equal(t, 4096, o.BufferSize)
}

func TestParseDefaults(t *testing.T) {
	cfg, cmd, err := parse(t, "crawl")
	require.NoError(t, err)
	require.Equal(t, "crawl", cmd)
	require.Equal(t, master.RegionAll, cfg.Crawl.Master.Region)
	require.Equal(t, "hl2master.steampowered.com:27011", cfg.Crawl.Master.Address)
	require.Equal(t, 32, cfg.Crawl.Crawler.Workers)
	require.Equal(t, "sonar.db", cfg.Crawl.Storage.Path)
	require.Equal(t, time.Second, cfg.A2S.Timeout)
	require.Equal(t, "info", cfg.Logger.Level)
}

func TestParseMasterFilter(t *testing.T) {
	cfg, cmd, err := parse(t, "master",
		"--master-region", "europe",
		"--master-filter", "appid=221100",
		"--master-filter", "dedicated",
		"--master-nor", "empty",
		"--master-nand", "password=1", "--master-nand", "linux",
	)
	require.NoError(t, err)
	require.Equal(t, "master", cmd)
	require.Equal(t, master.RegionEurope, cfg.Master.Master.Region)

	f, err := cfg.Master.Master.Filter()
	require.NoError(t, err)
	require.Equal(t, `\appid\221100\dedicated\1\nor\1\empty\1\nand\2\password\1\linux\1`, f.String())
}

func TestParseEnv(t *testing.T) {
	t.Setenv("SONAR_MASTER_REGION", "asia")
	t.Setenv("SONAR_MASTER_FILTER", "appid=440;secure")
	t.Setenv("SONAR_A2S_ATTEMPTS", "3")

	cfg, _, err := parse(t, "master")
	require.NoError(t, err)
	require.Equal(t, master.RegionAsia, cfg.Master.Master.Region)
	require.Equal(t, 3, cfg.A2S.Attempts)

	f, err := cfg.Master.Master.Filter()
	require.NoError(t, err)
	require.Equal(t, `\appid\440\secure\1`, f.String())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"missing address", []string{"info"}},
		{"bad region", []string{"master", "--master-region", "mars"}},
		{"bad filter", []string{"master", "--master-filter", `map=a\b`}},
		{"empty filter key", []string{"master", "--master-filter", "=1"}},
		{"attempts mismatch", []string{"--a2s-attempts", "3", "--a2s-timeouts", "1s", "info", "127.0.0.1:1"}},
		{"no workers", []string{"refresh", "--crawler-workers", "0"}},
		{"no rate window", []string{"serve", "--rate-limit-window", "0s"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parse(t, tc.args...)
			require.Error(t, err)
		})
	}

	_, _, err := parse(t)
	require.ErrorIs(t, err, ErrNoCommand)
}

func TestParseVersion(t *testing.T) {
	cfg, cmd, err := parse(t, "--version")
	require.NoError(t, err)
	require.True(t, cfg.Version)
	require.Empty(t, cmd)
}
