package models

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/woozymasta/sonar/pkg/a2s"
)

func TestNewServer(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	info := &a2s.Info{
		Name:        "Namalsk",
		Map:         "namalsk",
		Folder:      "dayz",
		Game:        "DayZ",
		Version:     "1.26",
		AppID:       1024,
		Players:     12,
		MaxPlayers:  50,
		Bots:        1,
		ServerType:  a2s.ServerDedicated,
		Environment: a2s.EnvWindows,
		Visibility:  1,
		VAC:         1,
		Extra: a2s.ExtraData{
			Flags:    a2s.EDFPort | a2s.EDFKeywords | a2s.EDFGameID,
			Port:     2302,
			Keywords: "battleye,third",
			GameID:   221100,
		},
	}

	s := NewServer(netip.MustParseAddrPort("[::ffff:5.6.7.8]:27016"), info, now)
	require.Equal(t, Server{
		FirstSeen:   now,
		LastSeen:    now,
		IP:          "5.6.7.8",
		Port:        27016,
		Name:        "Namalsk",
		Map:         "namalsk",
		Folder:      "dayz",
		Game:        "DayZ",
		Version:     "1.26",
		Keywords:    "battleye,third",
		ServerType:  "dedicated",
		Environment: "Windows",
		GameID:      221100,
		AppID:       1024,
		GamePort:    2302,
		Players:     12,
		MaxPlayers:  50,
		Bots:        1,
		Password:    true,
		VAC:         true,
	}, s)

	require.Equal(t, "5.6.7.8:27016", s.Address())
	require.Equal(t, netip.MustParseAddrPort("5.6.7.8:27016"), s.AddrPort())
}

func TestNewServerWithoutExtra(t *testing.T) {
	s := NewServer(netip.MustParseAddrPort("10.0.0.1:27015"), &a2s.Info{Name: "bare"}, time.Now())
	require.Zero(t, s.GamePort)
	require.Empty(t, s.Keywords)
	require.Empty(t, s.Environment)
	require.False(t, s.VAC)
}

func TestServerAddressIPv6(t *testing.T) {
	s := Server{IP: "2001:db8::1", Port: 27015}
	require.Equal(t, "[2001:db8::1]:27015", s.Address())
}

func TestParsePort(t *testing.T) {
	p, err := ParsePort("27015")
	require.NoError(t, err)
	require.Equal(t, 27015, p)

	_, err = ParsePort("65536")
	require.Error(t, err)
	_, err = ParsePort("-1")
	require.Error(t, err)
}
