// Package fake fills a database with random servers for development of API consumers.
package fake

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sonar/internal/models"
)

// Store receives generated servers.
type Store interface {
	UpsertServer(s models.Server) error
}

type game struct {
	name   string
	folder string
	maps   []string
	appID  int
	slots  uint8
}

var games = []game{
	{name: "DayZ", folder: "dayz", appID: 221100, slots: 60, maps: []string{"chernarusplus", "enoch", "sakhal", "namalsk"}},
	{name: "Arma 3", folder: "Arma3", appID: 107410, slots: 64, maps: []string{"Altis", "Tanoa", "Malden"}},
	{name: "Team Fortress", folder: "tf", appID: 440, slots: 24, maps: []string{"ctf_2fort", "pl_badwater", "cp_dustbowl"}},
	{name: "Counter-Strike 2", folder: "cs2", appID: 730, slots: 10, maps: []string{"de_dust2", "de_inferno", "de_mirage"}},
}

var (
	countriesHigh = []string{"US", "DE", "RU", "BR", "FR", "GB", "PL"}
	countriesLow  = []string{"CA", "AU", "NL", "SE", "JP", "ZA", "AR"}
	environments  = []string{"Windows", "Linux"}
)

// GenerateServers stores count random servers seen within the last 30 days.
// Roughly a fifth of them share an IP with an earlier one, on another port.
func GenerateServers(store Store, count int, r *rand.Rand) int {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var (
		hosts []netip.Addr
		saved int
	)

	for i := 0; i < count; i++ {
		var ip netip.Addr
		if len(hosts) > 0 && r.Float32() < 0.2 {
			ip = hosts[r.IntN(len(hosts))]
		} else {
			ip = netip.AddrFrom4([4]byte{byte(r.IntN(220) + 1), byte(r.IntN(255)), byte(r.IntN(255)), byte(r.IntN(254) + 1)})
			hosts = append(hosts, ip)
		}

		g := games[r.IntN(len(games))]
		seen := time.Now().Add(-time.Duration(r.IntN(30*24*60)) * time.Minute)

		country := countriesHigh[r.IntN(len(countriesHigh))]
		if r.Float32() < 0.3 {
			country = countriesLow[r.IntN(len(countriesLow))]
		}

		players := uint8(r.IntN(int(g.slots) + 1))
		s := models.Server{
			FirstSeen:   seen.Add(-7 * 24 * time.Hour),
			LastSeen:    seen,
			IP:          ip.String(),
			Port:        27015 + r.IntN(200),
			CountryCode: country,
			Name:        fmt.Sprintf("%s #%d [PvP]", g.name, r.IntN(1000)),
			Map:         g.maps[r.IntN(len(g.maps))],
			Folder:      g.folder,
			Game:        g.name,
			Version:     fmt.Sprintf("1.%d.%d", r.IntN(30), r.IntN(200000)),
			AppID:       g.appID,
			Players:     players,
			MaxPlayers:  g.slots,
			ServerType:  "dedicated",
			Environment: environments[r.IntN(len(environments))],
			VAC:         r.Float32() < 0.5,
			Password:    r.Float32() < 0.1,
		}

		if err := store.UpsertServer(s); err != nil {
			log.Warn().Err(err).Msg("Failed to store fake server")
			continue
		}
		saved++
	}

	log.Info().Int("count", saved).Msg("Fake servers generated")
	return saved
}
