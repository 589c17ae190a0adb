// Package models defines the data structures used for API responses and database persistence.
package models

import (
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/woozymasta/sonar/pkg/a2s"
)

// Server is a game server discovered through a master server and stored in the database.
type Server struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	IP          string    `json:"ip"`
	CountryCode string    `json:"country_code,omitempty"`
	Name        string    `json:"name"`
	Map         string    `json:"map"`
	Folder      string    `json:"folder"`
	Game        string    `json:"game"`
	Version     string    `json:"version"`
	Keywords    string    `json:"keywords,omitempty"`
	ServerType  string    `json:"server_type"`
	Environment string    `json:"environment"`
	GameID      int64     `json:"game_id,omitempty"`
	Count       int64     `json:"count"`
	Port        int       `json:"port"`
	AppID       int       `json:"app_id"`
	GamePort    int       `json:"game_port,omitempty"`
	Players     uint8     `json:"players"`
	MaxPlayers  uint8     `json:"max_players"`
	Bots        uint8     `json:"bots"`
	Password    bool      `json:"password"`
	VAC         bool      `json:"vac"`
}

// NewServer maps an info reply from addr into a record seen at now.
func NewServer(addr netip.AddrPort, info *a2s.Info, now time.Time) Server {
	s := Server{
		FirstSeen:   now,
		LastSeen:    now,
		IP:          addr.Addr().Unmap().String(),
		Port:        int(addr.Port()),
		Name:        info.Name,
		Map:         info.Map,
		Folder:      info.Folder,
		Game:        info.Game,
		Version:     info.Version,
		AppID:       int(info.AppID),
		Players:     info.Players,
		MaxPlayers:  info.MaxPlayers,
		Bots:        info.Bots,
		ServerType:  info.ServerType.String(),
		Environment: info.Environment.String(),
		Password:    info.Visibility != 0,
		VAC:         info.VAC != 0,
	}

	if port, ok := info.Extra.GamePort(); ok {
		s.GamePort = int(port)
	}
	if tags, ok := info.Extra.Tags(); ok {
		s.Keywords = tags
	}
	if id, ok := info.Extra.Game(); ok {
		s.GameID = id
	}

	return s
}

// Address returns the query endpoint in host:port form.
func (s Server) Address() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// AddrPort returns the query endpoint; a malformed IP yields an invalid value.
func (s Server) AddrPort() netip.AddrPort {
	ip, _ := netip.ParseAddr(s.IP)
	return netip.AddrPortFrom(ip, uint16(s.Port))
}

// ServerFilter narrows a stored server listing. Zero fields match everything.
type ServerFilter struct {
	SeenBefore time.Time
	Game       string
	Map        string
	Country    string
	AppID      int
	Limit      int
	Offset     int
	NotEmpty   bool
}

// ParsePort parses a decimal UDP port.
func ParsePort(s string) (int, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return int(port), nil
}
