package a2s

import "time"

// EDF is the extra data flags byte that gates the optional tail of an info reply.
type EDF uint8

// Extra data flags, decoded in the order Port, SteamID, SourceTV, Keywords, GameID.
const (
	EDFGameID   EDF = 0x01
	EDFSteamID  EDF = 0x10
	EDFKeywords EDF = 0x20
	EDFSourceTV EDF = 0x40
	EDFPort     EDF = 0x80
)

// Has reports whether every bit of flag is set.
func (f EDF) Has(flag EDF) bool {
	return f&flag == flag
}

// ServerType is the single ASCII tag describing how the server is hosted.
type ServerType byte

// Known server types.
const (
	ServerDedicated    ServerType = 'd'
	ServerNonDedicated ServerType = 'l'
	ServerProxy        ServerType = 'p'
)

func (s ServerType) String() string {
	switch s {
	case ServerDedicated:
		return "dedicated"
	case ServerNonDedicated:
		return "non-dedicated"
	case ServerProxy:
		return "proxy"
	case 0:
		return ""
	default:
		return string(rune(s))
	}
}

// MarshalText renders the tag as its raw ASCII character.
func (s ServerType) MarshalText() ([]byte, error) {
	return []byte{byte(s)}, nil
}

// Environment is the single ASCII tag naming the server operating system.
type Environment byte

// Known environments. Both 'm' and 'o' are used for macOS.
const (
	EnvLinux   Environment = 'l'
	EnvWindows Environment = 'w'
	EnvMac     Environment = 'm'
	EnvMacOld  Environment = 'o'
)

func (e Environment) String() string {
	switch e {
	case EnvLinux:
		return "Linux"
	case EnvWindows:
		return "Windows"
	case EnvMac, EnvMacOld:
		return "Mac"
	case 0:
		return ""
	default:
		return string(rune(e))
	}
}

// MarshalText renders the tag as its raw ASCII character.
func (e Environment) MarshalText() ([]byte, error) {
	return []byte{byte(e)}, nil
}

// ExtraData holds the optional info fields. A field is only meaningful when
// Flags has its bit; absent fields are left zero.
type ExtraData struct {
	SpectatorName string `json:"spectator_name,omitempty"`
	Keywords      string `json:"keywords,omitempty"`
	GameID        int64  `json:"game_id,omitempty"`
	Port          uint16 `json:"port,omitempty"`
	SpectatorPort uint8  `json:"spectator_port,omitempty"`
	Flags         EDF    `json:"flags"`
}

// GamePort returns the game port when present.
func (x ExtraData) GamePort() (uint16, bool) {
	return x.Port, x.Flags.Has(EDFPort)
}

// Spectator returns the SourceTV port and name when present.
func (x ExtraData) Spectator() (uint8, string, bool) {
	return x.SpectatorPort, x.SpectatorName, x.Flags.Has(EDFSourceTV)
}

// Tags returns the keyword string when present.
func (x ExtraData) Tags() (string, bool) {
	return x.Keywords, x.Flags.Has(EDFKeywords)
}

// Game returns the 64-bit game id when present.
func (x ExtraData) Game() (int64, bool) {
	return x.GameID, x.Flags.Has(EDFGameID)
}

// Info is a decoded A2S_INFO reply.
type Info struct {
	Name        string      `json:"name"`
	Map         string      `json:"map"`
	Folder      string      `json:"folder"`
	Game        string      `json:"game"`
	Version     string      `json:"version"`
	Extra       ExtraData   `json:"extra"`
	AppID       int16       `json:"app_id"`
	Protocol    uint8       `json:"protocol"`
	Players     uint8       `json:"players"`
	MaxPlayers  uint8       `json:"max_players"`
	Bots        uint8       `json:"bots"`
	ServerType  ServerType  `json:"server_type"`
	Environment Environment `json:"environment"`
	Visibility  uint8       `json:"visibility"`
	VAC         uint8       `json:"vac"`
}

// Player is one entry of an A2S_PLAYER reply.
type Player struct {
	Name string `json:"name"`

	// Duration is the connection time in seconds.
	Duration float32 `json:"duration"`

	Score int32 `json:"score"`
	Index uint8 `json:"index"`
}

// Played converts Duration to a time.Duration.
func (p Player) Played() time.Duration {
	return time.Duration(float64(p.Duration) * float64(time.Second))
}

// Players is a decoded A2S_PLAYER reply. len(Players) always equals Count.
type Players struct {
	Players []Player `json:"players"`
	Count   uint8    `json:"count"`
}

// Rule is a server cvar.
type Rule struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Rules is a decoded A2S_RULES reply. len(Rules) always equals Count.
type Rules struct {
	Rules []Rule `json:"rules"`
	Count int16  `json:"count"`
}

// Map returns the rules keyed by name; later duplicates win.
func (r *Rules) Map() map[string]string {
	m := make(map[string]string, len(r.Rules))
	for _, rule := range r.Rules {
		m[rule.Name] = rule.Value
	}
	return m
}
