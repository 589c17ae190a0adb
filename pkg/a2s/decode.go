package a2s

import (
	"github.com/woozymasta/sonar/pkg/wire"
)

const (
	// minPlayerSize is index + empty name + score + duration.
	minPlayerSize = 1 + 1 + 4 + 4

	// minRuleSize is two empty strings.
	minRuleSize = 2

	// steamIDSize is the SourceTV-adjacent block skipped for EDFSteamID.
	steamIDSize = 8
)

// DecodeInfo parses an A2S_INFO reply, including the optional EDF tail.
func DecodeInfo(reply []byte) (*Info, error) {
	r := wire.NewReader(reply)
	if err := r.Skip("header", replyHeaderSize); err != nil {
		return nil, err
	}

	var (
		info Info
		err  error
		b    uint8
	)

	if info.Protocol, err = r.Uint8("protocol"); err != nil {
		return nil, err
	}
	if info.Name, err = r.CString("name"); err != nil {
		return nil, err
	}
	if info.Map, err = r.CString("map"); err != nil {
		return nil, err
	}
	if info.Folder, err = r.CString("folder"); err != nil {
		return nil, err
	}
	if info.Game, err = r.CString("game"); err != nil {
		return nil, err
	}
	if info.AppID, err = r.Int16("app id"); err != nil {
		return nil, err
	}
	if info.Players, err = r.Uint8("players"); err != nil {
		return nil, err
	}
	if info.MaxPlayers, err = r.Uint8("max players"); err != nil {
		return nil, err
	}
	if info.Bots, err = r.Uint8("bots"); err != nil {
		return nil, err
	}
	if b, err = r.Uint8("server type"); err != nil {
		return nil, err
	}
	info.ServerType = ServerType(b)
	if b, err = r.Uint8("environment"); err != nil {
		return nil, err
	}
	info.Environment = Environment(b)
	if info.Visibility, err = r.Uint8("visibility"); err != nil {
		return nil, err
	}
	if info.VAC, err = r.Uint8("vac"); err != nil {
		return nil, err
	}
	if info.Version, err = r.CString("version"); err != nil {
		return nil, err
	}

	if r.Remaining() > 0 {
		if info.Extra, err = decodeExtraData(r); err != nil {
			return nil, err
		}
	}

	return &info, nil
}

// decodeExtraData reads the EDF byte and every field whose bit is set.
// Bits are independent; the read order is fixed by the protocol.
func decodeExtraData(r *wire.Reader) (ExtraData, error) {
	var (
		x   ExtraData
		err error
		b   uint8
	)

	if b, err = r.Uint8("edf"); err != nil {
		return x, err
	}
	x.Flags = EDF(b)

	if x.Flags.Has(EDFPort) {
		if x.Port, err = r.Uint16("edf port"); err != nil {
			return x, err
		}
	}
	if x.Flags.Has(EDFSteamID) {
		if err = r.Skip("edf steam id", steamIDSize); err != nil {
			return x, err
		}
	}
	if x.Flags.Has(EDFSourceTV) {
		if x.SpectatorPort, err = r.Uint8("edf spectator port"); err != nil {
			return x, err
		}
		if x.SpectatorName, err = r.CString("edf spectator name"); err != nil {
			return x, err
		}
	}
	if x.Flags.Has(EDFKeywords) {
		if x.Keywords, err = r.CString("edf keywords"); err != nil {
			return x, err
		}
	}
	if x.Flags.Has(EDFGameID) {
		if x.GameID, err = r.Int64("edf game id"); err != nil {
			return x, err
		}
	}

	return x, nil
}

// DecodePlayers parses an A2S_PLAYER reply with exactly the declared number of players.
func DecodePlayers(reply []byte) (*Players, error) {
	r := wire.NewReader(reply)
	if err := r.Skip("header", replyHeaderSize); err != nil {
		return nil, err
	}

	count, err := r.Uint8("player count")
	if err != nil {
		return nil, err
	}
	if int(count)*minPlayerSize > r.Remaining() {
		return nil, wire.Errorf("player count", r.Offset()-1, wire.ErrBadCount)
	}

	out := &Players{Count: count, Players: make([]Player, 0, count)}
	for i := 0; i < int(count); i++ {
		var p Player
		if p.Index, err = r.Uint8("player index"); err != nil {
			return nil, err
		}
		if p.Name, err = r.CString("player name"); err != nil {
			return nil, err
		}
		if p.Score, err = r.Int32("player score"); err != nil {
			return nil, err
		}
		if p.Duration, err = r.Float32("player duration"); err != nil {
			return nil, err
		}
		out.Players = append(out.Players, p)
	}

	return out, nil
}

// DecodeRules parses an A2S_RULES reply with exactly the declared number of rules.
func DecodeRules(reply []byte) (*Rules, error) {
	r := wire.NewReader(reply)
	if err := r.Skip("header", replyHeaderSize); err != nil {
		return nil, err
	}

	count, err := r.Int16("rule count")
	if err != nil {
		return nil, err
	}
	if count < 0 || int(count)*minRuleSize > r.Remaining() {
		return nil, wire.Errorf("rule count", r.Offset()-2, wire.ErrBadCount)
	}

	out := &Rules{Count: count, Rules: make([]Rule, 0, count)}
	for i := 0; i < int(count); i++ {
		var rule Rule
		if rule.Name, err = r.CString("rule name"); err != nil {
			return nil, err
		}
		if rule.Value, err = r.CString("rule value"); err != nil {
			return nil, err
		}
		out.Rules = append(out.Rules, rule)
	}

	return out, nil
}
