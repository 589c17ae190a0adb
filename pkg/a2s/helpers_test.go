package a2s

import (
	"encoding/binary"
	"math"
)

// replyWriter assembles synthetic server replies.
type replyWriter struct {
	buf []byte
}

func newReply(header byte) *replyWriter {
	return &replyWriter{buf: []byte{0xFF, 0xFF, 0xFF, 0xFF, header}}
}

func (w *replyWriter) u8(v uint8) *replyWriter {
	w.buf = append(w.buf, v)
	return w
}

func (w *replyWriter) u16(v uint16) *replyWriter {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

func (w *replyWriter) i32(v int32) *replyWriter {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
	return w
}

func (w *replyWriter) f32(v float32) *replyWriter {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
	return w
}

func (w *replyWriter) i64(v int64) *replyWriter {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
	return w
}

func (w *replyWriter) str(s string) *replyWriter {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0x00)
	return w
}

func (w *replyWriter) raw(b ...byte) *replyWriter {
	w.buf = append(w.buf, b...)
	return w
}

func (w *replyWriter) bytes() []byte {
	return append([]byte(nil), w.buf...)
}

// sampleInfo is the fixed part shared by the info tests.
var sampleInfo = Info{
	Protocol:    17,
	Name:        "Sonar Test Server",
	Map:         "de_dust2",
	Folder:      "csgo",
	Game:        "Counter-Strike: Global Offensive",
	AppID:       730,
	Players:     12,
	MaxPlayers:  24,
	Bots:        2,
	ServerType:  ServerDedicated,
	Environment: EnvLinux,
	Visibility:  0,
	VAC:         1,
	Version:     "1.38.7.9",
}

// encodeInfo serializes info, appending the EDF tail only when info.Extra.Flags
// is non-zero or forceEDF is set.
func encodeInfo(info Info, forceEDF bool) []byte {
	w := newReply(S2AInfo).
		u8(info.Protocol).
		str(info.Name).
		str(info.Map).
		str(info.Folder).
		str(info.Game).
		u16(uint16(info.AppID)).
		u8(info.Players).
		u8(info.MaxPlayers).
		u8(info.Bots).
		u8(byte(info.ServerType)).
		u8(byte(info.Environment)).
		u8(info.Visibility).
		u8(info.VAC).
		str(info.Version)

	x := info.Extra
	if x.Flags == 0 && !forceEDF {
		return w.bytes()
	}

	w.u8(uint8(x.Flags))
	if x.Flags.Has(EDFPort) {
		w.u16(x.Port)
	}
	if x.Flags.Has(EDFSteamID) {
		w.raw(1, 2, 3, 4, 5, 6, 7, 8)
	}
	if x.Flags.Has(EDFSourceTV) {
		w.u8(x.SpectatorPort).str(x.SpectatorName)
	}
	if x.Flags.Has(EDFKeywords) {
		w.str(x.Keywords)
	}
	if x.Flags.Has(EDFGameID) {
		w.i64(x.GameID)
	}

	return w.bytes()
}

func encodePlayers(p Players) []byte {
	w := newReply(S2APlayer).u8(p.Count)
	for _, pl := range p.Players {
		w.u8(pl.Index).str(pl.Name).i32(pl.Score).f32(pl.Duration)
	}
	return w.bytes()
}

func encodeRules(r Rules) []byte {
	w := newReply(S2ARules).u16(uint16(r.Count))
	for _, rule := range r.Rules {
		w.str(rule.Name).str(rule.Value)
	}
	return w.bytes()
}
