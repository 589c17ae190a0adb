package master

import (
	"bytes"
	"encoding/binary"
	"net/netip"

	"github.com/woozymasta/sonar/pkg/wire"
)

// RequestHeader opens every master server query.
const RequestHeader byte = 0x31

const addrSize = 6

var (
	// replyPreamble optionally precedes the address groups of a reply.
	replyPreamble = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x66, 0x0A}

	// Sentinel seeds the first page and, repeated by the server, ends the enumeration.
	Sentinel = netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
)

// NewRequest builds a page request seeded with the last address of the previous page.
func NewRequest(region Region, seed netip.AddrPort, filter *Filter) []byte {
	packet := make([]byte, 0, 64)
	packet = append(packet, RequestHeader, byte(region))
	packet = seed.AppendTo(packet)
	packet = append(packet, 0x00)
	return filter.AppendWire(packet)
}

// DecodeAddresses parses one reply page into addresses, preserving order.
// The length after the optional preamble must be a multiple of six.
func DecodeAddresses(reply []byte) ([]netip.AddrPort, error) {
	offset := 0
	if bytes.HasPrefix(reply, replyPreamble) {
		offset = len(replyPreamble)
	}

	body := reply[offset:]
	if rem := len(body) % addrSize; rem != 0 {
		return nil, wire.Errorf("address list", len(reply)-rem, wire.ErrShortBuffer)
	}

	addrs := make([]netip.AddrPort, 0, len(body)/addrSize)
	for i := 0; i < len(body); i += addrSize {
		ip := netip.AddrFrom4([4]byte(body[i : i+4]))
		port := binary.BigEndian.Uint16(body[i+4 : i+6])
		addrs = append(addrs, netip.AddrPortFrom(ip, port))
	}

	return addrs, nil
}

// EncodeAddresses is the inverse of DecodeAddresses, with the preamble.
// It only accepts IPv4 addresses; others are skipped.
func EncodeAddresses(addrs []netip.AddrPort) []byte {
	out := append([]byte(nil), replyPreamble...)
	for _, a := range addrs {
		if !a.Addr().Is4() {
			continue
		}
		ip := a.Addr().As4()
		out = append(out, ip[:]...)
		out = binary.BigEndian.AppendUint16(out, a.Port())
	}
	return out
}
