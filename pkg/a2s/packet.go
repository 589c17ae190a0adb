package a2s

import "bytes"

// Request headers.
const (
	A2SInfo   byte = 0x54
	A2SPlayer byte = 0x55
	A2SRules  byte = 0x56
)

// Reply headers.
const (
	S2CChallenge byte = 0x41
	S2AInfo      byte = 0x49
	S2APlayer    byte = 0x44
	S2ARules     byte = 0x45
)

// infoPayload is the fixed query string of A2S_INFO, NUL included.
const infoPayload = "Source Engine Query\x00"

// replyHeaderSize is the simple header plus the reply type byte.
const replyHeaderSize = 5

var (
	// simpleHeader prefixes every single-packet request and reply.
	simpleHeader = []byte{0xFF, 0xFF, 0xFF, 0xFF}

	// challengePrefix identifies an S2C_CHALLENGE reply.
	challengePrefix = []byte{0xFF, 0xFF, 0xFF, 0xFF, S2CChallenge}

	// noChallenge asks a player/rules server for a fresh challenge.
	noChallenge = Challenge{0xFF, 0xFF, 0xFF, 0xFF}
)

// Challenge is the opaque token a server hands out to be echoed in the next request.
type Challenge []byte

// NewInfoRequest builds an A2S_INFO request. A non-empty challenge is
// appended after the NUL terminating the query string.
func NewInfoRequest(challenge Challenge) []byte {
	packet := make([]byte, 0, len(simpleHeader)+1+len(infoPayload)+len(challenge))
	packet = append(packet, simpleHeader...)
	packet = append(packet, A2SInfo)
	packet = append(packet, infoPayload...)
	return append(packet, challenge...)
}

// NewPlayerRequest builds an A2S_PLAYER request. An empty challenge asks for a new one.
func NewPlayerRequest(challenge Challenge) []byte {
	return newChallengedRequest(A2SPlayer, challenge)
}

// NewRulesRequest builds an A2S_RULES request. An empty challenge asks for a new one.
func NewRulesRequest(challenge Challenge) []byte {
	return newChallengedRequest(A2SRules, challenge)
}

func newChallengedRequest(header byte, challenge Challenge) []byte {
	if len(challenge) == 0 {
		challenge = noChallenge
	}

	packet := make([]byte, 0, len(simpleHeader)+1+len(challenge))
	packet = append(packet, simpleHeader...)
	packet = append(packet, header)
	return append(packet, challenge...)
}

// IsChallenge reports whether reply starts with the challenge signature.
func IsChallenge(reply []byte) bool {
	return bytes.HasPrefix(reply, challengePrefix)
}

// ParseChallenge extracts the token following the challenge signature.
// A signature without a token is not a challenge that can be answered.
func ParseChallenge(reply []byte) (Challenge, bool) {
	if !IsChallenge(reply) || len(reply) == replyHeaderSize {
		return nil, false
	}
	return Challenge(bytes.Clone(reply[replyHeaderSize:])), true
}
