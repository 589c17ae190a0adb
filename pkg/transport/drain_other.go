//go:build !unix

package transport

import (
	"net"
	"time"
)

// drainWindow bounds the wait for a queued datagram where the socket cannot
// be read without blocking.
const drainWindow = time.Millisecond

// drainConn reads queued datagrams with a short deadline until none is left.
func drainConn(conn net.Conn, buf []byte) int {
	var n int
	for {
		if err := conn.SetReadDeadline(time.Now().Add(drainWindow)); err != nil {
			return n
		}
		if _, err := conn.Read(buf); err != nil {
			return n
		}
		n++
	}
}
