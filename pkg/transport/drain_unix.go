//go:build unix

package transport

import (
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// drainConn reads the socket without blocking until it reports EAGAIN.
// Connections that do not expose a file descriptor are left untouched.
func drainConn(conn net.Conn, buf []byte) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0
	}

	// an expired deadline from the previous attempt would refuse the read
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return 0
	}

	var n int
	_ = raw.Read(func(fd uintptr) bool {
		for {
			if _, err := unix.Read(int(fd), buf); err != nil {
				return true
			}
			n++
		}
	})

	return n
}
