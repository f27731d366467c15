//go:build unix

package server

import (
	"strings"
	"syscall"
)

// udpReadBuffer is requested for datagram sockets so bursts of game
// traffic queue in the kernel instead of being dropped
const udpReadBuffer = 1 << 20

// controlSocket lets restarted roles rebind their ports while old
// connections sit in TIME_WAIT
func controlSocket(network, _ string, rc syscall.RawConn) error {
	var serr error
	err := rc.Control(func(fd uintptr) {
		serr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		if serr == nil && strings.HasPrefix(network, "udp") {
			// Best effort, the kernel caps it at rmem_max
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, udpReadBuffer)
		}
	})
	if err != nil {
		return err
	}
	return serr
}
