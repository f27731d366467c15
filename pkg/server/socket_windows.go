//go:build windows

package server

import (
	"strings"
	"syscall"
)

const udpReadBuffer = 1 << 20

// controlSocket sets SO_REUSEADDR, and a larger receive buffer on UDP
func controlSocket(network, _ string, rc syscall.RawConn) error {
	var serr error
	err := rc.Control(func(fd uintptr) {
		h := syscall.Handle(fd)
		serr = syscall.SetsockoptInt(h, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		if serr == nil && strings.HasPrefix(network, "udp") {
			_ = syscall.SetsockoptInt(h, syscall.SOL_SOCKET, syscall.SO_RCVBUF, udpReadBuffer)
		}
	})
	if err != nil {
		return err
	}
	return serr
}
