package server

import (
	"net"
	"strings"

	"github.com/aeolun/medius/pkg/protocol"
)

// safeDeref safely dereferences a pointer, returning a default value if nil
func safeDeref[T any](ptr *T, defaultVal T) T {
	if ptr == nil {
		return defaultVal
	}
	return *ptr
}

// hostOf returns the IP part of addr
func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	s := addr.String()
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}

// ipBytes renders addr as the four-byte IPv4 address carried by connect
// accepts. Non-IPv4 peers get zeros.
func ipBytes(addr net.Addr) [4]byte {
	var out [4]byte
	ip := net.ParseIP(hostOf(addr))
	if v4 := ip.To4(); v4 != nil {
		copy(out[:], v4)
	}
	return out
}

// addressList builds the two-slot list clients connect through, with the
// external address first
func addressList(host string, port int) protocol.NetAddressList {
	var l protocol.NetAddressList
	l[0] = protocol.NetAddress{
		AddressType: protocol.NetAddressTypeExternal,
		Address:     host,
		Port:        uint32(port),
	}
	return l
}

// truncate cuts s to fit a fixed string field of n bytes, terminator
// included
func truncate(s string, n int) string {
	if len(s) >= n {
		s = s[:n-1]
	}
	return strings.TrimRight(s, "\x00")
}
