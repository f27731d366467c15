//go:build linux

package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNetstat(t *testing.T) {
	const netstat = `TcpExt: SyncookiesSent SyncookiesRecv ListenOverflows ListenDrops
TcpExt: 0 0 42 43
IpExt: InNoRoutes InTruncatedPkts
IpExt: 1 2
`
	got := parseNetstat(strings.NewReader(netstat), "TcpExt")
	assert.Equal(t, uint64(42), got["ListenOverflows"])
	assert.Equal(t, uint64(43), got["ListenDrops"])
	assert.NotContains(t, got, "InNoRoutes")

	assert.Equal(t, uint64(2), parseNetstat(strings.NewReader(netstat), "IpExt")["InTruncatedPkts"])
	assert.Empty(t, parseNetstat(strings.NewReader("garbage\n"), "TcpExt"))
}
