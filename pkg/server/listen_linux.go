//go:build linux

package server

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// logListenBacklog logs the listener with the kernel backlog limit. Login
// storms after a title patch open thousands of auth connections at once.
func logListenBacklog(logger zerolog.Logger, addr string) {
	somaxconn, _ := readSysctl("/proc/sys/net/core/somaxconn")
	logger.Info().Str("addr", addr).Uint64("somaxconn", somaxconn).Msg("TCP listening")
	if somaxconn > 0 && somaxconn < 4096 {
		logger.Warn().
			Uint64("somaxconn", somaxconn).
			Msg("listen backlog may be too low for login storms, consider: sudo sysctl -w net.core.somaxconn=65535")
	}
}

func readSysctl(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

// monitorListenOverflows feeds new kernel listen overflows into the
// metrics and the log every 10 seconds
func (s *Server) monitorListenOverflows() {
	defer s.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	last := listenOverflows()
	for {
		select {
		case <-ticker.C:
			n := listenOverflows()
			if n > last {
				s.metrics.RecordListenOverflows(n - last)
				s.log.Warn().
					Uint64("rejected", n-last).
					Uint64("total", n).
					Msg("connections rejected by listen backlog overflow")
			}
			last = n
		case <-s.shutdown:
			return
		}
	}
}

func listenOverflows() uint64 {
	f, err := os.Open("/proc/net/netstat")
	if err != nil {
		return 0
	}
	defer f.Close()
	return parseNetstat(f, "TcpExt")["ListenOverflows"]
}

// parseNetstat reads the counters of one protocol from /proc/net/netstat,
// where each protocol has a header line followed by a value line
func parseNetstat(r io.Reader, proto string) map[string]uint64 {
	prefix := proto + ":"
	var names []string
	out := make(map[string]uint64)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || fields[0] != prefix {
			continue
		}
		if names == nil {
			names = fields[1:]
			continue
		}
		for i, v := range fields[1:] {
			if i >= len(names) {
				break
			}
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				out[names[i]] = n
			}
		}
		break
	}
	return out
}
