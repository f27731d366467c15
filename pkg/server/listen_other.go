//go:build !linux

package server

import "github.com/rs/zerolog"

func logListenBacklog(logger zerolog.Logger, addr string) {
	logger.Info().Str("addr", addr).Msg("TCP listening")
}

// monitorListenOverflows has no kernel counters to read here
func (s *Server) monitorListenOverflows() {
	s.wg.Done()
}
