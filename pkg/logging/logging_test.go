package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesLogFile(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()

	dir := t.TempDir()
	require.NoError(t, Init(Config{Level: "debug", Directory: dir}))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	logger := Component("test")
	logger.Info().Msg("hello")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestInitBadLevelFallsBackToInfo(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()

	require.NoError(t, Init(Config{Level: "loud"}))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"medius_2024-01-01.log", "medius_2024-01-02.log", "medius_2024-01-03.log", "keep.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	cleanOldLogs(dir, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"medius_2024-01-03.log", "keep.txt"}, names)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/medius.toml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "medius.toml"), got)

	got, err = ExpandHome("/etc/medius.toml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/medius.toml", got)
}
