// Package logging installs the process-wide zerolog logger and hands out
// component loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the logging system
type Config struct {
	Level      string `toml:"level"`
	Directory  string `toml:"directory"`
	MaxBackups int    `toml:"max_backups"`
	Console    bool   `toml:"console"`
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Directory:  "~/.medius/logs",
		MaxBackups: 5,
		Console:    true,
	}
}

// Init configures the global logger with a JSON file writer and an optional
// console writer. An empty Directory disables the file writer.
func Init(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	var logFilePath string

	if cfg.Directory != "" {
		dir, err := ExpandHome(cfg.Directory)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}

		logFilePath = filepath.Join(dir, fmt.Sprintf("medius_%s.log", time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
		}
		writers = append(writers, f)

		go cleanOldLogs(dir, cfg.MaxBackups)
	}

	if cfg.Console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("app", "medius").
		Logger()

	log.Info().
		Str("level", level.String()).
		Str("log_file", logFilePath).
		Msg("logger initialized")
	return nil
}

// cleanOldLogs keeps the newest maxBackups log files
func cleanOldLogs(dir string, maxBackups int) {
	if maxBackups <= 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var logs []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".log" {
			logs = append(logs, e.Name())
		}
	}
	// Names carry the date, so lexical order is age order
	sort.Strings(logs)

	for i := 0; i < len(logs)-maxBackups; i++ {
		path := filepath.Join(dir, logs[i])
		if err := os.Remove(path); err == nil {
			log.Debug().Str("file", path).Msg("removed old log file")
		}
	}
}

// Component returns a child of the global logger tagged with a component
// name. Call it after Init; the global logger is captured at call time.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// ExpandHome expands a leading ~/ to the user's home directory
func ExpandHome(path string) (string, error) {
	if len(path) < 2 || path[:2] != "~/" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
