package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/aeolun/medius/pkg/database"
	"github.com/aeolun/medius/pkg/logging"
	"github.com/aeolun/medius/pkg/plugins"
	"github.com/aeolun/medius/pkg/server"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "~/.medius/config.toml", "Path to config file")
	dbPath := flag.String("db", "", "Path to SQLite database (overrides config)")
	adminPort := flag.Int("admin-port", -1, "Admin API port, 0 disables (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	pprofAddr := flag.String("pprof", "", "Serve pprof on this address (e.g. localhost:6060)")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Medius server %s\n", Version)
		os.Exit(0)
	}

	config, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *debug {
		config.Logging.Level = "debug"
	}
	if err := logging.Init(config.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	if *dbPath != "" {
		config.Server.DatabasePath = *dbPath
	}
	if *adminPort >= 0 {
		config.Server.AdminPort = *adminPort
	}

	finalDBPath, err := config.GetDatabasePath()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve database path")
	}
	if err := os.MkdirAll(filepath.Dir(finalDBPath), 0755); err != nil {
		log.Fatal().Err(err).Msg("failed to create database directory")
	}

	db, err := database.Open(finalDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", finalDBPath).Msg("failed to open database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := plugins.NewBus(logging.Component("plugins"))
	if config.MQTT.Enabled {
		pub, err := plugins.NewMQTTPublisher(config.MQTT, bus, logging.Component("mqtt"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create mqtt publisher")
		}
		go func() {
			if err := pub.Start(ctx); err != nil {
				log.Error().Err(err).Msg("mqtt publisher stopped")
			}
		}()
	}

	serverConfig := config.ToServerConfig()
	apps := server.NewAppTable(config.Apps, serverConfig.Pre108CompleteApps)

	srv, err := server.NewServer(serverConfig, apps,
		server.WithAccountStore(db),
		server.WithEventSink(bus),
		server.WithLogger(logging.Component("server")),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	if err := server.WatchApps(ctx, *configPath, apps, logging.Component("config")); err != nil {
		log.Warn().Err(err).Msg("app table hot reload disabled")
	}

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	log.Info().
		Str("version", Version).
		Str("config", *configPath).
		Str("database", finalDBPath).
		Int("auth_port", config.Auth.Port).
		Int("lobby_port", config.Lobby.Port).
		Int("routing_port", config.Routing.Port).
		Int("universe_port", config.Universe.Port).
		Int("admin_port", config.Server.AdminPort).
		Bool("encryption", serverConfig.EncryptionEnabled).
		Ints32("apps", apps.IDs()).
		Msg("medius server started")

	if *pprofAddr != "" {
		go func() {
			log.Info().Str("addr", *pprofAddr).Msg("starting pprof server")
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				log.Warn().Err(err).Msg("pprof server error")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down server")
	cancel()
	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	bus.Stop()
	log.Info().Msg("server stopped")
}
