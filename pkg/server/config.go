package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/aeolun/medius/pkg/logging"
	"github.com/aeolun/medius/pkg/plugins"
)

// TOMLConfig represents the structure of the server config file
type TOMLConfig struct {
	Server   ServerSection      `toml:"server"`
	Auth     RoleSection        `toml:"auth"`
	Lobby    RoleSection        `toml:"lobby"`
	Routing  RoleSection        `toml:"routing"`
	Universe UniverseSection    `toml:"universe"`
	Crypto   CryptoSection      `toml:"crypto"`
	Limits   LimitsSection      `toml:"limits"`
	Logging  logging.Config     `toml:"logging"`
	Metrics  MetricsSection     `toml:"metrics"`
	MQTT     plugins.MQTTConfig `toml:"mqtt"`
	Apps     []AppSettings      `toml:"apps"`
}

type ServerSection struct {
	Host           string `toml:"host"`
	DatabasePath   string `toml:"database_path"`
	AdminPort      int    `toml:"admin_port"`
	TickIntervalMs int    `toml:"tick_interval_ms"`
	Workers        int    `toml:"workers"`
}

// RoleSection configures the listeners of one role. Port 0 disables the
// role.
type RoleSection struct {
	Port    int `toml:"port"`
	UDPPort int `toml:"udp_port"`
}

type UniverseSection struct {
	Port    int             `toml:"port"`
	UDPPort int             `toml:"udp_port"`
	News    string          `toml:"news"`
	Entries []UniverseEntry `toml:"entries"`
}

// UniverseEntry is one universe advertised to a title
type UniverseEntry struct {
	AppID             int32  `toml:"app_id" json:"app_id"`
	UniverseID        uint32 `toml:"universe_id" json:"universe_id"`
	Name              string `toml:"name" json:"name"`
	DNS               string `toml:"dns" json:"dns"`
	Port              int32  `toml:"port" json:"port"`
	Description       string `toml:"description" json:"description"`
	Status            int32  `toml:"status" json:"status"`
	UserCount         int32  `toml:"user_count" json:"user_count"`
	MaxUsers          int32  `toml:"max_users" json:"max_users"`
	Billing           string `toml:"billing" json:"billing"`
	BillingSystemName string `toml:"billing_system_name" json:"billing_system_name"`
	ExtendedInfo      string `toml:"extended_info" json:"extended_info"`
	SvoURL            string `toml:"svo_url" json:"svo_url"`
}

type CryptoSection struct {
	Enabled bool `toml:"enabled"`
	// Hex modulus and private exponent. Empty generates a key at start.
	RSAModulus string `toml:"rsa_n"`
	RSAPrivate string `toml:"rsa_d"`
}

type LimitsSection struct {
	WriteIdleTimeoutSeconds int     `toml:"write_idle_timeout_seconds"`
	KeepAliveGraceSeconds   int     `toml:"keep_alive_grace_seconds"`
	ReadTimeoutSeconds      int     `toml:"read_timeout_seconds"`
	RoutingTimeoutSeconds   int     `toml:"routing_timeout_seconds"`
	MaxInboundQueue         int     `toml:"max_inbound_queue"`
	MaxOutboundQueue        int     `toml:"max_outbound_queue"`
	InboundRate             float64 `toml:"inbound_rate"`
	InboundBurst            int     `toml:"inbound_burst"`
	MaxDatagram             int     `toml:"max_datagram"`
	Pre108CompleteApps      []int32 `toml:"pre108_complete_apps"`
}

type MetricsSection struct {
	Enabled bool `toml:"enabled"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			Host:           "127.0.0.1",
			DatabasePath:   "~/.medius/medius.db",
			AdminPort:      8080,
			TickIntervalMs: 15,
		},
		Auth:    RoleSection{Port: 10075},
		Lobby:   RoleSection{Port: 10078},
		Routing: RoleSection{Port: 10079},
		Universe: UniverseSection{
			Port: 10071,
			News: "Welcome to Medius",
			Entries: []UniverseEntry{
				{AppID: 11184, UniverseID: 1, Name: "Medius", DNS: "127.0.0.1", Port: 10075, Description: "Default universe", Status: 1, MaxUsers: 1000},
			},
		},
		Crypto: CryptoSection{Enabled: true},
		Limits: LimitsSection{
			WriteIdleTimeoutSeconds: 30,
			KeepAliveGraceSeconds:   30,
			ReadTimeoutSeconds:      300,
			RoutingTimeoutSeconds:   15,
			MaxInboundQueue:         256,
			MaxOutboundQueue:        1024,
			InboundRate:             200,
			InboundBurst:            100,
			MaxDatagram:             584,
			Pre108CompleteApps:      []int32{10164, 10190, 10124, 10284, 10414, 10540, 10680},
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsSection{Enabled: true},
		MQTT:    plugins.DefaultMQTTConfig(),
		Apps: []AppSettings{
			{AppID: 10684, MediusVersion: 108, EnableEncryption: true, GameTimeoutSeconds: 15, DefaultLobbyName: "Lobby"},
			{AppID: 11184, MediusVersion: 109, EnableEncryption: true, GameTimeoutSeconds: 15, DefaultLobbyName: "Lobby"},
		},
	}
}

// envOverrides are read from MEDIUS_* variables and win over the file
type envOverrides struct {
	Host         string `envconfig:"HOST"`
	DatabasePath string `envconfig:"DATABASE_PATH"`
	AdminPort    int    `envconfig:"ADMIN_PORT"`
	AuthPort     int    `envconfig:"AUTH_PORT"`
	LobbyPort    int    `envconfig:"LOBBY_PORT"`
	RoutingPort  int    `envconfig:"ROUTING_PORT"`
	UniversePort int    `envconfig:"UNIVERSE_PORT"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
	Encryption   *bool  `envconfig:"ENCRYPTION"`
	MQTTBroker   string `envconfig:"MQTT_BROKER"`
}

// LoadConfig loads configuration from a TOML file, creates default if not
// found, then applies MEDIUS_* environment overrides
func LoadConfig(path string) (TOMLConfig, error) {
	path, err := logging.ExpandHome(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	config := DefaultTOMLConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Unwritable locations still run on defaults
		_ = writeDefaultConfig(path, config)
	} else {
		config, err = decodeConfigFile(path)
		if err != nil {
			return TOMLConfig{}, err
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return TOMLConfig{}, err
	}
	return config, nil
}

// decodeConfigFile decodes path over the defaults, so omitted keys keep
// their default value. Table arrays are replaced as a whole.
func decodeConfigFile(path string) (TOMLConfig, error) {
	def := DefaultTOMLConfig()
	config := DefaultTOMLConfig()
	config.Apps = nil
	config.Universe.Entries = nil

	md, err := toml.DecodeFile(path, &config)
	if err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if !md.IsDefined("apps") {
		config.Apps = def.Apps
	}
	if !md.IsDefined("universe", "entries") {
		config.Universe.Entries = def.Universe.Entries
	}
	return config, nil
}

// ApplyEnv overlays MEDIUS_* environment variables
func (c *TOMLConfig) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process("MEDIUS", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if env.Host != "" {
		c.Server.Host = env.Host
	}
	if env.DatabasePath != "" {
		c.Server.DatabasePath = env.DatabasePath
	}
	if env.AdminPort != 0 {
		c.Server.AdminPort = env.AdminPort
	}
	if env.AuthPort != 0 {
		c.Auth.Port = env.AuthPort
	}
	if env.LobbyPort != 0 {
		c.Lobby.Port = env.LobbyPort
	}
	if env.RoutingPort != 0 {
		c.Routing.Port = env.RoutingPort
	}
	if env.UniversePort != 0 {
		c.Universe.Port = env.UniversePort
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	c.Crypto.Enabled = safeDeref(env.Encryption, c.Crypto.Enabled)
	if env.MQTTBroker != "" {
		c.MQTT.Broker = env.MQTTBroker
		c.MQTT.Enabled = true
	}
	return nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config TOMLConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# Medius Server Configuration
# This file was auto-generated with default values
# The [[apps]] table is reloaded on save; everything else needs a restart

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ServerConfig holds runtime server configuration
type ServerConfig struct {
	Host               string
	DatabasePath       string
	AdminPort          int
	Listeners          map[Role]RoleSection
	TickInterval       time.Duration
	Workers            int
	EncryptionEnabled  bool
	RSAModulus         string
	RSAPrivate         string
	WriteIdleTimeout   time.Duration
	KeepAliveGrace     time.Duration
	ReadTimeout        time.Duration
	RoutingTimeout     time.Duration
	MaxInboundQueue    int
	MaxOutboundQueue   int
	InboundRate        float64
	InboundBurst       int
	MaxDatagram        int
	Pre108CompleteApps []int32
	Universes          []UniverseEntry
	News               string
	MetricsEnabled     bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() ServerConfig {
	c := DefaultTOMLConfig()
	return c.ToServerConfig()
}

// ToServerConfig converts TOMLConfig to ServerConfig. Non-positive limits
// fall back to the defaults.
func (c *TOMLConfig) ToServerConfig() ServerConfig {
	def := DefaultTOMLConfig()
	orDefault := func(v, d int) int {
		if v <= 0 {
			return d
		}
		return v
	}

	rate := c.Limits.InboundRate
	if rate <= 0 {
		rate = def.Limits.InboundRate
	}

	return ServerConfig{
		Host:         c.Server.Host,
		DatabasePath: c.Server.DatabasePath,
		AdminPort:    c.Server.AdminPort,
		Listeners: map[Role]RoleSection{
			RoleAuth:     c.Auth,
			RoleLobby:    c.Lobby,
			RoleRouting:  c.Routing,
			RoleUniverse: {Port: c.Universe.Port, UDPPort: c.Universe.UDPPort},
		},
		TickInterval:       time.Duration(orDefault(c.Server.TickIntervalMs, def.Server.TickIntervalMs)) * time.Millisecond,
		Workers:            c.Server.Workers,
		EncryptionEnabled:  c.Crypto.Enabled,
		RSAModulus:         c.Crypto.RSAModulus,
		RSAPrivate:         c.Crypto.RSAPrivate,
		WriteIdleTimeout:   time.Duration(orDefault(c.Limits.WriteIdleTimeoutSeconds, def.Limits.WriteIdleTimeoutSeconds)) * time.Second,
		KeepAliveGrace:     time.Duration(orDefault(c.Limits.KeepAliveGraceSeconds, def.Limits.KeepAliveGraceSeconds)) * time.Second,
		ReadTimeout:        time.Duration(orDefault(c.Limits.ReadTimeoutSeconds, def.Limits.ReadTimeoutSeconds)) * time.Second,
		RoutingTimeout:     time.Duration(orDefault(c.Limits.RoutingTimeoutSeconds, def.Limits.RoutingTimeoutSeconds)) * time.Second,
		MaxInboundQueue:    orDefault(c.Limits.MaxInboundQueue, def.Limits.MaxInboundQueue),
		MaxOutboundQueue:   orDefault(c.Limits.MaxOutboundQueue, def.Limits.MaxOutboundQueue),
		InboundRate:        rate,
		InboundBurst:       orDefault(c.Limits.InboundBurst, def.Limits.InboundBurst),
		MaxDatagram:        orDefault(c.Limits.MaxDatagram, def.Limits.MaxDatagram),
		Pre108CompleteApps: c.Limits.Pre108CompleteApps,
		Universes:          c.Universe.Entries,
		News:               c.Universe.News,
		MetricsEnabled:     c.Metrics.Enabled,
	}
}

// GetDatabasePath returns the database path with ~ expanded
func (c *TOMLConfig) GetDatabasePath() (string, error) {
	return logging.ExpandHome(c.Server.DatabasePath)
}

// WatchApps reloads the [[apps]] table of path into table whenever the file
// is written, until ctx is done. The directory is watched so editors that
// replace the file are seen too.
func WatchApps(ctx context.Context, path string, table *AppTable, logger zerolog.Logger) error {
	path, err := logging.ExpandHome(path)
	if err != nil {
		return err
	}
	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := decodeConfigFile(path)
				if err != nil {
					logger.Warn().Err(err).Msg("app table reload failed, keeping previous")
					continue
				}
				table.Replace(cfg.Apps)
				logger.Info().Int("apps", len(cfg.Apps)).Msg("app table reloaded")
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()
	return nil
}
