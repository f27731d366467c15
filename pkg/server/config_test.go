package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultTOMLConfigEnablesEveryRole(t *testing.T) {
	cfg := DefaultTOMLConfig()
	serverCfg := cfg.ToServerConfig()

	for _, role := range []Role{RoleAuth, RoleLobby, RoleRouting, RoleUniverse} {
		if serverCfg.Listeners[role].Port <= 0 {
			t.Fatalf("expected default %s port to be positive, got %d", role, serverCfg.Listeners[role].Port)
		}
	}

	if len(cfg.Limits.Pre108CompleteApps) == 0 {
		t.Fatal("expected default pre-108 completion list to be set")
	}
}

func TestToServerConfigFallsBackToDefaults(t *testing.T) {
	var cfg TOMLConfig

	serverCfg := cfg.ToServerConfig()

	defaults := DefaultConfig()

	if serverCfg.TickInterval != defaults.TickInterval {
		t.Fatalf("expected fallback TickInterval %s, got %s", defaults.TickInterval, serverCfg.TickInterval)
	}

	if serverCfg.WriteIdleTimeout != 30*time.Second {
		t.Fatalf("expected fallback WriteIdleTimeout 30s, got %s", serverCfg.WriteIdleTimeout)
	}

	if serverCfg.KeepAliveGrace != defaults.KeepAliveGrace {
		t.Fatalf("expected fallback KeepAliveGrace %s, got %s", defaults.KeepAliveGrace, serverCfg.KeepAliveGrace)
	}

	if serverCfg.MaxOutboundQueue != defaults.MaxOutboundQueue {
		t.Fatalf("expected fallback MaxOutboundQueue %d, got %d", defaults.MaxOutboundQueue, serverCfg.MaxOutboundQueue)
	}

	if serverCfg.InboundRate != defaults.InboundRate {
		t.Fatalf("expected fallback InboundRate %f, got %f", defaults.InboundRate, serverCfg.InboundRate)
	}
}

func TestLoadConfigWritesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "medius.toml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Auth.Port != DefaultTOMLConfig().Auth.Port {
		t.Fatalf("expected default auth port, got %d", cfg.Auth.Port)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}

	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again.Apps) != len(cfg.Apps) {
		t.Fatalf("expected %d apps after round trip, got %d", len(cfg.Apps), len(again.Apps))
	}
}

func TestLoadConfigKeepsDefaultsForOmittedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medius.toml")
	body := `
[lobby]
port = 20078

[[apps]]
app_id = 21624
medius_version = 111
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Lobby.Port != 20078 {
		t.Fatalf("expected lobby port 20078, got %d", cfg.Lobby.Port)
	}
	if cfg.Auth.Port != DefaultTOMLConfig().Auth.Port {
		t.Fatalf("expected auth port to keep its default, got %d", cfg.Auth.Port)
	}
	if len(cfg.Apps) != 1 || cfg.Apps[0].AppID != 21624 {
		t.Fatalf("expected the file's app list, got %+v", cfg.Apps)
	}
}

func TestApplyEnvOverridesFile(t *testing.T) {
	t.Setenv("MEDIUS_LOBBY_PORT", "30078")
	t.Setenv("MEDIUS_ENCRYPTION", "false")
	t.Setenv("MEDIUS_MQTT_BROKER", "tcp://broker:1883")

	cfg := DefaultTOMLConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Lobby.Port != 30078 {
		t.Fatalf("expected lobby port 30078, got %d", cfg.Lobby.Port)
	}
	if cfg.Crypto.Enabled {
		t.Fatal("expected encryption to be disabled by the environment")
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Fatalf("expected mqtt to be enabled on the env broker, got %+v", cfg.MQTT)
	}
	if cfg.Auth.Port != DefaultTOMLConfig().Auth.Port {
		t.Fatalf("expected unset variables to leave auth port alone, got %d", cfg.Auth.Port)
	}
}

func TestWatchAppsReloadsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medius.toml")
	if err := os.WriteFile(path, []byte("[[apps]]\napp_id = 100\n"), 0644); err != nil {
		t.Fatal(err)
	}

	table := NewAppTable([]AppSettings{{AppID: 100}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := WatchApps(ctx, path, table, zerolog.Nop()); err != nil {
		t.Fatalf("WatchApps: %v", err)
	}

	if err := os.WriteFile(path, []byte("[[apps]]\napp_id = 200\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := table.Lookup(200); ok {
			if _, old := table.Lookup(100); old {
				t.Fatal("expected the old app to be dropped")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("app table was not reloaded")
}
