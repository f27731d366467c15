package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	var version int
	if err := db.conn.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		t.Fatalf("schema_migrations not readable: %v", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if version != migrations[len(migrations)-1].Version {
		t.Errorf("expected version %d, got %d", migrations[len(migrations)-1].Version, version)
	}

	for _, table := range []string{"Account", "AccountIP", "IPBan", "MachineBan", "ServerFlags", "Announcement"} {
		var count int
		err := db.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to check for table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s not found", table)
		}
	}
}

func TestLoadMigrationsSorted(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least two migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "initial" {
		t.Errorf("unexpected first migration %d %s", migrations[0].Version, migrations[0].Name)
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			t.Errorf("migrations out of order at %d", i)
		}
	}
}

func TestMigrationReopenIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	db.Close()

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.Contains(e.Name(), ".backup-") {
			t.Errorf("unexpected backup %s for an up-to-date database", e.Name())
		}
	}
}

func TestMigrationBackupFromOlderVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Simulate a database that only has migration 1 applied
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := initMigrations(conn); err != nil {
		t.Fatalf("init migrations: %v", err)
	}
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if err := applyMigration(conn, migrations[0]); err != nil {
		t.Fatalf("apply first migration: %v", err)
	}
	conn.Close()

	if err := runMigrationsAt(path); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	var backups int
	for _, e := range entries {
		if strings.Contains(e.Name(), ".backup-v1-") {
			backups++
		}
	}
	if backups != 1 {
		t.Errorf("expected one v1 backup, found %d", backups)
	}
}

func runMigrationsAt(path string) error {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer conn.Close()
	return runMigrations(conn, path, zerolog.Nop())
}
