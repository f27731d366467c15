package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/aeolun/medius/pkg/logging"
)

var (
	// ErrAccountNotFound indicates no account has the requested name or id
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists indicates the name is taken for that application id
	ErrAccountExists = errors.New("account already exists")
)

// DB wraps the SQLite database connection
type DB struct {
	conn        *sql.DB // Read connection pool
	writeConn   *sql.DB // Dedicated write connection (1 connection)
	snowflake   *Snowflake
	log         zerolog.Logger
	WriteBuffer *WriteBuffer
}

// Account is a registered player account
type Account struct {
	ID           int64
	AppID        int32
	Name         string
	PasswordHash string
	AccountType  int32
	MachineID    string
	LastIP       string
	Banned       bool
	CreatedAt    int64  // Unix milliseconds
	LastLoginAt  *int64 // Unix milliseconds
}

// CheckPassword reports whether password matches the stored hash. A
// malformed hash never matches.
func (a *Account) CheckPassword(password string) bool {
	ok, err := VerifyPassword(a.PasswordHash, password)
	return err == nil && ok
}

// NewAccount is the input to CreateAccount
type NewAccount struct {
	AppID       int32
	Name        string
	Password    string
	AccountType int32
	MachineID   string
}

// ServerFlags is the maintenance state shared by every server role
type ServerFlags struct {
	Maintenance      bool
	MaintenanceStart *time.Time
	MaintenanceEnd   *time.Time
}

// InMaintenance reports whether maintenance is in effect at t
func (f ServerFlags) InMaintenance(t time.Time) bool {
	if !f.Maintenance {
		return false
	}
	if f.MaintenanceStart != nil && t.Before(*f.MaintenanceStart) {
		return false
	}
	if f.MaintenanceEnd != nil && t.After(*f.MaintenanceEnd) {
		return false
	}
	return true
}

// Announcement is a news line shown to players of one title
type Announcement struct {
	ID        int64
	AppID     int32
	Body      string
	CreatedAt int64
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
	"PRAGMA synchronous = NORMAL",
}

func openConn(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return conn, nil
}

// Open opens the SQLite database at path, runs pending migrations and
// starts the write buffer
func Open(path string) (*DB, error) {
	logger := logging.Component("database")

	conn, err := openConn(path)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	writeConn, err := openConn(path)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open write connection: %w", err)
	}
	writeConn.SetMaxOpenConns(1)
	writeConn.SetMaxIdleConns(1)
	writeConn.SetConnMaxLifetime(0)

	if err := runMigrations(writeConn, path, logger); err != nil {
		conn.Close()
		writeConn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db := &DB{
		conn:      conn,
		writeConn: writeConn,
		snowflake: NewSnowflake(snowflakeEpoch, 0),
		log:       logger,
	}
	db.WriteBuffer = NewWriteBuffer(db, 100*time.Millisecond)
	return db, nil
}

// Close flushes the write buffer and closes both connections
func (db *DB) Close() error {
	db.WriteBuffer.Close()

	var result *multierror.Error
	if err := db.writeConn.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close write connection: %w", err))
	}
	if err := db.conn.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close read pool: %w", err))
	}
	return result.ErrorOrNil()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const accountColumns = `id, app_id, name, password_hash, account_type, machine_id, last_ip, banned, created_at, last_login_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	a := &Account{}
	var (
		machineID, lastIP sql.NullString
		lastLogin         sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.AppID, &a.Name, &a.PasswordHash, &a.AccountType,
		&machineID, &lastIP, &a.Banned, &a.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	a.MachineID = machineID.String
	a.LastIP = lastIP.String
	if lastLogin.Valid {
		a.LastLoginAt = &lastLogin.Int64
	}
	return a, nil
}

// GetAccountByName looks an account up by name within one title
func (db *DB) GetAccountByName(ctx context.Context, name string, appID int32) (*Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM Account WHERE name = ? AND app_id = ?`, name, appID)
	return scanAccount(row)
}

// GetAccountByID looks an account up by id
func (db *DB) GetAccountByID(ctx context.Context, id int64) (*Account, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM Account WHERE id = ?`, id)
	return scanAccount(row)
}

// ListAccounts returns up to limit accounts of a title ordered by id
func (db *DB) ListAccounts(ctx context.Context, appID int32, limit int) ([]*Account, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM Account WHERE app_id = ? ORDER BY id ASC LIMIT ?`, appID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CreateAccount hashes the password and inserts the account through the
// write buffer
func (db *DB) CreateAccount(ctx context.Context, in NewAccount) (*Account, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := nowMillis()
	id, err := db.WriteBuffer.CreateAccount(ctx, in, hash, now)
	if err != nil {
		return nil, err
	}

	return &Account{
		ID:           id,
		AppID:        in.AppID,
		Name:         in.Name,
		PasswordHash: hash,
		AccountType:  in.AccountType,
		MachineID:    in.MachineID,
		CreatedAt:    now,
	}, nil
}

// DeleteAccount removes an account and its address history
func (db *DB) DeleteAccount(ctx context.Context, id int64) error {
	res, err := db.writeConn.ExecContext(ctx, `DELETE FROM Account WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetAccountBanned bans or unbans an account
func (db *DB) SetAccountBanned(ctx context.Context, id int64, banned bool) error {
	res, err := db.writeConn.ExecContext(ctx, `UPDATE Account SET banned = ? WHERE id = ?`, banned, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// PostAccountIP records a login address. The write is buffered.
func (db *DB) PostAccountIP(accountID int64, ip string) {
	db.WriteBuffer.PostAccountIP(accountID, ip)
}

// PostMachineID records the machine signature of an account. The write is
// buffered.
func (db *DB) PostMachineID(accountID int64, machineID string) {
	db.WriteBuffer.PostMachineID(accountID, machineID)
}

// AccountIPs returns the recorded login addresses of an account, newest first
func (db *DB) AccountIPs(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT ip FROM AccountIP WHERE account_id = ? ORDER BY id DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, err
		}
		ips = append(ips, ip)
	}
	return ips, rows.Err()
}

// BanIP bans a remote address
func (db *DB) BanIP(ctx context.Context, ip, reason string) error {
	_, err := db.writeConn.ExecContext(ctx,
		`INSERT OR REPLACE INTO IPBan (ip, reason, created_at) VALUES (?, ?, ?)`, ip, reason, nowMillis())
	return err
}

// IsIPBanned reports whether ip is banned
func (db *DB) IsIPBanned(ctx context.Context, ip string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM IPBan WHERE ip = ?`, ip).Scan(&n)
	return n > 0, err
}

// BanMachine bans a machine signature
func (db *DB) BanMachine(ctx context.Context, machineID, reason string) error {
	_, err := db.writeConn.ExecContext(ctx,
		`INSERT OR REPLACE INTO MachineBan (machine_id, reason, created_at) VALUES (?, ?, ?)`,
		machineID, reason, nowMillis())
	return err
}

// IsMachineBanned reports whether a machine signature is banned
func (db *DB) IsMachineBanned(ctx context.Context, machineID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM MachineBan WHERE machine_id = ?`, machineID).Scan(&n)
	return n > 0, err
}

// GetServerFlags returns the maintenance state
func (db *DB) GetServerFlags(ctx context.Context) (ServerFlags, error) {
	var (
		flags      ServerFlags
		start, end sql.NullInt64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT maintenance, maintenance_start, maintenance_end FROM ServerFlags WHERE id = 1`,
	).Scan(&flags.Maintenance, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return ServerFlags{}, nil
	}
	if err != nil {
		return ServerFlags{}, err
	}
	if start.Valid {
		t := time.UnixMilli(start.Int64)
		flags.MaintenanceStart = &t
	}
	if end.Valid {
		t := time.UnixMilli(end.Int64)
		flags.MaintenanceEnd = &t
	}
	return flags, nil
}

// SetServerFlags replaces the maintenance state
func (db *DB) SetServerFlags(ctx context.Context, flags ServerFlags) error {
	var start, end sql.NullInt64
	if flags.MaintenanceStart != nil {
		start = sql.NullInt64{Int64: flags.MaintenanceStart.UnixMilli(), Valid: true}
	}
	if flags.MaintenanceEnd != nil {
		end = sql.NullInt64{Int64: flags.MaintenanceEnd.UnixMilli(), Valid: true}
	}
	_, err := db.writeConn.ExecContext(ctx, `
		INSERT INTO ServerFlags (id, maintenance, maintenance_start, maintenance_end) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET maintenance = excluded.maintenance,
			maintenance_start = excluded.maintenance_start,
			maintenance_end = excluded.maintenance_end
	`, flags.Maintenance, start, end)
	return err
}

// PostAnnouncement adds a news line for a title
func (db *DB) PostAnnouncement(ctx context.Context, appID int32, body string) (int64, error) {
	res, err := db.writeConn.ExecContext(ctx,
		`INSERT INTO Announcement (app_id, body, created_at) VALUES (?, ?, ?)`, appID, body, nowMillis())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAnnouncements returns the newest announcements of a title
func (db *DB) ListAnnouncements(ctx context.Context, appID int32, limit int) ([]Announcement, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, app_id, body, created_at FROM Announcement
		WHERE app_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
	`, appID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Announcement
	for rows.Next() {
		var a Announcement
		if err := rows.Scan(&a.ID, &a.AppID, &a.Body, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
