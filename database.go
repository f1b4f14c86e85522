package main

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PilotRow represents a registered pilot account
type PilotRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// ProgressRow represents a pilot's persistent progression
type ProgressRow struct {
	PilotID       int64
	XP            int
	Level         int
	CoinsBanked   int
	CoinsStolen   int
	TimesGrounded int
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL for better concurrency between the writer and query paths
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pilots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE COLLATE NOCASE,
			pass_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS progress (
			pilot_id INTEGER PRIMARY KEY REFERENCES pilots(id),
			xp INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			coins_banked INTEGER NOT NULL DEFAULT 0,
			coins_stolen INTEGER NOT NULL DEFAULT 0,
			times_grounded INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			pilot_id INTEGER,
			data TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_time ON events(event_type, created_at)`,
	}
	for _, s := range stmts {
		if _, err := db.conn.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// CreatePilot inserts a new account with an empty progress row
func (db *DB) CreatePilot(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO pilots (username, pass_hash, created_at) VALUES (?, ?, ?)`,
		username, passHash, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := db.conn.Exec(`INSERT INTO progress (pilot_id) VALUES (?)`, id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetPilotByUsername returns nil without error when the pilot is unknown
func (db *DB) GetPilotByUsername(username string) (*PilotRow, error) {
	row := db.conn.QueryRow(
		`SELECT id, username, pass_hash, created_at FROM pilots WHERE username = ?`, username)
	var p PilotRow
	var created string
	if err := row.Scan(&p.ID, &p.Username, &p.PassHash, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &p, nil
}

// UsernameExists checks whether an account name is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(1) FROM pilots WHERE username = ?`, username).Scan(&n)
	return n > 0, err
}

// GetSetting returns a settings value, "" if unset
func (db *DB) GetSetting(key string) string {
	var v string
	if err := db.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v); err != nil {
		return ""
	}
	return v
}

// SetSetting upserts a settings value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetProgress fetches a pilot's progression, nil if absent
func (db *DB) GetProgress(pilotID int64) (*ProgressRow, error) {
	row := db.conn.QueryRow(
		`SELECT pilot_id, xp, level, coins_banked, coins_stolen, times_grounded
		 FROM progress WHERE pilot_id = ?`, pilotID)
	var p ProgressRow
	if err := row.Scan(&p.PilotID, &p.XP, &p.Level, &p.CoinsBanked, &p.CoinsStolen, &p.TimesGrounded); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

