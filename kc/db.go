package kc

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB provides SQLite persistence for cached access tokens.
type DB struct {
	db *sql.DB
}

// OpenDB opens (or creates) the SQLite database at path and ensures the
// schema exists.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS access_tokens (
    user_id      TEXT PRIMARY KEY,
    access_token TEXT NOT NULL,
    user_name    TEXT NOT NULL,
    stored_at    TEXT NOT NULL
);`
	if _, err := db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &DB{db: db}, nil
}

// storedToken is one access_tokens row.
type storedToken struct {
	UserID      string
	AccessToken string
	UserName    string
	StoredAt    time.Time
}

// loadTokens reads all cached tokens.
func (d *DB) loadTokens() ([]storedToken, error) {
	rows, err := d.db.Query(`SELECT user_id, access_token, user_name, stored_at FROM access_tokens`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var out []storedToken
	for rows.Next() {
		var t storedToken
		var storedAtS string
		if err := rows.Scan(&t.UserID, &t.AccessToken, &t.UserName, &storedAtS); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		t.StoredAt, _ = time.Parse(time.RFC3339, storedAtS)
		out = append(out, t)
	}
	return out, rows.Err()
}

// saveToken stores or updates a cached token.
func (d *DB) saveToken(t storedToken) error {
	_, err := d.db.Exec(`INSERT OR REPLACE INTO access_tokens (user_id, access_token, user_name, stored_at) VALUES (?,?,?,?)`,
		t.UserID, t.AccessToken, t.UserName, t.StoredAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// deleteToken removes a cached token.
func (d *DB) deleteToken(userID string) error {
	_, err := d.db.Exec(`DELETE FROM access_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
