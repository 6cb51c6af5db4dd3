package auth

import (
	"database/sql"

	"github.com/ipocket/ipocket/internal/store"
)

// Migrations returns the auth module schema.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create users and sessions tables",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS users (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						username TEXT NOT NULL UNIQUE,
						password_hash TEXT NOT NULL,
						role TEXT NOT NULL DEFAULT 'Viewer'
							CHECK (role IN ('Viewer', 'Editor', 'Admin')),
						active INTEGER NOT NULL DEFAULT 1,
						created_at TEXT NOT NULL DEFAULT (datetime('now'))
					);

					CREATE TABLE IF NOT EXISTS sessions (
						id TEXT PRIMARY KEY,
						user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
						expires_at TEXT NOT NULL,
						created_at TEXT NOT NULL DEFAULT (datetime('now'))
					);

					CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
					CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
				`)
				return err
			},
		},
	}
}
