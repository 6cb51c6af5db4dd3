package inventory

import (
	"database/sql"

	"github.com/ipocket/ipocket/internal/store"
)

// Migrations returns the inventory module's database migrations.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create inventory tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS projects (
						id          INTEGER PRIMARY KEY AUTOINCREMENT,
						name        TEXT NOT NULL UNIQUE,
						description TEXT,
						color       TEXT NOT NULL DEFAULT '#94a3b8'
					)`,
					`CREATE TABLE IF NOT EXISTS vendors (
						id         INTEGER PRIMARY KEY AUTOINCREMENT,
						name       TEXT NOT NULL UNIQUE,
						created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE TABLE IF NOT EXISTS hosts (
						id        INTEGER PRIMARY KEY AUTOINCREMENT,
						name      TEXT NOT NULL UNIQUE,
						notes     TEXT,
						vendor_id INTEGER REFERENCES vendors(id) ON DELETE SET NULL
					)`,
					`CREATE TABLE IF NOT EXISTS ip_assets (
						id         INTEGER PRIMARY KEY AUTOINCREMENT,
						ip_address TEXT NOT NULL UNIQUE,
						asset_type TEXT NOT NULL CHECK (asset_type IN ('OS', 'BMC', 'VM', 'VIP', 'OTHER')),
						project_id INTEGER REFERENCES projects(id) ON DELETE SET NULL,
						host_id    INTEGER REFERENCES hosts(id) ON DELETE SET NULL,
						notes      TEXT,
						archived   INTEGER NOT NULL DEFAULT 0,
						created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE TABLE IF NOT EXISTS tags (
						id         INTEGER PRIMARY KEY AUTOINCREMENT,
						name       TEXT NOT NULL UNIQUE,
						color      TEXT NOT NULL DEFAULT '#e2e8f0',
						created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE TABLE IF NOT EXISTS ip_asset_tags (
						ip_asset_id INTEGER NOT NULL REFERENCES ip_assets(id) ON DELETE CASCADE,
						tag_id      INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
						PRIMARY KEY (ip_asset_id, tag_id)
					)`,
					`CREATE TABLE IF NOT EXISTS audit_logs (
						id           INTEGER PRIMARY KEY AUTOINCREMENT,
						username     TEXT NOT NULL DEFAULT '',
						action       TEXT NOT NULL,
						target_type  TEXT NOT NULL,
						target_id    INTEGER NOT NULL DEFAULT 0,
						target_label TEXT NOT NULL DEFAULT '',
						changes      TEXT NOT NULL DEFAULT '',
						created_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_ip_assets_project ON ip_assets(project_id)`,
					`CREATE INDEX IF NOT EXISTS idx_ip_assets_host ON ip_assets(host_id)`,
					`CREATE INDEX IF NOT EXISTS idx_audit_logs_target ON audit_logs(target_type, target_id)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
