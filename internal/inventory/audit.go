package inventory

import (
	"context"
	"fmt"
)

// CreateAuditLog records one mutation. username may be empty for
// system-originated writes (imports, connectors).
func (s *Store) CreateAuditLog(ctx context.Context, username, action, targetType string,
	targetID int64, targetLabel, changes string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (username, action, target_type, target_id, target_label, changes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		username, action, targetType, targetID, targetLabel, changes)
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns the most recent audit entries, newest first.
func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, action, target_type, target_id, target_label, changes, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var l AuditLog
		if err := rows.Scan(&l.ID, &l.Username, &l.Action, &l.TargetType, &l.TargetID,
			&l.TargetLabel, &l.Changes, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ListAuditLogsForIPAsset returns the audit trail for one IP asset, newest first.
func (s *Store) ListAuditLogsForIPAsset(ctx context.Context, assetID int64) ([]AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, action, target_type, target_id, target_label, changes, created_at
		FROM audit_logs
		WHERE target_type = 'IP_ASSET' AND target_id = ?
		ORDER BY created_at DESC, id DESC`, assetID)
	if err != nil {
		return nil, fmt.Errorf("list audit logs for asset %d: %w", assetID, err)
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var l AuditLog
		if err := rows.Scan(&l.ID, &l.Username, &l.Action, &l.TargetType, &l.TargetID,
			&l.TargetLabel, &l.Changes, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Summary holds entity counts for the management overview.
type Summary struct {
	Vendors          int `json:"vendors"`
	Projects         int `json:"projects"`
	Hosts            int `json:"hosts"`
	ActiveIPAssets   int `json:"active_ip_assets"`
	ArchivedIPAssets int `json:"archived_ip_assets"`
	Tags             int `json:"tags"`
}

// ManagementSummary returns entity counts across the inventory.
func (s *Store) ManagementSummary(ctx context.Context) (*Summary, error) {
	var sum Summary
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM vendors", &sum.Vendors},
		{"SELECT COUNT(*) FROM projects", &sum.Projects},
		{"SELECT COUNT(*) FROM hosts", &sum.Hosts},
		{"SELECT COUNT(*) FROM ip_assets WHERE archived = 0", &sum.ActiveIPAssets},
		{"SELECT COUNT(*) FROM ip_assets WHERE archived = 1", &sum.ArchivedIPAssets},
		{"SELECT COUNT(*) FROM tags", &sum.Tags},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("management summary: %w", err)
		}
	}
	return &sum, nil
}
