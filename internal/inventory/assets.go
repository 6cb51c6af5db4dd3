package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// IPAssetTarget is the full desired state for an IP asset update.
// Every field is written as given; Tags stays untouched when nil.
type IPAssetTarget struct {
	AssetType AssetType
	ProjectID *int64
	HostID    *int64
	Notes     string
	Tags      []string
}

// ListIPAssetsOptions filters ListIPAssets.
type ListIPAssetsOptions struct {
	ProjectID    *int64
	HostID       *int64
	AssetType    *AssetType
	Query        string
	ArchivedOnly bool
	Limit        int
	Offset       int
}

const ipAssetColumns = `id, ip_address, asset_type, project_id, host_id,
	COALESCE(notes, ''), archived, created_at, updated_at`

func scanIPAsset(row interface{ Scan(...any) error }) (*IPAsset, error) {
	var a IPAsset
	var archived int
	if err := row.Scan(&a.ID, &a.IPAddress, &a.AssetType, &a.ProjectID, &a.HostID,
		&a.Notes, &archived, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Archived = archived != 0
	return &a, nil
}

// GetIPAssetByIP returns the asset with the given IP address, or nil.
func (s *Store) GetIPAssetByIP(ctx context.Context, ipAddress string) (*IPAsset, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+ipAssetColumns+" FROM ip_assets WHERE ip_address = ?", ipAddress)
	asset, err := scanIPAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ip asset %q: %w", ipAddress, err)
	}
	return asset, nil
}

// GetIPAssetByID returns the asset with the given ID, or nil.
func (s *Store) GetIPAssetByID(ctx context.Context, id int64) (*IPAsset, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+ipAssetColumns+" FROM ip_assets WHERE id = ?", id)
	asset, err := scanIPAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ip asset %d: %w", id, err)
	}
	return asset, nil
}

// ListIPAssets returns non-archived assets (or archived-only when requested)
// matching the given filters, ordered by IP address.
func (s *Store) ListIPAssets(ctx context.Context, opts ListIPAssetsOptions) ([]IPAsset, error) {
	query := "SELECT " + ipAssetColumns + " FROM ip_assets WHERE archived = ?"
	args := []any{boolToInt(opts.ArchivedOnly)}

	if opts.ProjectID != nil {
		query += " AND project_id = ?"
		args = append(args, *opts.ProjectID)
	}
	if opts.HostID != nil {
		query += " AND host_id = ?"
		args = append(args, *opts.HostID)
	}
	if opts.AssetType != nil {
		query += " AND asset_type = ?"
		args = append(args, string(*opts.AssetType))
	}
	if opts.Query != "" {
		query += " AND (LOWER(ip_address) LIKE ? OR LOWER(COALESCE(notes, '')) LIKE ?)"
		like := "%" + strings.ToLower(opts.Query) + "%"
		args = append(args, like, like)
	}
	query += " ORDER BY ip_address"
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ip assets: %w", err)
	}
	defer rows.Close()

	var assets []IPAsset
	for rows.Next() {
		asset, err := scanIPAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ip asset: %w", err)
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

// CreateIPAsset inserts an IP asset, optionally assigning tags, and records
// an audit entry attributed to actor (empty for system-originated writes).
func (s *Store) CreateIPAsset(ctx context.Context, ipAddress string, assetType AssetType,
	projectID, hostID *int64, notes string, tags []string, actor string) (*IPAsset, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO ip_assets (ip_address, asset_type, project_id, host_id, notes) VALUES (?, ?, ?, ?, ?)",
		ipAddress, string(assetType), projectID, hostID, nullIfEmpty(notes))
	if err != nil {
		return nil, fmt.Errorf("create ip asset %q: %w", ipAddress, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ip asset insert id: %w", err)
	}

	changes := fmt.Sprintf("Created IP asset (type=%s, project_id=%s, host_id=%s, notes=%s)",
		assetType, idLabel(projectID), idLabel(hostID), notes)
	if err := s.CreateAuditLog(ctx, actor, "CREATE", "IP_ASSET", id, ipAddress, changes); err != nil {
		return nil, err
	}

	if tags != nil {
		if _, err := s.SetIPAssetTags(ctx, id, tags); err != nil {
			return nil, err
		}
	}
	return s.GetIPAssetByID(ctx, id)
}

// UpdateIPAsset writes the full target state for the asset with the given
// IP address and records an audit entry summarizing the field changes.
// Returns nil when no such asset exists.
func (s *Store) UpdateIPAsset(ctx context.Context, ipAddress string, target IPAssetTarget, actor string) (*IPAsset, error) {
	existing, err := s.GetIPAssetByIP(ctx, ipAddress)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	var tagsBefore []string
	if target.Tags != nil {
		tagMap, err := s.ListTagsForIPAssets(ctx, []int64{existing.ID})
		if err != nil {
			return nil, err
		}
		tagsBefore = tagMap[existing.ID]
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE ip_assets
		SET asset_type = ?, project_id = ?, host_id = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE ip_address = ?`,
		string(target.AssetType), target.ProjectID, target.HostID, nullIfEmpty(target.Notes), ipAddress)
	if err != nil {
		return nil, fmt.Errorf("update ip asset %q: %w", ipAddress, err)
	}

	var tagsAfter []string
	if target.Tags != nil {
		tagsAfter, err = s.SetIPAssetTags(ctx, existing.ID, target.Tags)
		if err != nil {
			return nil, err
		}
	}

	updated, err := s.GetIPAssetByIP(ctx, ipAddress)
	if err != nil {
		return nil, err
	}
	changes := s.summarizeIPAssetChanges(ctx, existing, updated, tagsBefore, tagsAfter, target.Tags != nil)
	if err := s.CreateAuditLog(ctx, actor, "UPDATE", "IP_ASSET", existing.ID, ipAddress, changes); err != nil {
		return nil, err
	}
	return updated, nil
}

// SetIPAssetArchived toggles the archived flag for an IP asset.
func (s *Store) SetIPAssetArchived(ctx context.Context, ipAddress string, archived bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE ip_assets SET archived = ?, updated_at = CURRENT_TIMESTAMP WHERE ip_address = ?",
		boolToInt(archived), ipAddress)
	if err != nil {
		return fmt.Errorf("set archived %q: %w", ipAddress, err)
	}
	return nil
}

// DeleteIPAsset removes an IP asset and records an audit entry.
func (s *Store) DeleteIPAsset(ctx context.Context, ipAddress string, actor string) (bool, error) {
	existing, err := s.GetIPAssetByIP(ctx, ipAddress)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM ip_assets WHERE ip_address = ?", ipAddress)
	if err != nil {
		return false, fmt.Errorf("delete ip asset %q: %w", ipAddress, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	if err := s.CreateAuditLog(ctx, actor, "DELETE", "IP_ASSET", existing.ID, ipAddress, "Deleted IP asset."); err != nil {
		return false, err
	}
	return true, nil
}

// summarizeIPAssetChanges builds the per-field audit description for an update.
func (s *Store) summarizeIPAssetChanges(ctx context.Context, existing, updated *IPAsset,
	tagsBefore, tagsAfter []string, tagsChanged bool) string {
	var changes []string
	if existing.AssetType != updated.AssetType {
		changes = append(changes, fmt.Sprintf("type: %s -> %s", existing.AssetType, updated.AssetType))
	}
	if !idEqual(existing.ProjectID, updated.ProjectID) {
		changes = append(changes, fmt.Sprintf("project: %s -> %s",
			s.projectLabel(ctx, existing.ProjectID), s.projectLabel(ctx, updated.ProjectID)))
	}
	if !idEqual(existing.HostID, updated.HostID) {
		changes = append(changes, fmt.Sprintf("host: %s -> %s",
			s.hostLabel(ctx, existing.HostID), s.hostLabel(ctx, updated.HostID)))
	}
	if existing.Notes != updated.Notes {
		changes = append(changes, fmt.Sprintf("notes: %s -> %s", existing.Notes, updated.Notes))
	}
	if tagsChanged && !sameTagSet(tagsBefore, tagsAfter) {
		changes = append(changes, fmt.Sprintf("tags: %s -> %s", tagLabel(tagsBefore), tagLabel(tagsAfter)))
	}
	if len(changes) == 0 {
		return "No changes recorded."
	}
	return strings.Join(changes, "; ")
}

func (s *Store) projectLabel(ctx context.Context, id *int64) string {
	if id == nil {
		return "Unassigned"
	}
	project, err := s.GetProjectByID(ctx, *id)
	if err != nil || project == nil {
		return fmt.Sprintf("Unknown (%d)", *id)
	}
	return project.Name
}

func (s *Store) hostLabel(ctx context.Context, id *int64) string {
	if id == nil {
		return "Unassigned"
	}
	host, err := s.GetHostByID(ctx, *id)
	if err != nil || host == nil {
		return fmt.Sprintf("Unknown (%d)", *id)
	}
	return host.Name
}

func idEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func idLabel(id *int64) string {
	if id == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *id)
}

func tagLabel(tags []string) string {
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ", ")
}

func sameTagSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
