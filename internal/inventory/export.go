package inventory

import (
	"context"
	"fmt"
)

// ExportFilter narrows which IP assets an export includes.
type ExportFilter struct {
	IncludeArchived bool
	AssetType       *AssetType
	ProjectName     string
	HostName        string
}

// ExportedIPAsset is an IP asset row resolved to names for bundle export.
type ExportedIPAsset struct {
	IPAddress   string   `json:"ip_address"`
	AssetType   string   `json:"type"`
	ProjectName *string  `json:"project_name"`
	HostName    *string  `json:"host_name"`
	Notes       string   `json:"notes"`
	Archived    bool     `json:"archived"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	Tags        []string `json:"tags"`
}

// ListIPAssetsForExport returns assets with project and host references
// resolved to names, ordered by IP address.
func (s *Store) ListIPAssetsForExport(ctx context.Context, filter ExportFilter) ([]ExportedIPAsset, error) {
	query := `
		SELECT ip_assets.id,
		       ip_assets.ip_address,
		       ip_assets.asset_type,
		       projects.name,
		       hosts.name,
		       COALESCE(ip_assets.notes, ''),
		       ip_assets.archived,
		       ip_assets.created_at,
		       ip_assets.updated_at
		FROM ip_assets
		LEFT JOIN projects ON projects.id = ip_assets.project_id
		LEFT JOIN hosts ON hosts.id = ip_assets.host_id
		WHERE 1 = 1`
	var args []any
	if !filter.IncludeArchived {
		query += " AND ip_assets.archived = 0"
	}
	if filter.AssetType != nil {
		query += " AND ip_assets.asset_type = ?"
		args = append(args, string(*filter.AssetType))
	}
	if filter.ProjectName != "" {
		query += " AND projects.name = ?"
		args = append(args, filter.ProjectName)
	}
	if filter.HostName != "" {
		query += " AND hosts.name = ?"
		args = append(args, filter.HostName)
	}
	query += " ORDER BY ip_assets.ip_address"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ip assets for export: %w", err)
	}
	defer rows.Close()

	var assets []ExportedIPAsset
	var ids []int64
	for rows.Next() {
		var a ExportedIPAsset
		var id int64
		var archived int
		if err := rows.Scan(&id, &a.IPAddress, &a.AssetType, &a.ProjectName, &a.HostName,
			&a.Notes, &archived, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		a.Archived = archived != 0
		assets = append(assets, a)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tagMap, err := s.ListTagsForIPAssets(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range assets {
		tags := tagMap[ids[i]]
		if tags == nil {
			tags = []string{}
		}
		assets[i].Tags = tags
	}
	return assets, nil
}
