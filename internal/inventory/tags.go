package inventory

import (
	"context"
	"database/sql"
	"fmt"
)

// ListTags returns all tags ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, color FROM tags ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// GetTagByName returns the tag with the given (already normalized) name, or nil.
func (s *Store) GetTagByName(ctx context.Context, name string) (*Tag, error) {
	var t Tag
	err := s.db.QueryRowContext(ctx, "SELECT id, name, color FROM tags WHERE name = ?", name).
		Scan(&t.ID, &t.Name, &t.Color)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag %q: %w", name, err)
	}
	return &t, nil
}

// CreateTag inserts a tag. The name must already be normalized; an empty
// color falls back to the default.
func (s *Store) CreateTag(ctx context.Context, name, color string) (*Tag, error) {
	if color == "" {
		color = DefaultTagColor
	}
	res, err := s.db.ExecContext(ctx, "INSERT INTO tags (name, color) VALUES (?, ?)", name, color)
	if err != nil {
		return nil, fmt.Errorf("create tag %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("tag insert id: %w", err)
	}
	return &Tag{ID: id, Name: name, Color: color}, nil
}

// UpdateTag renames and recolors a tag.
func (s *Store) UpdateTag(ctx context.Context, id int64, name, color string) (*Tag, error) {
	if color == "" {
		color = DefaultTagColor
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE tags SET name = ?, color = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		name, color, id)
	if err != nil {
		return nil, fmt.Errorf("update tag %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return &Tag{ID: id, Name: name, Color: color}, nil
}

// DeleteTag removes a tag and its asset associations.
func (s *Store) DeleteTag(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete tag %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetIPAssetTags replaces the asset's tag set with the given names,
// normalizing and deduplicating them and creating missing tags on the fly.
// Returns the final normalized tag list.
func (s *Store) SetIPAssetTags(ctx context.Context, assetID int64, tagNames []string) ([]string, error) {
	normalized := NormalizeTagNames(tagNames)

	tagIDs := make([]int64, 0, len(normalized))
	for _, name := range normalized {
		tag, err := s.GetTagByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if tag == nil {
			tag, err = s.CreateTag(ctx, name, "")
			if err != nil {
				return nil, err
			}
		}
		tagIDs = append(tagIDs, tag.ID)
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM ip_asset_tags WHERE ip_asset_id = ?", assetID); err != nil {
		return nil, fmt.Errorf("clear asset tags %d: %w", assetID, err)
	}
	for _, tagID := range tagIDs {
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO ip_asset_tags (ip_asset_id, tag_id) VALUES (?, ?)", assetID, tagID); err != nil {
			return nil, fmt.Errorf("attach tag %d to asset %d: %w", tagID, assetID, err)
		}
	}
	return normalized, nil
}

// ListTagsForIPAssets returns the tag names for each of the given asset IDs,
// sorted by name. Assets without tags have no entry in the result.
func (s *Store) ListTagsForIPAssets(ctx context.Context, assetIDs []int64) (map[int64][]string, error) {
	result := make(map[int64][]string)
	if len(assetIDs) == 0 {
		return result, nil
	}

	placeholders := ""
	args := make([]any, 0, len(assetIDs))
	for i, id := range assetIDs {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ip_asset_tags.ip_asset_id, tags.name
		FROM ip_asset_tags
		JOIN tags ON tags.id = ip_asset_tags.tag_id
		WHERE ip_asset_tags.ip_asset_id IN (`+placeholders+`)
		ORDER BY tags.name`, args...)
	if err != nil {
		return nil, fmt.Errorf("list asset tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var assetID int64
		var name string
		if err := rows.Scan(&assetID, &name); err != nil {
			return nil, fmt.Errorf("scan asset tag: %w", err)
		}
		result[assetID] = append(result[assetID], name)
	}
	return result, rows.Err()
}
