package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store provides database operations for the inventory module.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ErrHostHasAssets is returned when deleting a host that still has IP assets.
var ErrHostHasAssets = errors.New("host has linked IP assets")

// ListVendors returns all vendors ordered by name.
func (s *Store) ListVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM vendors ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// CreateVendor inserts a vendor and returns it.
func (s *Store) CreateVendor(ctx context.Context, name string) (*Vendor, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO vendors (name) VALUES (?)", name)
	if err != nil {
		return nil, fmt.Errorf("create vendor %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("vendor insert id: %w", err)
	}
	return &Vendor{ID: id, Name: name}, nil
}

// GetVendorByName returns the vendor with the given name, or nil.
func (s *Store) GetVendorByName(ctx context.Context, name string) (*Vendor, error) {
	var v Vendor
	err := s.db.QueryRowContext(ctx, "SELECT id, name FROM vendors WHERE name = ?", name).Scan(&v.ID, &v.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor %q: %w", name, err)
	}
	return &v, nil
}

// GetVendorByID returns the vendor with the given ID, or nil.
func (s *Store) GetVendorByID(ctx context.Context, id int64) (*Vendor, error) {
	var v Vendor
	err := s.db.QueryRowContext(ctx, "SELECT id, name FROM vendors WHERE id = ?", id).Scan(&v.ID, &v.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor %d: %w", id, err)
	}
	return &v, nil
}

// UpdateVendor renames a vendor.
func (s *Store) UpdateVendor(ctx context.Context, id int64, name string) (*Vendor, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE vendors SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", name, id)
	if err != nil {
		return nil, fmt.Errorf("update vendor %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return &Vendor{ID: id, Name: name}, nil
}

// ListProjects returns all projects ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, COALESCE(description, ''), color FROM projects ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Color); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProjectByID returns the project with the given ID, or nil.
func (s *Store) GetProjectByID(ctx context.Context, id int64) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, COALESCE(description, ''), color FROM projects WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Color)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return &p, nil
}

// CreateProject inserts a project. An empty color falls back to the default.
func (s *Store) CreateProject(ctx context.Context, name, description, color string) (*Project, error) {
	if color == "" {
		color = DefaultProjectColor
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (name, description, color) VALUES (?, ?, ?)",
		name, nullIfEmpty(description), color)
	if err != nil {
		return nil, fmt.Errorf("create project %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("project insert id: %w", err)
	}
	return &Project{ID: id, Name: name, Description: description, Color: color}, nil
}

// UpdateProject writes the full target state for a project.
func (s *Store) UpdateProject(ctx context.Context, id int64, name, description, color string) (*Project, error) {
	if color == "" {
		color = DefaultProjectColor
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, description = ?, color = ? WHERE id = ?",
		name, nullIfEmpty(description), color, id)
	if err != nil {
		return nil, fmt.Errorf("update project %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return &Project{ID: id, Name: name, Description: description, Color: color}, nil
}

// ListHosts returns all hosts with their vendor names, ordered by name.
func (s *Store) ListHosts(ctx context.Context) ([]Host, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hosts.id, hosts.name, COALESCE(hosts.notes, ''), COALESCE(vendors.name, '')
		FROM hosts
		LEFT JOIN vendors ON vendors.id = hosts.vendor_id
		ORDER BY hosts.name`)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []Host
	for rows.Next() {
		var h Host
		if err := rows.Scan(&h.ID, &h.Name, &h.Notes, &h.Vendor); err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

// GetHostByName returns the host with the given name, or nil.
func (s *Store) GetHostByName(ctx context.Context, name string) (*Host, error) {
	var h Host
	err := s.db.QueryRowContext(ctx, `
		SELECT hosts.id, hosts.name, COALESCE(hosts.notes, ''), COALESCE(vendors.name, '')
		FROM hosts
		LEFT JOIN vendors ON vendors.id = hosts.vendor_id
		WHERE hosts.name = ?`, name).
		Scan(&h.ID, &h.Name, &h.Notes, &h.Vendor)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get host %q: %w", name, err)
	}
	return &h, nil
}

// GetHostByID returns the host with the given ID, or nil.
func (s *Store) GetHostByID(ctx context.Context, id int64) (*Host, error) {
	var h Host
	err := s.db.QueryRowContext(ctx, `
		SELECT hosts.id, hosts.name, COALESCE(hosts.notes, ''), COALESCE(vendors.name, '')
		FROM hosts
		LEFT JOIN vendors ON vendors.id = hosts.vendor_id
		WHERE hosts.id = ?`, id).
		Scan(&h.ID, &h.Name, &h.Notes, &h.Vendor)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get host %d: %w", id, err)
	}
	return &h, nil
}

// CreateHost inserts a host. vendorID may be nil for no vendor.
func (s *Store) CreateHost(ctx context.Context, name, notes string, vendorID *int64) (*Host, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO hosts (name, notes, vendor_id) VALUES (?, ?, ?)",
		name, nullIfEmpty(notes), vendorID)
	if err != nil {
		return nil, fmt.Errorf("create host %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("host insert id: %w", err)
	}
	return s.GetHostByID(ctx, id)
}

// UpdateHost writes the full target state for a host.
func (s *Store) UpdateHost(ctx context.Context, id int64, name, notes string, vendorID *int64) (*Host, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE hosts SET name = ?, notes = ?, vendor_id = ? WHERE id = ?",
		name, nullIfEmpty(notes), vendorID, id)
	if err != nil {
		return nil, fmt.Errorf("update host %d: %w", id, err)
	}
	return s.GetHostByID(ctx, id)
}

// DeleteHost removes a host. Hosts with linked IP assets cannot be deleted.
func (s *Store) DeleteHost(ctx context.Context, id int64) (bool, error) {
	var linked int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ip_assets WHERE host_id = ?", id).Scan(&linked)
	if err != nil {
		return false, fmt.Errorf("count linked assets: %w", err)
	}
	if linked > 0 {
		return false, ErrHostHasAssets
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM hosts WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete host %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// nullIfEmpty maps "" to SQL NULL so empty text does not occupy the column.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
