// Package seed populates the database with a small demo inventory for
// evaluation and UI development.
package seed

import (
	"context"
	"fmt"

	"github.com/ipocket/ipocket/internal/inventory"
)

// Demo populates the database with a realistic small-site inventory:
// three vendors, three projects, four hosts, and a dozen IP assets. It is
// idempotent: entities are matched by name or IP and never duplicated.
func Demo(ctx context.Context, store *inventory.Store) error {
	vendorIDs := make(map[string]int64)
	for _, name := range []string{"Dell", "Supermicro", "HPE"} {
		vendor, err := ensureVendor(ctx, store, name)
		if err != nil {
			return err
		}
		vendorIDs[name] = vendor.ID
	}

	projectIDs := make(map[string]int64)
	for _, p := range demoProjects() {
		project, err := ensureProject(ctx, store, p)
		if err != nil {
			return err
		}
		projectIDs[p.name] = project.ID
	}

	hostIDs := make(map[string]int64)
	for _, h := range demoHosts() {
		vendorID := vendorIDs[h.vendor]
		host, err := ensureHost(ctx, store, h, &vendorID)
		if err != nil {
			return err
		}
		hostIDs[h.name] = host.ID
	}

	for _, a := range demoAssets() {
		if err := ensureAsset(ctx, store, a, projectIDs, hostIDs); err != nil {
			return err
		}
	}
	return nil
}

type demoProject struct {
	name        string
	description string
	color       string
}

func demoProjects() []demoProject {
	return []demoProject{
		{"Core Infrastructure", "Switching, routing, and shared services", "#2563eb"},
		{"Monitoring", "Observability stack", "#16a34a"},
		{"Lab", "Scratch environment, reclaim freely", "#f59e0b"},
	}
}

type demoHost struct {
	name   string
	notes  string
	vendor string
}

func demoHosts() []demoHost {
	return []demoHost{
		{"node-01", "Primary hypervisor", "Dell"},
		{"node-02", "Secondary hypervisor", "Dell"},
		{"storage-01", "ZFS pool, 12 bays", "Supermicro"},
		{"lab-01", "Burn-in bench host", "HPE"},
	}
}

type demoAsset struct {
	ip       string
	kind     inventory.AssetType
	project  string
	host     string
	notes    string
	tags     []string
	archived bool
}

func demoAssets() []demoAsset {
	return []demoAsset{
		{ip: "10.0.10.11", kind: inventory.AssetTypeOS, project: "Core Infrastructure", host: "node-01",
			notes: "Proxmox VE 8", tags: []string{"prod", "hypervisor"}},
		{ip: "10.0.20.11", kind: inventory.AssetTypeBMC, host: "node-01",
			notes: "iDRAC", tags: []string{"oob"}},
		{ip: "10.0.10.12", kind: inventory.AssetTypeOS, project: "Core Infrastructure", host: "node-02",
			notes: "Proxmox VE 8", tags: []string{"prod", "hypervisor"}},
		{ip: "10.0.20.12", kind: inventory.AssetTypeBMC, host: "node-02",
			notes: "iDRAC", tags: []string{"oob"}},
		{ip: "10.0.10.21", kind: inventory.AssetTypeOS, project: "Core Infrastructure", host: "storage-01",
			notes: "TrueNAS", tags: []string{"prod", "storage"}},
		{ip: "10.0.10.50", kind: inventory.AssetTypeVIP, project: "Core Infrastructure",
			notes: "Ingress VIP (keepalived)", tags: []string{"prod"}},
		{ip: "10.0.30.10", kind: inventory.AssetTypeVM, project: "Monitoring",
			notes: "Prometheus + Grafana", tags: []string{"monitoring"}},
		{ip: "10.0.30.11", kind: inventory.AssetTypeVM, project: "Monitoring",
			notes: "Loki", tags: []string{"monitoring"}},
		{ip: "10.0.30.12", kind: inventory.AssetTypeVM, project: "Monitoring",
			notes: "Alertmanager", tags: []string{"monitoring"}},
		{ip: "10.0.40.10", kind: inventory.AssetTypeOS, project: "Lab", host: "lab-01",
			notes: "Rotating test install", tags: []string{"lab"}},
		{ip: "10.0.40.20", kind: inventory.AssetTypeVM, project: "Lab",
			notes: "Throwaway VM", tags: []string{"lab"}},
		{ip: "10.0.40.99", kind: inventory.AssetTypeOther, project: "Lab",
			notes: "Decommissioned PDU", tags: []string{"lab"}, archived: true},
	}
}

func ensureVendor(ctx context.Context, store *inventory.Store, name string) (*inventory.Vendor, error) {
	existing, err := store.GetVendorByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("seed vendor %s: %w", name, err)
	}
	if existing != nil {
		return existing, nil
	}
	vendor, err := store.CreateVendor(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("seed vendor %s: %w", name, err)
	}
	return vendor, nil
}

func ensureProject(ctx context.Context, store *inventory.Store, p demoProject) (*inventory.Project, error) {
	projects, err := store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed project %s: %w", p.name, err)
	}
	for i := range projects {
		if projects[i].Name == p.name {
			return &projects[i], nil
		}
	}
	project, err := store.CreateProject(ctx, p.name, p.description, p.color)
	if err != nil {
		return nil, fmt.Errorf("seed project %s: %w", p.name, err)
	}
	return project, nil
}

func ensureHost(ctx context.Context, store *inventory.Store, h demoHost, vendorID *int64) (*inventory.Host, error) {
	existing, err := store.GetHostByName(ctx, h.name)
	if err != nil {
		return nil, fmt.Errorf("seed host %s: %w", h.name, err)
	}
	if existing != nil {
		return existing, nil
	}
	host, err := store.CreateHost(ctx, h.name, h.notes, vendorID)
	if err != nil {
		return nil, fmt.Errorf("seed host %s: %w", h.name, err)
	}
	return host, nil
}

func ensureAsset(ctx context.Context, store *inventory.Store, a demoAsset,
	projectIDs, hostIDs map[string]int64) error {

	existing, err := store.GetIPAssetByIP(ctx, a.ip)
	if err != nil {
		return fmt.Errorf("seed asset %s: %w", a.ip, err)
	}
	if existing != nil {
		return nil
	}

	var projectID, hostID *int64
	if a.project != "" {
		if id, ok := projectIDs[a.project]; ok {
			projectID = &id
		}
	}
	if a.host != "" {
		if id, ok := hostIDs[a.host]; ok {
			hostID = &id
		}
	}

	if _, err := store.CreateIPAsset(ctx, a.ip, a.kind, projectID, hostID, a.notes, a.tags, "seed"); err != nil {
		return fmt.Errorf("seed asset %s: %w", a.ip, err)
	}
	if a.archived {
		if err := store.SetIPAssetArchived(ctx, a.ip, true); err != nil {
			return fmt.Errorf("seed asset %s: %w", a.ip, err)
		}
	}
	return nil
}
