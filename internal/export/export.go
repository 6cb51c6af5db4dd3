// Package export builds bundle JSON snapshots of the inventory, in the
// same schema the bundle importer accepts.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/ipocket/ipocket/internal/inventory"
)

// SchemaVersion is the bundle schema this package produces.
const SchemaVersion = "1"

// Document is a complete bundle snapshot.
type Document struct {
	App           string `json:"app"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    string `json:"exported_at"`
	Data          Data   `json:"data"`
}

// Data holds the four entity sections of a bundle.
type Data struct {
	Vendors  []VendorEntry               `json:"vendors"`
	Projects []ProjectEntry              `json:"projects"`
	Hosts    []HostEntry                 `json:"hosts"`
	IPAssets []inventory.ExportedIPAsset `json:"ip_assets"`
}

type VendorEntry struct {
	Name string `json:"name"`
}

type ProjectEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type HostEntry struct {
	Name       string `json:"name"`
	Notes      string `json:"notes"`
	VendorName string `json:"vendor_name"`
}

// Builder assembles bundle documents from the inventory store.
type Builder struct {
	store *inventory.Store
}

// NewBuilder creates a Builder backed by the given store.
func NewBuilder(store *inventory.Store) *Builder {
	return &Builder{store: store}
}

// Bundle exports the current inventory as a bundle document. The project
// and host name filters narrow both their own sections and the IP assets.
func (b *Builder) Bundle(ctx context.Context, filter inventory.ExportFilter) (*Document, error) {
	vendors, err := b.store.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("export vendors: %w", err)
	}
	projects, err := b.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("export projects: %w", err)
	}
	hosts, err := b.store.ListHosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("export hosts: %w", err)
	}
	assets, err := b.store.ListIPAssetsForExport(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("export ip assets: %w", err)
	}
	if assets == nil {
		assets = []inventory.ExportedIPAsset{}
	}

	doc := &Document{
		App:           "ipocket",
		SchemaVersion: SchemaVersion,
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
		Data: Data{
			Vendors:  []VendorEntry{},
			Projects: []ProjectEntry{},
			Hosts:    []HostEntry{},
			IPAssets: assets,
		},
	}
	for _, vendor := range vendors {
		doc.Data.Vendors = append(doc.Data.Vendors, VendorEntry{Name: vendor.Name})
	}
	for _, project := range projects {
		if filter.ProjectName != "" && project.Name != filter.ProjectName {
			continue
		}
		doc.Data.Projects = append(doc.Data.Projects, ProjectEntry{
			Name:        project.Name,
			Description: project.Description,
			Color:       project.Color,
		})
	}
	for _, host := range hosts {
		if filter.HostName != "" && host.Name != filter.HostName {
			continue
		}
		doc.Data.Hosts = append(doc.Data.Hosts, HostEntry{
			Name:       host.Name,
			Notes:      host.Notes,
			VendorName: host.Vendor,
		})
	}
	return doc, nil
}
