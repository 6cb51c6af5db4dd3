package export

import (
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ipocket/ipocket/internal/imports"
	"github.com/ipocket/ipocket/internal/inventory"
	"github.com/ipocket/ipocket/internal/store"
)

func newTestStore(t *testing.T) *inventory.Store {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "ipocket.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background(), "inventory", inventory.Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return inventory.NewStore(db.DB())
}

func seedInventory(t *testing.T, s *inventory.Store) {
	t.Helper()
	ctx := context.Background()
	vendor, err := s.CreateVendor(ctx, "Dell")
	if err != nil {
		t.Fatalf("CreateVendor: %v", err)
	}
	project, err := s.CreateProject(ctx, "Core", "primary infra", "#ff0000")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	host, err := s.CreateHost(ctx, "node-1", "rack 4", &vendor.ID)
	if err != nil {
		t.Fatalf("CreateHost: %v", err)
	}
	if _, err := s.CreateIPAsset(ctx, "10.0.0.5", inventory.AssetTypeOS, &project.ID, &host.ID, "primary", []string{"prod", "web"}, ""); err != nil {
		t.Fatalf("CreateIPAsset: %v", err)
	}
	if _, err := s.CreateIPAsset(ctx, "10.0.0.6", inventory.AssetTypeVM, nil, nil, "", nil, ""); err != nil {
		t.Fatalf("CreateIPAsset: %v", err)
	}
	if _, err := s.CreateIPAsset(ctx, "10.0.0.7", inventory.AssetTypeVIP, nil, nil, "", nil, ""); err != nil {
		t.Fatalf("CreateIPAsset: %v", err)
	}
	if err := s.SetIPAssetArchived(ctx, "10.0.0.7", true); err != nil {
		t.Fatalf("SetIPAssetArchived: %v", err)
	}
}

func TestBundle_Filters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedInventory(t, s)
	builder := NewBuilder(s)

	doc, err := builder.Bundle(ctx, inventory.ExportFilter{})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if doc.App != "ipocket" || doc.SchemaVersion != "1" {
		t.Errorf("envelope = %+v", doc)
	}
	if len(doc.Data.IPAssets) != 2 {
		t.Errorf("default export assets = %d, want 2 (archived excluded)", len(doc.Data.IPAssets))
	}

	doc, err = builder.Bundle(ctx, inventory.ExportFilter{IncludeArchived: true})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if len(doc.Data.IPAssets) != 3 {
		t.Errorf("include_archived assets = %d, want 3", len(doc.Data.IPAssets))
	}

	vm := inventory.AssetTypeVM
	doc, err = builder.Bundle(ctx, inventory.ExportFilter{AssetType: &vm})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if len(doc.Data.IPAssets) != 1 || doc.Data.IPAssets[0].IPAddress != "10.0.0.6" {
		t.Errorf("type filter assets = %+v", doc.Data.IPAssets)
	}

	doc, err = builder.Bundle(ctx, inventory.ExportFilter{ProjectName: "Core"})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if len(doc.Data.IPAssets) != 1 || doc.Data.IPAssets[0].IPAddress != "10.0.0.5" {
		t.Errorf("project filter assets = %+v", doc.Data.IPAssets)
	}
	if len(doc.Data.Projects) != 1 {
		t.Errorf("project filter projects = %+v", doc.Data.Projects)
	}
}

func TestBundle_RoundTrip(t *testing.T) {
	ctx := context.Background()
	source := newTestStore(t)
	seedInventory(t, source)

	doc, err := NewBuilder(source).Bundle(ctx, inventory.ExportFilter{IncludeArchived: true})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}

	target := newTestStore(t)
	result, err := imports.Run(ctx, target, imports.BundleImporter{},
		map[string][]byte{"bundle": payload}, imports.Options{}, false, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("import errors: %v", result.Errors)
	}

	// The re-imported store holds equivalent rows.
	vendors, err := target.ListVendors(ctx)
	if err != nil {
		t.Fatalf("ListVendors: %v", err)
	}
	if len(vendors) != 1 || vendors[0].Name != "Dell" {
		t.Errorf("vendors = %+v", vendors)
	}
	projects, err := target.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 || projects[0].Name != "Core" || projects[0].Color != "#ff0000" {
		t.Errorf("projects = %+v", projects)
	}
	hosts, err := target.ListHosts(ctx)
	if err != nil {
		t.Fatalf("ListHosts: %v", err)
	}
	if len(hosts) != 1 || hosts[0].Vendor != "Dell" {
		t.Errorf("hosts = %+v", hosts)
	}

	asset, err := target.GetIPAssetByIP(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("GetIPAssetByIP: %v", err)
	}
	if asset == nil || asset.AssetType != inventory.AssetTypeOS || asset.ProjectID == nil || asset.HostID == nil {
		t.Fatalf("asset 10.0.0.5 = %+v", asset)
	}
	if asset.Notes != "primary" {
		t.Errorf("notes = %q", asset.Notes)
	}
	tagMap, err := target.ListTagsForIPAssets(ctx, []int64{asset.ID})
	if err != nil {
		t.Fatalf("ListTagsForIPAssets: %v", err)
	}
	if !reflect.DeepEqual(tagMap[asset.ID], []string{"prod", "web"}) {
		t.Errorf("tags = %v", tagMap[asset.ID])
	}

	archived, err := target.GetIPAssetByIP(ctx, "10.0.0.7")
	if err != nil {
		t.Fatalf("GetIPAssetByIP: %v", err)
	}
	if archived == nil || !archived.Archived {
		t.Errorf("archived asset = %+v", archived)
	}

	// Exporting the target again and re-importing into the source skips everything.
	second, err := imports.Run(ctx, source, imports.BundleImporter{},
		map[string][]byte{"bundle": payload}, imports.Options{}, false, nil)
	if err != nil {
		t.Fatalf("Run (idempotence): %v", err)
	}
	total := second.Summary.Total()
	if total.WouldCreate != 0 || total.WouldUpdate != 0 {
		t.Errorf("re-import total = %+v, want only skips", total)
	}
}
