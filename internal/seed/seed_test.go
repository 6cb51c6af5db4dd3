package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ipocket/ipocket/internal/inventory"
	"github.com/ipocket/ipocket/internal/store"
)

func newTestStore(t *testing.T) *inventory.Store {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "ipocket.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background(), "inventory", inventory.Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return inventory.NewStore(db.DB())
}

func TestDemo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := Demo(ctx, s); err != nil {
		t.Fatalf("Demo: %v", err)
	}

	summary, err := s.ManagementSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Vendors != 3 || summary.Projects != 3 || summary.Hosts != 4 {
		t.Errorf("summary = %+v, want 3 vendors, 3 projects, 4 hosts", summary)
	}
	if summary.ActiveIPAssets != 11 || summary.ArchivedIPAssets != 1 {
		t.Errorf("summary = %+v, want 11 active and 1 archived asset", summary)
	}

	asset, err := s.GetIPAssetByIP(ctx, "10.0.10.11")
	if err != nil || asset == nil {
		t.Fatalf("asset = %+v, err %v", asset, err)
	}
	if asset.ProjectID == nil || asset.HostID == nil {
		t.Errorf("asset = %+v, want project and host links", asset)
	}
}

func TestDemoIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := Demo(ctx, s); err != nil {
		t.Fatalf("first Demo: %v", err)
	}
	if err := Demo(ctx, s); err != nil {
		t.Fatalf("second Demo: %v", err)
	}

	summary, err := s.ManagementSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Vendors != 3 || summary.ActiveIPAssets != 11 {
		t.Errorf("summary after re-run = %+v, want no duplicates", summary)
	}
}
