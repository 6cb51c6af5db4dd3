package imports

import (
	"context"
	"path/filepath"
	"strings"
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

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

const fullBundleJSON = `{
	"app": "ipocket",
	"schema_version": "1",
	"exported_at": "2026-01-01T00:00:00Z",
	"data": {
		"vendors": [{"name": "Dell"}],
		"projects": [{"name": "Core", "description": "core infra", "color": "#2563eb"}],
		"hosts": [{"name": "node-1", "notes": "rack 4", "vendor_name": "Dell"}],
		"ip_assets": [
			{"ip_address": "10.0.0.5", "type": "OS", "project_name": "Core", "host_name": "node-1", "tags": ["prod"]},
			{"ip_address": "10.0.0.6", "type": "VM", "project_name": "Core"}
		]
	}
}`

func runBundle(t *testing.T, s *inventory.Store, payload string, dryRun bool) *ApplyResult {
	t.Helper()
	result, err := Run(context.Background(), s, BundleImporter{},
		map[string][]byte{"bundle": []byte(payload)}, Options{}, dryRun,
		&AuditContext{Username: "tester", Source: "test", Mode: "apply", InputLabel: "bundle.json"})
	if err != nil {
		t.Fatalf("run import: %v", err)
	}
	return result
}

func TestRun_SchemaVersionRejected(t *testing.T) {
	s := newTestStore(t)
	result := runBundle(t, s, `{"app": "ipocket", "schema_version": "2", "data": {}}`, false)

	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", result.Errors)
	}
	issue := result.Errors[0]
	if issue.Location != "schema_version" {
		t.Errorf("location = %q, want schema_version", issue.Location)
	}
	if issue.Message != "Unsupported schema_version (expected '1')." {
		t.Errorf("message = %q", issue.Message)
	}
	if total := result.Summary.Total(); total != (EntitySummary{}) {
		t.Errorf("summary total = %+v, want all zeros", total)
	}
}

func TestRun_ApplyThenIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := runBundle(t, s, fullBundleJSON, false)
	if len(first.Errors) != 0 {
		t.Fatalf("first run errors: %v", first.Errors)
	}
	total := first.Summary.Total()
	if total.WouldCreate != 5 || total.WouldUpdate != 0 || total.WouldSkip != 0 {
		t.Fatalf("first run total = %+v, want 5 creates", total)
	}

	asset, err := s.GetIPAssetByIP(ctx, "10.0.0.5")
	if err != nil || asset == nil {
		t.Fatalf("lookup 10.0.0.5: asset=%v err=%v", asset, err)
	}
	if asset.AssetType != inventory.AssetTypeOS {
		t.Errorf("asset type = %s, want OS", asset.AssetType)
	}
	if asset.ProjectID == nil || asset.HostID == nil {
		t.Errorf("asset should be linked to project and host, got %+v", asset)
	}
	tags, err := s.ListTagsForIPAssets(ctx, []int64{asset.ID})
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if got := tags[asset.ID]; len(got) != 1 || got[0] != "prod" {
		t.Errorf("tags = %v, want [prod]", got)
	}

	second := runBundle(t, s, fullBundleJSON, false)
	if len(second.Errors) != 0 {
		t.Fatalf("second run errors: %v", second.Errors)
	}
	total = second.Summary.Total()
	if total.WouldSkip != 5 || total.WouldCreate != 0 || total.WouldUpdate != 0 {
		t.Errorf("second run total = %+v, want 5 skips", total)
	}
}

func TestRun_DryRunForecastsApply(t *testing.T) {
	dryStore := newTestStore(t)
	ctx := context.Background()

	dry := runBundle(t, dryStore, fullBundleJSON, true)
	if len(dry.Errors) != 0 {
		t.Fatalf("dry run errors: %v", dry.Errors)
	}

	applyStore := newTestStore(t)
	applied := runBundle(t, applyStore, fullBundleJSON, false)
	if dry.Summary != applied.Summary {
		t.Errorf("dry-run summary %+v differs from apply summary %+v", dry.Summary, applied.Summary)
	}

	vendors, err := dryStore.ListVendors(ctx)
	if err != nil {
		t.Fatalf("list vendors: %v", err)
	}
	if len(vendors) != 0 {
		t.Errorf("dry run created vendors: %v", vendors)
	}
	assets, err := dryStore.ListIPAssets(ctx, inventory.ListIPAssetsOptions{})
	if err != nil {
		t.Fatalf("list assets: %v", err)
	}
	if len(assets) != 0 {
		t.Errorf("dry run created assets: %v", assets)
	}
}

func TestValidateBundle_BatchDeclaredReferences(t *testing.T) {
	s := newTestStore(t)
	bundle := &Bundle{
		Projects: []Project{{Name: "Core", Source: Source{Location: "data.projects[0]"}}},
		Hosts:    []Host{{Name: "node-1", Source: Source{Location: "data.hosts[0]"}}},
		IPAssets: []IPAsset{{
			IPAddress:   "10.0.0.5",
			AssetType:   "OS",
			ProjectName: strPtr("Core"),
			HostName:    strPtr("node-1"),
			Source:      Source{Location: "data.ip_assets[0]"},
		}},
	}

	result, err := ValidateBundle(context.Background(), s, bundle)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.Valid() {
		t.Errorf("batch-declared references should validate, got %v", result.Errors)
	}
}

func TestValidateBundle_CollectsEveryIssue(t *testing.T) {
	s := newTestStore(t)
	bundle := &Bundle{
		Vendors:  []Vendor{{Name: "  ", Source: Source{Location: "data.vendors[0]"}}},
		Projects: []Project{{Name: "Core", Color: strPtr("blue"), Source: Source{Location: "data.projects[0]"}}},
		Hosts:    []Host{{Name: "node-1", VendorName: strPtr("Ghost"), Source: Source{Location: "data.hosts[0]"}}},
		IPAssets: []IPAsset{{
			IPAddress:   "not-an-ip",
			AssetType:   "ROUTER",
			ProjectName: strPtr("Missing"),
			Tags:        []string{"bad tag"},
			Source:      Source{Location: "data.ip_assets[0]"},
		}},
	}

	result, err := ValidateBundle(context.Background(), s, bundle)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	wantLocations := map[string]bool{
		"data.vendors[0]":              true,
		"data.projects[0].color":       true,
		"data.hosts[0].vendor_name":    true,
		"data.ip_assets[0].ip_address": true,
		"data.ip_assets[0].type":       true,
		"data.ip_assets[0].project_name": true,
		"data.ip_assets[0].tags":       true,
	}
	if len(result.Errors) != len(wantLocations) {
		t.Fatalf("got %d errors %v, want %d", len(result.Errors), result.Errors, len(wantLocations))
	}
	for _, issue := range result.Errors {
		if !wantLocations[issue.Location] {
			t.Errorf("unexpected error location %q (%s)", issue.Location, issue.Message)
		}
	}
}

func TestValidateBundle_RejectsPaddedIP(t *testing.T) {
	s := newTestStore(t)
	bundle := &Bundle{
		IPAssets: []IPAsset{{
			IPAddress: " 10.0.0.5 ",
			AssetType: "OS",
			Source:    Source{Location: "data.ip_assets[0]"},
		}},
	}

	result, err := ValidateBundle(context.Background(), s, bundle)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("got %d errors %v, want 1", len(result.Errors), result.Errors)
	}
	if result.Errors[0].Location != "data.ip_assets[0].ip_address" {
		t.Errorf("location = %q, want ip_address", result.Errors[0].Location)
	}
	if result.Errors[0].Message != "Invalid IP address." {
		t.Errorf("message = %q", result.Errors[0].Message)
	}
}

func TestApplyBundle_TagMergePolicies(t *testing.T) {
	tests := []struct {
		name      string
		tags      []string
		mergeTags bool
		want      []string
	}{
		{name: "merge unions", tags: []string{"b", "c"}, mergeTags: true, want: []string{"a", "b", "c"}},
		{name: "replace wins", tags: []string{"b", "c"}, mergeTags: false, want: []string{"b", "c"}},
		{name: "nil leaves alone", tags: nil, mergeTags: false, want: []string{"a", "b"}},
		{name: "empty clears", tags: []string{}, mergeTags: false, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			seeded, err := s.CreateIPAsset(ctx, "10.1.0.1", inventory.AssetTypeVM, nil, nil, "", []string{"a", "b"}, "")
			if err != nil {
				t.Fatalf("seed asset: %v", err)
			}

			bundle := &Bundle{IPAssets: []IPAsset{{
				IPAddress: "10.1.0.1",
				AssetType: "VM",
				Tags:      tt.tags,
				MergeTags: tt.mergeTags,
			}}}
			if _, err := ApplyBundle(ctx, s, bundle, false, ""); err != nil {
				t.Fatalf("apply: %v", err)
			}

			tagMap, err := s.ListTagsForIPAssets(ctx, []int64{seeded.ID})
			if err != nil {
				t.Fatalf("list tags: %v", err)
			}
			got := tagMap[seeded.ID]
			if len(got) != len(tt.want) {
				t.Fatalf("tags = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("tags = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestApplyBundle_DuplicateIPSkipsSecond(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bundle := &Bundle{IPAssets: []IPAsset{
		{IPAddress: "10.2.0.1", AssetType: "OS", Notes: strPtr("first"), Source: Source{Location: "data.ip_assets[0]"}},
		{IPAddress: "10.2.0.1", AssetType: "VM", Notes: strPtr("second"), Source: Source{Location: "data.ip_assets[1]"}},
	}}
	result, err := ApplyBundle(ctx, s, bundle, false, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if result.Summary.IPAssets.WouldCreate != 1 || result.Summary.IPAssets.WouldSkip != 1 {
		t.Errorf("summary = %+v, want one create and one skip", result.Summary.IPAssets)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w.Message, "Duplicate IP '10.2.0.1'") && w.Location == "data.ip_assets[1]" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want duplicate-IP warning for second entry", result.Warnings)
	}

	asset, err := s.GetIPAssetByIP(ctx, "10.2.0.1")
	if err != nil || asset == nil {
		t.Fatalf("lookup: asset=%v err=%v", asset, err)
	}
	if asset.Notes != "first" {
		t.Errorf("notes = %q, want the first occurrence to win", asset.Notes)
	}
}

func TestApplyBundle_NotesPolicies(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		draft    IPAsset
		want     string
	}{
		{
			name:     "preserve keeps manual notes",
			existing: "manual note",
			draft:    IPAsset{Notes: strPtr("auto"), PreserveExistingNotes: true},
			want:     "manual note",
		},
		{
			name:     "provided overwrites",
			existing: "manual note",
			draft:    IPAsset{Notes: strPtr("auto")},
			want:     "auto",
		},
		{
			name:     "provided clear empties",
			existing: "manual note",
			draft:    IPAsset{NotesProvided: true},
			want:     "",
		},
		{
			name:     "unmentioned keeps",
			existing: "manual note",
			draft:    IPAsset{},
			want:     "manual note",
		},
		{
			name:     "preserve fills empty notes",
			existing: "",
			draft:    IPAsset{Notes: strPtr("auto"), PreserveExistingNotes: true},
			want:     "auto",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			if _, err := s.CreateIPAsset(ctx, "10.3.0.1", inventory.AssetTypeOS, nil, nil, tt.existing, nil, ""); err != nil {
				t.Fatalf("seed asset: %v", err)
			}

			draft := tt.draft
			draft.IPAddress = "10.3.0.1"
			draft.AssetType = "OS"
			if _, err := ApplyBundle(ctx, s, &Bundle{IPAssets: []IPAsset{draft}}, false, ""); err != nil {
				t.Fatalf("apply: %v", err)
			}

			asset, err := s.GetIPAssetByIP(ctx, "10.3.0.1")
			if err != nil || asset == nil {
				t.Fatalf("lookup: asset=%v err=%v", asset, err)
			}
			if asset.Notes != tt.want {
				t.Errorf("notes = %q, want %q", asset.Notes, tt.want)
			}
		})
	}
}

func TestApplyBundle_RelatedRecordWarning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateHost(ctx, "node-1", "old notes", nil); err != nil {
		t.Fatalf("seed host: %v", err)
	}

	bundle := &Bundle{Hosts: []Host{{Name: "node-1", Notes: strPtr("new notes")}}}
	result, err := ApplyBundle(ctx, s, bundle, false, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if result.Summary.Hosts.WouldUpdate != 1 {
		t.Fatalf("summary = %+v, want one host update", result.Summary.Hosts)
	}
	found := false
	for _, w := range result.Warnings {
		if w.Message == "Some related records were updated based on import data." {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, missing related-records notice", result.Warnings)
	}
}

func TestApplyBundle_ArchivedToggle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bundle := &Bundle{IPAssets: []IPAsset{{IPAddress: "10.4.0.1", AssetType: "VIP", Archived: boolPtr(true)}}}
	if _, err := ApplyBundle(ctx, s, bundle, false, ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	asset, err := s.GetIPAssetByIP(ctx, "10.4.0.1")
	if err != nil || asset == nil {
		t.Fatalf("lookup: asset=%v err=%v", asset, err)
	}
	if !asset.Archived {
		t.Fatalf("asset should be archived after import")
	}

	bundle.IPAssets[0].Archived = boolPtr(false)
	if _, err := ApplyBundle(ctx, s, bundle, false, ""); err != nil {
		t.Fatalf("unarchive apply: %v", err)
	}
	asset, err = s.GetIPAssetByIP(ctx, "10.4.0.1")
	if err != nil || asset == nil {
		t.Fatalf("lookup: asset=%v err=%v", asset, err)
	}
	if asset.Archived {
		t.Errorf("asset should be unarchived after second import")
	}
}

func TestRun_RecordsApplyAudit(t *testing.T) {
	s := newTestStore(t)
	runBundle(t, s, fullBundleJSON, false)

	logs, err := s.ListAuditLogs(context.Background(), 0)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.TargetType == "IMPORT_RUN" && entry.Action == "APPLY" {
			found = true
			if entry.Username != "tester" {
				t.Errorf("audit username = %q, want tester", entry.Username)
			}
			if !strings.Contains(entry.Changes, "create=5") {
				t.Errorf("audit changes = %q, want create count", entry.Changes)
			}
		}
	}
	if !found {
		t.Errorf("no IMPORT_RUN audit entry recorded: %v", logs)
	}
}
