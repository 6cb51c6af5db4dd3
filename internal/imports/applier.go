package imports

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ipocket/ipocket/internal/inventory"
)

// Temp ID ranges keep dry-run placeholders from colliding across entity
// kinds. Each phase hands out strictly decreasing negative IDs so later
// phases can resolve references to entities that do not exist yet.
const (
	vendorTempIDStart  = -1
	projectTempIDStart = -100
	hostTempIDStart    = -200
)

// ApplyBundle upserts a validated bundle into the inventory, processing
// entity kinds in dependency order: vendors, projects, hosts, IP assets.
// With dryRun set, no storage mutation happens; the summary counts are
// computed exactly as the apply path would.
//
// The apply phase is not wrapped in a single transaction: each create or
// update commits on its own, so a storage failure partway through leaves
// earlier writes in place.
func ApplyBundle(ctx context.Context, store *inventory.Store, bundle *Bundle, dryRun bool, actor string) (*ApplyResult, error) {
	a := &applier{store: store, dryRun: dryRun, actor: actor}

	vendorIDs, err := a.upsertVendors(ctx, bundle)
	if err != nil {
		return nil, err
	}
	projectIDs, projectUpdates, err := a.upsertProjects(ctx, bundle)
	if err != nil {
		return nil, err
	}
	hostIDs, hostUpdates, err := a.upsertHosts(ctx, bundle, vendorIDs)
	if err != nil {
		return nil, err
	}
	if err := a.upsertIPAssets(ctx, bundle, projectIDs, hostIDs); err != nil {
		return nil, err
	}

	if projectUpdates || hostUpdates {
		a.warnings = append(a.warnings,
			warningIssue("import", "Some related records were updated based on import data."))
	}
	return &ApplyResult{Summary: a.summary, Warnings: a.warnings}, nil
}

type applier struct {
	store    *inventory.Store
	dryRun   bool
	actor    string
	summary  Summary
	warnings []Issue
}

func (a *applier) upsertVendors(ctx context.Context, bundle *Bundle) (map[string]int64, error) {
	existing, err := a.store.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	byName := make(map[string]*inventory.Vendor, len(existing))
	idMap := make(map[string]int64, len(existing))
	for i := range existing {
		byName[existing[i].Name] = &existing[i]
		idMap[existing[i].Name] = existing[i].ID
	}

	tempID := int64(vendorTempIDStart)
	for _, vendor := range bundle.Vendors {
		name := strings.TrimSpace(vendor.Name)
		if name == "" {
			continue
		}
		if byName[name] != nil {
			a.summary.Vendors.WouldSkip++
			continue
		}
		a.summary.Vendors.WouldCreate++
		if a.dryRun {
			idMap[name] = tempID
			tempID--
			continue
		}
		created, err := a.store.CreateVendor(ctx, name)
		if err != nil {
			return nil, err
		}
		idMap[name] = created.ID
	}
	return idMap, nil
}

func (a *applier) upsertProjects(ctx context.Context, bundle *Bundle) (map[string]int64, bool, error) {
	existing, err := a.store.ListProjects(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list projects: %w", err)
	}
	byName := make(map[string]*inventory.Project, len(existing))
	idMap := make(map[string]int64, len(existing))
	for i := range existing {
		byName[existing[i].Name] = &existing[i]
		idMap[existing[i].Name] = existing[i].ID
	}

	updatedAny := false
	tempID := int64(projectTempIDStart)
	for _, project := range bundle.Projects {
		name := strings.TrimSpace(project.Name)
		if name == "" {
			continue
		}
		current := byName[name]
		if current == nil {
			a.summary.Projects.WouldCreate++
			if a.dryRun {
				idMap[name] = tempID
				tempID--
				continue
			}
			created, err := a.store.CreateProject(ctx, name, deref(project.Description), deref(project.Color))
			if err != nil {
				return nil, false, err
			}
			idMap[name] = created.ID
			continue
		}

		targetDescription := current.Description
		if project.Description != nil {
			targetDescription = *project.Description
		}
		targetColor := current.Color
		if project.Color != nil {
			targetColor = *project.Color
		}
		if targetDescription == current.Description && targetColor == current.Color {
			a.summary.Projects.WouldSkip++
			continue
		}
		a.summary.Projects.WouldUpdate++
		updatedAny = true
		if a.dryRun {
			continue
		}
		if _, err := a.store.UpdateProject(ctx, current.ID, name, targetDescription, targetColor); err != nil {
			return nil, false, err
		}
	}
	return idMap, updatedAny, nil
}

func (a *applier) upsertHosts(ctx context.Context, bundle *Bundle, vendorIDs map[string]int64) (map[string]int64, bool, error) {
	existing, err := a.store.ListHosts(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list hosts: %w", err)
	}
	byName := make(map[string]*inventory.Host, len(existing))
	idMap := make(map[string]int64, len(existing))
	for i := range existing {
		byName[existing[i].Name] = &existing[i]
		idMap[existing[i].Name] = existing[i].ID
	}

	updatedAny := false
	tempID := int64(hostTempIDStart)
	for _, host := range bundle.Hosts {
		name := strings.TrimSpace(host.Name)
		if name == "" {
			continue
		}
		vendorName := ""
		if host.VendorName != nil {
			vendorName = strings.TrimSpace(*host.VendorName)
		}

		current := byName[name]
		if current == nil {
			a.summary.Hosts.WouldCreate++
			if a.dryRun {
				idMap[name] = tempID
				tempID--
				continue
			}
			created, err := a.store.CreateHost(ctx, name, deref(host.Notes), vendorIDRef(vendorIDs, vendorName))
			if err != nil {
				return nil, false, err
			}
			idMap[name] = created.ID
			continue
		}

		targetNotes := current.Notes
		if host.Notes != nil {
			targetNotes = *host.Notes
		}
		targetVendor := current.Vendor
		if host.VendorName != nil {
			targetVendor = vendorName
		}
		if targetNotes == current.Notes && targetVendor == current.Vendor {
			a.summary.Hosts.WouldSkip++
			continue
		}
		a.summary.Hosts.WouldUpdate++
		updatedAny = true
		if a.dryRun {
			continue
		}
		if _, err := a.store.UpdateHost(ctx, current.ID, name, targetNotes, vendorIDRef(vendorIDs, targetVendor)); err != nil {
			return nil, false, err
		}
	}
	return idMap, updatedAny, nil
}

func (a *applier) upsertIPAssets(ctx context.Context, bundle *Bundle, projectIDs, hostIDs map[string]int64) error {
	seen := make(map[string]bool, len(bundle.IPAssets))

	for _, asset := range bundle.IPAssets {
		ipAddress := strings.TrimSpace(asset.IPAddress)
		if ipAddress == "" {
			continue
		}
		if seen[ipAddress] {
			a.summary.IPAssets.WouldSkip++
			a.warnings = append(a.warnings, warningIssue(asset.Source.location(),
				fmt.Sprintf("Duplicate IP '%s' skipped; first occurrence wins.", ipAddress)))
			continue
		}
		seen[ipAddress] = true

		assetType, err := inventory.NormalizeAssetType(asset.AssetType)
		if err != nil {
			return fmt.Errorf("asset %s: %w", ipAddress, err)
		}
		var projectID, hostID *int64
		if asset.ProjectName != nil {
			projectID = mapIDRef(projectIDs, *asset.ProjectName)
		}
		if asset.HostName != nil {
			hostID = mapIDRef(hostIDs, *asset.HostName)
		}

		current, err := a.store.GetIPAssetByIP(ctx, ipAddress)
		if err != nil {
			return err
		}
		if current == nil {
			a.summary.IPAssets.WouldCreate++
			if a.dryRun {
				continue
			}
			created, err := a.store.CreateIPAsset(ctx, ipAddress, assetType, projectID, hostID, deref(asset.Notes), asset.Tags, a.actor)
			if err != nil {
				return err
			}
			if asset.Archived != nil && *asset.Archived {
				if err := a.store.SetIPAssetArchived(ctx, created.IPAddress, true); err != nil {
					return err
				}
			}
			continue
		}

		tagMap, err := a.store.ListTagsForIPAssets(ctx, []int64{current.ID})
		if err != nil {
			return err
		}
		currentTags := tagMap[current.ID]

		var targetTags []string
		switch {
		case asset.Tags == nil:
			targetTags = currentTags
		case asset.MergeTags:
			targetTags = inventory.NormalizeTagNames(append(append([]string{}, currentTags...), asset.Tags...))
		default:
			targetTags = inventory.NormalizeTagNames(asset.Tags)
		}

		notesShouldUpdate := asset.NotesProvided || asset.Notes != nil
		if notesShouldUpdate && asset.PreserveExistingNotes && current.Notes != "" {
			notesShouldUpdate = false
		}
		targetNotes := current.Notes
		if notesShouldUpdate {
			targetNotes = deref(asset.Notes)
		}

		targetProjectID := current.ProjectID
		if asset.ProjectName != nil {
			targetProjectID = projectID
		}
		targetHostID := current.HostID
		if asset.HostName != nil {
			targetHostID = hostID
		}
		targetArchived := current.Archived
		if asset.Archived != nil {
			targetArchived = *asset.Archived
		}

		if targetNotes == current.Notes &&
			idRefEqual(targetProjectID, current.ProjectID) &&
			idRefEqual(targetHostID, current.HostID) &&
			assetType == current.AssetType &&
			targetArchived == current.Archived &&
			tagSetsEqual(targetTags, currentTags) {
			a.summary.IPAssets.WouldSkip++
			continue
		}

		a.summary.IPAssets.WouldUpdate++
		if a.dryRun {
			continue
		}

		tags := targetTags
		if asset.Tags == nil {
			tags = nil
		}
		target := inventory.IPAssetTarget{
			AssetType: assetType,
			ProjectID: targetProjectID,
			HostID:    targetHostID,
			Notes:     targetNotes,
			Tags:      tags,
		}
		if _, err := a.store.UpdateIPAsset(ctx, ipAddress, target, a.actor); err != nil {
			return err
		}
		if asset.Archived != nil {
			if err := a.store.SetIPAssetArchived(ctx, ipAddress, *asset.Archived); err != nil {
				return err
			}
		}
	}
	return nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func vendorIDRef(vendorIDs map[string]int64, name string) *int64 {
	if name == "" {
		return nil
	}
	return mapIDRef(vendorIDs, name)
}

func mapIDRef(ids map[string]int64, name string) *int64 {
	id, ok := ids[name]
	if !ok {
		return nil
	}
	return &id
}

func idRefEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func tagSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string{}, a...)
	bs := append([]string{}, b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
