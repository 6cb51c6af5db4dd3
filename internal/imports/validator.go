package imports

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/ipocket/ipocket/internal/inventory"
)

// ValidateBundle cross-checks a parsed bundle against current inventory
// state. References resolve against existing names or names declared earlier
// in the same bundle, so a bundle can introduce a project and use it at once.
// Issues are collected exhaustively rather than failing on the first one.
func ValidateBundle(ctx context.Context, store *inventory.Store, bundle *Bundle) (*ValidationResult, error) {
	result := &ValidationResult{}

	vendorNames, projectNames, hostNames := declaredNames(bundle)

	existingVendors, err := store.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	for _, v := range existingVendors {
		vendorNames[v.Name] = true
	}
	existingProjects, err := store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	for _, p := range existingProjects {
		projectNames[p.Name] = true
	}
	existingHosts, err := store.ListHosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	for _, h := range existingHosts {
		hostNames[h.Name] = true
	}

	for _, vendor := range bundle.Vendors {
		if strings.TrimSpace(vendor.Name) == "" {
			result.Errors = append(result.Errors, errorIssue(vendor.Source, "Vendor name is required."))
		}
	}

	for _, project := range bundle.Projects {
		if strings.TrimSpace(project.Name) == "" {
			result.Errors = append(result.Errors, errorIssue(project.Source, "Project name is required."))
		}
		if project.Color != nil {
			if _, err := inventory.NormalizeHexColor(*project.Color); err != nil {
				result.Errors = append(result.Errors, errorIssue(project.Source.Field("color"), err.Error()))
			}
		}
	}

	for _, host := range bundle.Hosts {
		if strings.TrimSpace(host.Name) == "" {
			result.Errors = append(result.Errors, errorIssue(host.Source, "Host name is required."))
		}
		if host.VendorName != nil && !vendorNames[*host.VendorName] {
			result.Errors = append(result.Errors, errorIssue(host.Source.Field("vendor_name"), "Vendor does not exist."))
		}
	}

	for _, asset := range bundle.IPAssets {
		if strings.TrimSpace(asset.IPAddress) == "" {
			result.Errors = append(result.Errors, errorIssue(asset.Source, "IP address is required."))
		} else if _, err := netip.ParseAddr(asset.IPAddress); err != nil {
			// Whitespace-padded values fail here rather than being normalized.
			result.Errors = append(result.Errors, errorIssue(asset.Source.Field("ip_address"), "Invalid IP address."))
		}
		if strings.TrimSpace(asset.AssetType) == "" {
			result.Errors = append(result.Errors, errorIssue(asset.Source.Field("type"), "Asset type is required."))
		} else if _, err := inventory.NormalizeAssetType(asset.AssetType); err != nil {
			result.Errors = append(result.Errors, errorIssue(asset.Source.Field("type"), "Invalid asset type. Use OS, BMC, VM, VIP, OTHER."))
		}
		if asset.ProjectName != nil && !projectNames[*asset.ProjectName] {
			result.Errors = append(result.Errors, errorIssue(asset.Source.Field("project_name"), "Project does not exist."))
		}
		if asset.HostName != nil && !hostNames[*asset.HostName] {
			result.Errors = append(result.Errors, errorIssue(asset.Source.Field("host_name"), "Host does not exist."))
		}
		for _, tag := range asset.Tags {
			if _, err := inventory.NormalizeTagName(tag); err != nil {
				result.Errors = append(result.Errors, errorIssue(asset.Source.Field("tags"), err.Error()))
			}
		}
	}

	return result, nil
}

func declaredNames(bundle *Bundle) (vendors, projects, hosts map[string]bool) {
	vendors = make(map[string]bool, len(bundle.Vendors))
	projects = make(map[string]bool, len(bundle.Projects))
	hosts = make(map[string]bool, len(bundle.Hosts))
	for _, v := range bundle.Vendors {
		if name := strings.TrimSpace(v.Name); name != "" {
			vendors[name] = true
		}
	}
	for _, p := range bundle.Projects {
		if name := strings.TrimSpace(p.Name); name != "" {
			projects[name] = true
		}
	}
	for _, h := range bundle.Hosts {
		if name := strings.TrimSpace(h.Name); name != "" {
			hosts[name] = true
		}
	}
	return vendors, projects, hosts
}
