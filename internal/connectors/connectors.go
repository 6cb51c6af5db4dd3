// Package connectors scrapes IP inventory from external systems
// (Elasticsearch, Prometheus, vCenter) and packages the results as bundle
// documents for the import pipeline.
package connectors

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Connector produces a bundle document from an external system, plus
// per-record skip warnings.
type Connector interface {
	Name() string
	Fetch(ctx context.Context) (*BundleDocument, []string, error)
}

// BundleDocument is the import bundle shape every connector produces.
type BundleDocument struct {
	App           string     `json:"app"`
	SchemaVersion string     `json:"schema_version"`
	ExportedAt    string     `json:"exported_at"`
	Data          BundleData `json:"data"`
}

// BundleData holds the four entity sections of a bundle.
type BundleData struct {
	Vendors  []VendorEntry  `json:"vendors"`
	Projects []ProjectEntry `json:"projects"`
	Hosts    []HostEntry    `json:"hosts"`
	IPAssets []AssetEntry   `json:"ip_assets"`
}

type VendorEntry struct {
	Name string `json:"name"`
}

type ProjectEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

type HostEntry struct {
	Name       string `json:"name"`
	Notes      string `json:"notes,omitempty"`
	VendorName string `json:"vendor_name,omitempty"`
}

// AssetEntry is one discovered IP address. The NotesProvided and MergeTags
// markers steer the applier's notes and tag policies.
type AssetEntry struct {
	IPAddress     string   `json:"ip_address"`
	Type          string   `json:"type"`
	ProjectName   string   `json:"project_name,omitempty"`
	HostName      string   `json:"host_name,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	NotesProvided bool     `json:"notes_provided,omitempty"`
	MergeTags     bool     `json:"merge_tags,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Archived      bool     `json:"archived"`
}

// newBundleDocument wraps asset and host entries in the bundle envelope.
func newBundleDocument(hosts []HostEntry, assets []AssetEntry) *BundleDocument {
	if hosts == nil {
		hosts = []HostEntry{}
	}
	if assets == nil {
		assets = []AssetEntry{}
	}
	return &BundleDocument{
		App:           "ipocket",
		SchemaVersion: "1",
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
		Data: BundleData{
			Vendors:  []VendorEntry{},
			Projects: []ProjectEntry{},
			Hosts:    hosts,
			IPAssets: assets,
		},
	}
}

// buildBundle wraps host and asset entries in the bundle envelope, skipping
// assets with an empty or duplicate ip_address.
func buildBundle(hosts []HostEntry, assets []AssetEntry) (*BundleDocument, []string) {
	var warnings []string
	prepared := make([]AssetEntry, 0, len(assets))
	seen := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		ip := strings.TrimSpace(asset.IPAddress)
		if ip == "" {
			warnings = append(warnings, "Skipped asset with empty ip_address.")
			continue
		}
		if _, ok := seen[ip]; ok {
			warnings = append(warnings, fmt.Sprintf("Duplicate IP '%s' skipped in bundle build.", ip))
			continue
		}
		seen[ip] = struct{}{}
		prepared = append(prepared, asset)
	}
	return newBundleDocument(hosts, prepared), warnings
}

// extractHostCandidate strips publish-address decoration from a value:
// legacy "inet[...]" wrappers, a leading slash from "hostname/ip" forms,
// IPv6 brackets, and a trailing :port.
func extractHostCandidate(value string) string {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		return candidate
	}

	if strings.HasPrefix(candidate, "inet[") && strings.HasSuffix(candidate, "]") {
		candidate = strings.TrimSpace(candidate[len("inet[") : len(candidate)-1])
	}

	if strings.HasPrefix(candidate, "/") && len(candidate) > 1 {
		candidate = candidate[1:]
	}

	if strings.HasPrefix(candidate, "[") {
		if end := strings.Index(candidate, "]"); end > 1 {
			return candidate[1:end]
		}
	}

	if strings.Count(candidate, ":") == 1 {
		host, port, _ := strings.Cut(candidate, ":")
		if host != "" && isDigits(port) {
			return host
		}
	}

	return candidate
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// normalizeIPv4 parses value as an IPv4 address in canonical form.
// Returns false for blanks, IPv6 addresses, and unparseable values.
func normalizeIPv4(value string) (string, bool) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		return "", false
	}
	addr, err := netip.ParseAddr(candidate)
	if err != nil || !addr.Is4() {
		return "", false
	}
	return addr.String(), true
}

func isLoopback(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	return err == nil && addr.IsLoopback()
}

// prepareTags trims configured tags and drops blanks.
func prepareTags(tags []string) []string {
	var prepared []string
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			prepared = append(prepared, trimmed)
		}
	}
	return prepared
}
