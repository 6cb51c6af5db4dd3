package imports

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ipocket/ipocket/internal/inventory"
)

// BundleImporter parses the bundle JSON snapshot format (schema_version "1").
type BundleImporter struct{}

var _ Importer = (*BundleImporter)(nil)

func (BundleImporter) Parse(inputs map[string][]byte, _ Options) (*Bundle, error) {
	raw, ok := inputs["bundle"]
	if !ok {
		return nil, parseError("Missing bundle.json input.")
	}
	// json.Unmarshal would map invalid bytes to U+FFFD instead of failing.
	if !utf8.Valid(raw) {
		return nil, parseError("Invalid JSON payload.")
	}

	var envelope struct {
		SchemaVersion json.RawMessage `json:"schema_version"`
		Data          json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, parseError("Invalid JSON payload.")
	}

	var schemaVersion string
	if err := json.Unmarshal(envelope.SchemaVersion, &schemaVersion); err != nil || schemaVersion != "1" {
		return nil, parseErrorAt("schema_version", "Unsupported schema_version (expected '1').")
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Data, &data); err != nil || data == nil {
		return nil, parseErrorAt("data", "Missing data section.")
	}

	bundle := &Bundle{}
	var err error
	if bundle.Vendors, err = parseVendorSection(data["vendors"], "data.vendors"); err != nil {
		return nil, err
	}
	if bundle.Projects, err = parseProjectSection(data["projects"], "data.projects"); err != nil {
		return nil, err
	}
	if bundle.Hosts, err = parseHostSection(data["hosts"], "data.hosts"); err != nil {
		return nil, err
	}
	if bundle.IPAssets, err = parseIPAssetSection(data["ip_assets"], "data.ip_assets"); err != nil {
		return nil, err
	}
	return bundle, nil
}

func parseVendorSection(raw json.RawMessage, basePath string) ([]Vendor, error) {
	entries, err := sectionEntries(raw, basePath)
	if err != nil {
		return nil, err
	}
	vendors := make([]Vendor, 0, len(entries))
	for i, entry := range entries {
		vendors = append(vendors, Vendor{
			Name:   coerceString(entry["name"]),
			Source: Source{Location: fmt.Sprintf("%s[%d]", basePath, i)},
		})
	}
	return vendors, nil
}

func parseProjectSection(raw json.RawMessage, basePath string) ([]Project, error) {
	entries, err := sectionEntries(raw, basePath)
	if err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(entries))
	for i, entry := range entries {
		projects = append(projects, Project{
			Name:        coerceString(entry["name"]),
			Description: coerceOptionalString(entry["description"]),
			Color:       coerceOptionalString(entry["color"]),
			Source:      Source{Location: fmt.Sprintf("%s[%d]", basePath, i)},
		})
	}
	return projects, nil
}

func parseHostSection(raw json.RawMessage, basePath string) ([]Host, error) {
	entries, err := sectionEntries(raw, basePath)
	if err != nil {
		return nil, err
	}
	hosts := make([]Host, 0, len(entries))
	for i, entry := range entries {
		hosts = append(hosts, Host{
			Name:       coerceString(entry["name"]),
			Notes:      coerceOptionalString(entry["notes"]),
			VendorName: coerceOptionalString(entry["vendor_name"]),
			Source:     Source{Location: fmt.Sprintf("%s[%d]", basePath, i)},
		})
	}
	return hosts, nil
}

func parseIPAssetSection(raw json.RawMessage, basePath string) ([]IPAsset, error) {
	entries, err := sectionEntries(raw, basePath)
	if err != nil {
		return nil, err
	}
	assets := make([]IPAsset, 0, len(entries))
	for i, entry := range entries {
		asset := IPAsset{
			IPAddress:   coerceString(entry["ip_address"]),
			AssetType:   coerceString(entry["type"]),
			ProjectName: coerceOptionalString(entry["project_name"]),
			HostName:    coerceOptionalString(entry["host_name"]),
			Notes:       coerceOptionalString(entry["notes"]),
			Archived:    coerceOptionalBool(entry["archived"]),
			Tags:        coerceTags(entry["tags"]),
			Source:      Source{Location: fmt.Sprintf("%s[%d]", basePath, i)},
		}
		asset.MergeTags = coerceFlag(entry["merge_tags"])
		asset.NotesProvided = coerceFlag(entry["notes_provided"])
		asset.PreserveExistingNotes = coerceFlag(entry["preserve_existing_notes"])
		assets = append(assets, asset)
	}
	return assets, nil
}

// sectionEntries decodes one optional top-level data section. Absent or null
// sections parse to no entries.
func sectionEntries(raw json.RawMessage, basePath string) ([]map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, parseErrorAt(basePath, "Expected a list.")
	}
	entries := make([]map[string]any, 0, len(items))
	for i, item := range items {
		var entry map[string]any
		if err := json.Unmarshal(item, &entry); err != nil || entry == nil {
			return nil, parseErrorAt(fmt.Sprintf("%s[%d]", basePath, i), "Expected object entries.")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func coerceOptionalString(value any) *string {
	if value == nil {
		return nil
	}
	s := strings.TrimSpace(coerceString(value))
	if s == "" {
		return nil
	}
	return &s
}

// coerceOptionalBool accepts booleans, numbers and common truthy/falsy string
// tokens; anything else means "unspecified".
func coerceOptionalBool(value any) *bool {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		return &v
	case float64:
		b := v != 0
		return &b
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y":
			b := true
			return &b
		case "0", "false", "no", "n":
			b := false
			return &b
		}
		return nil
	default:
		return nil
	}
}

func coerceFlag(value any) bool {
	b := coerceOptionalBool(value)
	return b != nil && *b
}

// coerceTags accepts either a list of strings or a comma-separated string.
// A nil result means the entry did not mention tags at all.
func coerceTags(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return inventory.SplitTagString(v)
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			tags = append(tags, coerceString(item))
		}
		return tags
	default:
		return nil
	}
}
