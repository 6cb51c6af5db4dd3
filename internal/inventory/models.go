// Package inventory implements the ipocket CRUD core: vendors, projects,
// hosts, IP assets, tags, and the audit log.
package inventory

import "fmt"

// AssetType classifies an IP address.
type AssetType string

// The closed set of asset types.
const (
	AssetTypeOS    AssetType = "OS"
	AssetTypeBMC   AssetType = "BMC"
	AssetTypeVM    AssetType = "VM"
	AssetTypeVIP   AssetType = "VIP"
	AssetTypeOther AssetType = "OTHER"
)

// AssetTypes lists all valid asset types in display order.
func AssetTypes() []AssetType {
	return []AssetType{AssetTypeOS, AssetTypeBMC, AssetTypeVM, AssetTypeVIP, AssetTypeOther}
}

// NormalizeAssetType maps a raw string to an AssetType, accepting the
// legacy IPMI aliases both spellings of which map to BMC.
func NormalizeAssetType(value string) (AssetType, error) {
	switch value {
	case "IPMI_ILO", "IPMI_iLO":
		return AssetTypeBMC, nil
	}
	for _, at := range AssetTypes() {
		if value == string(at) {
			return at, nil
		}
	}
	return "", fmt.Errorf("invalid asset type %q", value)
}

// Vendor is a hardware or platform vendor referenced by hosts.
type Vendor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Project groups IP assets.
type Project struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"`
}

// Host is a physical or virtual machine that IP assets can belong to.
type Host struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Notes  string `json:"notes,omitempty"`
	Vendor string `json:"vendor,omitempty"`
}

// IPAsset is a tracked IP address. Timestamps are stored and exposed as
// SQLite datetime strings.
type IPAsset struct {
	ID        int64     `json:"id"`
	IPAddress string    `json:"ip_address"`
	AssetType AssetType `json:"type"`
	ProjectID *int64    `json:"project_id,omitempty"`
	HostID    *int64    `json:"host_id,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Archived  bool      `json:"archived"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// Tag is a normalized lowercase label attached to IP assets.
type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// AuditLog records one mutation with a human-readable change description.
type AuditLog struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Action      string `json:"action"`
	TargetType  string `json:"target_type"`
	TargetID    int64  `json:"target_id"`
	TargetLabel string `json:"target_label"`
	Changes     string `json:"changes"`
	CreatedAt   string `json:"created_at"`
}

// Default colors assigned when none is supplied.
const (
	DefaultProjectColor = "#94a3b8"
	DefaultTagColor     = "#e2e8f0"
)
