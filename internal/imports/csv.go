package imports

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ipocket/ipocket/internal/inventory"
)

// CSVImporter parses hosts.csv and ip-assets.csv uploads. Either file may be
// supplied on its own; at least one is required.
type CSVImporter struct{}

var _ Importer = (*CSVImporter)(nil)

func (CSVImporter) Parse(inputs map[string][]byte, _ Options) (*Bundle, error) {
	hostsRaw, hasHosts := inputs["hosts"]
	assetsRaw, hasAssets := inputs["ip_assets"]
	if !hasHosts && !hasAssets {
		return nil, parseError("CSV import requires hosts.csv or ip-assets.csv input.")
	}

	var hosts []Host
	var assets []IPAsset
	var err error
	if hasHosts {
		if hosts, err = parseHostsCSV(hostsRaw, "hosts.csv"); err != nil {
			return nil, err
		}
	}
	if hasAssets {
		if assets, err = parseIPAssetsCSV(assetsRaw, "ip-assets.csv"); err != nil {
			return nil, err
		}
	}

	assets = append(expandHostAddresses(hosts), assets...)
	return &Bundle{
		Vendors:  deriveVendors(hosts),
		Projects: deriveProjects(assets),
		Hosts:    hosts,
		IPAssets: assets,
	}, nil
}

func parseHostsCSV(data []byte, filename string) ([]Host, error) {
	rows, err := readCSV(data, filename, []string{"name", "notes", "vendor_name"})
	if err != nil {
		return nil, err
	}
	hosts := make([]Host, 0, len(rows))
	for _, row := range rows {
		hosts = append(hosts, Host{
			Name:        row.get("name"),
			Notes:       row.optional("notes"),
			VendorName:  row.optional("vendor_name"),
			ProjectName: row.optional("project_name"),
			OSIP:        row.optional("os_ip"),
			BMCIP:       row.optional("bmc_ip"),
			Source:      Source{Location: fmt.Sprintf("%s:line %d", filename, row.line)},
		})
	}
	return hosts, nil
}

func parseIPAssetsCSV(data []byte, filename string) ([]IPAsset, error) {
	rows, err := readCSV(data, filename, []string{"ip_address", "type", "project_name", "host_name", "notes", "archived"})
	if err != nil {
		return nil, err
	}
	assets := make([]IPAsset, 0, len(rows))
	for _, row := range rows {
		var tags []string
		if raw := row.optional("tags"); raw != nil {
			tags = inventory.SplitTagString(*raw)
		}
		assets = append(assets, IPAsset{
			IPAddress:   row.get("ip_address"),
			AssetType:   row.get("type"),
			ProjectName: row.optional("project_name"),
			HostName:    row.optional("host_name"),
			Notes:       row.optional("notes"),
			Archived:    coerceOptionalBool(row.get("archived")),
			Tags:        tags,
			Source:      Source{Location: fmt.Sprintf("%s:line %d", filename, row.line)},
		})
	}
	return assets, nil
}

// expandHostAddresses turns the os_ip/bmc_ip convenience columns into
// synthetic IP asset drafts linked to the host, so a hosts-only CSV can seed
// addresses without a second file.
func expandHostAddresses(hosts []Host) []IPAsset {
	var assets []IPAsset
	for i := range hosts {
		host := &hosts[i]
		name := strings.TrimSpace(host.Name)
		if name == "" {
			continue
		}
		for _, slot := range []struct {
			ip        *string
			assetType inventory.AssetType
			field     string
		}{
			{host.OSIP, inventory.AssetTypeOS, "os_ip"},
			{host.BMCIP, inventory.AssetTypeBMC, "bmc_ip"},
		} {
			if slot.ip == nil {
				continue
			}
			hostName := name
			assets = append(assets, IPAsset{
				IPAddress:   *slot.ip,
				AssetType:   string(slot.assetType),
				ProjectName: host.ProjectName,
				HostName:    &hostName,
				Source:      host.Source.Field(slot.field),
			})
		}
	}
	return assets
}

func deriveVendors(hosts []Host) []Vendor {
	seen := make(map[string]bool)
	var vendors []Vendor
	for _, host := range hosts {
		if host.VendorName == nil || seen[*host.VendorName] {
			continue
		}
		seen[*host.VendorName] = true
		vendors = append(vendors, Vendor{Name: *host.VendorName, Source: host.Source})
	}
	return vendors
}

func deriveProjects(assets []IPAsset) []Project {
	seen := make(map[string]bool)
	var projects []Project
	for _, asset := range assets {
		if asset.ProjectName == nil || seen[*asset.ProjectName] {
			continue
		}
		seen[*asset.ProjectName] = true
		projects = append(projects, Project{Name: *asset.ProjectName, Source: asset.Source})
	}
	return projects
}

type csvRow struct {
	values map[string]string
	line   int
}

func (r csvRow) get(column string) string { return r.values[column] }

func (r csvRow) optional(column string) *string {
	trimmed := strings.TrimSpace(r.values[column])
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func readCSV(data []byte, filename string, required []string) ([]csvRow, error) {
	if !utf8.Valid(data) {
		return nil, parseErrorAt(filename, "CSV is not valid UTF-8.")
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			header = nil
		} else {
			return nil, parseErrorAt(filename, "Malformed CSV input.")
		}
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, parseErrorAt(filename, fmt.Sprintf("Missing required columns: %s.", strings.Join(missing, ", ")))
	}

	var rows []csvRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseErrorAt(filename, "Malformed CSV input.")
		}
		line, _ := reader.FieldPos(0)
		values := make(map[string]string, len(columns))
		for name, idx := range columns {
			if idx < len(record) {
				values[name] = record[idx]
			}
		}
		rows = append(rows, csvRow{values: values, line: line})
	}
	return rows, nil
}
