package imports

import (
	"encoding/xml"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/ipocket/ipocket/internal/inventory"
)

// NmapImporter turns an nmap XML scan report into a draft bundle of IP
// assets. Only hosts reported "up" with an IPv4 address are considered.
// The asset type is inferred from the MAC vendor when the scan captured one.
type NmapImporter struct {
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

var _ Importer = (*NmapImporter)(nil)

type nmapRun struct {
	Hosts []nmapScanHost `xml:"host"`
}

type nmapScanHost struct {
	Status    nmapStatus    `xml:"status"`
	Addresses []nmapAddress `xml:"address"`
}

type nmapStatus struct {
	State string `xml:"state,attr"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
	Vendor   string `xml:"vendor,attr"`
}

func (n *NmapImporter) Parse(inputs map[string][]byte, opts Options) (*Bundle, error) {
	raw, ok := inputs["nmap"]
	if !ok {
		return nil, parseError("Missing nmap.xml input.")
	}
	var run nmapRun
	if err := xml.Unmarshal(raw, &run); err != nil {
		return nil, parseErrorAt("nmap.xml", "Invalid Nmap XML payload.")
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	note := "Discovered via nmap upload at " + now().UTC().Format(time.RFC3339)

	seen := make(map[string]bool)
	var assets []IPAsset
	for i, host := range run.Hosts {
		if host.Status.State != "up" {
			continue
		}
		ipAddress, vendor := scanHostAddress(host)
		if ipAddress == "" || seen[ipAddress] {
			continue
		}
		seen[ipAddress] = true

		notes := note
		assets = append(assets, IPAsset{
			IPAddress: ipAddress,
			AssetType: string(inferAssetType(vendor, opts.DefaultAssetType)),
			Notes:     &notes,
			Source:    Source{Location: fmt.Sprintf("nmap.xml:host[%d]", i)},

			NotesProvided:         true,
			PreserveExistingNotes: true,
		})
	}
	return &Bundle{IPAssets: assets}, nil
}

func scanHostAddress(host nmapScanHost) (ipAddress, vendor string) {
	for _, addr := range host.Addresses {
		if addr.AddrType == "ipv4" && ipAddress == "" {
			parsed, err := netip.ParseAddr(addr.Addr)
			if err != nil || !parsed.Is4() {
				continue
			}
			ipAddress = parsed.String()
		}
		if addr.AddrType == "mac" && addr.Vendor != "" && vendor == "" {
			vendor = addr.Vendor
		}
	}
	return ipAddress, vendor
}

var (
	vmVendorKeywords = []string{
		"vmware", "virtualbox", "microsoft", "xen", "qemu", "kvm", "citrix", "parallels",
	}
	physicalVendorKeywords = []string{
		"dell", "hewlett packard", "hp", "hpe", "super micro", "supermicro", "lenovo", "ibm",
	}
)

func inferAssetType(vendor, fallback string) inventory.AssetType {
	other := inventory.AssetTypeOther
	if fallback != "" {
		if normalized, err := inventory.NormalizeAssetType(fallback); err == nil {
			other = normalized
		}
	}
	if vendor == "" {
		return other
	}
	lowered := strings.ToLower(vendor)
	for _, keyword := range vmVendorKeywords {
		if strings.Contains(lowered, keyword) {
			return inventory.AssetTypeVM
		}
	}
	for _, keyword := range physicalVendorKeywords {
		if strings.Contains(lowered, keyword) {
			return inventory.AssetTypeOS
		}
	}
	return other
}
