package connectors

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// VCenterConfig controls a vSphere inventory scrape over the vCenter
// Automation REST API.
type VCenterConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
	Insecure bool
}

// VCenterConnector discovers ESXi hosts and guest VM IPs. Hosts become OS
// assets linked to host records, VMs become VM assets.
type VCenterConnector struct {
	httpClient *http.Client
	baseURL    string
	cfg        VCenterConfig

	sessionID string
}

var _ Connector = (*VCenterConnector)(nil)

func NewVCenterConnector(cfg VCenterConfig) *VCenterConnector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	if cfg.Insecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &VCenterConnector{
		httpClient: client,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		cfg:        cfg,
	}
}

func (c *VCenterConnector) Name() string { return "vcenter" }

// hostRecord is an ESXi host with a resolved management IPv4.
type hostRecord struct {
	name      string
	ipAddress string
}

// vmRecord is a powered guest with a resolved IPv4 and, when known, the
// name of the host it runs on.
type vmRecord struct {
	name      string
	ipAddress string
	hostName  string
}

type vcHostSummary struct {
	Host string `json:"host"`
	Name string `json:"name"`
}

type vcVMSummary struct {
	VM   string `json:"vm"`
	Name string `json:"name"`
}

type vcGuestInterface struct {
	IP *struct {
		IPAddresses []struct {
			IPAddress string `json:"ip_address"`
		} `json:"ip_addresses"`
	} `json:"ip"`
}

// Fetch logs in, walks hosts and VMs, and builds a bundle document.
func (c *VCenterConnector) Fetch(ctx context.Context) (*BundleDocument, []string, error) {
	if err := c.login(ctx); err != nil {
		return nil, nil, err
	}
	defer c.logout(ctx)

	hosts, vmHostNames, warnings, err := c.collectHosts(ctx)
	if err != nil {
		return nil, nil, err
	}
	vms, vmWarnings, err := c.collectVMs(ctx, vmHostNames)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, vmWarnings...)

	hostEntries, assets, bundleWarnings := buildVCenterEntries(hosts, vms)
	warnings = append(warnings, bundleWarnings...)

	bundle, buildWarnings := buildBundle(hostEntries, assets)
	return bundle, append(warnings, buildWarnings...), nil
}

// login creates an API session. The session ID authenticates every
// subsequent call via the vmware-api-session-id header.
func (c *VCenterConnector) login(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/session", nil)
	if err != nil {
		return fmt.Errorf("building session request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	var sessionID string
	if err := c.do(req, &sessionID); err != nil {
		return fmt.Errorf("vCenter login failed: %w", err)
	}
	c.sessionID = sessionID
	return nil
}

func (c *VCenterConnector) logout(ctx context.Context) {
	if c.sessionID == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/session", nil)
	if err != nil {
		return
	}
	req.Header.Set("vmware-api-session-id", c.sessionID)
	resp, err := c.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
	}
	c.sessionID = ""
}

// getJSON performs an authenticated GET and decodes the response.
func (c *VCenterConnector) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("vmware-api-session-id", c.sessionID)
	return c.do(req, result)
}

func (c *VCenterConnector) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling vCenter API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("vCenter API %s returned HTTP %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding vCenter response: %w", err)
	}
	return nil
}

// collectHosts lists ESXi hosts. The management IP is taken from the host
// name when it is itself an IPv4 address; FQDN-named hosts without one are
// skipped with a warning. It also returns a VM ID to host name map built
// from per-host VM listings.
func (c *VCenterConnector) collectHosts(ctx context.Context) ([]hostRecord, map[string]string, []string, error) {
	var summaries []vcHostSummary
	if err := c.getJSON(ctx, "/api/vcenter/host", &summaries); err != nil {
		return nil, nil, nil, err
	}

	var records []hostRecord
	var warnings []string
	vmHostNames := make(map[string]string)

	for _, summary := range summaries {
		name := strings.TrimSpace(summary.Name)
		if name == "" {
			warnings = append(warnings, "Skipped host without a name.")
			continue
		}

		var hostVMs []vcVMSummary
		path := "/api/vcenter/vm?" + url.Values{"hosts": {summary.Host}}.Encode()
		if err := c.getJSON(ctx, path, &hostVMs); err != nil {
			return nil, nil, nil, err
		}
		for _, vm := range hostVMs {
			vmHostNames[vm.VM] = name
		}

		ip, ok := normalizeIPv4(name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("Skipped host '%s' because no IPv4 management IP was found.", name))
			continue
		}
		records = append(records, hostRecord{name: name, ipAddress: ip})
	}

	return records, vmHostNames, warnings, nil
}

// collectVMs lists VMs and resolves each one's guest IPv4 from the guest
// networking interfaces reported by VMware Tools.
func (c *VCenterConnector) collectVMs(ctx context.Context, vmHostNames map[string]string) ([]vmRecord, []string, error) {
	var summaries []vcVMSummary
	if err := c.getJSON(ctx, "/api/vcenter/vm", &summaries); err != nil {
		return nil, nil, err
	}

	var records []vmRecord
	var warnings []string

	for _, summary := range summaries {
		name := strings.TrimSpace(summary.Name)
		if name == "" {
			warnings = append(warnings, "Skipped VM without a name.")
			continue
		}

		var interfaces []vcGuestInterface
		path := fmt.Sprintf("/api/vcenter/vm/%s/guest/networking/interfaces", summary.VM)
		if err := c.getJSON(ctx, path, &interfaces); err != nil {
			// Guest networking is unavailable for powered-off VMs and
			// guests without VMware Tools.
			warnings = append(warnings, fmt.Sprintf("Skipped VM '%s' because no IPv4 guest IP was found.", name))
			continue
		}

		ip := firstGuestIPv4(interfaces)
		if ip == "" {
			warnings = append(warnings, fmt.Sprintf("Skipped VM '%s' because no IPv4 guest IP was found.", name))
			continue
		}
		records = append(records, vmRecord{
			name:      name,
			ipAddress: ip,
			hostName:  vmHostNames[summary.VM],
		})
	}

	return records, warnings, nil
}

func firstGuestIPv4(interfaces []vcGuestInterface) string {
	for _, iface := range interfaces {
		if iface.IP == nil {
			continue
		}
		for _, addr := range iface.IP.IPAddresses {
			if ip, ok := normalizeIPv4(addr.IPAddress); ok {
				return ip
			}
		}
	}
	return ""
}

// buildVCenterEntries converts host and VM records into bundle entries.
// Hosts win IP conflicts because they are processed first; every host also
// gets a host record so OS assets can link to it.
func buildVCenterEntries(hosts []hostRecord, vms []vmRecord) ([]HostEntry, []AssetEntry, []string) {
	hostEntries := make([]HostEntry, 0, len(hosts))
	for _, host := range hosts {
		hostEntries = append(hostEntries, HostEntry{
			Name:  host.name,
			Notes: "Imported from vCenter host inventory.",
		})
	}

	var assets []AssetEntry
	var warnings []string
	seen := make(map[string]struct{})

	for _, host := range hosts {
		if _, dup := seen[host.ipAddress]; dup {
			warnings = append(warnings, fmt.Sprintf("Duplicate IP '%s' skipped for host '%s'.", host.ipAddress, host.name))
			continue
		}
		seen[host.ipAddress] = struct{}{}
		assets = append(assets, AssetEntry{
			IPAddress: host.ipAddress,
			Type:      "OS",
			HostName:  host.name,
			Tags:      []string{"esxi"},
			Notes:     fmt.Sprintf("vCenter host: %s", host.name),
			Archived:  false,
		})
	}

	for _, vm := range vms {
		if _, dup := seen[vm.ipAddress]; dup {
			warnings = append(warnings, fmt.Sprintf("Duplicate IP '%s' skipped for VM '%s'.", vm.ipAddress, vm.name))
			continue
		}
		seen[vm.ipAddress] = struct{}{}
		notes := fmt.Sprintf("vCenter VM: %s", vm.name)
		if vm.hostName != "" {
			notes = fmt.Sprintf("%s (host: %s)", notes, vm.hostName)
		}
		assets = append(assets, AssetEntry{
			IPAddress: vm.ipAddress,
			Type:      "VM",
			Notes:     notes,
			Archived:  false,
		})
	}

	return hostEntries, assets, warnings
}
