package connectors

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/ipocket/ipocket/internal/inventory"
)

// ElasticsearchConfig controls a cluster node scrape. Authentication is
// either an API key (Base64 blob or id:key form) or username/password.
type ElasticsearchConfig struct {
	URL         string
	Username    string
	Password    string
	APIKey      string
	Timeout     time.Duration
	AssetType   string
	ProjectName string
	Tags        []string
	Note        string
}

// ElasticsearchConnector discovers node IPs via the _nodes API.
type ElasticsearchConnector struct {
	httpClient *http.Client
	baseURL    string
	cfg        ElasticsearchConfig
}

var _ Connector = (*ElasticsearchConnector)(nil)

// NewElasticsearchConnector builds a connector for the cluster at cfg.URL.
func NewElasticsearchConnector(cfg ElasticsearchConfig) *ElasticsearchConnector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ElasticsearchConnector{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		cfg:        cfg,
	}
}

func (c *ElasticsearchConnector) Name() string { return "elasticsearch" }

// nodeRecord is one entry from the _nodes response, reduced to the fields
// that may carry an address.
type nodeRecord struct {
	nodeID                  string
	name                    string
	httpPublishAddress      string
	transportPublishAddress string
	ip                      string
	host                    string
}

type esNodesResponse struct {
	Nodes map[string]esNodePayload `json:"nodes"`
}

type esNodePayload struct {
	Name      string            `json:"name"`
	IP        string            `json:"ip"`
	Host      string            `json:"host"`
	HTTP      *esAddressSection `json:"http"`
	Transport *esAddressSection `json:"transport"`
}

type esAddressSection struct {
	PublishAddress string `json:"publish_address"`
}

// Fetch queries the node inventory and converts it to a bundle document.
func (c *ElasticsearchConnector) Fetch(ctx context.Context) (*BundleDocument, []string, error) {
	records, err := c.fetchNodes(ctx)
	if err != nil {
		return nil, nil, err
	}
	assets, warnings := c.extractAssets(records)
	bundle, bundleWarnings := buildBundle(nil, assets)
	return bundle, append(warnings, bundleWarnings...), nil
}

func (c *ElasticsearchConnector) fetchNodes(ctx context.Context) ([]nodeRecord, error) {
	url := c.baseURL + "/_nodes/http,transport"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building node query request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if header := c.authHeader(); header != "" {
		req.Header.Set("Authorization", header)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Elasticsearch API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("Elasticsearch node query failed with HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed esNodesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding Elasticsearch response: %w", err)
	}
	if parsed.Nodes == nil {
		return nil, fmt.Errorf("Elasticsearch payload is missing a 'nodes' object")
	}

	records := make([]nodeRecord, 0, len(parsed.Nodes))
	for nodeID, node := range parsed.Nodes {
		record := nodeRecord{
			nodeID: nodeID,
			name:   node.Name,
			ip:     node.IP,
			host:   node.Host,
		}
		if record.name == "" {
			record.name = nodeID
		}
		if node.HTTP != nil {
			record.httpPublishAddress = node.HTTP.PublishAddress
		}
		if node.Transport != nil {
			record.transportPublishAddress = node.Transport.PublishAddress
		}
		records = append(records, record)
	}
	// Map iteration order is random; sort so duplicate handling is stable.
	sort.Slice(records, func(i, j int) bool { return records[i].nodeID < records[j].nodeID })
	return records, nil
}

// authHeader prefers the API key over basic credentials. An api key in
// id:key form is Base64-encoded; a pre-encoded blob passes through.
func (c *ElasticsearchConnector) authHeader() string {
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		if strings.Contains(key, ":") {
			return "ApiKey " + base64.StdEncoding.EncodeToString([]byte(key))
		}
		return "ApiKey " + key
	}
	if c.cfg.Username != "" {
		credentials := c.cfg.Username + ":" + c.cfg.Password
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
	}
	return ""
}

type addressCandidate struct {
	source string
	value  string
}

func (r nodeRecord) candidates() []addressCandidate {
	var candidates []addressCandidate
	for _, entry := range []addressCandidate{
		{"http.publish_address", r.httpPublishAddress},
		{"transport.publish_address", r.transportPublishAddress},
		{"ip", r.ip},
		{"host", r.host},
	} {
		if strings.TrimSpace(entry.value) != "" {
			candidates = append(candidates, entry)
		}
	}
	return candidates
}

// extractAssets turns node records into asset entries, trying each address
// source in priority order and skipping nodes without a usable IPv4.
func (c *ElasticsearchConnector) extractAssets(records []nodeRecord) ([]AssetEntry, []string) {
	assetType, err := inventory.NormalizeAssetType(c.cfg.AssetType)
	if err != nil {
		assetType = inventory.AssetTypeOther
	}
	tags := prepareTags(c.cfg.Tags)
	note := strings.TrimSpace(c.cfg.Note)

	var warnings []string
	var assets []AssetEntry
	seen := make(map[string]struct{})

	for _, record := range records {
		candidates := record.candidates()
		if len(candidates) == 0 {
			warnings = append(warnings, fmt.Sprintf(
				"Node '%s' skipped: no IP candidate found in http.publish_address, transport.publish_address, ip, or host.",
				record.name))
			continue
		}

		normalizedIP := ""
		skipReason := ""
		for _, candidate := range candidates {
			host := extractHostCandidate(candidate.value)
			ip, ok := normalizeIPv4(host)
			if !ok {
				if addr, err := netip.ParseAddr(host); err == nil && addr.Is6() {
					skipReason = fmt.Sprintf("source '%s' value '%s' resolved to IPv6, but only IPv4 is supported.", candidate.source, candidate.value)
				} else {
					skipReason = fmt.Sprintf("source '%s' value '%s' does not contain a valid IPv4 address.", candidate.source, candidate.value)
				}
				continue
			}
			if isLoopback(ip) {
				skipReason = fmt.Sprintf("loopback IP '%s' is not allowed.", ip)
				continue
			}
			normalizedIP = ip
			break
		}

		if normalizedIP == "" {
			if skipReason == "" {
				skipReason = "invalid IP."
			}
			warnings = append(warnings, fmt.Sprintf("Node '%s' skipped: %s", record.name, skipReason))
			continue
		}

		if _, ok := seen[normalizedIP]; ok {
			warnings = append(warnings, fmt.Sprintf("Duplicate IP '%s' skipped (node '%s').", normalizedIP, record.name))
			continue
		}
		seen[normalizedIP] = struct{}{}

		entry := AssetEntry{
			IPAddress:   normalizedIP,
			Type:        string(assetType),
			ProjectName: c.cfg.ProjectName,
			Tags:        tags,
			MergeTags:   true,
			Archived:    false,
		}
		if note != "" {
			entry.Notes = note
			entry.NotesProvided = true
		}
		assets = append(assets, entry)
	}

	return assets, warnings
}
