package connectors

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ipocket/ipocket/internal/inventory"
)

// PrometheusConfig controls a PromQL instant-query scrape. IPLabel names
// the metric label carrying the address (often "instance", in host:port
// form). Token is either a bearer token or "user:password" basic creds.
type PrometheusConfig struct {
	URL         string
	Query       string
	IPLabel     string
	Token       string
	Timeout     time.Duration
	AssetType   string
	ProjectName string
	Tags        []string
}

// PrometheusConnector discovers IPs from instant-query sample labels.
type PrometheusConnector struct {
	httpClient *http.Client
	baseURL    string
	cfg        PrometheusConfig
}

var _ Connector = (*PrometheusConnector)(nil)

func NewPrometheusConnector(cfg PrometheusConfig) *PrometheusConnector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.IPLabel == "" {
		cfg.IPLabel = "instance"
	}
	return &PrometheusConnector{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		cfg:        cfg,
	}
}

func (c *PrometheusConnector) Name() string { return "prometheus" }

// metricRecord is one vector sample: its label set and rendered value.
type metricRecord struct {
	labels map[string]string
	value  string
}

type promQueryResponse struct {
	Status    string `json:"status"`
	ErrorType string `json:"errorType"`
	Error     string `json:"error"`
	Data      struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []json.RawMessage `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

// Fetch runs the configured query and converts the vector result to a
// bundle document.
func (c *PrometheusConnector) Fetch(ctx context.Context) (*BundleDocument, []string, error) {
	records, err := c.query(ctx)
	if err != nil {
		return nil, nil, err
	}
	assets, warnings, err := c.extractAssets(records)
	if err != nil {
		return nil, nil, err
	}
	bundle, bundleWarnings := buildBundle(nil, assets)
	return bundle, append(warnings, bundleWarnings...), nil
}

func (c *PrometheusConnector) query(ctx context.Context) ([]metricRecord, error) {
	endpoint := c.baseURL + "/api/v1/query?" + url.Values{"query": {c.cfg.Query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building query request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := strings.TrimSpace(c.cfg.Token); token != "" {
		if strings.Contains(token, ":") {
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(token)))
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Prometheus API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("Prometheus query failed with HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed promQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding Prometheus response: %w", err)
	}
	if parsed.Status != "success" {
		if parsed.ErrorType != "" || parsed.Error != "" {
			return nil, fmt.Errorf("Prometheus query status was not success (%s: %s)", parsed.ErrorType, parsed.Error)
		}
		return nil, fmt.Errorf("Prometheus query status was not success")
	}
	if parsed.Data.ResultType != "vector" {
		return nil, fmt.Errorf("unsupported Prometheus resultType %q, expected \"vector\"", parsed.Data.ResultType)
	}

	records := make([]metricRecord, 0, len(parsed.Data.Result))
	for i, sample := range parsed.Data.Result {
		if len(sample.Value) != 2 {
			return nil, fmt.Errorf("Prometheus sample at index %d has invalid value field", i)
		}
		var value string
		if err := json.Unmarshal(sample.Value[1], &value); err != nil {
			return nil, fmt.Errorf("Prometheus sample at index %d has invalid value field", i)
		}
		labels := sample.Metric
		if labels == nil {
			labels = map[string]string{}
		}
		records = append(records, metricRecord{labels: labels, value: value})
	}
	return records, nil
}

// extractAssets pulls the configured IP label out of each sample. The
// applier always overwrites notes with the query provenance line.
func (c *PrometheusConnector) extractAssets(records []metricRecord) ([]AssetEntry, []string, error) {
	label := strings.TrimSpace(c.cfg.IPLabel)
	if label == "" {
		return nil, nil, fmt.Errorf("IP label must not be empty")
	}
	assetType, err := inventory.NormalizeAssetType(c.cfg.AssetType)
	if err != nil {
		assetType = inventory.AssetTypeOther
	}
	tags := prepareTags(c.cfg.Tags)

	var warnings []string
	var assets []AssetEntry
	seen := make(map[string]struct{})

	for i, record := range records {
		raw, ok := record.labels[label]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("Sample %d skipped: label '%s' is missing.", i, label))
			continue
		}

		ip, valid := normalizeIPv4(extractHostCandidate(raw))
		if !valid {
			warnings = append(warnings, fmt.Sprintf(
				"Sample %d skipped: label '%s' value '%s' does not contain a valid IPv4 address.", i, label, raw))
			continue
		}
		if isLoopback(ip) {
			warnings = append(warnings, fmt.Sprintf("Sample %d skipped: loopback IP '%s' is not allowed.", i, ip))
			continue
		}
		if _, dup := seen[ip]; dup {
			warnings = append(warnings, fmt.Sprintf("Duplicate IP '%s' skipped.", ip))
			continue
		}
		seen[ip] = struct{}{}

		metricName := record.labels["__name__"]
		if metricName == "" {
			metricName = "unknown"
		}
		notes := fmt.Sprintf(
			"Imported from Prometheus query '%s' using label '%s' (metric=%s, value=%s).",
			c.cfg.Query, label, metricName, record.value)

		assets = append(assets, AssetEntry{
			IPAddress:   ip,
			Type:        string(assetType),
			ProjectName: c.cfg.ProjectName,
			Notes:       notes,
			Tags:        tags,
			Archived:    false,
		})
	}

	return assets, warnings, nil
}
