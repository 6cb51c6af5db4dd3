package connectors

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func promVectorBody(samples ...string) string {
	return fmt.Sprintf(`{"status":"success","data":{"resultType":"vector","result":[%s]}}`,
		strings.Join(samples, ","))
}

func TestPrometheusFetch(t *testing.T) {
	var gotQuery, gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(promVectorBody(
			`{"metric":{"__name__":"up","instance":"10.0.0.20:9100","job":"node"},"value":[1700000000,"1"]}`,
			`{"metric":{"__name__":"up","instance":"10.0.0.21:9100","job":"node"},"value":[1700000000,"0"]}`,
		)))
	}))
	defer ts.Close()

	connector := NewPrometheusConnector(PrometheusConfig{
		URL:         ts.URL,
		Query:       `up{job="node"}`,
		Token:       "secret-token",
		AssetType:   "VM",
		ProjectName: "monitoring",
		Tags:        []string{"node-exporter"},
	})
	bundle, warnings, err := connector.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotQuery != `up{job="node"}` {
		t.Errorf("query param = %q", gotQuery)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want bearer", gotAuth)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if len(bundle.Data.IPAssets) != 2 {
		t.Fatalf("assets = %+v, want 2", bundle.Data.IPAssets)
	}

	first := bundle.Data.IPAssets[0]
	if first.IPAddress != "10.0.0.20" || first.Type != "VM" || first.ProjectName != "monitoring" {
		t.Errorf("first asset = %+v", first)
	}
	wantNotes := `Imported from Prometheus query 'up{job="node"}' using label 'instance' (metric=up, value=1).`
	if first.Notes != wantNotes {
		t.Errorf("notes = %q\nwant    %q", first.Notes, wantNotes)
	}
	if len(first.Tags) != 1 || first.Tags[0] != "node-exporter" {
		t.Errorf("tags = %v", first.Tags)
	}
	if first.Archived {
		t.Error("archived must be false")
	}
}

func TestPrometheusBasicAuthToken(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(promVectorBody()))
	}))
	defer ts.Close()

	connector := NewPrometheusConnector(PrometheusConfig{URL: ts.URL, Query: "up", Token: "prom:secret"})
	if _, _, err := connector.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("prom:secret"))
	if gotAuth != want {
		t.Errorf("Authorization = %q, want %q", gotAuth, want)
	}
}

func TestPrometheusExtractAssetsWarnings(t *testing.T) {
	connector := NewPrometheusConnector(PrometheusConfig{
		URL:     "http://prom.local",
		Query:   "up",
		IPLabel: "instance",
	})
	records := []metricRecord{
		{labels: map[string]string{"job": "node"}, value: "1"},
		{labels: map[string]string{"instance": "host.example.com:9100"}, value: "1"},
		{labels: map[string]string{"instance": "127.0.0.1:9100"}, value: "1"},
		{labels: map[string]string{"instance": "10.0.0.30:9100"}, value: "1"},
		{labels: map[string]string{"instance": "10.0.0.30:9101"}, value: "1"},
	}
	assets, warnings, err := connector.extractAssets(records)
	if err != nil {
		t.Fatalf("extractAssets: %v", err)
	}
	if len(assets) != 1 || assets[0].IPAddress != "10.0.0.30" {
		t.Fatalf("assets = %+v, want only 10.0.0.30", assets)
	}

	wantWarnings := []string{
		"Sample 0 skipped: label 'instance' is missing.",
		"Sample 1 skipped: label 'instance' value 'host.example.com:9100' does not contain a valid IPv4 address.",
		"Sample 2 skipped: loopback IP '127.0.0.1' is not allowed.",
		"Duplicate IP '10.0.0.30' skipped.",
	}
	if len(warnings) != len(wantWarnings) {
		t.Fatalf("warnings = %v, want %d entries", warnings, len(wantWarnings))
	}
	for i, want := range wantWarnings {
		if warnings[i] != want {
			t.Errorf("warnings[%d] = %q, want %q", i, warnings[i], want)
		}
	}
}

func TestPrometheusUnknownMetricName(t *testing.T) {
	connector := NewPrometheusConnector(PrometheusConfig{URL: "http://prom.local", Query: "sum(up)"})
	records := []metricRecord{{labels: map[string]string{"instance": "10.0.0.1"}, value: "3"}}
	assets, _, err := connector.extractAssets(records)
	if err != nil {
		t.Fatalf("extractAssets: %v", err)
	}
	if !strings.Contains(assets[0].Notes, "metric=unknown") {
		t.Errorf("notes = %q, want metric=unknown for aggregate results", assets[0].Notes)
	}
}

func TestPrometheusEmptyIPLabelRejected(t *testing.T) {
	connector := NewPrometheusConnector(PrometheusConfig{URL: "http://prom.local", Query: "up"})
	connector.cfg.IPLabel = "   "
	if _, _, err := connector.extractAssets(nil); err == nil {
		t.Fatal("expected error for blank IP label")
	}
}

func TestPrometheusFetchErrors(t *testing.T) {
	t.Run("query failure status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"error","errorType":"bad_data","error":"parse error"}`))
		}))
		defer ts.Close()
		connector := NewPrometheusConnector(PrometheusConfig{URL: ts.URL, Query: "up{"})
		_, _, err := connector.Fetch(context.Background())
		if err == nil || !strings.Contains(err.Error(), "bad_data: parse error") {
			t.Errorf("err = %v, want error detail", err)
		}
	})

	t.Run("matrix result rejected", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"matrix","result":[]}}`))
		}))
		defer ts.Close()
		connector := NewPrometheusConnector(PrometheusConfig{URL: ts.URL, Query: "up[5m]"})
		_, _, err := connector.Fetch(context.Background())
		if err == nil || !strings.Contains(err.Error(), "matrix") {
			t.Errorf("err = %v, want resultType error", err)
		}
	})

	t.Run("http error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}))
		defer ts.Close()
		connector := NewPrometheusConnector(PrometheusConfig{URL: ts.URL, Query: "up"})
		_, _, err := connector.Fetch(context.Background())
		if err == nil || !strings.Contains(err.Error(), "HTTP 403") {
			t.Errorf("err = %v, want HTTP 403 error", err)
		}
	})
}
