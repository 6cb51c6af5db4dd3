package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ipocket/ipocket/internal/auth"
)

func newTestHandler(t *testing.T) (*Handler, *Store) {
	t.Helper()
	s := newTestStore(t)
	return NewHandler(s, zap.NewNop()), s
}

func doRequest(t *testing.T, h *Handler, method, path, body string, user *auth.User) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if user != nil {
		req = req.WithContext(auth.WithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

var editor = &auth.User{ID: 1, Username: "editor", Role: auth.RoleEditor}

func TestHandler_CreateAndGetIPAsset(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/ip-assets",
		`{"ip_address": "10.0.0.5", "type": "os", "notes": "primary", "tags": "prod, web"}`, editor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID        int64    `json:"id"`
		IPAddress string   `json:"ip_address"`
		Type      string   `json:"type"`
		Tags      []string `json:"tags"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Type != "OS" || len(created.Tags) != 2 {
		t.Errorf("created = %+v", created)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/ip-assets/10.0.0.5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// Duplicate IPs conflict.
	rec = doRequest(t, h, http.MethodPost, "/api/v1/ip-assets",
		`{"ip_address": "10.0.0.5", "type": "vm"}`, editor)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestHandler_CreateIPAssetValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad ip", `{"ip_address": "not-an-ip", "type": "os"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"ip_address": "10.0.0.1", "type": "ROUTER"}`, http.StatusUnprocessableEntity},
		{"unknown host", `{"ip_address": "10.0.0.1", "type": "os", "host_id": 42}`, http.StatusUnprocessableEntity},
		{"bad body", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/v1/ip-assets", tt.body, editor)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHandler_UpdateIPAssetPatchSemantics(t *testing.T) {
	h, s := newTestHandler(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, "Core", "", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := s.CreateIPAsset(ctx, "10.0.0.5", AssetTypeOS, &project.ID, nil, "keep me", []string{"prod"}, ""); err != nil {
		t.Fatalf("CreateIPAsset: %v", err)
	}

	// Changing only the type leaves project, notes, and tags untouched.
	rec := doRequest(t, h, http.MethodPatch, "/api/v1/ip-assets/10.0.0.5", `{"type": "vm"}`, editor)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}
	asset, err := s.GetIPAssetByIP(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("GetIPAssetByIP: %v", err)
	}
	if asset.AssetType != AssetTypeVM || asset.ProjectID == nil || asset.Notes != "keep me" {
		t.Errorf("after type patch = %+v", asset)
	}

	// An explicit null clears the project link.
	rec = doRequest(t, h, http.MethodPatch, "/api/v1/ip-assets/10.0.0.5", `{"project_id": null}`, editor)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rec.Code)
	}
	asset, err = s.GetIPAssetByIP(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("GetIPAssetByIP: %v", err)
	}
	if asset.ProjectID != nil {
		t.Errorf("project not cleared: %+v", asset)
	}

	// An explicit null clears notes.
	rec = doRequest(t, h, http.MethodPatch, "/api/v1/ip-assets/10.0.0.5", `{"notes": null}`, editor)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rec.Code)
	}
	asset, err = s.GetIPAssetByIP(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("GetIPAssetByIP: %v", err)
	}
	if asset.Notes != "" {
		t.Errorf("notes not cleared: %q", asset.Notes)
	}
}

func TestHandler_ArchiveHidesAsset(t *testing.T) {
	h, s := newTestHandler(t)
	if _, err := s.CreateIPAsset(context.Background(), "10.0.0.5", AssetTypeOS, nil, nil, "", nil, ""); err != nil {
		t.Fatalf("CreateIPAsset: %v", err)
	}

	rec := doRequest(t, h, http.MethodPost, "/api/v1/ip-assets/10.0.0.5/archive", "", editor)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("archive status = %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodGet, "/api/v1/ip-assets/10.0.0.5", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("archived asset get status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/v1/ip-assets/10.0.0.5/unarchive", "", editor)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unarchive status = %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodGet, "/api/v1/ip-assets/10.0.0.5", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("unarchived asset get status = %d, want 200", rec.Code)
	}
}

func TestHandler_MutationsRequireEditor(t *testing.T) {
	h, _ := newTestHandler(t)
	viewer := &auth.User{ID: 2, Username: "viewer", Role: auth.RoleViewer}

	rec := doRequest(t, h, http.MethodPost, "/api/v1/ip-assets",
		`{"ip_address": "10.0.0.5", "type": "os"}`, viewer)
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer create status = %d, want 403", rec.Code)
	}
	rec = doRequest(t, h, http.MethodPost, "/api/v1/projects", `{"name": "Core"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create status = %d, want 401", rec.Code)
	}
	rec = doRequest(t, h, http.MethodGet, "/api/v1/ip-assets", "", viewer)
	if rec.Code != http.StatusOK {
		t.Errorf("viewer list status = %d, want 200", rec.Code)
	}
}

func TestHandler_HostDetailGroupsAssets(t *testing.T) {
	h, s := newTestHandler(t)
	ctx := context.Background()

	host, err := s.CreateHost(ctx, "node-1", "", nil)
	if err != nil {
		t.Fatalf("CreateHost: %v", err)
	}
	if _, err := s.CreateIPAsset(ctx, "10.0.0.5", AssetTypeOS, nil, &host.ID, "", nil, ""); err != nil {
		t.Fatalf("CreateIPAsset: %v", err)
	}
	if _, err := s.CreateIPAsset(ctx, "10.0.0.6", AssetTypeBMC, nil, &host.ID, "", nil, ""); err != nil {
		t.Fatalf("CreateIPAsset: %v", err)
	}
	if _, err := s.CreateIPAsset(ctx, "10.0.0.7", AssetTypeVIP, nil, &host.ID, "", nil, ""); err != nil {
		t.Fatalf("CreateIPAsset: %v", err)
	}

	rec := doRequest(t, h, http.MethodGet, "/api/v1/hosts/1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get host status = %d", rec.Code)
	}
	var detail struct {
		Name         string `json:"name"`
		LinkedAssets map[string][]struct {
			IPAddress string `json:"ip_address"`
		} `json:"linked_assets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode host detail: %v", err)
	}
	if len(detail.LinkedAssets["os"]) != 1 || len(detail.LinkedAssets["bmc"]) != 1 || len(detail.LinkedAssets["other"]) != 1 {
		t.Errorf("linked assets = %+v", detail.LinkedAssets)
	}
}

func TestHandler_VendorAndProjectEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/vendors", `{"name": " Dell "}`, editor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create vendor status = %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodPost, "/api/v1/vendors", `{"name": "Dell"}`, editor)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate vendor status = %d, want 409", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/v1/projects", `{"name": "Core", "color": "#FF0000"}`, editor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project status = %d, body %s", rec.Code, rec.Body.String())
	}
	var project Project
	if err := json.Unmarshal(rec.Body.Bytes(), &project); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if project.Color != "#ff0000" {
		t.Errorf("project color = %q, want lowercased", project.Color)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/v1/projects", `{"name": "Edge", "color": "red"}`, editor)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad color status = %d, want 422", rec.Code)
	}
}
