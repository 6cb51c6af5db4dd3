package inventory

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ipocket/ipocket/internal/auth"
)

// Handler provides the inventory CRUD JSON API.
type Handler struct {
	store  *Store
	logger *zap.Logger
}

// NewHandler creates a new inventory Handler.
func NewHandler(store *Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes registers inventory HTTP routes on the given mux.
// Mutating routes require the editor role.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ip-assets", h.handleListIPAssets)
	mux.HandleFunc("POST /api/v1/ip-assets", auth.RequireRole(auth.Role.CanEdit, h.handleCreateIPAsset))
	mux.HandleFunc("GET /api/v1/ip-assets/{ip}", h.handleGetIPAsset)
	mux.HandleFunc("PATCH /api/v1/ip-assets/{ip}", auth.RequireRole(auth.Role.CanEdit, h.handleUpdateIPAsset))
	mux.HandleFunc("DELETE /api/v1/ip-assets/{ip}", auth.RequireRole(auth.Role.CanEdit, h.handleDeleteIPAsset))
	mux.HandleFunc("POST /api/v1/ip-assets/{ip}/archive", auth.RequireRole(auth.Role.CanEdit, h.handleArchiveIPAsset))
	mux.HandleFunc("POST /api/v1/ip-assets/{ip}/unarchive", auth.RequireRole(auth.Role.CanEdit, h.handleUnarchiveIPAsset))
	mux.HandleFunc("GET /api/v1/ip-assets/{ip}/audit", h.handleIPAssetAudit)

	mux.HandleFunc("GET /api/v1/projects", h.handleListProjects)
	mux.HandleFunc("POST /api/v1/projects", auth.RequireRole(auth.Role.CanEdit, h.handleCreateProject))
	mux.HandleFunc("PATCH /api/v1/projects/{id}", auth.RequireRole(auth.Role.CanEdit, h.handleUpdateProject))

	mux.HandleFunc("GET /api/v1/vendors", h.handleListVendors)
	mux.HandleFunc("POST /api/v1/vendors", auth.RequireRole(auth.Role.CanEdit, h.handleCreateVendor))
	mux.HandleFunc("PATCH /api/v1/vendors/{id}", auth.RequireRole(auth.Role.CanEdit, h.handleUpdateVendor))

	mux.HandleFunc("GET /api/v1/hosts", h.handleListHosts)
	mux.HandleFunc("POST /api/v1/hosts", auth.RequireRole(auth.Role.CanEdit, h.handleCreateHost))
	mux.HandleFunc("GET /api/v1/hosts/{id}", h.handleGetHost)
	mux.HandleFunc("PATCH /api/v1/hosts/{id}", auth.RequireRole(auth.Role.CanEdit, h.handleUpdateHost))
	mux.HandleFunc("DELETE /api/v1/hosts/{id}", auth.RequireRole(auth.Role.CanEdit, h.handleDeleteHost))

	mux.HandleFunc("GET /api/v1/tags", h.handleListTags)
	mux.HandleFunc("POST /api/v1/tags", auth.RequireRole(auth.Role.CanEdit, h.handleCreateTag))
	mux.HandleFunc("PATCH /api/v1/tags/{id}", auth.RequireRole(auth.Role.CanEdit, h.handleUpdateTag))
	mux.HandleFunc("DELETE /api/v1/tags/{id}", auth.RequireRole(auth.Role.CanEdit, h.handleDeleteTag))

	mux.HandleFunc("GET /api/v1/audit", h.handleListAudit)
	mux.HandleFunc("GET /api/v1/summary", h.handleSummary)
}

// assetPayload is the wire shape for an IP asset, tags included.
type assetPayload struct {
	IPAsset
	Tags []string `json:"tags"`
}

func (h *Handler) assetWithTags(r *http.Request, asset *IPAsset) (*assetPayload, error) {
	tagMap, err := h.store.ListTagsForIPAssets(r.Context(), []int64{asset.ID})
	if err != nil {
		return nil, err
	}
	tags := tagMap[asset.ID]
	if tags == nil {
		tags = []string{}
	}
	return &assetPayload{IPAsset: *asset, Tags: tags}, nil
}

// tagList accepts either a JSON list of strings or a comma-separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = SplitTagString(s)
	return nil
}

type ipAssetCreateRequest struct {
	IPAddress string  `json:"ip_address"`
	Type      string  `json:"type"`
	ProjectID *int64  `json:"project_id"`
	HostID    *int64  `json:"host_id"`
	Notes     string  `json:"notes"`
	Tags      tagList `json:"tags"`
}

func (h *Handler) handleCreateIPAsset(w http.ResponseWriter, r *http.Request) {
	var req ipAssetCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := netip.ParseAddr(strings.TrimSpace(req.IPAddress)); err != nil {
		inventoryWriteError(w, http.StatusUnprocessableEntity, "Invalid IP address.")
		return
	}
	assetType, err := NormalizeAssetType(req.Type)
	if err != nil {
		inventoryWriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.HostID != nil {
		host, err := h.store.GetHostByID(r.Context(), *req.HostID)
		if err != nil {
			h.serverError(w, "get host", err)
			return
		}
		if host == nil {
			inventoryWriteError(w, http.StatusUnprocessableEntity, "Host not found.")
			return
		}
	}
	if existing, err := h.store.GetIPAssetByIP(r.Context(), strings.TrimSpace(req.IPAddress)); err != nil {
		h.serverError(w, "get ip asset", err)
		return
	} else if existing != nil {
		inventoryWriteError(w, http.StatusConflict, "IP address already exists.")
		return
	}

	var tags []string
	if req.Tags != nil {
		tags = NormalizeTagNames(req.Tags)
	}
	asset, err := h.store.CreateIPAsset(r.Context(), strings.TrimSpace(req.IPAddress),
		assetType, req.ProjectID, req.HostID, req.Notes, tags, actorName(r))
	if err != nil {
		h.serverError(w, "create ip asset", err)
		return
	}
	payload, err := h.assetWithTags(r, asset)
	if err != nil {
		h.serverError(w, "list tags", err)
		return
	}
	inventoryWriteJSON(w, http.StatusCreated, payload)
}

func (h *Handler) handleListIPAssets(w http.ResponseWriter, r *http.Request) {
	opts := ListIPAssetsOptions{Query: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("project_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			inventoryWriteError(w, http.StatusBadRequest, "invalid project_id")
			return
		}
		opts.ProjectID = &id
	}
	if v := r.URL.Query().Get("type"); v != "" {
		assetType, err := NormalizeAssetType(v)
		if err != nil {
			inventoryWriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		opts.AssetType = &assetType
	}
	opts.ArchivedOnly = parseBoolQuery(r, "archived")

	assets, err := h.store.ListIPAssets(r.Context(), opts)
	if err != nil {
		h.serverError(w, "list ip assets", err)
		return
	}
	ids := make([]int64, 0, len(assets))
	for _, asset := range assets {
		ids = append(ids, asset.ID)
	}
	tagMap, err := h.store.ListTagsForIPAssets(r.Context(), ids)
	if err != nil {
		h.serverError(w, "list tags", err)
		return
	}
	payloads := make([]assetPayload, 0, len(assets))
	for _, asset := range assets {
		tags := tagMap[asset.ID]
		if tags == nil {
			tags = []string{}
		}
		payloads = append(payloads, assetPayload{IPAsset: asset, Tags: tags})
	}
	inventoryWriteJSON(w, http.StatusOK, payloads)
}

func (h *Handler) handleGetIPAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.store.GetIPAssetByIP(r.Context(), r.PathValue("ip"))
	if err != nil {
		h.serverError(w, "get ip asset", err)
		return
	}
	if asset == nil || asset.Archived {
		inventoryWriteError(w, http.StatusNotFound, "IP asset not found")
		return
	}
	payload, err := h.assetWithTags(r, asset)
	if err != nil {
		h.serverError(w, "list tags", err)
		return
	}
	inventoryWriteJSON(w, http.StatusOK, payload)
}

type ipAssetUpdateRequest struct {
	Type      *string `json:"type"`
	ProjectID *int64  `json:"project_id"`
	HostID    *int64  `json:"host_id"`
	Notes     *string `json:"notes"`
	Tags      tagList `json:"tags"`
}

func (h *Handler) handleUpdateIPAsset(w http.ResponseWriter, r *http.Request) {
	// Raw map first: PATCH must distinguish "field": null from field absent.
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	data, err := json.Marshal(raw)
	if err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var req ipAssetUpdateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	provided := func(field string) bool {
		_, ok := raw[field]
		return ok
	}

	existing, err := h.store.GetIPAssetByIP(r.Context(), r.PathValue("ip"))
	if err != nil {
		h.serverError(w, "get ip asset", err)
		return
	}
	if existing == nil {
		inventoryWriteError(w, http.StatusNotFound, "IP asset not found")
		return
	}

	target := IPAssetTarget{
		AssetType: existing.AssetType,
		ProjectID: existing.ProjectID,
		HostID:    existing.HostID,
		Notes:     existing.Notes,
	}
	if req.Type != nil {
		assetType, err := NormalizeAssetType(*req.Type)
		if err != nil {
			inventoryWriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		target.AssetType = assetType
	}
	if provided("project_id") {
		target.ProjectID = req.ProjectID
	}
	if provided("host_id") {
		if req.HostID != nil {
			host, err := h.store.GetHostByID(r.Context(), *req.HostID)
			if err != nil {
				h.serverError(w, "get host", err)
				return
			}
			if host == nil {
				inventoryWriteError(w, http.StatusUnprocessableEntity, "Host not found.")
				return
			}
		}
		target.HostID = req.HostID
	}
	if provided("notes") {
		target.Notes = ""
		if req.Notes != nil {
			target.Notes = *req.Notes
		}
	}
	if provided("tags") && req.Tags != nil {
		target.Tags = NormalizeTagNames(req.Tags)
	}

	updated, err := h.store.UpdateIPAsset(r.Context(), existing.IPAddress, target, actorName(r))
	if err != nil {
		h.serverError(w, "update ip asset", err)
		return
	}
	if updated == nil {
		inventoryWriteError(w, http.StatusNotFound, "IP asset not found")
		return
	}
	payload, err := h.assetWithTags(r, updated)
	if err != nil {
		h.serverError(w, "list tags", err)
		return
	}
	inventoryWriteJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleDeleteIPAsset(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.DeleteIPAsset(r.Context(), r.PathValue("ip"), actorName(r))
	if err != nil {
		h.serverError(w, "delete ip asset", err)
		return
	}
	if !deleted {
		inventoryWriteError(w, http.StatusNotFound, "IP asset not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleArchiveIPAsset(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

func (h *Handler) handleUnarchiveIPAsset(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *Handler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	asset, err := h.store.GetIPAssetByIP(r.Context(), r.PathValue("ip"))
	if err != nil {
		h.serverError(w, "get ip asset", err)
		return
	}
	if asset == nil {
		inventoryWriteError(w, http.StatusNotFound, "IP asset not found")
		return
	}
	if err := h.store.SetIPAssetArchived(r.Context(), asset.IPAddress, archived); err != nil {
		h.serverError(w, "set archived", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleIPAssetAudit(w http.ResponseWriter, r *http.Request) {
	asset, err := h.store.GetIPAssetByIP(r.Context(), r.PathValue("ip"))
	if err != nil {
		h.serverError(w, "get ip asset", err)
		return
	}
	if asset == nil {
		inventoryWriteError(w, http.StatusNotFound, "IP asset not found")
		return
	}
	entries, err := h.store.ListAuditLogsForIPAsset(r.Context(), asset.ID)
	if err != nil {
		h.serverError(w, "list audit logs", err)
		return
	}
	if entries == nil {
		entries = []AuditLog{}
	}
	inventoryWriteJSON(w, http.StatusOK, entries)
}

type projectRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Color       *string `json:"color"`
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		h.serverError(w, "list projects", err)
		return
	}
	if projects == nil {
		projects = []Project{}
	}
	inventoryWriteJSON(w, http.StatusOK, projects)
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		inventoryWriteError(w, http.StatusUnprocessableEntity, "Project name is required.")
		return
	}
	color := ""
	if req.Color != nil {
		normalized, err := NormalizeHexColor(*req.Color)
		if err != nil {
			inventoryWriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		color = normalized
	}
	project, err := h.store.CreateProject(r.Context(), strings.TrimSpace(req.Name), req.Description, color)
	if err != nil {
		h.serverError(w, "create project", err)
		return
	}
	inventoryWriteJSON(w, http.StatusCreated, project)
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	existing, err := h.store.GetProjectByID(r.Context(), id)
	if err != nil {
		h.serverError(w, "get project", err)
		return
	}
	if existing == nil {
		inventoryWriteError(w, http.StatusNotFound, "project not found")
		return
	}

	name := existing.Name
	if strings.TrimSpace(req.Name) != "" {
		name = strings.TrimSpace(req.Name)
	}
	description := existing.Description
	if req.Description != "" {
		description = req.Description
	}
	color := existing.Color
	if req.Color != nil {
		normalized, err := NormalizeHexColor(*req.Color)
		if err != nil {
			inventoryWriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		color = normalized
	}
	project, err := h.store.UpdateProject(r.Context(), id, name, description, color)
	if err != nil {
		h.serverError(w, "update project", err)
		return
	}
	inventoryWriteJSON(w, http.StatusOK, project)
}

type vendorRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.store.ListVendors(r.Context())
	if err != nil {
		h.serverError(w, "list vendors", err)
		return
	}
	if vendors == nil {
		vendors = []Vendor{}
	}
	inventoryWriteJSON(w, http.StatusOK, vendors)
}

func (h *Handler) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		inventoryWriteError(w, http.StatusUnprocessableEntity, "Vendor name is required.")
		return
	}
	if existing, err := h.store.GetVendorByName(r.Context(), name); err != nil {
		h.serverError(w, "get vendor", err)
		return
	} else if existing != nil {
		inventoryWriteError(w, http.StatusConflict, "Vendor already exists.")
		return
	}
	vendor, err := h.store.CreateVendor(r.Context(), name)
	if err != nil {
		h.serverError(w, "create vendor", err)
		return
	}
	inventoryWriteJSON(w, http.StatusCreated, vendor)
}

func (h *Handler) handleUpdateVendor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid vendor id")
		return
	}
	var req vendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		inventoryWriteError(w, http.StatusUnprocessableEntity, "Vendor name is required.")
		return
	}
	vendor, err := h.store.UpdateVendor(r.Context(), id, name)
	if err != nil {
		h.serverError(w, "update vendor", err)
		return
	}
	if vendor == nil {
		inventoryWriteError(w, http.StatusNotFound, "vendor not found")
		return
	}
	inventoryWriteJSON(w, http.StatusOK, vendor)
}

type hostRequest struct {
	Name     string `json:"name"`
	Notes    string `json:"notes"`
	VendorID *int64 `json:"vendor_id"`
}

func (h *Handler) handleListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.store.ListHosts(r.Context())
	if err != nil {
		h.serverError(w, "list hosts", err)
		return
	}
	if hosts == nil {
		hosts = []Host{}
	}
	inventoryWriteJSON(w, http.StatusOK, hosts)
}

func (h *Handler) resolveVendorID(w http.ResponseWriter, r *http.Request, vendorID *int64) bool {
	if vendorID == nil {
		return true
	}
	vendor, err := h.store.GetVendorByID(r.Context(), *vendorID)
	if err != nil {
		h.serverError(w, "get vendor", err)
		return false
	}
	if vendor == nil {
		inventoryWriteError(w, http.StatusUnprocessableEntity, "Selected vendor does not exist.")
		return false
	}
	return true
}

func (h *Handler) handleCreateHost(w http.ResponseWriter, r *http.Request) {
	var req hostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		inventoryWriteError(w, http.StatusUnprocessableEntity, "Host name is required.")
		return
	}
	if !h.resolveVendorID(w, r, req.VendorID) {
		return
	}
	host, err := h.store.CreateHost(r.Context(), strings.TrimSpace(req.Name), req.Notes, req.VendorID)
	if err != nil {
		h.serverError(w, "create host", err)
		return
	}
	inventoryWriteJSON(w, http.StatusCreated, host)
}

// hostDetail includes the assets linked to the host, grouped by role.
type hostDetail struct {
	Host
	LinkedAssets map[string][]assetPayload `json:"linked_assets"`
}

func (h *Handler) handleGetHost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid host id")
		return
	}
	host, err := h.store.GetHostByID(r.Context(), id)
	if err != nil {
		h.serverError(w, "get host", err)
		return
	}
	if host == nil {
		inventoryWriteError(w, http.StatusNotFound, "host not found")
		return
	}

	assets, err := h.store.ListIPAssets(r.Context(), ListIPAssetsOptions{HostID: &id})
	if err != nil {
		h.serverError(w, "list ip assets", err)
		return
	}
	ids := make([]int64, 0, len(assets))
	for _, asset := range assets {
		ids = append(ids, asset.ID)
	}
	tagMap, err := h.store.ListTagsForIPAssets(r.Context(), ids)
	if err != nil {
		h.serverError(w, "list tags", err)
		return
	}

	grouped := map[string][]assetPayload{"os": {}, "bmc": {}, "other": {}}
	for _, asset := range assets {
		tags := tagMap[asset.ID]
		if tags == nil {
			tags = []string{}
		}
		payload := assetPayload{IPAsset: asset, Tags: tags}
		switch asset.AssetType {
		case AssetTypeOS:
			grouped["os"] = append(grouped["os"], payload)
		case AssetTypeBMC:
			grouped["bmc"] = append(grouped["bmc"], payload)
		default:
			grouped["other"] = append(grouped["other"], payload)
		}
	}
	inventoryWriteJSON(w, http.StatusOK, hostDetail{Host: *host, LinkedAssets: grouped})
}

func (h *Handler) handleUpdateHost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid host id")
		return
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	data, err := json.Marshal(raw)
	if err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var req hostRequest
	if err := json.Unmarshal(data, &req); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := h.store.GetHostByID(r.Context(), id)
	if err != nil {
		h.serverError(w, "get host", err)
		return
	}
	if existing == nil {
		inventoryWriteError(w, http.StatusNotFound, "host not found")
		return
	}

	name := existing.Name
	if strings.TrimSpace(req.Name) != "" {
		name = strings.TrimSpace(req.Name)
	}
	notes := existing.Notes
	if _, ok := raw["notes"]; ok {
		notes = req.Notes
	}
	var vendorID *int64
	if _, ok := raw["vendor_id"]; ok {
		if !h.resolveVendorID(w, r, req.VendorID) {
			return
		}
		vendorID = req.VendorID
	} else if existing.Vendor != "" {
		vendor, err := h.store.GetVendorByName(r.Context(), existing.Vendor)
		if err != nil {
			h.serverError(w, "get vendor", err)
			return
		}
		if vendor != nil {
			vendorID = &vendor.ID
		}
	}

	host, err := h.store.UpdateHost(r.Context(), id, name, notes, vendorID)
	if err != nil {
		h.serverError(w, "update host", err)
		return
	}
	if host == nil {
		inventoryWriteError(w, http.StatusNotFound, "host not found")
		return
	}
	inventoryWriteJSON(w, http.StatusOK, host)
}

func (h *Handler) handleDeleteHost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid host id")
		return
	}
	deleted, err := h.store.DeleteHost(r.Context(), id)
	if err != nil {
		h.serverError(w, "delete host", err)
		return
	}
	if !deleted {
		inventoryWriteError(w, http.StatusNotFound, "host not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *Handler) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.store.ListTags(r.Context())
	if err != nil {
		h.serverError(w, "list tags", err)
		return
	}
	if tags == nil {
		tags = []Tag{}
	}
	inventoryWriteJSON(w, http.StatusOK, tags)
}

func (h *Handler) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name, err := NormalizeTagName(req.Name)
	if err != nil {
		inventoryWriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if existing, err := h.store.GetTagByName(r.Context(), name); err != nil {
		h.serverError(w, "get tag", err)
		return
	} else if existing != nil {
		inventoryWriteError(w, http.StatusConflict, "Tag already exists.")
		return
	}
	tag, err := h.store.CreateTag(r.Context(), name, req.Color)
	if err != nil {
		h.serverError(w, "create tag", err)
		return
	}
	inventoryWriteJSON(w, http.StatusCreated, tag)
}

func (h *Handler) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid tag id")
		return
	}
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name, err := NormalizeTagName(req.Name)
	if err != nil {
		inventoryWriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	tag, err := h.store.UpdateTag(r.Context(), id, name, req.Color)
	if err != nil {
		h.serverError(w, "update tag", err)
		return
	}
	if tag == nil {
		inventoryWriteError(w, http.StatusNotFound, "tag not found")
		return
	}
	inventoryWriteJSON(w, http.StatusOK, tag)
}

func (h *Handler) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		inventoryWriteError(w, http.StatusBadRequest, "invalid tag id")
		return
	}
	deleted, err := h.store.DeleteTag(r.Context(), id)
	if err != nil {
		h.serverError(w, "delete tag", err)
		return
	}
	if !deleted {
		inventoryWriteError(w, http.StatusNotFound, "tag not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			inventoryWriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	entries, err := h.store.ListAuditLogs(r.Context(), limit)
	if err != nil {
		h.serverError(w, "list audit logs", err)
		return
	}
	if entries == nil {
		entries = []AuditLog{}
	}
	inventoryWriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.ManagementSummary(r.Context())
	if err != nil {
		h.serverError(w, "management summary", err)
		return
	}
	inventoryWriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", zap.Error(err))
	inventoryWriteError(w, http.StatusInternalServerError, "internal error")
}

func actorName(r *http.Request) string {
	if user := auth.UserFromContext(r.Context()); user != nil {
		return user.Username
	}
	return ""
}

func parseBoolQuery(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func inventoryWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func inventoryWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://ipocket.dev/problems/" + strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "-")),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
