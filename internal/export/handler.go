package export

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ipocket/ipocket/internal/inventory"
)

// Handler serves bundle exports.
type Handler struct {
	builder *Builder
	logger  *zap.Logger
}

// NewHandler creates a new export Handler.
func NewHandler(builder *Builder, logger *zap.Logger) *Handler {
	return &Handler{builder: builder, logger: logger}
}

// RegisterRoutes registers export HTTP routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/export/bundle", h.handleExportBundle)
}

func (h *Handler) handleExportBundle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := inventory.ExportFilter{
		ProjectName: query.Get("project_name"),
		HostName:    query.Get("host_name"),
	}
	switch strings.ToLower(query.Get("include_archived")) {
	case "1", "true", "yes", "y":
		filter.IncludeArchived = true
	}
	if v := query.Get("type"); v != "" {
		assetType, err := inventory.NormalizeAssetType(v)
		if err != nil {
			exportWriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		filter.AssetType = &assetType
	}

	doc, err := h.builder.Bundle(r.Context(), filter)
	if err != nil {
		h.logger.Error("bundle export failed", zap.Error(err))
		exportWriteError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="ipocket-bundle.json"`)
	_ = json.NewEncoder(w).Encode(doc)
}

func exportWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://ipocket.dev/problems/" + strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "-")),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
