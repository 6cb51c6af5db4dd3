package imports

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ipocket/ipocket/internal/auth"
	"github.com/ipocket/ipocket/internal/inventory"
)

const maxUploadBytes = 10 << 20 // 10 MB per uploaded file

// Handler provides the HTTP endpoints for the import pipeline.
type Handler struct {
	store  *inventory.Store
	logger *zap.Logger
}

// NewHandler creates a new imports Handler.
func NewHandler(store *inventory.Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes registers import HTTP routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/import/bundle", h.handleImportBundle)
	mux.HandleFunc("POST /api/v1/import/csv", h.handleImportCSV)
	mux.HandleFunc("POST /api/v1/import/nmap", h.handleImportNmap)
}

// handleImportBundle accepts a bundle.json snapshot, either as a multipart
// "file" field or as a raw JSON request body, and runs it through the
// pipeline. ?dry_run=true previews without writing.
func (h *Handler) handleImportBundle(w http.ResponseWriter, r *http.Request) {
	dryRun := parseBoolParam(r, "dry_run")
	user, ok := h.requireImportAccess(w, r, dryRun)
	if !ok {
		return
	}

	payload, ok := h.readUpload(w, r, "file")
	if !ok {
		return
	}

	result, err := Run(r.Context(), h.store, BundleImporter{}, map[string][]byte{"bundle": payload},
		Options{}, dryRun, &AuditContext{
			Username:   user,
			Source:     "api_import_bundle",
			Mode:       importMode(dryRun),
			InputLabel: "bundle.json",
		})
	if err != nil {
		h.logger.Error("bundle import failed", zap.Error(err))
		importWriteError(w, http.StatusInternalServerError, "import failed")
		return
	}
	importWriteJSON(w, http.StatusOK, resultPayload(result))
}

// handleImportCSV accepts hosts and/or ip_assets CSV files as multipart
// fields; at least one must be present.
func (h *Handler) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	dryRun := parseBoolParam(r, "dry_run")
	user, ok := h.requireImportAccess(w, r, dryRun)
	if !ok {
		return
	}

	if err := parseMultipart(r); err != nil {
		h.writeUploadError(w, err)
		return
	}
	inputs := make(map[string][]byte)
	for _, field := range []string{"hosts", "ip_assets"} {
		payload, found, err := readFormFile(r, field)
		if err != nil {
			h.writeUploadError(w, err)
			return
		}
		if found && len(payload) > 0 {
			inputs[field] = payload
		}
	}
	if len(inputs) == 0 {
		importWriteError(w, http.StatusBadRequest, "CSV import requires at least one file.")
		return
	}

	result, err := Run(r.Context(), h.store, CSVImporter{}, inputs,
		Options{}, dryRun, &AuditContext{
			Username:   user,
			Source:     "api_import_csv",
			Mode:       importMode(dryRun),
			InputLabel: "csv",
		})
	if err != nil {
		h.logger.Error("csv import failed", zap.Error(err))
		importWriteError(w, http.StatusInternalServerError, "import failed")
		return
	}
	importWriteJSON(w, http.StatusOK, resultPayload(result))
}

// handleImportNmap accepts an nmap XML scan report. ?type= overrides the
// asset type used for hosts whose MAC vendor gives no hint.
func (h *Handler) handleImportNmap(w http.ResponseWriter, r *http.Request) {
	dryRun := parseBoolParam(r, "dry_run")
	user, ok := h.requireImportAccess(w, r, dryRun)
	if !ok {
		return
	}

	payload, ok := h.readUpload(w, r, "file")
	if !ok {
		return
	}

	result, err := Run(r.Context(), h.store, &NmapImporter{}, map[string][]byte{"nmap": payload},
		Options{DefaultAssetType: r.URL.Query().Get("type")}, dryRun, &AuditContext{
			Username:   user,
			Source:     "api_import_nmap",
			Mode:       importMode(dryRun),
			InputLabel: "nmap.xml",
		})
	if err != nil {
		h.logger.Error("nmap import failed", zap.Error(err))
		importWriteError(w, http.StatusInternalServerError, "import failed")
		return
	}
	importWriteJSON(w, http.StatusOK, resultPayload(result))
}

// requireImportAccess enforces that applying (not previewing) needs an
// editor. It returns the acting username.
func (h *Handler) requireImportAccess(w http.ResponseWriter, r *http.Request, dryRun bool) (string, bool) {
	user := auth.UserFromContext(r.Context())
	if !dryRun && (user == nil || !user.Role.CanEdit()) {
		importWriteError(w, http.StatusForbidden, "editor role required to apply imports")
		return "", false
	}
	if user == nil {
		return "", true
	}
	return user.Username, true
}

// readUpload returns the body of the named multipart field, or the raw
// request body for non-multipart requests.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, bool) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "multipart/") {
		if err := parseMultipart(r); err != nil {
			h.writeUploadError(w, err)
			return nil, false
		}
		payload, found, err := readFormFile(r, field)
		if err != nil {
			h.writeUploadError(w, err)
			return nil, false
		}
		if !found {
			importWriteError(w, http.StatusBadRequest, fmt.Sprintf("missing %q file field", field))
			return nil, false
		}
		return payload, true
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		h.writeUploadError(w, err)
		return nil, false
	}
	return payload, true
}

func parseMultipart(r *http.Request) error {
	// One upload slot plus form overhead; individual files are re-checked
	// in readFormFile.
	return r.ParseMultipartForm(maxUploadBytes + 1<<20)
}

func readFormFile(r *http.Request, field string) ([]byte, bool, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, false, nil
	}
	file, err := r.MultipartForm.File[field][0].Open()
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	payload, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, false, err
	}
	if len(payload) > maxUploadBytes {
		return nil, false, errUploadTooLarge
	}
	return payload, true, nil
}

var errUploadTooLarge = errors.New("upload too large")

func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.Is(err, errUploadTooLarge) || errors.As(err, &maxBytesErr) {
		importWriteError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Uploaded file exceeds maximum size of %d MB.", maxUploadBytes>>20))
		return
	}
	importWriteError(w, http.StatusBadRequest, "invalid upload")
}

func parseBoolParam(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func importMode(dryRun bool) string {
	if dryRun {
		return "dry-run"
	}
	return "apply"
}

type summaryPayload struct {
	Summary
	Total EntitySummary `json:"total"`
}

type resultResponse struct {
	Summary  summaryPayload `json:"summary"`
	Errors   []Issue        `json:"errors"`
	Warnings []Issue        `json:"warnings"`
}

func resultPayload(result *ApplyResult) resultResponse {
	response := resultResponse{
		Summary:  summaryPayload{Summary: result.Summary, Total: result.Summary.Total()},
		Errors:   result.Errors,
		Warnings: result.Warnings,
	}
	if response.Errors == nil {
		response.Errors = []Issue{}
	}
	if response.Warnings == nil {
		response.Warnings = []Issue{}
	}
	return response
}

func importWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func importWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://ipocket.dev/problems/" + strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "-")),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
