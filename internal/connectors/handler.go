package connectors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ipocket/ipocket/internal/auth"
	"github.com/ipocket/ipocket/internal/inventory"
)

// Handler exposes connector runs over HTTP. Connector credentials come
// from the connectors.* configuration sections, never from the request.
type Handler struct {
	runner *Runner
	v      *viper.Viper
	logger *zap.Logger
}

// NewHandler creates a new connectors Handler.
func NewHandler(store *inventory.Store, v *viper.Viper, logger *zap.Logger) *Handler {
	return &Handler{runner: NewRunner(store, logger), v: v, logger: logger}
}

// RegisterRoutes registers connector HTTP routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/connectors", h.handleList)
	mux.HandleFunc("POST /api/v1/connectors/{name}/run", h.handleRun)
}

// handleList reports which connectors have a URL configured.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	type connectorInfo struct {
		Name       string `json:"name"`
		Configured bool   `json:"configured"`
	}
	infos := make([]connectorInfo, 0, 3)
	for _, name := range []string{"elasticsearch", "prometheus", "vcenter"} {
		infos = append(infos, connectorInfo{
			Name:       name,
			Configured: h.v.GetString("connectors."+name+".url") != "",
		})
	}
	connectorWriteJSON(w, http.StatusOK, map[string]any{"connectors": infos})
}

// handleRun executes the named connector and feeds its bundle to the
// import pipeline. ?dry_run=true previews without writing; applying
// requires an editor.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	dryRun := connectorBoolParam(r, "dry_run")
	user := auth.UserFromContext(r.Context())
	if !dryRun && (user == nil || !user.Role.CanEdit()) {
		connectorWriteError(w, http.StatusForbidden, "editor role required to apply connector imports")
		return
	}
	username := ""
	if user != nil {
		username = user.Username
	}

	connector, err := h.buildConnector(r.PathValue("name"))
	if err != nil {
		connectorWriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.runner.Run(r.Context(), connector, dryRun, username)
	if err != nil {
		h.logger.Error("connector run failed",
			zap.String("connector", connector.Name()), zap.Error(err))
		connectorWriteError(w, http.StatusBadGateway,
			fmt.Sprintf("connector %s failed: external system unreachable or returned an error", connector.Name()))
		return
	}
	connectorWriteJSON(w, http.StatusOK, result)
}

// buildConnector assembles the named connector from configuration.
func (h *Handler) buildConnector(name string) (Connector, error) {
	section := func(key string) string { return "connectors." + name + "." + key }
	url := h.v.GetString(section("url"))

	switch name {
	case "elasticsearch":
		if url == "" {
			return nil, fmt.Errorf("connector elasticsearch is not configured: connectors.elasticsearch.url is empty")
		}
		return NewElasticsearchConnector(ElasticsearchConfig{
			URL:         url,
			Username:    h.v.GetString(section("username")),
			Password:    h.v.GetString(section("password")),
			APIKey:      h.v.GetString(section("api_key")),
			Timeout:     h.v.GetDuration(section("timeout")),
			AssetType:   h.v.GetString(section("asset_type")),
			ProjectName: h.v.GetString(section("project_name")),
			Tags:        inventory.SplitTagString(h.v.GetString(section("tags"))),
			Note:        h.v.GetString(section("note")),
		}), nil
	case "prometheus":
		if url == "" {
			return nil, fmt.Errorf("connector prometheus is not configured: connectors.prometheus.url is empty")
		}
		if h.v.GetString(section("query")) == "" {
			return nil, fmt.Errorf("connector prometheus is not configured: connectors.prometheus.query is empty")
		}
		return NewPrometheusConnector(PrometheusConfig{
			URL:         url,
			Query:       h.v.GetString(section("query")),
			IPLabel:     h.v.GetString(section("ip_label")),
			Token:       h.v.GetString(section("token")),
			Timeout:     h.v.GetDuration(section("timeout")),
			AssetType:   h.v.GetString(section("asset_type")),
			ProjectName: h.v.GetString(section("project_name")),
			Tags:        inventory.SplitTagString(h.v.GetString(section("tags"))),
		}), nil
	case "vcenter":
		if url == "" {
			return nil, fmt.Errorf("connector vcenter is not configured: connectors.vcenter.url is empty")
		}
		return NewVCenterConnector(VCenterConfig{
			URL:      url,
			Username: h.v.GetString(section("username")),
			Password: h.v.GetString(section("password")),
			Timeout:  h.v.GetDuration(section("timeout")),
			Insecure: h.v.GetBool(section("insecure")),
		}), nil
	default:
		return nil, fmt.Errorf("unknown connector %q", name)
	}
}

func connectorBoolParam(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func connectorWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func connectorWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://ipocket.dev/problems/" + strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "-")),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
