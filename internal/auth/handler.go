package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Handler provides the auth HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new auth Handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers auth HTTP routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", h.handleLogout)
	mux.HandleFunc("GET /api/v1/auth/me", h.handleMe)
	mux.HandleFunc("POST /api/v1/auth/password", h.handleChangePassword)
	mux.HandleFunc("GET /api/v1/auth/users", RequireRole(Role.IsAdmin, h.handleListUsers))
	mux.HandleFunc("POST /api/v1/auth/users", RequireRole(Role.IsAdmin, h.handleCreateUser))
	mux.HandleFunc("PATCH /api/v1/auth/users/{id}", RequireRole(Role.IsAdmin, h.handleUpdateUser))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			authWriteError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		authWriteError(w, http.StatusInternalServerError, "login failed")
		return
	}
	authWriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		if err := h.service.Logout(r.Context(), strings.TrimPrefix(authHeader, "Bearer ")); err != nil {
			h.logger.Warn("logout failed", zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		authWriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	authWriteJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		authWriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.ChangePassword(r.Context(), user.ID, req.Password); err != nil {
		authWriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Store().ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		authWriteError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []User{}
	}
	authWriteJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := NormalizeRole(req.Role)
	if err != nil {
		authWriteError(w, http.StatusBadRequest, "role must be Viewer, Editor, or Admin")
		return
	}
	user, err := h.service.CreateUser(r.Context(), req.Username, req.Password, role)
	if err != nil {
		authWriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	authWriteJSON(w, http.StatusCreated, user)
}

type updateUserRequest struct {
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		authWriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store := h.service.Store()
	user, err := store.GetUserByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get user failed", zap.Error(err))
		authWriteError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		authWriteError(w, http.StatusNotFound, "user not found")
		return
	}

	if req.Role != nil {
		role, err := NormalizeRole(*req.Role)
		if err != nil {
			authWriteError(w, http.StatusBadRequest, "role must be Viewer, Editor, or Admin")
			return
		}
		if err := store.UpdateUserRole(r.Context(), id, role); err != nil {
			h.logger.Error("update role failed", zap.Error(err))
			authWriteError(w, http.StatusInternalServerError, "failed to update user")
			return
		}
	}
	if req.Active != nil {
		if err := store.SetUserActive(r.Context(), id, *req.Active); err != nil {
			h.logger.Error("set active failed", zap.Error(err))
			authWriteError(w, http.StatusInternalServerError, "failed to update user")
			return
		}
	}

	updated, err := store.GetUserByID(r.Context(), id)
	if err != nil {
		h.logger.Error("reload user failed", zap.Error(err))
		authWriteError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	authWriteJSON(w, http.StatusOK, updated)
}

func authWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func authWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://ipocket.dev/problems/" + strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "-")),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
