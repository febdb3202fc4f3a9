package account

import (
	"encoding/json"
	"errors"
	"net/http"

	"xrgi-portal/internal/auth"
	"xrgi-portal/internal/ecpower"
)

const basePath = "/api/v1/account"

// Handler serves the account profile and password endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a handler.
func NewHandler(service *Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("account handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles routes under /api/v1/account.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == basePath+"/profile" && r.Method == http.MethodGet:
		h.handleGetProfile(w, r)
	case r.URL.Path == basePath+"/profile" && r.Method == http.MethodPut:
		h.handleUpdateProfile(w, r)
	case r.URL.Path == basePath+"/password" && r.Method == http.MethodPost:
		h.handleChangePassword(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := auth.SubjectFromContext(r.Context())
	profile, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ecpower.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var profile ecpower.CustomerProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	customerID, err := h.service.UpdateProfile(r.Context(), profile)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"customerId": customerID})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	err := h.service.ChangePassword(r.Context(), req.OldPassword, req.NewPassword)
	switch {
	case errors.Is(err, ErrWeakPassword):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ecpower.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case err != nil:
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
