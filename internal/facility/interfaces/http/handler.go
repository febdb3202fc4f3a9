package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"xrgi-portal/internal/auth"
	"xrgi-portal/internal/facility/application"
	"xrgi-portal/internal/servicelog"
)

const basePath = "/api/v1/facilities"

// Handler serves the facility list, dashboard and service log.
type Handler struct {
	service *application.Service
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("facility handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles routes under /api/v1/facilities.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := r.URL.Path
	userID := auth.SubjectFromContext(r.Context())

	switch {
	case path == basePath:
		h.handleList(w, r, userID)
	case path == basePath+"/dashboard":
		h.handleDashboard(w, r, userID)
	case strings.HasPrefix(path, basePath+"/"):
		rest := strings.TrimPrefix(path, basePath+"/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			h.handleGet(w, r, userID, parts[0])
		case len(parts) == 2 && parts[1] == "servicelog":
			h.handleServiceLog(w, r, userID, parts[0])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, userID string) {
	facilities, err := h.service.List(r.Context(), userID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, facilities)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request, userID string) {
	dashboard, err := h.service.Dashboard(r.Context(), userID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, userID, facilityID string) {
	f, err := h.service.Get(r.Context(), userID, facilityID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) handleServiceLog(w http.ResponseWriter, r *http.Request, userID, facilityID string) {
	entries, err := h.service.ServiceLog(r.Context(), userID, facilityID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		page = n
	}
	size := servicelog.DefaultPageSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid size", http.StatusBadRequest)
			return
		}
		size = n
	}

	pager := servicelog.NewPager(entries, size)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":   pager.Page(page),
		"page":      page,
		"pageCount": pager.PageCount(),
		"total":     pager.Len(),
	})
}

func respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, application.ErrFacilityNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
