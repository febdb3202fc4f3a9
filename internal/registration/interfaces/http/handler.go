package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"xrgi-portal/internal/audit"
	"xrgi-portal/internal/auth"
	"xrgi-portal/internal/observability/metrics"
	"xrgi-portal/internal/registration/application"
	registration "xrgi-portal/internal/registration/domain"
)

const basePath = "/api/v1/registrations"

// Handler serves the registration wizard API.
type Handler struct {
	service     *application.WizardService
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.WizardService, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("registration handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles routes under /api/v1/registrations.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == basePath {
		switch r.Method {
		case http.MethodPost:
			h.handleStart(w, r)
		case http.MethodGet:
			h.handleListMine(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if strings.HasPrefix(path, basePath+"/") {
		h.handleByID(w, r, strings.TrimPrefix(path, basePath+"/"))
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Flow       string `json:"flow"`
		FacilityID string `json:"facilityId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	userID := auth.SubjectFromContext(r.Context())
	session, err := h.service.StartSession(r.Context(), userID, registration.Flow(req.Flow), req.FacilityID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.logAudit(r, session.ID, "registration.start", map[string]any{"flow": session.Flow, "facility_id": req.FacilityID})
	writeJSON(w, http.StatusCreated, sessionView(session, h.service.RedirectDelay()))
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	// ListSessions applies TTL expiry; the repo list alone would
	// resurrect stale drafts.
	userID := auth.SubjectFromContext(r.Context())
	sessions, err := h.service.ListSessions(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, sessionView(session, h.service.RedirectDelay()))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleByID dispatches per-session routes. The authenticated subject is
// threaded into every service call so one user cannot touch another
// user's draft by guessing its id.
func (h *Handler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID := auth.SubjectFromContext(r.Context())

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, userID, id)
		case http.MethodPatch:
			h.handlePatch(w, r, userID, id)
		case http.MethodDelete:
			h.handleClose(w, r, userID, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		switch parts[1] {
		case "next":
			h.handleNext(w, r, userID, id)
			return
		case "prev":
			h.handlePrev(w, r, userID, id)
			return
		case "goto":
			h.handleGoTo(w, r, userID, id)
			return
		case "submit":
			h.handleSubmit(w, r, userID, id)
			return
		case "distribution":
			h.handleDistribution(w, r, userID, id)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, userID, id string) {
	session, err := h.service.GetSession(r.Context(), userID, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session, h.service.RedirectDelay()))
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request, userID, id string) {
	var req struct {
		Fields []struct {
			Path  string `json:"path"`
			Value any    `json:"value"`
		} `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(req.Fields) == 0 {
		http.Error(w, "no fields", http.StatusBadRequest)
		return
	}
	var session *registration.Session
	var err error
	for _, field := range req.Fields {
		session, err = h.service.ApplyField(r.Context(), userID, id, field.Path, field.Value)
		if err != nil {
			respondServiceError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sessionView(session, h.service.RedirectDelay()))
}

func (h *Handler) handleDistribution(w http.ResponseWriter, r *http.Request, userID, id string) {
	var req struct {
		Month int    `json:"month"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	session, err := h.service.UpdateMonthPercentage(r.Context(), userID, id, req.Month, req.Value)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session, h.service.RedirectDelay()))
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request, userID, id string) {
	outcome, err := h.service.Next(r.Context(), userID, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	step := outcome.Session.Flow.StepName(outcome.Session.Step)
	result := metrics.ResultSuccess
	if !outcome.Result.Valid || outcome.APIError != "" {
		result = metrics.ResultError
	}
	metrics.IncStepTransition(step, result)
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  sessionView(outcome.Session, h.service.RedirectDelay()),
		"valid":    outcome.Result.Valid,
		"errors":   outcome.Result.Errors,
		"apiError": outcome.APIError,
	})
}

func (h *Handler) handlePrev(w http.ResponseWriter, r *http.Request, userID, id string) {
	session, err := h.service.Prev(r.Context(), userID, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session, h.service.RedirectDelay()))
}

func (h *Handler) handleGoTo(w http.ResponseWriter, r *http.Request, userID, id string) {
	var req struct {
		Step int `json:"step"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	session, err := h.service.GoTo(r.Context(), userID, id, req.Step)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session, h.service.RedirectDelay()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request, userID, id string) {
	start := time.Now()
	result, err := h.service.Submit(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, registration.ErrSubmissionInFlight) {
			http.Error(w, "submission already in flight", http.StatusConflict)
			return
		}
		respondServiceError(w, err)
		return
	}
	metricResult := metrics.ResultSuccess
	if !result.Success {
		metricResult = metrics.ResultError
	}
	metrics.ObserveSubmit(metricResult, time.Since(start))
	if result.Success {
		facilityID := ""
		if result.Facility != nil {
			facilityID = result.Facility.ID
		}
		h.logAudit(r, id, "registration.submit", map[string]any{"facility_id": facilityID})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  result.Success,
		"error":    result.Error,
		"facility": result.Facility,
		"session":  sessionView(result.Session, h.service.RedirectDelay()),
	})
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request, userID, id string) {
	if err := h.service.Close(r.Context(), userID, id); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logAudit(r *http.Request, sessionID, action string, metadata map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(metadata)
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "registration_session",
		ResourceID:   sessionID,
		Metadata:     payload,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	_ = h.auditLogger.Log(r.Context(), entry)
}

func sessionView(session *registration.Session, redirectDelay time.Duration) map[string]any {
	if session == nil {
		return nil
	}
	view := map[string]any{
		"id":        session.ID,
		"flow":      session.Flow,
		"step":      session.Step,
		"stepName":  session.Flow.StepName(session.Step),
		"status":    session.Status,
		"profile":   session.Profile,
		"draft":     session.Draft,
		"updatedAt": session.UpdatedAt,
	}
	if session.Status == registration.JourneyCompleted {
		view["redirectDelayMs"] = redirectDelay.Milliseconds()
	}
	return view
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registration.ErrSessionNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, registration.ErrUnknownField),
		errors.Is(err, registration.ErrInvalidStep),
		errors.Is(err, registration.ErrInvalidMonth):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
