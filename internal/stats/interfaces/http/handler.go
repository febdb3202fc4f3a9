package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"xrgi-portal/internal/auth"
	"xrgi-portal/internal/observability/metrics"
	"xrgi-portal/internal/stats/application"
	"xrgi-portal/internal/stats/interfaces"
)

const basePath = "/api/v1/reports"

// Handler serves facility statistics reports as JSON, PDF or XLSX.
type Handler struct {
	service *application.Service
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("stats handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles GET /api/v1/reports/{facilityID}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	facilityID := strings.TrimPrefix(r.URL.Path, basePath+"/")
	if facilityID == "" || strings.Contains(facilityID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	from, to, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userID := auth.SubjectFromContext(r.Context())
	report, err := h.service.Load(r.Context(), userID, facilityID, from, to)
	if err != nil {
		if errors.Is(err, application.ErrFacilityNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	start := time.Now()
	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(report)
	case "pdf":
		data, err := interfaces.BuildReportPDF(report)
		if err != nil {
			metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(start))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="facility-report.pdf"`)
		_, _ = w.Write(data)
	case "xlsx":
		data, err := interfaces.BuildReportXLSX(report)
		if err != nil {
			metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(start))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="facility-report.xlsx"`)
		_, _ = w.Write(data)
	default:
		http.Error(w, "unsupported format", http.StatusBadRequest)
	}
}

func parsePeriod(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, errors.New("invalid from date")
		}
		from = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, errors.New("invalid to date")
		}
		to = t
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, errors.New("period end before start")
	}
	return from, to, nil
}
