package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"xrgi-portal/internal/auth"
	"xrgi-portal/internal/ecpower"
	"xrgi-portal/internal/eventing"
	"xrgi-portal/internal/registration/application"
	registration "xrgi-portal/internal/registration/domain"
	memoryrepo "xrgi-portal/internal/registration/infrastructure/memory"
)

type stubUpstream struct{}

func (stubUpstream) SaveCustomerProfile(context.Context, ecpower.CustomerProfile) (string, error) {
	return "customer-1", nil
}

func (stubUpstream) CreateFacility(_ context.Context, payload ecpower.FacilityPayload) (ecpower.Facility, error) {
	return ecpower.Facility{ID: "facility-1", XRGIID: payload.XRGIID}, nil
}

func (stubUpstream) UpdateFacility(_ context.Context, id string, payload ecpower.FacilityPayload) (ecpower.Facility, error) {
	return ecpower.Facility{ID: id, XRGIID: payload.XRGIID}, nil
}

func (stubUpstream) ListUserFacilities(context.Context, string) ([]ecpower.Facility, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	service, err := application.NewWizardService(
		memoryrepo.NewSessionRepository(),
		stubUpstream{},
		eventing.NewInMemoryBus(),
		application.Config{DefaultFlow: "wizard"},
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(service, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func doRequest(t *testing.T, handler *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequestAs(t, handler, "user-1", method, path, body)
}

func doRequestAs(t *testing.T, handler *Handler, subject, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), "customer-1", auth.RoleCustomer, subject))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func startSession(t *testing.T, handler *Handler) string {
	t.Helper()
	resp := doRequest(t, handler, http.MethodPost, "/api/v1/registrations", `{"flow":"wizard"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var view struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID == "" {
		t.Fatal("expected session id in response")
	}
	return view.ID
}

func TestHandler_StartAndGet(t *testing.T) {
	handler := newTestHandler(t)
	id := startSession(t, handler)

	resp := doRequest(t, handler, http.MethodGet, "/api/v1/registrations/"+id, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var view struct {
		Step     int    `json:"step"`
		StepName string `json:"stepName"`
		Status   string `json:"status"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &view)
	if view.Step != 1 || view.StepName != "Profile" || view.Status != registration.JourneyInProgress {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestHandler_GetUnknownSession(t *testing.T) {
	handler := newTestHandler(t)
	resp := doRequest(t, handler, http.MethodGet, "/api/v1/registrations/unknown", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHandler_PatchFields(t *testing.T) {
	handler := newTestHandler(t)
	id := startSession(t, handler)

	body := `{"fields":[
		{"path":"name","value":"Bakery Nord"},
		{"path":"location.address","value":"Havnegade 12"}
	]}`
	resp := doRequest(t, handler, http.MethodPatch, "/api/v1/registrations/"+id, body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doRequest(t, handler, http.MethodPatch, "/api/v1/registrations/"+id, `{"fields":[{"path":"bogus","value":"x"}]}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.Code)
	}
}

func TestHandler_NextReturnsValidationErrors(t *testing.T) {
	handler := newTestHandler(t)
	id := startSession(t, handler)

	resp := doRequest(t, handler, http.MethodPost, "/api/v1/registrations/"+id+"/next", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var outcome struct {
		Valid  bool              `json:"valid"`
		Errors map[string]string `json:"errors"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &outcome)
	if outcome.Valid {
		t.Fatal("empty profile must not validate")
	}
	if _, ok := outcome.Errors["firstName"]; !ok {
		t.Fatalf("expected firstName error, got %v", outcome.Errors)
	}
}

func TestHandler_FullWizardFlow(t *testing.T) {
	handler := newTestHandler(t)
	id := startSession(t, handler)

	patch := func(path string, value any) {
		raw, _ := json.Marshal(map[string]any{
			"fields": []map[string]any{{"path": path, "value": value}},
		})
		resp := doRequest(t, handler, http.MethodPatch, "/api/v1/registrations/"+id, string(raw))
		if resp.Code != http.StatusOK {
			t.Fatalf("patch %s: expected 200, got %d: %s", path, resp.Code, resp.Body.String())
		}
	}

	patch("profile.firstName", "Mette")
	patch("profile.lastName", "Jensen")
	patch("profile.email", "mette@example.com")
	patch("profile.phone", "+45 12345678")
	patch("profile.address", "Havnegade 12")
	patch("profile.city", "Aarhus")
	patch("profile.country", "Denmark")

	resp := doRequest(t, handler, http.MethodPost, "/api/v1/registrations/"+id+"/next", "")
	var outcome struct {
		Valid   bool `json:"valid"`
		Session struct {
			Step int `json:"step"`
		} `json:"session"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &outcome)
	if !outcome.Valid || outcome.Session.Step != registration.StepSystemRegistration {
		t.Fatalf("expected advance to step 2, got %+v", outcome)
	}

	patch("name", "Bakery Nord")
	patch("xrgiID", "1234567890")
	patch("modelNumber", "XRGI-25")
	patch("location.address", "Havnegade 12")
	patch("location.postalCode", "8000")
	patch("location.city", "Aarhus")
	patch("location.country", "Denmark")

	resp = doRequest(t, handler, http.MethodPost, "/api/v1/registrations/"+id+"/next", "")
	_ = json.Unmarshal(resp.Body.Bytes(), &outcome)
	if !outcome.Valid || outcome.Session.Step != registration.StepSmartPriceControl {
		t.Fatalf("expected advance to step 3, got %+v", outcome)
	}

	resp = doRequest(t, handler, http.MethodPost, "/api/v1/registrations/"+id+"/submit", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var submit struct {
		Success  bool `json:"success"`
		Facility struct {
			ID string `json:"id"`
		} `json:"facility"`
		Session struct {
			Status          string `json:"status"`
			RedirectDelayMs int64  `json:"redirectDelayMs"`
		} `json:"session"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &submit)
	if !submit.Success || submit.Facility.ID != "facility-1" {
		t.Fatalf("expected created facility, got %s", resp.Body.String())
	}
	if submit.Session.Status != registration.JourneyCompleted {
		t.Fatalf("expected completed journey, got %q", submit.Session.Status)
	}
}

func TestHandler_GoToAndPrev(t *testing.T) {
	handler := newTestHandler(t)
	id := startSession(t, handler)

	resp := doRequest(t, handler, http.MethodPost, "/api/v1/registrations/"+id+"/goto", `{"step":3}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("goto: expected 200, got %d", resp.Code)
	}

	resp = doRequest(t, handler, http.MethodPost, "/api/v1/registrations/"+id+"/goto", `{"step":99}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("goto out of range: expected 400, got %d", resp.Code)
	}

	resp = doRequest(t, handler, http.MethodPost, "/api/v1/registrations/"+id+"/prev", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("prev: expected 200, got %d", resp.Code)
	}
	var view struct {
		Step int `json:"step"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &view)
	if view.Step != 2 {
		t.Fatalf("expected step 2 after prev, got %d", view.Step)
	}
}

func TestHandler_Distribution(t *testing.T) {
	handler := newTestHandler(t)
	id := startSession(t, handler)

	resp := doRequest(t, handler, http.MethodPatch, "/api/v1/registrations/"+id,
		`{"fields":[{"path":"EnergyCheck_plus","value":true},{"path":"energyCheckPlus.operatingHours","value":"1000"}]}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d", resp.Code)
	}

	resp = doRequest(t, handler, http.MethodPost, "/api/v1/registrations/"+id+"/distribution", `{"month":0,"value":"25"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("distribution: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doRequest(t, handler, http.MethodPost, "/api/v1/registrations/"+id+"/distribution", `{"month":12,"value":"25"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("out of range month: expected 400, got %d", resp.Code)
	}
}

func TestHandler_Delete(t *testing.T) {
	handler := newTestHandler(t)
	id := startSession(t, handler)

	resp := doRequest(t, handler, http.MethodDelete, "/api/v1/registrations/"+id, "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.Code)
	}
	resp = doRequest(t, handler, http.MethodGet, "/api/v1/registrations/"+id, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}

func TestHandler_ListMine(t *testing.T) {
	handler := newTestHandler(t)
	startSession(t, handler)
	startSession(t, handler)

	resp := doRequest(t, handler, http.MethodGet, "/api/v1/registrations", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.Code)
	}
	var views []map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &views)
	if len(views) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(views))
	}
}

func TestHandler_OtherUsersSessionIsNotFound(t *testing.T) {
	handler := newTestHandler(t)
	id := startSession(t, handler)

	checks := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/v1/registrations/" + id, ""},
		{http.MethodPatch, "/api/v1/registrations/" + id, `{"fields":[{"path":"name","value":"x"}]}`},
		{http.MethodPost, "/api/v1/registrations/" + id + "/next", ""},
		{http.MethodPost, "/api/v1/registrations/" + id + "/submit", ""},
		{http.MethodDelete, "/api/v1/registrations/" + id, ""},
	}
	for _, check := range checks {
		resp := doRequestAs(t, handler, "user-2", check.method, check.path, check.body)
		if resp.Code != http.StatusNotFound {
			t.Fatalf("%s %s as another user: expected 404, got %d", check.method, check.path, resp.Code)
		}
	}

	// The owner is unaffected.
	resp := doRequest(t, handler, http.MethodGet, "/api/v1/registrations/"+id, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("owner get: expected 200, got %d", resp.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t)
	resp := doRequest(t, handler, http.MethodPut, "/api/v1/registrations", "")
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}
