package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"xrgi-portal/internal/ecpower"
	"xrgi-portal/internal/eventing"
	"xrgi-portal/internal/registration/application/events"
	registration "xrgi-portal/internal/registration/domain"
	memoryrepo "xrgi-portal/internal/registration/infrastructure/memory"
)

type fakeUpstream struct {
	saveProfile    func(ctx context.Context, profile ecpower.CustomerProfile) (string, error)
	createFacility func(ctx context.Context, payload ecpower.FacilityPayload) (ecpower.Facility, error)
	updateFacility func(ctx context.Context, id string, payload ecpower.FacilityPayload) (ecpower.Facility, error)
	listFacilities func(ctx context.Context, userID string) ([]ecpower.Facility, error)
}

func (f *fakeUpstream) SaveCustomerProfile(ctx context.Context, profile ecpower.CustomerProfile) (string, error) {
	if f.saveProfile == nil {
		return "customer-1", nil
	}
	return f.saveProfile(ctx, profile)
}

func (f *fakeUpstream) CreateFacility(ctx context.Context, payload ecpower.FacilityPayload) (ecpower.Facility, error) {
	if f.createFacility == nil {
		return ecpower.Facility{ID: "facility-1", XRGIID: payload.XRGIID}, nil
	}
	return f.createFacility(ctx, payload)
}

func (f *fakeUpstream) UpdateFacility(ctx context.Context, id string, payload ecpower.FacilityPayload) (ecpower.Facility, error) {
	if f.updateFacility == nil {
		return ecpower.Facility{ID: id, XRGIID: payload.XRGIID}, nil
	}
	return f.updateFacility(ctx, id, payload)
}

func (f *fakeUpstream) ListUserFacilities(ctx context.Context, userID string) ([]ecpower.Facility, error) {
	if f.listFacilities == nil {
		return nil, nil
	}
	return f.listFacilities(ctx, userID)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, upstream Upstream, opts ...WizardOption) (*WizardService, *memoryrepo.SessionRepository) {
	t.Helper()
	repo := memoryrepo.NewSessionRepository()
	cfg := Config{
		RedirectDelay: 2000 * time.Millisecond,
		SessionTTL:    30 * 24 * time.Hour,
		SubmitLockTTL: 2 * time.Minute,
		DefaultFlow:   "wizard",
	}
	service, err := NewWizardService(repo, upstream, eventing.NewInMemoryBus(), cfg, nil, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, repo
}

func fillProfile(t *testing.T, service *WizardService, id string) {
	t.Helper()
	fields := map[string]any{
		"profile.firstName": "Mette",
		"profile.lastName":  "Jensen",
		"profile.email":     "mette@example.com",
		"profile.phone":     "+45 12345678",
		"profile.address":   "Havnegade 12",
		"profile.city":      "Aarhus",
		"profile.country":   "Denmark",
	}
	for path, value := range fields {
		if _, err := service.ApplyField(context.Background(), "user-1", id, path, value); err != nil {
			t.Fatalf("apply %s: %v", path, err)
		}
	}
}

func fillRegistration(t *testing.T, service *WizardService, id string) {
	t.Helper()
	fields := map[string]any{
		"name":                "Bakery Nord",
		"xrgiID":              "1234567890",
		"modelNumber":         "XRGI-25",
		"location.address":    "Havnegade 12",
		"location.postalCode": "8000",
		"location.city":       "Aarhus",
		"location.country":    "Denmark",
	}
	for path, value := range fields {
		if _, err := service.ApplyField(context.Background(), "user-1", id, path, value); err != nil {
			t.Fatalf("apply %s: %v", path, err)
		}
	}
}

func TestStartSession_Defaults(t *testing.T) {
	service, _ := newTestService(t, &fakeUpstream{})
	session, err := service.StartSession(context.Background(), "user-1", "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Flow != registration.FlowWizard {
		t.Fatalf("expected default wizard flow, got %q", session.Flow)
	}
	if session.Step != 1 || session.Status != registration.JourneyInProgress {
		t.Fatalf("expected fresh journey, got step=%d status=%q", session.Step, session.Status)
	}
}

func TestStartSession_PrepopulatesFromFacility(t *testing.T) {
	upstream := &fakeUpstream{
		listFacilities: func(_ context.Context, userID string) ([]ecpower.Facility, error) {
			return []ecpower.Facility{{
				ID: "facility-7", Name: "Bakery Nord", XRGIID: "1234567890",
				HasServiceContract: true,
				ServiceProvider:    &ecpower.Contact{Name: "EC Service"},
			}}, nil
		},
	}
	service, _ := newTestService(t, upstream)

	session, err := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "facility-7")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Draft.FacilityID != "facility-7" || session.Draft.Name != "Bakery Nord" {
		t.Fatalf("expected prepopulated draft, got %+v", session.Draft)
	}
	if session.Draft.ServiceProvider == nil || session.Draft.ServiceProvider.Name != "EC Service" {
		t.Fatal("expected provider carried over")
	}

	if _, err := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "missing"); !errors.Is(err, registration.ErrSessionNotFound) {
		t.Fatalf("expected not found for unknown facility, got %v", err)
	}
}

func TestNext_InvalidStepRecordsErrors(t *testing.T) {
	service, _ := newTestService(t, &fakeUpstream{})
	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")

	outcome, err := service.Next(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if outcome.Result.Valid {
		t.Fatal("empty profile must not validate")
	}
	if outcome.Session.Step != registration.StepProfile {
		t.Fatalf("invalid step must not advance, got step %d", outcome.Session.Step)
	}

	reloaded, err := service.GetSession(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := reloaded.Draft.Errors["firstName"]; !ok {
		t.Fatal("expected validation errors persisted on the draft")
	}
}

func TestNext_ProfileStepSavesUpstream(t *testing.T) {
	var saved ecpower.CustomerProfile
	upstream := &fakeUpstream{
		saveProfile: func(_ context.Context, profile ecpower.CustomerProfile) (string, error) {
			saved = profile
			return "customer-42", nil
		},
	}
	service, _ := newTestService(t, upstream)
	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")
	fillProfile(t, service, session.ID)

	outcome, err := service.Next(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if outcome.APIError != "" {
		t.Fatalf("unexpected api error: %q", outcome.APIError)
	}
	if outcome.Session.Step != registration.StepSystemRegistration {
		t.Fatalf("expected advance to step 2, got %d", outcome.Session.Step)
	}
	if outcome.Session.Profile.CustomerID != "customer-42" {
		t.Fatalf("expected customer id stored, got %q", outcome.Session.Profile.CustomerID)
	}
	if saved.Email != "mette@example.com" {
		t.Fatalf("expected profile forwarded upstream, got %+v", saved)
	}
}

func TestNext_ProfileUpstreamFailureBlocksAdvance(t *testing.T) {
	upstream := &fakeUpstream{
		saveProfile: func(context.Context, ecpower.CustomerProfile) (string, error) {
			return "", errors.New("boom")
		},
	}
	service, _ := newTestService(t, upstream)
	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")
	fillProfile(t, service, session.ID)

	outcome, err := service.Next(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if outcome.APIError == "" {
		t.Fatal("expected api error surfaced as data")
	}
	if outcome.Session.Step != registration.StepProfile {
		t.Fatalf("upstream failure must not advance, got step %d", outcome.Session.Step)
	}

	reloaded, _ := service.GetSession(context.Background(), "user-1", session.ID)
	if reloaded.Profile.Email != "mette@example.com" {
		t.Fatal("entered data must survive the failure")
	}
}

func TestPrevAndGoTo(t *testing.T) {
	service, _ := newTestService(t, &fakeUpstream{})
	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")

	updated, err := service.GoTo(context.Background(), "user-1", session.ID, registration.StepSmartPriceControl)
	if err != nil {
		t.Fatalf("goto: %v", err)
	}
	if updated.Step != registration.StepSmartPriceControl {
		t.Fatalf("expected step 3, got %d", updated.Step)
	}

	updated, err = service.Prev(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("prev: %v", err)
	}
	if updated.Step != registration.StepSystemRegistration {
		t.Fatalf("expected step 2, got %d", updated.Step)
	}

	if _, err := service.GoTo(context.Background(), "user-1", session.ID, 9); !errors.Is(err, registration.ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep, got %v", err)
	}
}

func TestSubmit_CreatesFacility(t *testing.T) {
	var created ecpower.FacilityPayload
	upstream := &fakeUpstream{
		createFacility: func(_ context.Context, payload ecpower.FacilityPayload) (ecpower.Facility, error) {
			created = payload
			return ecpower.Facility{ID: "facility-9", XRGIID: payload.XRGIID}, nil
		},
	}
	service, _ := newTestService(t, upstream)
	bus := eventing.NewInMemoryBus()
	var registered []events.FacilityRegistered
	bus.Subscribe(eventing.EventTypeOf[events.FacilityRegistered](), func(_ context.Context, event any) error {
		registered = append(registered, event.(events.FacilityRegistered))
		return nil
	})
	service, _ = NewWizardService(memoryrepo.NewSessionRepository(), upstream, bus, Config{DefaultFlow: "wizard"}, nil)

	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")
	fillRegistration(t, service, session.ID)
	if _, err := service.GoTo(context.Background(), "user-1", session.ID, registration.StepSmartPriceControl); err != nil {
		t.Fatalf("goto: %v", err)
	}

	result, err := service.Submit(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Facility == nil || result.Facility.ID != "facility-9" {
		t.Fatalf("expected created facility, got %+v", result.Facility)
	}
	if created.XRGIID != "1234567890" {
		t.Fatalf("expected payload forwarded, got %+v", created)
	}
	if result.Session.Status != registration.JourneyCompleted {
		t.Fatalf("expected completed journey, got %q", result.Session.Status)
	}
	if result.Session.Submitting {
		t.Fatal("submitting flag must be reset")
	}
	if len(registered) != 1 || registered[0].FacilityID != "facility-9" || registered[0].Updated {
		t.Fatalf("expected create event, got %+v", registered)
	}
}

func TestSubmit_UpdatesWhenDraftHasFacilityID(t *testing.T) {
	var updatedID string
	upstream := &fakeUpstream{
		listFacilities: func(context.Context, string) ([]ecpower.Facility, error) {
			return []ecpower.Facility{{ID: "facility-7", Name: "Bakery Nord", XRGIID: "1234567890", ModelNumber: "XRGI-25",
				Location: ecpower.Location{Address: "Havnegade 12", PostalCode: "8000", City: "Aarhus", Country: "Denmark"}}}, nil
		},
		updateFacility: func(_ context.Context, id string, payload ecpower.FacilityPayload) (ecpower.Facility, error) {
			updatedID = id
			return ecpower.Facility{ID: id, XRGIID: payload.XRGIID}, nil
		},
	}
	service, _ := newTestService(t, upstream)
	session, err := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "facility-7")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.GoTo(context.Background(), "user-1", session.ID, registration.StepSmartPriceControl); err != nil {
		t.Fatalf("goto: %v", err)
	}

	result, err := service.Submit(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if updatedID != "facility-7" {
		t.Fatalf("expected update call for facility-7, got %q", updatedID)
	}
}

func TestSubmit_FailureKeepsStepForRetry(t *testing.T) {
	upstream := &fakeUpstream{
		createFacility: func(context.Context, ecpower.FacilityPayload) (ecpower.Facility, error) {
			return ecpower.Facility{}, errors.New("upstream down")
		},
	}
	service, _ := newTestService(t, upstream)
	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")
	fillRegistration(t, service, session.ID)
	_, _ = service.GoTo(context.Background(), "user-1", session.ID, registration.StepSmartPriceControl)

	result, err := service.Submit(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error == "" {
		t.Fatal("expected error message as data")
	}
	if result.Session.Step != registration.StepSmartPriceControl {
		t.Fatalf("failed submit must keep the step, got %d", result.Session.Step)
	}
	if result.Session.Submitting {
		t.Fatal("submitting flag must be reset after failure")
	}
}

func TestSubmit_RejectsConcurrentSubmission(t *testing.T) {
	service, repo := newTestService(t, &fakeUpstream{})
	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")

	stored, _ := repo.Get(context.Background(), session.ID)
	stored.Submitting = true
	stored.SubmittingAt = time.Now()
	if err := repo.Save(context.Background(), stored); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := service.Submit(context.Background(), "user-1", session.ID); !errors.Is(err, registration.ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}
}

func TestSubmit_StaleLockRecovered(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	service, repo := newTestService(t, &fakeUpstream{}, WithClock(clock))
	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")
	fillRegistration(t, service, session.ID)
	_, _ = service.GoTo(context.Background(), "user-1", session.ID, registration.StepSmartPriceControl)

	// A submit that crashed between saves leaves the marker behind.
	stored, _ := repo.Get(context.Background(), session.ID)
	stored.Submitting = true
	stored.SubmittingAt = clock.now
	if err := repo.Save(context.Background(), stored); err != nil {
		t.Fatalf("save: %v", err)
	}

	clock.now = clock.now.Add(time.Minute)
	if _, err := service.Submit(context.Background(), "user-1", session.ID); !errors.Is(err, registration.ErrSubmissionInFlight) {
		t.Fatalf("expected in-flight lock honored within TTL, got %v", err)
	}

	clock.now = clock.now.Add(5 * time.Minute)
	result, err := service.Submit(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("submit after stale lock: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected stale lock taken over, got error %q", result.Error)
	}
}

func TestSubmit_RevalidatesEarlierSteps(t *testing.T) {
	created := false
	upstream := &fakeUpstream{
		createFacility: func(context.Context, ecpower.FacilityPayload) (ecpower.Facility, error) {
			created = true
			return ecpower.Facility{ID: "facility-1"}, nil
		},
	}
	service, _ := newTestService(t, upstream)
	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")
	fillRegistration(t, service, session.ID)
	if _, err := service.ApplyField(context.Background(), "user-1", session.ID, "EnergyCheck_plus", true); err != nil {
		t.Fatalf("enable energy check: %v", err)
	}
	if _, err := service.ApplyField(context.Background(), "user-1", session.ID, "energyCheckPlus.operatingHours", "1000"); err != nil {
		t.Fatalf("set hours: %v", err)
	}
	if _, err := service.ApplyField(context.Background(), "user-1", session.ID, "distributeHoursEvenly", true); err != nil {
		t.Fatalf("even split: %v", err)
	}
	_, _ = service.GoTo(context.Background(), "user-1", session.ID, registration.StepSmartPriceControl)

	// Break the distribution after its step was passed.
	if _, err := service.UpdateMonthPercentage(context.Background(), "user-1", session.ID, 0, "50"); err != nil {
		t.Fatalf("update month: %v", err)
	}

	result, err := service.Submit(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Success {
		t.Fatal("submit must reject a distribution that no longer totals 100")
	}
	if created {
		t.Fatal("upstream must not be called for an invalid draft")
	}
	if _, ok := result.Session.Draft.Errors["energyCheckPlus.monthlyDistribution"]; !ok {
		t.Fatalf("expected distribution error recorded, got %v", result.Session.Draft.Errors)
	}
}

func TestGetSession_OtherUserNotFound(t *testing.T) {
	service, _ := newTestService(t, &fakeUpstream{})
	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")

	if _, err := service.GetSession(context.Background(), "user-2", session.ID); !errors.Is(err, registration.ErrSessionNotFound) {
		t.Fatalf("expected not found for another user, got %v", err)
	}
	if err := service.Close(context.Background(), "user-2", session.ID); !errors.Is(err, registration.ErrSessionNotFound) {
		t.Fatalf("expected close rejected for another user, got %v", err)
	}
	if _, err := service.GetSession(context.Background(), "user-1", session.ID); err != nil {
		t.Fatalf("owner must still see the session: %v", err)
	}
}

func TestGetSession_ExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	service, _ := newTestService(t, &fakeUpstream{}, WithClock(clock))

	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")

	clock.now = clock.now.Add(29 * 24 * time.Hour)
	if _, err := service.GetSession(context.Background(), "user-1", session.ID); err != nil {
		t.Fatalf("expected session alive before TTL, got %v", err)
	}

	clock.now = clock.now.Add(2 * 24 * time.Hour)
	if _, err := service.GetSession(context.Background(), "user-1", session.ID); !errors.Is(err, registration.ErrSessionNotFound) {
		t.Fatalf("expected expiry after TTL, got %v", err)
	}
}

func TestApplyField_UnknownPath(t *testing.T) {
	service, _ := newTestService(t, &fakeUpstream{})
	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")

	if _, err := service.ApplyField(context.Background(), "user-1", session.ID, "bogus", "x"); !errors.Is(err, registration.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if _, err := service.ApplyField(context.Background(), "user-1", session.ID, "profile.bogus", "x"); !errors.Is(err, registration.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField for profile path, got %v", err)
	}
}

func TestUpdateMonthPercentage_RoundTrip(t *testing.T) {
	service, _ := newTestService(t, &fakeUpstream{})
	session, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")
	if _, err := service.ApplyField(context.Background(), "user-1", session.ID, "EnergyCheck_plus", true); err != nil {
		t.Fatalf("enable energy check: %v", err)
	}
	if _, err := service.ApplyField(context.Background(), "user-1", session.ID, "energyCheckPlus.operatingHours", "1000"); err != nil {
		t.Fatalf("set hours: %v", err)
	}

	updated, err := service.UpdateMonthPercentage(context.Background(), "user-1", session.ID, 0, "25")
	if err != nil {
		t.Fatalf("update month: %v", err)
	}
	if updated.Draft.EnergyCheck.Distribution.Entries[0].Hours != 250 {
		t.Fatalf("expected 250 hours, got %v", updated.Draft.EnergyCheck.Distribution.Entries[0].Hours)
	}
}

func TestListSessions_DropsExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	service, _ := newTestService(t, &fakeUpstream{}, WithClock(clock))

	old, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")
	clock.now = clock.now.Add(31 * 24 * time.Hour)
	fresh, _ := service.StartSession(context.Background(), "user-1", registration.FlowWizard, "")

	sessions, err := service.ListSessions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh session, got %d", len(sessions))
	}
	if _, err := service.GetSession(context.Background(), "user-1", old.ID); !errors.Is(err, registration.ErrSessionNotFound) {
		t.Fatalf("expected expired session deleted, got %v", err)
	}
}
