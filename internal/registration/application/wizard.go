package application

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"xrgi-portal/internal/ecpower"
	"xrgi-portal/internal/eventing"
	"xrgi-portal/internal/registration/application/events"
	registration "xrgi-portal/internal/registration/domain"
)

// Upstream is the slice of the EC Power backend the wizard needs.
type Upstream interface {
	SaveCustomerProfile(ctx context.Context, profile ecpower.CustomerProfile) (string, error)
	CreateFacility(ctx context.Context, payload ecpower.FacilityPayload) (ecpower.Facility, error)
	UpdateFacility(ctx context.Context, id string, payload ecpower.FacilityPayload) (ecpower.Facility, error)
	ListUserFacilities(ctx context.Context, userID string) ([]ecpower.Facility, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// StepOutcome is the result of a next-step attempt.
type StepOutcome struct {
	Session  *registration.Session   `json:"session"`
	Result   registration.StepResult `json:"result"`
	APIError string                  `json:"apiError,omitempty"`
}

// SubmitResult is the result of a final submission. Upstream failures are
// recoverable: the session stays on its step so the user can retry.
type SubmitResult struct {
	Success  bool                  `json:"success"`
	Error    string                `json:"error,omitempty"`
	Facility *ecpower.Facility     `json:"facility,omitempty"`
	Session  *registration.Session `json:"session"`
}

// WizardService orchestrates registration sessions: draft updates, step
// transitions and the final submission.
type WizardService struct {
	repo     registration.SessionRepository
	upstream Upstream
	bus      eventing.EventBus
	cfg      Config
	clock    Clock
	logger   *log.Logger
}

// WizardOption configures the service.
type WizardOption func(*WizardService)

// WithClock overrides the clock.
func WithClock(clock Clock) WizardOption {
	return func(s *WizardService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewWizardService constructs the wizard service.
func NewWizardService(repo registration.SessionRepository, upstream Upstream, bus eventing.EventBus, cfg Config, logger *log.Logger, opts ...WizardOption) (*WizardService, error) {
	if repo == nil {
		return nil, errors.New("wizard: nil repository")
	}
	if upstream == nil {
		return nil, errors.New("wizard: nil upstream")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &WizardService{
		repo:     repo,
		upstream: upstream,
		bus:      bus,
		cfg:      cfg,
		clock:    systemClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// StartSession opens a new journey. When facilityID is given the draft is
// pre-populated from the user's existing facility for editing.
func (s *WizardService) StartSession(ctx context.Context, userID string, flow registration.Flow, facilityID string) (*registration.Session, error) {
	if flow == "" {
		flow = registration.Flow(s.cfg.DefaultFlow)
	}
	session, err := registration.NewSession(uuid.New().String(), userID, flow, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if facilityID != "" {
		facilities, err := s.upstream.ListUserFacilities(ctx, userID)
		if err != nil {
			return nil, err
		}
		found := false
		for _, facility := range facilities {
			if facility.ID == facilityID {
				session.Draft = draftFromFacility(facility, s.clock.Now())
				found = true
				break
			}
		}
		if !found {
			return nil, registration.ErrSessionNotFound
		}
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	s.publish(ctx, events.DraftCreated{
		SessionID:  session.ID,
		UserID:     userID,
		Flow:       string(flow),
		OccurredAt: s.clock.Now(),
	})
	return session, nil
}

// GetSession loads a session, expiring drafts past the TTL. Sessions
// owned by another user are reported as not found.
func (s *WizardService) GetSession(ctx context.Context, userID, id string) (*registration.Session, error) {
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, registration.ErrSessionNotFound
	}
	if s.cfg.SessionTTL > 0 && s.clock.Now().Sub(session.UpdatedAt) > s.cfg.SessionTTL {
		_ = s.repo.Delete(ctx, session.ID)
		return nil, registration.ErrSessionNotFound
	}
	return session, nil
}

// ListSessions returns the user's resumable sessions, dropping expired
// drafts along the way.
func (s *WizardService) ListSessions(ctx context.Context, userID string) ([]*registration.Session, error) {
	sessions, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	alive := make([]*registration.Session, 0, len(sessions))
	for _, session := range sessions {
		if s.cfg.SessionTTL > 0 && s.clock.Now().Sub(session.UpdatedAt) > s.cfg.SessionTTL {
			_ = s.repo.Delete(ctx, session.ID)
			continue
		}
		alive = append(alive, session)
	}
	return alive, nil
}

// ApplyField applies one field update to the session. Paths starting with
// "profile." address the customer profile; everything else addresses the
// facility draft.
func (s *WizardService) ApplyField(ctx context.Context, userID, id, path string, value any) (*registration.Session, error) {
	session, err := s.GetSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if field, ok := strings.CutPrefix(path, "profile."); ok {
		if err := setProfileField(&session.Profile, field, value); err != nil {
			return nil, err
		}
	} else {
		draft, err := session.Draft.SetField(path, value)
		if err != nil {
			return nil, err
		}
		session.Draft = draft
	}
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateMonthPercentage applies manual distribution input for one month.
func (s *WizardService) UpdateMonthPercentage(ctx context.Context, userID, id string, month int, raw string) (*registration.Session, error) {
	session, err := s.GetSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	draft, err := session.Draft.UpdateMonthPercentage(month, raw)
	if err != nil {
		return nil, err
	}
	session.Draft = draft
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Next validates the current step and advances on success. The profile
// step saves the customer profile upstream first; an upstream failure
// blocks the advance without losing entered data.
func (s *WizardService) Next(ctx context.Context, userID, id string) (StepOutcome, error) {
	session, err := s.GetSession(ctx, userID, id)
	if err != nil {
		return StepOutcome{}, err
	}

	result := registration.ValidateStep(session)
	if !result.Valid {
		session.Draft = session.Draft.RecordErrors(result.Errors)
		if err := s.repo.Save(ctx, session); err != nil {
			return StepOutcome{}, err
		}
		return StepOutcome{Session: session, Result: result}, nil
	}

	if session.Flow == registration.FlowWizard && session.Step == registration.StepProfile {
		customerID, err := s.upstream.SaveCustomerProfile(ctx, toProfilePayload(session.Profile))
		if err != nil {
			s.logger.Printf("wizard: save customer profile failed: session=%s err=%v", session.ID, err)
			return StepOutcome{Session: session, Result: result, APIError: "could not save customer profile"}, nil
		}
		session.Profile.CustomerID = customerID
		s.publish(ctx, events.ProfileSaved{
			SessionID:  session.ID,
			CustomerID: customerID,
			OccurredAt: s.clock.Now(),
		})
	}

	session.Advance()
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return StepOutcome{}, err
	}
	return StepOutcome{Session: session, Result: result}, nil
}

// Prev moves one step back without validating.
func (s *WizardService) Prev(ctx context.Context, userID, id string) (*registration.Session, error) {
	session, err := s.GetSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	session.Back()
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GoTo jumps to a step when resuming a saved draft.
func (s *WizardService) GoTo(ctx context.Context, userID, id string, step int) (*registration.Session, error) {
	session, err := s.GetSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := session.GoTo(step); err != nil {
		return nil, err
	}
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Submit assembles the final payload and calls create or update upstream,
// selecting update when the draft carries a facility id. Every content
// step is revalidated first: a later edit can break data whose step was
// already passed. Errors are returned as data; the session keeps its
// step for a retry.
func (s *WizardService) Submit(ctx context.Context, userID, id string) (SubmitResult, error) {
	session, err := s.GetSession(ctx, userID, id)
	if err != nil {
		return SubmitResult{}, err
	}
	if session.Submitting && !s.submitLockStale(session) {
		return SubmitResult{}, registration.ErrSubmissionInFlight
	}

	result := registration.ValidateForSubmit(session)
	if !result.Valid {
		session.Draft = session.Draft.RecordErrors(result.Errors)
		if err := s.repo.Save(ctx, session); err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{Success: false, Error: "validation failed", Session: session}, nil
	}

	session.Submitting = true
	session.SubmittingAt = s.clock.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return SubmitResult{}, err
	}

	payload := BuildPayload(session.Draft)
	var facility ecpower.Facility
	var callErr error
	updated := session.Draft.FacilityID != ""
	if updated {
		facility, callErr = s.upstream.UpdateFacility(ctx, session.Draft.FacilityID, payload)
	} else {
		facility, callErr = s.upstream.CreateFacility(ctx, payload)
	}

	session.Submitting = false
	session.SubmittingAt = time.Time{}
	if callErr != nil {
		s.logger.Printf("wizard: facility submit failed: session=%s err=%v", session.ID, callErr)
		if err := s.repo.Save(ctx, session); err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{Success: false, Error: "could not submit facility", Session: session}, nil
	}

	session.Draft.FacilityID = facility.ID
	session.Advance()
	session.Status = registration.JourneyCompleted
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return SubmitResult{}, err
	}

	s.publish(ctx, events.FacilityRegistered{
		SessionID:  session.ID,
		FacilityID: facility.ID,
		XRGIID:     session.Draft.XRGIID,
		Updated:    updated,
		OccurredAt: s.clock.Now(),
	})
	return SubmitResult{Success: true, Facility: &facility, Session: session}, nil
}

// Close discards a finished or abandoned session.
func (s *WizardService) Close(ctx context.Context, userID, id string) error {
	session, err := s.GetSession(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, session.ID)
}

// submitLockStale reports whether an in-flight marker outlived the lock
// TTL, which happens when a submit crashed between saves. The draft
// would otherwise stay locked until session expiry.
func (s *WizardService) submitLockStale(session *registration.Session) bool {
	if s.cfg.SubmitLockTTL <= 0 {
		return false
	}
	return s.clock.Now().Sub(session.SubmittingAt) > s.cfg.SubmitLockTTL
}

// RedirectDelay is how long the completion screen lingers before the
// client navigates away.
func (s *WizardService) RedirectDelay() time.Duration {
	return s.cfg.RedirectDelay
}

func (s *WizardService) publish(ctx context.Context, event any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Printf("wizard: publish %s failed: %v", eventing.EventType(event), err)
	}
}

func setProfileField(p *registration.CustomerProfile, field string, value any) error {
	text, _ := value.(string)
	switch field {
	case "firstName":
		p.FirstName = text
	case "lastName":
		p.LastName = text
	case "email":
		p.Email = text
	case "phone":
		p.Phone = text
	case "countryCode":
		p.CountryCode = text
	case "companyName":
		p.CompanyName = text
	case "address":
		p.Address = text
	case "postalCode":
		p.PostalCode = text
	case "city":
		p.City = text
	case "country":
		p.Country = text
	default:
		return registration.ErrUnknownField
	}
	return nil
}

// draftFromFacility pre-populates a draft from an existing facility.
func draftFromFacility(facility ecpower.Facility, now time.Time) registration.FacilityDraft {
	draft := registration.NewFacilityDraft(now)
	draft.FacilityID = facility.ID
	draft.Name = facility.Name
	draft.XRGIID = facility.XRGIID
	draft.ModelNumber = facility.ModelNumber
	draft.Status = facility.Status
	draft.Location = registration.Location{
		Address:    facility.Location.Address,
		PostalCode: facility.Location.PostalCode,
		City:       facility.Location.City,
		Country:    facility.Location.Country,
	}
	draft.IsInstalled = facility.IsInstalled
	draft.NeedServiceContract = facility.NeedServiceContract
	if facility.HasServiceContract {
		draft = draft.EnableServiceContract()
		if facility.ServiceProvider != nil {
			draft.ServiceProvider = &registration.Contact{
				Name:        facility.ServiceProvider.Name,
				MailAddress: facility.ServiceProvider.MailAddress,
				Phone:       facility.ServiceProvider.Phone,
				CountryCode: facility.ServiceProvider.CountryCode,
			}
		}
	}
	if facility.SalesPartner != nil {
		partner := registration.Contact{
			Name:                    facility.SalesPartner.Name,
			MailAddress:             facility.SalesPartner.MailAddress,
			Phone:                   facility.SalesPartner.Phone,
			CountryCode:             facility.SalesPartner.CountryCode,
			IsSameAsServiceProvider: facility.SalesPartner.IsSameAsServiceProvider,
		}
		draft.SalesPartner = &partner
		draft.IsSalesPartnerSame = partner.IsSameAsServiceProvider
	}
	if facility.HasEnergyCheckPlus {
		draft = draft.EnableEnergyCheckPlus()
		if hours, ok := facility.EnergyCheckPlus["operatingHours"].(string); ok {
			draft.EnergyCheck.OperatingHours = hours
		}
		if industry, ok := facility.EnergyCheckPlus["industry"].(string); ok {
			draft.EnergyCheck.Industry = industry
		}
		if email, ok := facility.EnergyCheckPlus["email"].(string); ok {
			draft.EnergyCheck.Email = email
		}
	}
	if facility.SmartPriceControlAdded {
		draft = draft.EnableSmartPriceControl()
	}
	return draft
}
