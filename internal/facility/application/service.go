package application

import (
	"context"
	"errors"
	"log"
	"time"

	"xrgi-portal/internal/ecpower"
	facility "xrgi-portal/internal/facility/domain"
	"xrgi-portal/internal/observability/metrics"
)

// ErrFacilityNotFound is returned when an id does not belong to the user.
var ErrFacilityNotFound = errors.New("facility: not found")

// Upstream is the slice of the EC Power backend the dashboard needs.
type Upstream interface {
	ListUserFacilities(ctx context.Context, userID string) ([]ecpower.Facility, error)
	ListServiceLog(ctx context.Context, facilityID string) ([]ecpower.ServiceLogEntry, error)
}

// Service serves the facility list and dashboard.
type Service struct {
	upstream Upstream
	logger   *log.Logger
}

// NewService constructs a facility service.
func NewService(upstream Upstream, logger *log.Logger) (*Service, error) {
	if upstream == nil {
		return nil, errors.New("facility: nil upstream")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{upstream: upstream, logger: logger}, nil
}

// List returns the user's facilities.
func (s *Service) List(ctx context.Context, userID string) ([]facility.Facility, error) {
	start := time.Now()
	upstream, err := s.upstream.ListUserFacilities(ctx, userID)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveUpstream("list_user_facilities", result, time.Since(start))
	if err != nil {
		return nil, err
	}
	facilities := make([]facility.Facility, 0, len(upstream))
	for _, f := range upstream {
		facilities = append(facilities, fromUpstream(f))
	}
	return facilities, nil
}

// Get returns one facility owned by the user.
func (s *Service) Get(ctx context.Context, userID, facilityID string) (facility.Facility, error) {
	facilities, err := s.List(ctx, userID)
	if err != nil {
		return facility.Facility{}, err
	}
	for _, f := range facilities {
		if f.ID == facilityID {
			return f, nil
		}
	}
	return facility.Facility{}, ErrFacilityNotFound
}

// Dashboard builds the fleet summary for the user.
func (s *Service) Dashboard(ctx context.Context, userID string) (facility.Dashboard, error) {
	facilities, err := s.List(ctx, userID)
	if err != nil {
		return facility.Dashboard{}, err
	}
	return facility.BuildDashboard(facilities), nil
}

// ServiceLog returns the full service log for a facility the user owns.
func (s *Service) ServiceLog(ctx context.Context, userID, facilityID string) ([]ecpower.ServiceLogEntry, error) {
	if _, err := s.Get(ctx, userID, facilityID); err != nil {
		return nil, err
	}
	start := time.Now()
	entries, err := s.upstream.ListServiceLog(ctx, facilityID)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveUpstream("list_service_log", result, time.Since(start))
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func fromUpstream(f ecpower.Facility) facility.Facility {
	view := facility.Facility{
		ID:                     f.ID,
		Name:                   f.Name,
		XRGIID:                 f.XRGIID,
		ModelNumber:            f.ModelNumber,
		Status:                 f.Status,
		Address:                f.Location.Address,
		PostalCode:             f.Location.PostalCode,
		City:                   f.Location.City,
		Country:                f.Location.Country,
		IsInstalled:            f.IsInstalled,
		HasServiceContract:     f.HasServiceContract,
		NeedServiceContract:    f.NeedServiceContract,
		HasEnergyCheckPlus:     f.HasEnergyCheckPlus,
		SmartPriceControlAdded: f.SmartPriceControlAdded,
		UpdatedAt:              f.UpdatedAt,
	}
	if f.ServiceProvider != nil {
		view.ServiceProviderName = f.ServiceProvider.Name
	}
	return view
}
