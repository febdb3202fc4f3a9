package application

import (
	"context"
	"errors"
	"log"
	"time"

	"xrgi-portal/internal/ecpower"
	"xrgi-portal/internal/observability/metrics"
)

// Upstream is the slice of the EC Power backend statistics need.
type Upstream interface {
	ListUserFacilities(ctx context.Context, userID string) ([]ecpower.Facility, error)
	GetStatistics(ctx context.Context, facilityID string, from, to time.Time) (ecpower.Statistics, error)
}

// ErrFacilityNotFound is returned when an id does not belong to the user.
var ErrFacilityNotFound = errors.New("stats: facility not found")

// Report bundles the statistics with the facility they describe.
type Report struct {
	Facility   ecpower.Facility   `json:"facility"`
	Statistics ecpower.Statistics `json:"statistics"`
}

// Service loads facility statistics reports.
type Service struct {
	upstream Upstream
	logger   *log.Logger
}

// NewService constructs a statistics service.
func NewService(upstream Upstream, logger *log.Logger) (*Service, error) {
	if upstream == nil {
		return nil, errors.New("stats: nil upstream")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{upstream: upstream, logger: logger}, nil
}

// Load fetches statistics for a facility the user owns. A zero period
// defaults to the trailing twelve months.
func (s *Service) Load(ctx context.Context, userID, facilityID string, from, to time.Time) (Report, error) {
	facilities, err := s.upstream.ListUserFacilities(ctx, userID)
	if err != nil {
		return Report{}, err
	}
	var owned *ecpower.Facility
	for i := range facilities {
		if facilities[i].ID == facilityID {
			owned = &facilities[i]
			break
		}
	}
	if owned == nil {
		return Report{}, ErrFacilityNotFound
	}

	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(-1, 0, 0)
	}

	start := time.Now()
	stats, err := s.upstream.GetStatistics(ctx, facilityID, from, to)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveUpstream("get_statistics", result, time.Since(start))
	if err != nil {
		return Report{}, err
	}
	return Report{Facility: *owned, Statistics: stats}, nil
}
