// Package account exposes the customer's own profile and credentials.
package account

import (
	"context"
	"errors"
	"log"
	"time"

	"xrgi-portal/internal/ecpower"
	"xrgi-portal/internal/observability/metrics"
)

// ErrWeakPassword is returned when a new password fails the policy.
var ErrWeakPassword = errors.New("account: password too short")

// minPasswordLength matches the upstream password policy.
const minPasswordLength = 8

// Upstream is the slice of the EC Power backend the account needs.
type Upstream interface {
	GetCustomerProfile(ctx context.Context, userID string) (ecpower.CustomerProfile, error)
	SaveCustomerProfile(ctx context.Context, profile ecpower.CustomerProfile) (string, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
}

// Service manages the customer account.
type Service struct {
	upstream Upstream
	logger   *log.Logger
}

// NewService constructs an account service.
func NewService(upstream Upstream, logger *log.Logger) (*Service, error) {
	if upstream == nil {
		return nil, errors.New("account: nil upstream")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{upstream: upstream, logger: logger}, nil
}

// Profile loads the customer profile.
func (s *Service) Profile(ctx context.Context, userID string) (ecpower.CustomerProfile, error) {
	start := time.Now()
	profile, err := s.upstream.GetCustomerProfile(ctx, userID)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveUpstream("get_customer_profile", result, time.Since(start))
	return profile, err
}

// UpdateProfile saves the customer profile and returns the customer id.
func (s *Service) UpdateProfile(ctx context.Context, profile ecpower.CustomerProfile) (string, error) {
	start := time.Now()
	customerID, err := s.upstream.SaveCustomerProfile(ctx, profile)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveUpstream("save_customer_profile", result, time.Since(start))
	return customerID, err
}

// ChangePassword changes the account password upstream.
func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	start := time.Now()
	err := s.upstream.ChangePassword(ctx, oldPassword, newPassword)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveUpstream("change_password", result, time.Since(start))
	return err
}
