package account

import (
	"context"
	"errors"
	"testing"

	"xrgi-portal/internal/ecpower"
)

type fakeUpstream struct {
	profile     ecpower.CustomerProfile
	saved       ecpower.CustomerProfile
	passwordErr error
}

func (f *fakeUpstream) GetCustomerProfile(context.Context, string) (ecpower.CustomerProfile, error) {
	return f.profile, nil
}

func (f *fakeUpstream) SaveCustomerProfile(_ context.Context, profile ecpower.CustomerProfile) (string, error) {
	f.saved = profile
	return "customer-1", nil
}

func (f *fakeUpstream) ChangePassword(context.Context, string, string) error {
	return f.passwordErr
}

func TestService_ProfileRoundTrip(t *testing.T) {
	upstream := &fakeUpstream{profile: ecpower.CustomerProfile{Email: "mette@example.com"}}
	service, err := NewService(upstream, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	profile, err := service.Profile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Email != "mette@example.com" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	profile.City = "Aarhus"
	customerID, err := service.UpdateProfile(context.Background(), profile)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if customerID != "customer-1" || upstream.saved.City != "Aarhus" {
		t.Fatalf("expected profile forwarded, got id=%q saved=%+v", customerID, upstream.saved)
	}
}

func TestService_ChangePasswordPolicy(t *testing.T) {
	service, _ := NewService(&fakeUpstream{}, nil)

	if err := service.ChangePassword(context.Background(), "old", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := service.ChangePassword(context.Background(), "old", "long-enough-pass"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	failing, _ := NewService(&fakeUpstream{passwordErr: ecpower.ErrUnauthorized}, nil)
	if err := failing.ChangePassword(context.Background(), "old", "long-enough-pass"); !errors.Is(err, ecpower.ErrUnauthorized) {
		t.Fatalf("expected upstream error surfaced, got %v", err)
	}
}
