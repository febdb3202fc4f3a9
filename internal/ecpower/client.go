package ecpower

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// ErrNotFound is returned when the backend reports a missing resource.
var ErrNotFound = errors.New("ecpower: not found")

// ErrUnauthorized is returned when re-authentication with cached
// credentials fails.
var ErrUnauthorized = errors.New("ecpower: unauthorized")

// defaultTokenTTL is how long an access token is trusted before the
// client re-authenticates, tracked client-side.
const defaultTokenTTL = time.Hour

// Credentials are the cached login credentials used for transparent
// re-authentication.
type Credentials struct {
	Email    string
	Password string
}

// Client is a minimal EC Power REST client. Requests carry the bearer
// access token plus the secondary id token; expired sessions are renewed
// with the cached credentials and the request replayed once.
type Client struct {
	baseURL string
	creds   Credentials
	client  *http.Client
	ttl     time.Duration

	mu        sync.Mutex
	authToken string
	idToken   string
	userID    string
	issuedAt  time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithTokenTTL overrides the client-side token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithHTTPTimeout overrides the request timeout.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// NewClient constructs an EC Power client.
func NewClient(baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("ecpower: empty base url")
	}
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		client:  &http.Client{Timeout: 30 * time.Second},
		ttl:     defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Facility is a facility record as the backend returns it. The backend is
// the source of truth; this mirrors the fields the portal reads.
type Facility struct {
	ID                     string            `json:"id"`
	Name                   string            `json:"name"`
	XRGIID                 string            `json:"xrgiID"`
	ModelNumber            string            `json:"modelNumber"`
	Status                 string            `json:"status"`
	Location               Location          `json:"location"`
	HasServiceContract     bool              `json:"hasServiceContract"`
	NeedServiceContract    bool              `json:"needServiceContract"`
	HasEnergyCheckPlus     bool              `json:"hasEnergyCheckPlus"`
	SmartPriceControlAdded bool              `json:"smartPriceControlAdded"`
	IsInstalled            bool              `json:"isInstalled"`
	ServiceProvider        *Contact          `json:"serviceProvider,omitempty"`
	SalesPartner           *Contact          `json:"salesPartner,omitempty"`
	EnergyCheckPlus        map[string]any    `json:"EnergyCheck_plus,omitempty"`
	MonthlyDistribution    map[string]string `json:"monthlyDistribution,omitempty"`
	CreatedAt              time.Time         `json:"createdAt"`
	UpdatedAt              time.Time         `json:"updatedAt"`
}

// Location is a facility address.
type Location struct {
	Address    string `json:"address"`
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

// Contact is a service provider or sales partner contact.
type Contact struct {
	Name                    string `json:"name"`
	MailAddress             string `json:"mailAddress"`
	Phone                   string `json:"phone"`
	CountryCode             string `json:"countryCode"`
	IsSameAsServiceProvider bool   `json:"isSameAsServiceProvider,omitempty"`
}

// FacilityPayload is the create/update request body.
type FacilityPayload struct {
	ID                     string             `json:"id,omitempty"`
	Name                   string             `json:"name"`
	XRGIID                 string             `json:"xrgiID"`
	ModelNumber            string             `json:"modelNumber"`
	Location               Location           `json:"location"`
	HasServiceContract     bool               `json:"hasServiceContract"`
	NeedServiceContract    bool               `json:"needServiceContract"`
	ServiceProvider        *Contact           `json:"serviceProvider,omitempty"`
	SalesPartner           *Contact           `json:"salesPartner,omitempty"`
	HasEnergyCheckPlus     bool               `json:"hasEnergyCheckPlus"`
	EnergyCheckPlus        map[string]any     `json:"EnergyCheck_plus"`
	SmartPriceControl      *SmartPriceControl `json:"smartPriceControl,omitempty"`
	SmartPriceControlAdded bool               `json:"smartPriceControlAdded"`
	IsInstalled            bool               `json:"isInstalled"`
}

// SmartPriceControl is the controller sub-record of the payload.
type SmartPriceControl struct {
	Method string `json:"method"`
}

// CustomerProfile is the create-or-update customer request body.
type CustomerProfile struct {
	CustomerID  string `json:"customerId,omitempty"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
	CompanyName string `json:"companyName"`
	Address     string `json:"address"`
	PostalCode  string `json:"postalCode"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

// Statistics is a facility statistics report for a period.
type Statistics struct {
	FacilityID        string             `json:"facilityId"`
	PeriodStart       time.Time          `json:"periodStart"`
	PeriodEnd         time.Time          `json:"periodEnd"`
	ProducedEnergyKWh float64            `json:"producedEnergyKWh"`
	OperatingHours    float64            `json:"operatingHours"`
	CO2SavingsKg      float64            `json:"co2SavingsKg"`
	MonthlyHours      map[string]float64 `json:"monthlyHours,omitempty"`
}

// ServiceLogEntry is one entry of a facility service log.
type ServiceLogEntry struct {
	ID         string    `json:"id"`
	FacilityID string    `json:"facilityId"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Login authenticates with the cached credentials and stores both tokens.
func (c *Client) Login(ctx context.Context) error {
	if c.creds.Email == "" || c.creds.Password == "" {
		return ErrUnauthorized
	}
	body := map[string]string{"email": c.creds.Email, "password": c.creds.Password}
	var resp struct {
		AuthToken string `json:"authToken"`
		IDToken   string `json:"idToken"`
		UserID    string `json:"userId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp, false); err != nil {
		return fmt.Errorf("ecpower: login: %w", err)
	}
	if resp.AuthToken == "" {
		return ErrUnauthorized
	}
	c.mu.Lock()
	c.authToken = resp.AuthToken
	c.idToken = resp.IDToken
	c.userID = resp.UserID
	c.issuedAt = time.Now().UTC()
	c.mu.Unlock()
	return nil
}

// CreateFacility submits a new facility registration.
func (c *Client) CreateFacility(ctx context.Context, payload FacilityPayload) (Facility, error) {
	var facility Facility
	if err := c.doAuthed(ctx, http.MethodPost, "/api/create-facility", payload, &facility); err != nil {
		return Facility{}, err
	}
	return facility, nil
}

// UpdateFacility updates an existing facility keyed by id.
func (c *Client) UpdateFacility(ctx context.Context, id string, payload FacilityPayload) (Facility, error) {
	if id == "" {
		return Facility{}, errors.New("ecpower: empty facility id")
	}
	payload.ID = id
	var facility Facility
	path := "/api/update-facility?id=" + url.QueryEscape(id)
	if err := c.doAuthed(ctx, http.MethodPost, path, payload, &facility); err != nil {
		return Facility{}, err
	}
	return facility, nil
}

// ListUserFacilities returns the facilities registered to a user.
func (c *Client) ListUserFacilities(ctx context.Context, userID string) ([]Facility, error) {
	if userID == "" {
		return nil, errors.New("ecpower: empty user id")
	}
	var facilities []Facility
	path := "/api/get-user-facility?id=" + url.QueryEscape(userID)
	if err := c.doAuthed(ctx, http.MethodGet, path, nil, &facilities); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return facilities, nil
}

// SaveCustomerProfile creates or updates the customer profile and returns
// the customer id.
func (c *Client) SaveCustomerProfile(ctx context.Context, profile CustomerProfile) (string, error) {
	var resp struct {
		CustomerID string `json:"customerId"`
	}
	if err := c.doAuthed(ctx, http.MethodPost, "/api/create-or-update-customer", profile, &resp); err != nil {
		return "", err
	}
	return resp.CustomerID, nil
}

// GetCustomerProfile loads the customer profile for a user.
func (c *Client) GetCustomerProfile(ctx context.Context, userID string) (CustomerProfile, error) {
	var profile CustomerProfile
	path := "/api/get-customer?id=" + url.QueryEscape(userID)
	if err := c.doAuthed(ctx, http.MethodGet, path, nil, &profile); err != nil {
		return CustomerProfile{}, err
	}
	return profile, nil
}

// GetStatistics loads facility statistics for a period.
func (c *Client) GetStatistics(ctx context.Context, facilityID string, from, to time.Time) (Statistics, error) {
	if facilityID == "" {
		return Statistics{}, errors.New("ecpower: empty facility id")
	}
	path := fmt.Sprintf("/api/facility-statistics?id=%s&from=%s&to=%s",
		url.QueryEscape(facilityID),
		url.QueryEscape(from.UTC().Format(time.RFC3339)),
		url.QueryEscape(to.UTC().Format(time.RFC3339)))
	var stats Statistics
	if err := c.doAuthed(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return Statistics{}, err
	}
	return stats, nil
}

// ListServiceLog returns the service log for a facility, newest first.
func (c *Client) ListServiceLog(ctx context.Context, facilityID string) ([]ServiceLogEntry, error) {
	if facilityID == "" {
		return nil, errors.New("ecpower: empty facility id")
	}
	var entries []ServiceLogEntry
	path := "/api/facility-service-log?id=" + url.QueryEscape(facilityID)
	if err := c.doAuthed(ctx, http.MethodGet, path, nil, &entries); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

// ChangePassword changes the account password upstream.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{"oldPassword": oldPassword, "newPassword": newPassword}
	if err := c.doAuthed(ctx, http.MethodPost, "/api/auth/change-password", body, nil); err != nil {
		return err
	}
	c.creds.Password = newPassword
	return nil
}

// UserID returns the user id from the last successful login.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) tokens() (string, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fresh := c.authToken != "" && time.Since(c.issuedAt) < c.ttl
	return c.authToken, c.idToken, fresh
}

// doAuthed performs an authenticated call, re-authenticating up front when
// the cached token has aged out and once more if the backend answers 401.
func (c *Client) doAuthed(ctx context.Context, method, path string, body, out any) error {
	if _, _, fresh := c.tokens(); !fresh {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}
	err := c.do(ctx, method, path, body, out, true)
	if errors.Is(err, errStatusUnauthorized) {
		if err := c.Login(ctx); err != nil {
			return err
		}
		err = c.do(ctx, method, path, body, out, true)
		if errors.Is(err, errStatusUnauthorized) {
			return ErrUnauthorized
		}
	}
	return err
}

var errStatusUnauthorized = errors.New("ecpower: http 401")

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		authToken, idToken, _ := c.tokens()
		if authToken != "" {
			req.Header.Set("Authorization", "Bearer "+authToken)
		}
		if idToken != "" {
			req.Header.Set("X-Id-Token", idToken)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errStatusUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("ecpower: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
